package model

import "time"

// Log types for execution records.
const (
	LogTypeInfo  = "info"
	LogTypeTrade = "trade"
	LogTypeError = "error"
)

// Pipeline step names recorded against each execution record.
const (
	StepMarketClock = "market_clock"
	StepConnection  = "connection"
	StepMarketData  = "market_data"
	StepStrategy    = "strategy"
	StepSignal      = "signal"
	StepOrder       = "order"
	StepOutcome     = "outcome"
)

// Terminal tick outcomes, one per session per tick.
const (
	OutcomeTradeExecuted = "TRADE_EXECUTED"
	OutcomeNoSignal      = "NO_SIGNAL"
	OutcomeSkippedMarket = "SKIPPED_MARKET_CONDITIONS"
	OutcomeError         = "ERROR"
)

// ExecutionRecord is one append-only audit entry. Every tick produces at
// least one record per session, even on failure, so the audit history
// has no silent gaps.
type ExecutionRecord struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	SessionID uint      `gorm:"not null;index" json:"session_id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	LogType   string    `gorm:"size:20;not null" json:"log_type"`
	Step      string    `gorm:"size:50;not null" json:"step"`
	Message   string    `gorm:"size:512" json:"message"`
	TradeData string    `gorm:"type:text" json:"trade_data,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (ExecutionRecord) TableName() string {
	return "execution_records"
}
