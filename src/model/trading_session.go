package model

import "time"

const (
	EnvironmentPractice = "practice"
	EnvironmentLive     = "live"
)

// TradingSession is one configured strategy deployment owned by a user.
// The engine only ever writes LastExecution; everything else belongs to
// the user and the workbench UI.
type TradingSession struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	UserID       uint   `gorm:"not null;index" json:"user_id"`
	StrategyName string `gorm:"size:255;not null" json:"strategy_name"`
	StrategyCode string `gorm:"type:text;not null" json:"strategy_code"`
	Symbol       string `gorm:"size:50;not null" json:"symbol"`
	Timeframe    string `gorm:"size:10;not null;default:M5" json:"timeframe"`

	// Brokerage account reference. CredentialRef holds the encrypted API
	// token, decrypted by src/security just before use.
	AccountID     string `gorm:"size:100;not null" json:"account_id"`
	CredentialRef string `gorm:"column:credential_ref;type:text" json:"-"`
	Environment   string `gorm:"size:20;not null;default:practice" json:"environment"`

	// Risk parameters.
	RiskPercent     float64 `gorm:"not null;default:1" json:"risk_percent"`
	StopLossPips    float64 `gorm:"not null;default:20" json:"stop_loss_pips"`
	TakeProfitPips  float64 `gorm:"not null;default:40" json:"take_profit_pips"`
	MaxPositionSize int     `gorm:"not null;default:10000" json:"max_position_size"`

	ReverseSignals bool `gorm:"not null;default:false" json:"reverse_signals"`
	AvoidLowVolume bool `gorm:"not null;default:false" json:"avoid_low_volume"`
	Active         bool `gorm:"not null;default:true;index" json:"active"`

	LastExecution *time.Time `json:"last_execution"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (TradingSession) TableName() string {
	return "trading_sessions"
}
