package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OHLCVCandle is the cached candle table filled by the backfill command
// and read by the workbench's offline tooling.
type OHLCVCandle struct {
	ID       uint            `gorm:"primaryKey"`
	Symbol   string          `json:"symbol"   gorm:"type:varchar(50);not null;uniqueIndex:ux_ohlcv_candles_symbol_datetime,priority:1"`
	Datetime time.Time       `json:"datetime" gorm:"not null;uniqueIndex:ux_ohlcv_candles_symbol_datetime,priority:2;index:idx_ohlcv_candles_datetime"`
	Open     decimal.Decimal `json:"open"   gorm:"type:double precision;not null"`
	High     decimal.Decimal `json:"high"   gorm:"type:double precision;not null"`
	Low      decimal.Decimal `json:"low"    gorm:"type:double precision;not null"`
	Close    decimal.Decimal `json:"close"  gorm:"type:double precision;not null"`
	Volume   decimal.Decimal `json:"volume" gorm:"type:double precision;not null"`
}

func (OHLCVCandle) TableName() string {
	return "ohlcv_candles"
}
