package repository

import (
	"context"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"forwardtester/src/database"
	"forwardtester/src/model"
)

// CandleRepository stores backfilled OHLCV candles for the workbench's
// offline tooling.
type CandleRepository struct {
	db *gorm.DB
}

func NewCandleRepository() *CandleRepository {
	return &CandleRepository{db: database.MainDB}
}

func (r *CandleRepository) WithDB(db *gorm.DB) *CandleRepository {
	return &CandleRepository{db: db}
}

// Upsert inserts a candle or updates prices on (symbol, datetime) conflict.
func (r *CandleRepository) Upsert(ctx context.Context, candle *model.OHLCVCandle) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}, {Name: "datetime"}},
		DoUpdates: clause.AssignmentColumns([]string{"open", "high", "low", "close", "volume"}),
	}).Create(candle).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "CandleRepository",
			"op":     "Upsert",
			"symbol": candle.Symbol,
		}).WithError(err).Error("Failed to upsert candle")
		return err
	}
	return nil
}

// LatestDatetime returns the newest stored candle time for a symbol, or
// the zero time when none exist.
func (r *CandleRepository) LatestDatetime(ctx context.Context, symbol string) (time.Time, error) {
	var latest *time.Time
	err := r.db.WithContext(ctx).
		Model(&model.OHLCVCandle{}).
		Select("MAX(datetime)").
		Where("symbol = ?", symbol).
		Take(&latest).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "CandleRepository",
			"op":     "LatestDatetime",
			"symbol": symbol,
		}).WithError(err).Error("Failed to query latest candle datetime")
		return time.Time{}, err
	}
	if latest == nil {
		return time.Time{}, nil
	}
	return *latest, nil
}
