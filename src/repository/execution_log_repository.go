package repository

import (
	"context"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"forwardtester/src/database"
	"forwardtester/src/model"
)

// ExecutionLogRepository appends audit records. The table is append-only:
// there is no update or delete path.
type ExecutionLogRepository struct {
	db *gorm.DB
}

func NewExecutionLogRepository() *ExecutionLogRepository {
	return &ExecutionLogRepository{db: database.MainDB}
}

func (r *ExecutionLogRepository) WithDB(db *gorm.DB) *ExecutionLogRepository {
	return &ExecutionLogRepository{db: db}
}

// Create appends one execution record.
func (r *ExecutionLogRepository) Create(ctx context.Context, record *model.ExecutionRecord) error {
	err := r.db.WithContext(ctx).Create(record).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":       "ExecutionLogRepository",
			"op":         "Create",
			"session_id": record.SessionID,
			"step":       record.Step,
		}).WithError(err).Error("Failed to append execution record")
		return err
	}
	return nil
}

// FindBySession returns the most recent records for a session, newest
// first.
func (r *ExecutionLogRepository) FindBySession(ctx context.Context, sessionID uint, limit int) ([]model.ExecutionRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	var records []model.ExecutionRecord
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("id DESC").
		Limit(limit).
		Find(&records).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":       "ExecutionLogRepository",
			"op":         "FindBySession",
			"session_id": sessionID,
		}).WithError(err).Error("Failed to fetch execution records")
		return nil, err
	}

	return records, nil
}
