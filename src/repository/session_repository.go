package repository

import (
	"context"
	"errors"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"forwardtester/src/database"
	"forwardtester/src/model"
)

// SessionRepository reads trading sessions and writes nothing except the
// last-execution timestamp. Strategy code and risk parameters are owned
// by the user and never mutated here.
type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository() *SessionRepository {
	return &SessionRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance, useful for
// tests or custom transactions.
func (r *SessionRepository) WithDB(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// FindActive returns every session flagged active, oldest first.
func (r *SessionRepository) FindActive(ctx context.Context) ([]model.TradingSession, error) {
	var sessions []model.TradingSession

	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("id ASC").
		Find(&sessions).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "SessionRepository",
			"op":   "FindActive",
		}).WithError(err).Error("Failed to fetch active sessions")
		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"repo":        "SessionRepository",
		"op":          "FindActive",
		"rows_return": len(sessions),
	}).Debug("Active sessions fetched")

	return sessions, nil
}

// FindByID fetches a single session. Returns (nil, nil) if not found.
func (r *SessionRepository) FindByID(ctx context.Context, id uint) (*model.TradingSession, error) {
	var session model.TradingSession

	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&session).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logger.WithFields(map[string]interface{}{
			"repo": "SessionRepository",
			"op":   "FindByID",
			"id":   id,
		}).WithError(err).Error("Failed to fetch session")
		return nil, err
	}

	return &session, nil
}

// UpdateLastExecution stamps the session's last-execution time. This is
// the only column the engine ever writes on a session.
func (r *SessionRepository) UpdateLastExecution(ctx context.Context, id uint, ts time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&model.TradingSession{}).
		Where("id = ?", id).
		Update("last_execution", ts).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "SessionRepository",
			"op":   "UpdateLastExecution",
			"id":   id,
		}).WithError(err).Error("Failed to update last execution timestamp")
		return err
	}

	return nil
}
