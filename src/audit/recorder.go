// Package audit writes the append-only execution trail. Every session
// gets at least one record per tick; a tick that leaves no trace is a
// bug somewhere upstream.
package audit

import (
	"context"
	"encoding/json"

	logger "github.com/sirupsen/logrus"

	"forwardtester/src/model"
)

// recordStore is the repository slice the recorder needs.
type recordStore interface {
	Create(ctx context.Context, record *model.ExecutionRecord) error
}

// Notifier receives every persisted record, e.g. the websocket feed.
type Notifier interface {
	Notify(record *model.ExecutionRecord)
}

// Recorder persists execution records. Record never fails the caller:
// the trade pipeline must not abort because the audit write did, so
// persistence errors are logged and dropped.
type Recorder struct {
	store    recordStore
	notifier Notifier
}

func NewRecorder(store recordStore, notifier Notifier) *Recorder {
	return &Recorder{store: store, notifier: notifier}
}

// Record appends one execution record.
func (r *Recorder) Record(ctx context.Context, record *model.ExecutionRecord) {
	if err := r.store.Create(ctx, record); err != nil {
		logger.WithFields(map[string]interface{}{
			"session_id": record.SessionID,
			"step":       record.Step,
			"message":    record.Message,
		}).WithError(err).Error("Dropping execution record, persistence failed")
		return
	}
	if r.notifier != nil {
		r.notifier.Notify(record)
	}
}

// Info appends an informational record for a pipeline step.
func (r *Recorder) Info(ctx context.Context, session *model.TradingSession, step, message string) {
	r.Record(ctx, &model.ExecutionRecord{
		SessionID: session.ID,
		UserID:    session.UserID,
		LogType:   model.LogTypeInfo,
		Step:      step,
		Message:   message,
	})
}

// Error appends an error record for a pipeline step.
func (r *Recorder) Error(ctx context.Context, session *model.TradingSession, step, message string) {
	r.Record(ctx, &model.ExecutionRecord{
		SessionID: session.ID,
		UserID:    session.UserID,
		LogType:   model.LogTypeError,
		Step:      step,
		Message:   message,
	})
}

// Trade appends a trade record with the serialized order and fill
// attached. Serialization failures degrade to an empty payload rather
// than losing the record.
func (r *Recorder) Trade(ctx context.Context, session *model.TradingSession, message string, payload interface{}) {
	record := &model.ExecutionRecord{
		SessionID: session.ID,
		UserID:    session.UserID,
		LogType:   model.LogTypeTrade,
		Step:      model.StepOrder,
		Message:   message,
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			logger.WithFields(map[string]interface{}{
				"session_id": session.ID,
			}).WithError(err).Error("Failed to serialize trade payload")
		} else {
			record.TradeData = string(data)
		}
	}
	r.Record(ctx, record)
}
