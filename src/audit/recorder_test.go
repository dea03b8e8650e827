package audit

import (
	"context"
	"errors"
	"testing"

	"forwardtester/src/model"
)

type memStore struct {
	records []*model.ExecutionRecord
	err     error
}

func (m *memStore) Create(ctx context.Context, record *model.ExecutionRecord) error {
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, record)
	return nil
}

type memNotifier struct {
	notified []*model.ExecutionRecord
}

func (m *memNotifier) Notify(record *model.ExecutionRecord) {
	m.notified = append(m.notified, record)
}

func testSession() *model.TradingSession {
	return &model.TradingSession{ID: 3, UserID: 12}
}

func TestRecorderPersistsAndNotifies(t *testing.T) {
	store := &memStore{}
	notifier := &memNotifier{}
	recorder := NewRecorder(store, notifier)

	recorder.Info(context.Background(), testSession(), model.StepMarketData, "fetched 500 candles")

	if len(store.records) != 1 {
		t.Fatalf("expected 1 persisted record, got %d", len(store.records))
	}
	r := store.records[0]
	if r.SessionID != 3 || r.UserID != 12 || r.LogType != model.LogTypeInfo || r.Step != model.StepMarketData {
		t.Fatalf("unexpected record: %+v", r)
	}
	if len(notifier.notified) != 1 {
		t.Fatalf("expected notifier to receive the record")
	}
}

func TestRecorderDropsOnPersistenceFailure(t *testing.T) {
	store := &memStore{err: errors.New("connection refused")}
	notifier := &memNotifier{}
	recorder := NewRecorder(store, notifier)

	// Must not panic or propagate the error.
	recorder.Error(context.Background(), testSession(), model.StepStrategy, "sandbox timeout")

	if len(notifier.notified) != 0 {
		t.Fatal("dropped records must not be broadcast")
	}
}

func TestRecorderNilNotifier(t *testing.T) {
	store := &memStore{}
	recorder := NewRecorder(store, nil)

	recorder.Info(context.Background(), testSession(), model.StepOutcome, model.OutcomeNoSignal)

	if len(store.records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(store.records))
	}
}

func TestRecorderTradePayload(t *testing.T) {
	store := &memStore{}
	recorder := NewRecorder(store, nil)

	order := model.Order{Instrument: "EUR_USD", Units: 1000, TimeInForce: "FOK"}
	recorder.Trade(context.Background(), testSession(), "order filled", map[string]interface{}{
		"order": order,
		"ack":   model.OrderAck{OrderID: "6367", TradeID: "6368", Price: 1.08152},
	})

	if len(store.records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(store.records))
	}
	r := store.records[0]
	if r.LogType != model.LogTypeTrade || r.Step != model.StepOrder {
		t.Fatalf("unexpected record: %+v", r)
	}
	if r.TradeData == "" {
		t.Fatal("trade payload missing")
	}
}
