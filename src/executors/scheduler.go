// Package executors runs the fixed-interval execution loop: one market
// clock reading per tick, bounded fan-out over active sessions, and a
// terminal audit record per session no matter how the pipeline ends.
package executors

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	logger "github.com/sirupsen/logrus"

	"forwardtester/src/audit"
	"forwardtester/src/connectors"
	"forwardtester/src/interpreter"
	"forwardtester/src/marketclock"
	"forwardtester/src/marketdata"
	"forwardtester/src/model"
	"forwardtester/src/security"
	"forwardtester/src/supervisor"
)

// Consumed interfaces, satisfied by the repository, supervisor, gateway,
// sandbox and sizer packages.
type sessionStore interface {
	FindActive(ctx context.Context) ([]model.TradingSession, error)
	UpdateLastExecution(ctx context.Context, id uint, ts time.Time) error
}

type brokerRegistry interface {
	Acquire(ctx context.Context, creds supervisor.Credentials) (connectors.BrokerAPI, error)
	ReportFailure(creds supervisor.Credentials, err error)
}

type candleGateway interface {
	Fetch(ctx context.Context, source marketdata.CandleSource, session *model.TradingSession) (*model.CandleSeries, error)
}

type evaluator interface {
	Evaluate(ctx context.Context, source string, candles *model.CandleSeries) (*model.SignalSeries, error)
}

type orderSizer interface {
	Size(signal *model.ActionableSignal, session *model.TradingSession) model.Order
}

// TickSummary is what /status reports about the most recent tick.
type TickSummary struct {
	StartedAt  time.Time      `json:"started_at"`
	Duration   time.Duration  `json:"duration"`
	MarketOpen bool           `json:"market_open"`
	Sessions   int            `json:"sessions"`
	Outcomes   map[string]int `json:"outcomes"`
}

type Scheduler struct {
	config   Config
	sessions sessionStore
	registry brokerRegistry
	gateway  candleGateway
	sandbox  evaluator
	sizer    orderSizer
	recorder *audit.Recorder

	clock   func(time.Time) model.MarketStatus
	decrypt func(string) (string, error)

	running int32

	mu       sync.Mutex
	lastTick *TickSummary
}

func NewScheduler(
	sessions sessionStore,
	registry brokerRegistry,
	gateway candleGateway,
	sandbox evaluator,
	sizer orderSizer,
	recorder *audit.Recorder,
) *Scheduler {
	return &Scheduler{
		config:   GetConfig(),
		sessions: sessions,
		registry: registry,
		gateway:  gateway,
		sandbox:  sandbox,
		sizer:    sizer,
		recorder: recorder,
		clock:    marketclock.Status,
		decrypt:  security.DecryptString,
	}
}

// LastTick returns a copy of the most recent tick summary, or nil when
// no tick has completed yet.
func (s *Scheduler) LastTick() *TickSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastTick == nil {
		return nil
	}
	summary := *s.lastTick
	return &summary
}

// StartLoop ticks until the context is cancelled. A tick that is still
// running when the next one fires suppresses the new tick; in-flight
// sessions always finish.
func (s *Scheduler) StartLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	logger.WithFields(map[string]interface{}{
		"interval":       s.config.Interval.String(),
		"max_concurrent": s.config.MaxConcurrent,
	}).Info("Execution loop started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("Execution loop stopped")
			return nil

		case <-ticker.C:
			if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
				logger.Warn("Previous tick still running, suppressing this tick")
				continue
			}

			// No tick deadline: slow sessions run to completion under the
			// per-call timeouts while the CAS flag keeps new ticks out.
			go func() {
				defer atomic.StoreInt32(&s.running, 0)
				s.RunTick(ctx, time.Now())
			}()
		}
	}
}

// RunTick executes one full tick at the given time.
func (s *Scheduler) RunTick(ctx context.Context, now time.Time) TickSummary {
	started := time.Now()
	status := s.clock(now)

	summary := TickSummary{
		StartedAt:  now,
		MarketOpen: status.IsOpen,
		Outcomes:   make(map[string]int),
	}

	if !status.IsOpen {
		logger.WithFields(map[string]interface{}{
			"next_open": status.NextTransition.Format(time.RFC3339),
		}).Info("Market closed, skipping tick")

		// One engine-level record for the whole tick; no per-session
		// work happens while the venue is closed.
		s.recorder.Record(ctx, &model.ExecutionRecord{
			LogType: model.LogTypeInfo,
			Step:    model.StepMarketClock,
			Message: fmt.Sprintf("%s: market closed until %s",
				model.OutcomeSkippedMarket, status.NextTransition.Format(time.RFC3339)),
		})
		summary.Outcomes[model.OutcomeSkippedMarket]++
		s.finishTick(&summary, started)
		return summary
	}

	sessions, err := s.sessions.FindActive(ctx)
	if err != nil {
		logger.WithError(err).Error("Failed to load active sessions, tick aborted")
		s.recorder.Record(ctx, &model.ExecutionRecord{
			LogType: model.LogTypeError,
			Step:    model.StepOutcome,
			Message: "failed to load active sessions: " + err.Error(),
		})
		s.finishTick(&summary, started)
		return summary
	}
	summary.Sessions = len(sessions)

	maxConcurrent := s.config.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	sem := make(chan struct{}, maxConcurrent)
	outcomes := make([]sessionOutcome, len(sessions))

	var wg sync.WaitGroup
	for i := range sessions {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			outcomes[i] = s.executeSession(ctx, &sessions[i], status)
		}(i)
	}
	wg.Wait()

	for i := range sessions {
		session := &sessions[i]
		outcome := outcomes[i]
		summary.Outcomes[outcome.outcome]++

		if err := s.sessions.UpdateLastExecution(ctx, session.ID, now); err != nil {
			logger.WithFields(map[string]interface{}{
				"session_id": session.ID,
			}).WithError(err).Error("Failed to stamp last execution")
		}

		logType := model.LogTypeInfo
		if outcome.outcome == model.OutcomeError {
			logType = model.LogTypeError
		}
		message := outcome.outcome
		if outcome.detail != "" {
			message += ": " + outcome.detail
		}
		s.recorder.Record(ctx, &model.ExecutionRecord{
			SessionID: session.ID,
			UserID:    session.UserID,
			LogType:   logType,
			Step:      model.StepOutcome,
			Message:   message,
		})
	}

	s.finishTick(&summary, started)
	return summary
}

func (s *Scheduler) finishTick(summary *TickSummary, started time.Time) {
	summary.Duration = time.Since(started)

	s.mu.Lock()
	s.lastTick = summary
	s.mu.Unlock()

	logger.WithFields(map[string]interface{}{
		"sessions":    summary.Sessions,
		"outcomes":    summary.Outcomes,
		"duration":    summary.Duration.String(),
		"market_open": summary.MarketOpen,
	}).Info("Tick finished")
}

type sessionOutcome struct {
	outcome string
	detail  string
}

// executeSession isolates one session's pipeline. A panic inside the
// pipeline becomes an ERROR outcome for that session alone; the session
// stays active and the rest of the tick is unaffected.
func (s *Scheduler) executeSession(ctx context.Context, session *model.TradingSession, status model.MarketStatus) (result sessionOutcome) {
	defer func() {
		if r := recover(); r != nil {
			logger.WithFields(map[string]interface{}{
				"session_id": session.ID,
				"symbol":     session.Symbol,
			}).Errorf("Session pipeline panicked: %v", r)
			result = sessionOutcome{outcome: model.OutcomeError, detail: fmt.Sprintf("panic: %v", r)}
		}
	}()

	return s.runPipeline(ctx, session, status)
}

func (s *Scheduler) runPipeline(ctx context.Context, session *model.TradingSession, status model.MarketStatus) sessionOutcome {
	token, err := s.decrypt(session.CredentialRef)
	if err != nil {
		s.recorder.Error(ctx, session, model.StepConnection, "failed to decrypt credentials: "+err.Error())
		return sessionOutcome{outcome: model.OutcomeError, detail: "credential decryption failed"}
	}

	creds := supervisor.Credentials{
		Token:       token,
		AccountID:   session.AccountID,
		Environment: session.Environment,
	}

	client, err := s.registry.Acquire(ctx, creds)
	if err != nil {
		s.recorder.Error(ctx, session, model.StepConnection, err.Error())
		return sessionOutcome{outcome: model.OutcomeError, detail: "broker connection unavailable"}
	}

	candles, err := s.gateway.Fetch(ctx, client, session)
	if err != nil {
		s.recorder.Error(ctx, session, model.StepMarketData, err.Error())
		if connectors.IsRetryable(err) || errors.Is(err, connectors.ErrAuth) {
			s.registry.ReportFailure(creds, err)
		}
		return sessionOutcome{outcome: model.OutcomeError, detail: "market data fetch failed"}
	}
	s.recorder.Info(ctx, session, model.StepMarketData,
		fmt.Sprintf("fetched %d candles for %s %s", candles.Len(), session.Symbol, session.Timeframe))

	series, evalErr := s.sandbox.Evaluate(ctx, session.StrategyCode, candles)
	if evalErr != nil {
		s.recorder.Error(ctx, session, model.StepStrategy, evalErr.Error())
	}

	signal := interpreter.Interpret(series, session, status.VolumeRegime)
	if signal == nil {
		if session.AvoidLowVolume && status.VolumeRegime == model.VolumeLow {
			s.recorder.Info(ctx, session, model.StepSignal, "low-volume regime, trading suppressed")
			return sessionOutcome{outcome: model.OutcomeSkippedMarket, detail: "low volume"}
		}
		if evalErr != nil {
			return sessionOutcome{outcome: model.OutcomeError, detail: "strategy evaluation failed"}
		}
		s.recorder.Info(ctx, session, model.StepSignal, "no actionable signal on last bar")
		return sessionOutcome{outcome: model.OutcomeNoSignal}
	}

	order := s.sizer.Size(signal, session)
	s.recorder.Info(ctx, session, model.StepSignal,
		fmt.Sprintf("%s signal, sized %d units", signal.Direction, order.Units))

	ack, err := client.CreateMarketOrder(ctx, &order)
	if err != nil {
		s.recorder.Error(ctx, session, model.StepOrder, err.Error())
		if connectors.IsRetryable(err) || errors.Is(err, connectors.ErrAuth) {
			s.registry.ReportFailure(creds, err)
		}
		return sessionOutcome{outcome: model.OutcomeError, detail: "order submission failed"}
	}

	s.recorder.Trade(ctx, session, fmt.Sprintf("market order filled at %v", ack.Price), map[string]interface{}{
		"order": order,
		"ack":   ack,
	})
	return sessionOutcome{outcome: model.OutcomeTradeExecuted, detail: string(signal.Direction)}
}
