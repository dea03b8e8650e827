package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	logger "github.com/sirupsen/logrus"

	"forwardtester/src/executors"
	"forwardtester/src/supervisor"
)

type tickReporter interface {
	LastTick() *executors.TickSummary
}

type connectionReporter interface {
	Snapshot() []supervisor.ConnectionStatus
}

// StartServer serves health, engine status and the execution feed until
// the context is cancelled, then shuts down gracefully.
func StartServer(ctx context.Context, port string, ticks tickReporter, conns connectionReporter, feed *ExecutionFeed) {
	r := chi.NewRouter()

	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.WithError(err).Error("\"/healthcheck\" error")
		}
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		status := map[string]interface{}{
			"last_tick":   ticks.LastTick(),
			"connections": conns.Snapshot(),
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(status); err != nil {
			logger.WithError(err).Error("\"/status\" error")
		}
	})

	r.Get("/ws/executions", feed.handler)

	addr := ":" + port
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		logger.Infof("Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server crashed")
		}
	}()

	<-ctx.Done()

	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Shutdown error")
	}
}
