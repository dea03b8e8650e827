package engine

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"forwardtester/src/audit"
	"forwardtester/src/database"
	"forwardtester/src/executors"
	"forwardtester/src/marketdata"
	"forwardtester/src/repository"
	"forwardtester/src/sandbox"
	"forwardtester/src/server"
	"forwardtester/src/sizing"
	"forwardtester/src/supervisor"
)

type Engine struct{}

// Start wires the full execution engine and runs it until SIGINT or
// SIGTERM: the scheduler loop in the foreground, the HTTP server with
// the execution feed alongside it.
func (e *Engine) Start() error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Fatal("Failed to connect to main database")
		return err
	}

	feed := server.NewExecutionFeed()
	recorder := audit.NewRecorder(repository.NewExecutionLogRepository(), feed)
	registry := supervisor.NewRegistry()

	scheduler := executors.NewScheduler(
		repository.NewSessionRepository(),
		registry,
		marketdata.NewGateway(),
		sandbox.NewSandbox(),
		sizing.NewSizer(),
		recorder,
	)

	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}
	go server.StartServer(ctx, port, scheduler, registry, feed)

	logrus.Info("Starting forward-testing execution engine")

	if err := scheduler.StartLoop(ctx); err != nil {
		logrus.WithError(err).Error("Execution loop failed")
		return err
	}

	return nil
}
