package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/demobank/transaction-notifier/internal/bus"
	"github.com/demobank/transaction-notifier/internal/config"
	"github.com/demobank/transaction-notifier/internal/eligibility"
	"github.com/demobank/transaction-notifier/internal/handler"
	"github.com/demobank/transaction-notifier/internal/ledger"
	"github.com/demobank/transaction-notifier/internal/notifier"
	"github.com/demobank/transaction-notifier/internal/promo"
	"github.com/demobank/transaction-notifier/internal/server"
	"github.com/demobank/transaction-notifier/internal/workflow"
	"github.com/demobank/transaction-notifier/pkg/logger"
	"github.com/demobank/transaction-notifier/pkg/retry"
)

func main() {
	cfg := config.Load()

	log := logger.New(cfg.Logging.Level)
	defer log.Sync()

	ctx := context.Background()
	log.Info(ctx, "Starting transaction notifier")

	ledgerStore, err := ledger.NewPostgres(ctx, ledger.PostgresConfig{
		DSN:            cfg.Database.DSN(),
		ConnectTimeout: cfg.Database.ConnectTimeout,
		QueryTimeout:   cfg.Database.QueryTimeout,
	}, log)
	if err != nil {
		log.Fatal(ctx, "Failed to connect to ledger database",
			"error", err,
		)
	}
	defer ledgerStore.Close()
	log.Info(ctx, "Ledger store initialized")

	promoStore, err := promo.NewPostgres(ctx, promo.PostgresConfig{
		DSN:            cfg.Database.DSN(),
		ConnectTimeout: cfg.Database.ConnectTimeout,
		QueryTimeout:   cfg.Database.QueryTimeout,
	}, log)
	if err != nil {
		log.Fatal(ctx, "Failed to connect to promotion database",
			"error", err,
		)
	}
	defer promoStore.Close()
	log.Info(ctx, "Promotion store initialized")

	var natsBus *bus.NATS
	err = retry.Do(ctx, func() error {
		var connErr error
		natsBus, connErr = bus.ConnectNATS(bus.NATSConfig{
			URL:            cfg.Bus.URL,
			ConnectTimeout: cfg.Bus.ConnectTimeout,
			PublishTimeout: cfg.Bus.PublishTimeout,
		}, log)
		return connErr
	}, retry.WithMaxAttempts(5), retry.WithBaseDelay(2*time.Second))
	if err != nil {
		log.Fatal(ctx, "Failed to connect to message bus",
			"error", err,
		)
	}
	log.Info(ctx, "Message bus connected")

	checker := eligibility.NewChecker(promoStore, ledgerStore, eligibility.NewLogApplier(log), log)

	var wf workflow.Workflow
	switch cfg.Workflow.Mode {
	case "agent":
		wf = workflow.NewAgent(cfg.Workflow.AgentURL, log)
		log.Info(ctx, "Using remote agent workflow",
			"agent_url", cfg.Workflow.AgentURL,
		)
	default:
		wf = workflow.NewEligibility(checker)
		log.Info(ctx, "Using built-in eligibility workflow")
	}

	consumer := notifier.New(natsBus, wf, notifier.Config{
		Subject:         cfg.Bus.Subject,
		Instruction:     cfg.Workflow.Instruction,
		WorkflowTimeout: cfg.Workflow.Timeout,
		MaxInFlight:     cfg.Consumer.MaxInFlight,
	}, log)

	if err := consumer.Start(ctx); err != nil {
		log.Fatal(ctx, "Failed to start consumer",
			"error", err,
		)
	}

	ledgerHandler := handler.NewLedgerHandler(ledgerStore, checker, log)
	healthHandler := handler.NewHealthHandler()

	srv := server.New(cfg, log, ledgerHandler, healthHandler)

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal(ctx, "Failed to start HTTP server",
				"error", err,
			)
		}
	}()

	log.Info(ctx, "Notifier started, waiting for change events",
		"bus_subject", cfg.Bus.Subject,
	)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info(ctx, "Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()

	// Graceful shutdown in order:
	// 1. Stop accepting new HTTP requests
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "HTTP server shutdown error",
			"error", err,
		)
	}

	// 2. Drain in-flight workflow invocations
	if err := consumer.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "Consumer shutdown error",
			"error", err,
		)
	}

	// 3. Close the bus connection
	if err := natsBus.Close(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "Bus close error",
			"error", err,
		)
	}

	log.Info(ctx, "Notifier stopped gracefully")
}
