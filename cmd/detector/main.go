package main

import (
	"context"
	"os"

	"github.com/demobank/transaction-notifier/internal/bus"
	"github.com/demobank/transaction-notifier/internal/config"
	"github.com/demobank/transaction-notifier/internal/counter"
	"github.com/demobank/transaction-notifier/internal/detector"
	"github.com/demobank/transaction-notifier/internal/ledger"
	"github.com/demobank/transaction-notifier/pkg/logger"
)

// The detector runs exactly one detection cycle and exits. Scheduling
// (cron, Kubernetes CronJob, ...) and serialization of runs live outside
// the process; the run lock only guards against misconfigured overlap.
func main() {
	cfg := config.Load()

	log := logger.New(cfg.Logging.Level)
	defer log.Sync()

	if err := run(context.Background(), cfg, log); err != nil {
		log.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	log.Info(ctx, "Starting transaction change detector")

	lock := counter.NewLock(cfg.Counter.FilePath + ".lock")
	if err := lock.Acquire(); err != nil {
		log.Error(ctx, "Failed to acquire run lock",
			"error", err,
		)
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			log.Error(ctx, "Failed to release run lock",
				"error", err,
			)
		}
	}()

	persisted, err := counter.NewFile(cfg.Counter.FilePath, log)
	if err != nil {
		log.Error(ctx, "Failed to initialize counter",
			"error", err,
		)
		return err
	}

	store, err := ledger.NewPostgres(ctx, ledger.PostgresConfig{
		DSN:            cfg.Database.DSN(),
		ConnectTimeout: cfg.Database.ConnectTimeout,
		QueryTimeout:   cfg.Database.QueryTimeout,
	}, log)
	if err != nil {
		log.Error(ctx, "Failed to connect to ledger database",
			"error", err,
		)
		return err
	}
	defer store.Close()

	natsBus, err := bus.ConnectNATS(bus.NATSConfig{
		URL:            cfg.Bus.URL,
		ConnectTimeout: cfg.Bus.ConnectTimeout,
		PublishTimeout: cfg.Bus.PublishTimeout,
	}, log)
	if err != nil {
		log.Error(ctx, "Failed to connect to message bus",
			"error", err,
		)
		return err
	}
	defer natsBus.Close(ctx)

	d := detector.New(persisted, store, natsBus, cfg.Bus.Subject, log)

	result, err := d.Run(ctx)
	if err != nil {
		log.Error(ctx, "Detection cycle aborted",
			"last_count", result.Last,
			"current_count", result.Current,
			"error", err,
		)
		return err
	}

	log.Info(ctx, "Detection cycle complete",
		"last_count", result.Last,
		"current_count", result.Current,
		"published", result.Published,
	)

	return nil
}
