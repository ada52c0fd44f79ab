// Package notifier consumes change events and triggers the downstream
// workflow. Each message runs on its own goroutine so a minutes-long
// workflow call never delays delivery of the next event.
package notifier

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/demobank/transaction-notifier/internal/bus"
	"github.com/demobank/transaction-notifier/internal/workflow"
	"github.com/demobank/transaction-notifier/pkg/logger"
)

type Config struct {
	Subject         string
	Instruction     string
	WorkflowTimeout time.Duration
	MaxInFlight     int
}

type Consumer struct {
	bus      bus.Bus
	workflow workflow.Workflow
	cfg      Config
	logger   *logger.Logger

	sub     bus.Subscription
	sem     chan struct{}
	wg      sync.WaitGroup
	runCtx  context.Context
	cancel  context.CancelFunc
	started bool
	mu      sync.Mutex
}

func New(b bus.Bus, wf workflow.Workflow, cfg Config, log *logger.Logger) *Consumer {
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = 10
	}
	if cfg.WorkflowTimeout <= 0 {
		cfg.WorkflowTimeout = 10 * time.Minute
	}

	return &Consumer{
		bus:      b,
		workflow: wf,
		cfg:      cfg,
		logger:   log,
		sem:      make(chan struct{}, cfg.MaxInFlight),
	}
}

// Start subscribes and returns; handling happens on worker goroutines.
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return nil
	}

	c.runCtx, c.cancel = context.WithCancel(context.WithoutCancel(ctx))

	sub, err := c.bus.Subscribe(c.cfg.Subject, c.handleMessage)
	if err != nil {
		c.cancel()
		return fmt.Errorf("subscribing to %s: %w", c.cfg.Subject, err)
	}
	c.sub = sub
	c.started = true

	c.logger.Info(ctx, "Notification consumer started",
		"bus_subject", c.cfg.Subject,
		"max_in_flight", c.cfg.MaxInFlight,
	)

	return nil
}

func (c *Consumer) handleMessage(subject string, payload []byte) {
	ctx := logger.WithSubject(c.runCtx, subject)
	ctx = logger.WithTraceID(ctx, uuid.New().String())

	c.logger.Info(ctx, "Received message",
		"payload", string(payload),
	)

	if !bytes.Equal(payload, bus.SentinelPayload) {
		c.logger.Info(ctx, "Unrecognized payload, ignoring")
		return
	}

	// Shutdown flips started under the same mutex before waiting on the
	// WaitGroup, so a message still draining out of the bus buffer after
	// Unsubscribe cannot slip a workflow past the join.
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		c.logger.Warn(ctx, "Consumer stopped, discarding event")
		return
	}
	c.wg.Add(1)
	c.mu.Unlock()
	go func() {
		defer c.wg.Done()

		select {
		case c.sem <- struct{}{}:
			defer func() { <-c.sem }()
		case <-ctx.Done():
			c.logger.Warn(ctx, "Shutting down before workflow slot opened")
			return
		}

		c.runWorkflow(ctx)
	}()
}

func (c *Consumer) runWorkflow(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.WorkflowTimeout)
	defer cancel()

	c.logger.Info(ctx, "New transaction detected, triggering downstream workflow")

	start := time.Now()
	result, err := c.workflow.Run(ctx, c.cfg.Instruction)
	if err != nil {
		c.logger.Error(ctx, "Downstream workflow failed",
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err,
		)
		return
	}

	c.logger.Info(ctx, "Downstream workflow completed",
		"duration_ms", time.Since(start).Milliseconds(),
		"result", result,
	)
}

// Shutdown stops new deliveries and waits for in-flight workflow calls
// up to the context deadline; past it, in-flight calls are cancelled.
func (c *Consumer) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = false
	sub := c.sub
	c.mu.Unlock()

	if err := sub.Unsubscribe(); err != nil {
		c.logger.Warn(ctx, "Failed to unsubscribe",
			"error", err,
		)
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.cancel()
		c.logger.Info(ctx, "Notification consumer drained")
		return nil
	case <-ctx.Done():
		c.cancel()
		c.logger.Warn(ctx, "Shutdown grace period elapsed, cancelling in-flight workflows")
		<-done
		return ctx.Err()
	}
}
