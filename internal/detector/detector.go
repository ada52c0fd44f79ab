// Package detector runs one detect-compare-publish-commit cycle over the
// ledger's transaction count. It is scheduled externally (cron-style);
// there is no internal polling loop.
package detector

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/demobank/transaction-notifier/internal/bus"
	"github.com/demobank/transaction-notifier/internal/domain"
	"github.com/demobank/transaction-notifier/pkg/logger"
)

// State is the current phase of a cycle.
type State int

const (
	StateIdle State = iota
	StateReading
	StateComparing
	StatePublishing
	StateCommitting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReading:
		return "reading"
	case StateComparing:
		return "comparing"
	case StatePublishing:
		return "publishing"
	case StateCommitting:
		return "committing"
	default:
		return "unknown"
	}
}

// Result summarizes one completed cycle.
type Result struct {
	Last      uint64
	Current   uint64
	Published bool
}

// CountSource reports the live total transaction count. Satisfied by
// the ledger store; narrowed here because a cycle needs nothing else.
type CountSource interface {
	Count(ctx context.Context) (uint64, error)
}

type Detector struct {
	counter domain.Counter
	ledger  CountSource
	bus     bus.Bus
	subject string
	logger  *logger.Logger
	state   State
}

func New(counter domain.Counter, ledger CountSource, b bus.Bus, subject string, log *logger.Logger) *Detector {
	return &Detector{
		counter: counter,
		ledger:  ledger,
		bus:     b,
		subject: subject,
		logger:  log,
		state:   StateIdle,
	}
}

// State reports the phase the last Run reached. Run is not safe for
// concurrent use; cycles are serialized by the caller's run lock.
func (d *Detector) State() State {
	return d.state
}

// Run executes one cycle. The cycle fails closed: on any error the
// counter is left untouched so the same divergence is detected again by
// the next scheduled run.
//
// If the process crashes after the publish but before the commit, the
// next cycle sees no divergence and does not re-publish; that one event
// is lost. Accepted trade-off of the content-free sentinel.
func (d *Detector) Run(ctx context.Context) (Result, error) {
	ctx = logger.WithTraceID(ctx, uuid.New().String())
	ctx = logger.WithSubject(ctx, d.subject)

	d.logger.Info(ctx, "Starting detection cycle")

	d.state = StateReading
	last, err := d.counter.Read()
	if err != nil {
		d.state = StateIdle
		return Result{}, fmt.Errorf("reading persisted count: %w", err)
	}

	current, err := d.ledger.Count(ctx)
	if err != nil {
		d.state = StateIdle
		d.logger.Error(ctx, "Failed to read ledger count, aborting cycle",
			"last_count", last,
			"error", err,
		)
		return Result{}, fmt.Errorf("reading ledger count: %w", err)
	}

	d.state = StateComparing
	result := Result{Last: last, Current: current}

	switch {
	case current < last:
		d.state = StateIdle
		d.logger.Error(ctx, "Transaction count decreased, aborting cycle",
			"last_count", last,
			"current_count", current,
		)
		return result, fmt.Errorf("%w: last %d, current %d", domain.ErrIntegrity, last, current)

	case current == last:
		d.state = StateIdle
		d.logger.Info(ctx, "No new transactions detected",
			"count", current,
		)
		return result, nil
	}

	d.state = StatePublishing
	d.logger.Info(ctx, "Transaction count changed",
		"last_count", last,
		"current_count", current,
	)

	// Publish before commit: a failed publish leaves the counter at its
	// old value, and the stateless sentinel makes the retried publish
	// harmless.
	if err := d.bus.Publish(ctx, d.subject, bus.SentinelPayload); err != nil {
		d.state = StateIdle
		d.logger.Error(ctx, "Failed to publish change event, counter not committed",
			"last_count", last,
			"current_count", current,
			"error", err,
		)
		return result, fmt.Errorf("publishing change event: %w", err)
	}
	result.Published = true

	d.state = StateCommitting
	if err := d.counter.Write(current); err != nil {
		d.state = StateIdle
		d.logger.Error(ctx, "Failed to commit counter after publish",
			"last_count", last,
			"current_count", current,
			"error", err,
		)
		return result, fmt.Errorf("committing counter: %w", err)
	}

	d.state = StateIdle
	d.logger.Info(ctx, "New transactions detected and published",
		"last_count", last,
		"current_count", current,
	)

	return result, nil
}
