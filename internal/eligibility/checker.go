// Package eligibility evaluates promotions against ledger aggregates.
// Rules are structured at creation time, so a run is deterministic: sum
// the relevant side of the ledger since the promotion was created,
// compare against the threshold, credit and clean up when met.
package eligibility

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/demobank/transaction-notifier/internal/domain"
	"github.com/demobank/transaction-notifier/internal/promo"
	"github.com/demobank/transaction-notifier/pkg/logger"
)

// Outcome describes what happened to one promotion during a run.
type Outcome struct {
	Username   string
	AccountID  string
	Eligible   bool
	Skipped    bool
	TotalCents int64
	Rule       promo.Rule
	Err        error
}

// Report summarizes one eligibility run.
type Report struct {
	Evaluated int
	Credited  int
	Skipped   int
	Outcomes  []Outcome
}

// Summary renders the report as the free-text result the consumer logs.
func (r Report) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "evaluated %d promotions, credited %d, skipped %d", r.Evaluated, r.Credited, r.Skipped)

	for _, o := range r.Outcomes {
		switch {
		case o.Err != nil:
			fmt.Fprintf(&b, "; %s: error (%v)", o.Username, o.Err)
		case o.Skipped:
			fmt.Fprintf(&b, "; %s: skipped", o.Username)
		case o.Eligible:
			fmt.Fprintf(&b, "; %s: credited %d cents to %s", o.Username, o.Rule.BonusCents, o.AccountID)
		default:
			fmt.Fprintf(&b, "; %s: not yet eligible (%d of %d cents)", o.Username, o.TotalCents, o.Rule.ThresholdCents)
		}
	}

	return b.String()
}

type Checker struct {
	promos  domain.PromotionStore
	ledger  domain.LedgerStore
	applier domain.CreditApplier
	logger  *logger.Logger
}

func NewChecker(promos domain.PromotionStore, ledger domain.LedgerStore, applier domain.CreditApplier, log *logger.Logger) *Checker {
	return &Checker{
		promos:  promos,
		ledger:  ledger,
		applier: applier,
		logger:  log,
	}
}

// Check evaluates every stored promotion. One promotion's failure does
// not stop the run; it is recorded in the report and the run continues.
func (c *Checker) Check(ctx context.Context) (Report, error) {
	promos, err := c.promos.All(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("listing promotions: %w", err)
	}

	report := Report{}
	for _, p := range promos {
		outcome := c.evaluate(ctx, p)
		report.Outcomes = append(report.Outcomes, outcome)
		report.Evaluated++

		if outcome.Skipped || outcome.Err != nil {
			report.Skipped++
		} else if outcome.Eligible {
			report.Credited++
		}
	}

	c.logger.Info(ctx, "Eligibility run complete",
		"evaluated", report.Evaluated,
		"credited", report.Credited,
		"skipped", report.Skipped,
	)

	return report, nil
}

func (c *Checker) evaluate(ctx context.Context, p domain.Promotion) Outcome {
	outcome := Outcome{Username: p.Username}

	rule, err := promo.ParseRule(p.Detail)
	if err != nil {
		// Free-text promotions are the agent's business, not ours.
		c.logger.Warn(ctx, "Promotion detail is not a structured rule, skipping",
			"username", p.Username,
			"error", err,
		)
		outcome.Skipped = true
		return outcome
	}

	outcome.Rule = rule
	outcome.AccountID = rule.AccountID
	ctx = logger.WithAccountID(ctx, rule.AccountID)

	total, err := c.aggregate(ctx, rule, p.CreatedAt)
	if err != nil {
		c.logger.Error(ctx, "Failed to aggregate ledger activity",
			"username", p.Username,
			"error", err,
		)
		outcome.Err = err
		return outcome
	}
	outcome.TotalCents = total

	if total < rule.ThresholdCents {
		c.logger.Info(ctx, "Promotion not yet satisfied",
			"username", p.Username,
			"total_cents", total,
			"threshold_cents", rule.ThresholdCents,
		)
		return outcome
	}

	if err := c.applier.ApplyCredit(ctx, rule.AccountID, rule.BonusCents, fmt.Sprintf("promotion bonus for %s", p.Username)); err != nil {
		c.logger.Error(ctx, "Failed to apply bonus credit",
			"username", p.Username,
			"bonus_cents", rule.BonusCents,
			"error", err,
		)
		outcome.Err = err
		return outcome
	}

	// Delete only after the credit landed. If the delete fails, the next
	// run re-credits; the operator sees both errors in the log.
	if err := c.promos.Delete(ctx, p.Username); err != nil {
		c.logger.Error(ctx, "Failed to delete satisfied promotion",
			"username", p.Username,
			"error", err,
		)
		outcome.Err = err
		return outcome
	}

	outcome.Eligible = true
	c.logger.Info(ctx, "Promotion satisfied, bonus credited",
		"username", p.Username,
		"total_cents", total,
		"bonus_cents", rule.BonusCents,
	)

	return outcome
}

func (c *Checker) aggregate(ctx context.Context, rule promo.Rule, since time.Time) (int64, error) {
	switch rule.Kind {
	case promo.RuleDepositBonus:
		return c.ledger.DepositsTotal(ctx, rule.AccountID, since)
	case promo.RuleTransferBonus:
		return c.ledger.TransfersTotal(ctx, rule.AccountID, since)
	default:
		return 0, fmt.Errorf("%w: kind %q", promo.ErrInvalidRule, rule.Kind)
	}
}
