// Package workflow is the downstream processing invoked when a change
// event arrives. The pipeline hands over a free-text instruction and
// logs the free-text result; it does not interpret either.
package workflow

import (
	"context"

	"github.com/demobank/transaction-notifier/internal/eligibility"
)

type Workflow interface {
	Run(ctx context.Context, instruction string) (string, error)
}

// Eligibility runs the deterministic in-process check. The instruction
// is accepted for interface compatibility; the check itself is driven by
// the stored promotion rules.
type Eligibility struct {
	checker *eligibility.Checker
}

func NewEligibility(checker *eligibility.Checker) *Eligibility {
	return &Eligibility{checker: checker}
}

func (e *Eligibility) Run(ctx context.Context, instruction string) (string, error) {
	report, err := e.checker.Check(ctx)
	if err != nil {
		return "", err
	}

	return report.Summary(), nil
}
