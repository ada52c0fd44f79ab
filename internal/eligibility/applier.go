package eligibility

import (
	"context"

	"github.com/demobank/transaction-notifier/pkg/logger"
)

// LogApplier records the credit decision without moving money. Posting
// the actual transfer belongs to the bank's transaction service; this
// pipeline only decides and reports.
type LogApplier struct {
	logger *logger.Logger
}

func NewLogApplier(log *logger.Logger) *LogApplier {
	return &LogApplier{logger: log}
}

func (a *LogApplier) ApplyCredit(ctx context.Context, accountID string, amountCents int64, reason string) error {
	a.logger.Info(ctx, "Credit approved",
		"account_id", accountID,
		"amount_cents", amountCents,
		"reason", reason,
	)
	return nil
}
