package domain

import (
	"context"
	"time"
)

// LedgerStore is read-only access to the external ledger database.
type LedgerStore interface {
	// Count returns the current total number of ledger transactions.
	// A transient outage surfaces as ErrConnection, never as zero.
	Count(ctx context.Context) (uint64, error)

	// AccountTransactions lists rows where the account is sender or
	// receiver, newest first, at most limit rows.
	AccountTransactions(ctx context.Context, accountID string, limit int) ([]AccountTransaction, error)

	// DepositsTotal sums incoming amounts for the account. A zero since
	// means no time filter. No matches yields 0, not an error.
	DepositsTotal(ctx context.Context, accountID string, since time.Time) (int64, error)

	// TransfersTotal sums outgoing amounts for the account.
	TransfersTotal(ctx context.Context, accountID string, since time.Time) (int64, error)
}

// PromotionStore manages username-keyed promotions.
type PromotionStore interface {
	Create(ctx context.Context, promo Promotion) error
	Get(ctx context.Context, username string) (*Promotion, error)
	All(ctx context.Context) ([]Promotion, error)
	Delete(ctx context.Context, username string) error
}

// Counter is the durable last-observed transaction count.
type Counter interface {
	// Read returns the stored value, or 0 when no prior state exists.
	Read() (uint64, error)

	// Write durably replaces the stored value. A crash mid-write must
	// leave either the old or the new value.
	Write(value uint64) error
}

// CreditApplier applies a bonus credit to an account.
type CreditApplier interface {
	ApplyCredit(ctx context.Context, accountID string, amountCents int64, reason string) error
}
