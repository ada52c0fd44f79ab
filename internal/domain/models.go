package domain

import "time"

// Transaction mirrors one row of the ledger's append-only transactions table.
// Amounts are integer cents.
type Transaction struct {
	ID          uint64    `json:"transaction_id"`
	FromAccount string    `json:"from_account"`
	ToAccount   string    `json:"to_account"`
	FromRouting string    `json:"from_routing"`
	ToRouting   string    `json:"to_routing"`
	AmountCents int64     `json:"amount"`
	Timestamp   time.Time `json:"timestamp"`
}

// AccountTransaction is a ledger row viewed from one account's perspective.
type AccountTransaction struct {
	Transaction
	IsDebit  bool `json:"is_debit"`
	IsCredit bool `json:"is_credit"`
}

// AggregateResult is a derived total over ledger rows, never persisted.
type AggregateResult struct {
	AccountID  string    `json:"account_id"`
	TotalCents int64     `json:"total_cents"`
	Since      time.Time `json:"since"`
}

// Promotion is one row of the promotions table, keyed by username.
type Promotion struct {
	Username  string    `json:"username"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `json:"created_at"`
}
