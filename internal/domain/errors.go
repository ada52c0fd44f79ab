package domain

import "errors"

var (
	// ErrConnection marks a store or bus as unreachable. Retryable: the
	// current cycle aborts cleanly and the next scheduled run tries again.
	ErrConnection = errors.New("connection failed")

	// ErrQuery marks a malformed query or schema mismatch. Fatal for the
	// cycle that hit it.
	ErrQuery = errors.New("query failed")

	// ErrIntegrity marks an observed decrease of the transaction count.
	// The ledger is append-only, so this needs operator attention.
	ErrIntegrity = errors.New("transaction count decreased")

	// ErrCounterIO marks a failure persisting the transaction counter.
	ErrCounterIO = errors.New("counter persistence failed")

	// ErrCycleInProgress means another detector cycle holds the run lock.
	ErrCycleInProgress = errors.New("detection cycle already in progress")

	ErrPromotionNotFound = errors.New("promotion not found")
)
