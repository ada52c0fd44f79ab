package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/demobank/transaction-notifier/internal/domain"
)

// Memory holds ledger rows in process. It backs tests and single-process
// dev mode with the same contract as the Postgres store.
type Memory struct {
	transactions []domain.Transaction
	mu           sync.RWMutex
}

func NewMemory() *Memory {
	return &Memory{}
}

// Add appends a row, standing in for the external ledger service writing
// the table.
func (m *Memory) Add(tx domain.Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.transactions = append(m.transactions, tx)
}

func (m *Memory) Count(ctx context.Context) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return uint64(len(m.transactions)), nil
}

func (m *Memory) AccountTransactions(ctx context.Context, accountID string, limit int) ([]domain.AccountTransaction, error) {
	if limit <= 0 {
		limit = 100
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []domain.AccountTransaction
	for _, tx := range m.transactions {
		if tx.FromAccount != accountID && tx.ToAccount != accountID {
			continue
		}

		matched = append(matched, domain.AccountTransaction{
			Transaction: tx,
			IsDebit:     tx.FromAccount == accountID,
			IsCredit:    tx.ToAccount == accountID,
		})
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})

	if len(matched) > limit {
		matched = matched[:limit]
	}

	return matched, nil
}

func (m *Memory) DepositsTotal(ctx context.Context, accountID string, since time.Time) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var total int64
	for _, tx := range m.transactions {
		if tx.ToAccount != accountID {
			continue
		}
		if !since.IsZero() && tx.Timestamp.Before(since) {
			continue
		}
		total += tx.AmountCents
	}

	return total, nil
}

func (m *Memory) TransfersTotal(ctx context.Context, accountID string, since time.Time) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var total int64
	for _, tx := range m.transactions {
		if tx.FromAccount != accountID {
			continue
		}
		if !since.IsZero() && tx.Timestamp.Before(since) {
			continue
		}
		total += tx.AmountCents
	}

	return total, nil
}
