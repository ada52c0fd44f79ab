// Package ledger reads the external bank ledger: a Postgres table of
// append-only transactions. Access is read-only; this service never
// writes ledger rows.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/demobank/transaction-notifier/internal/domain"
	"github.com/demobank/transaction-notifier/pkg/logger"
)

const transactionColumns = "transaction_id, from_acct, to_acct, from_route, to_route, amount, timestamp"

type PostgresConfig struct {
	DSN            string
	ConnectTimeout time.Duration
	QueryTimeout   time.Duration
}

type Postgres struct {
	pool         *pgxpool.Pool
	queryTimeout time.Duration
	logger       *logger.Logger
}

func NewPostgres(ctx context.Context, cfg PostgresConfig, log *logger.Logger) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("%w: creating ledger pool: %v", domain.ErrConnection, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: pinging ledger database: %v", domain.ErrConnection, err)
	}

	return &Postgres{
		pool:         pool,
		queryTimeout: cfg.QueryTimeout,
		logger:       log,
	}, nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}

func (p *Postgres) Count(ctx context.Context) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, p.queryTimeout)
	defer cancel()

	var count int64
	err := p.pool.QueryRow(ctx, "SELECT COUNT(*) FROM transactions").Scan(&count)
	if err != nil {
		if ctx.Err() != nil {
			return 0, fmt.Errorf("%w: counting transactions: %v", domain.ErrConnection, err)
		}
		return 0, fmt.Errorf("%w: counting transactions: %v", domain.ErrQuery, err)
	}

	return uint64(count), nil
}

func (p *Postgres) AccountTransactions(ctx context.Context, accountID string, limit int) ([]domain.AccountTransaction, error) {
	if limit <= 0 {
		limit = 100
	}

	ctx, cancel := context.WithTimeout(ctx, p.queryTimeout)
	defer cancel()

	query := fmt.Sprintf(`SELECT %s FROM transactions
		WHERE from_acct = $1 OR to_acct = $1
		ORDER BY timestamp DESC
		LIMIT $2`, transactionColumns)

	rows, err := p.pool.Query(ctx, query, accountID, limit)
	if err != nil {
		return nil, p.queryError(ctx, "listing account transactions", err)
	}
	defer rows.Close()

	var transactions []domain.AccountTransaction
	for rows.Next() {
		var tx domain.Transaction
		err := rows.Scan(&tx.ID, &tx.FromAccount, &tx.ToAccount, &tx.FromRouting, &tx.ToRouting, &tx.AmountCents, &tx.Timestamp)
		if err != nil {
			return nil, p.queryError(ctx, "scanning transaction row", err)
		}

		transactions = append(transactions, domain.AccountTransaction{
			Transaction: tx,
			IsDebit:     tx.FromAccount == accountID,
			IsCredit:    tx.ToAccount == accountID,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, p.queryError(ctx, "reading transaction rows", err)
	}

	p.logger.Debug(ctx, "Fetched account transactions",
		"account_id", accountID,
		"count", len(transactions),
	)

	return transactions, nil
}

func (p *Postgres) DepositsTotal(ctx context.Context, accountID string, since time.Time) (int64, error) {
	return p.total(ctx, "to_acct", accountID, since)
}

func (p *Postgres) TransfersTotal(ctx context.Context, accountID string, since time.Time) (int64, error) {
	return p.total(ctx, "from_acct", accountID, since)
}

func (p *Postgres) total(ctx context.Context, column, accountID string, since time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, p.queryTimeout)
	defer cancel()

	query := fmt.Sprintf("SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE %s = $1", column)
	args := []interface{}{accountID}

	if !since.IsZero() {
		query += " AND timestamp >= $2"
		args = append(args, since)
	}

	var total int64
	if err := p.pool.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, p.queryError(ctx, "summing transactions", err)
	}

	return total, nil
}

func (p *Postgres) queryError(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrConnection, op, err)
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrQuery, op, err)
}
