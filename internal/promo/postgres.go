// Package promo manages the promotions table: at most one promotion per
// username, created and deleted around eligibility runs.
package promo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/demobank/transaction-notifier/internal/domain"
	"github.com/demobank/transaction-notifier/pkg/logger"
)

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
		return nil, fmt.Errorf("%w: creating promotion pool: %v", domain.ErrConnection, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: pinging promotion database: %v", domain.ErrConnection, err)
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

func (p *Postgres) Create(ctx context.Context, promo domain.Promotion) error {
	ctx, cancel := context.WithTimeout(ctx, p.queryTimeout)
	defer cancel()

	_, err := p.pool.Exec(ctx,
		"INSERT INTO promotions (username, detail, created_at) VALUES ($1, $2, $3)",
		promo.Username, promo.Detail, promo.CreatedAt,
	)
	if err != nil {
		return p.queryError(ctx, "creating promotion", err)
	}

	return nil
}

func (p *Postgres) Get(ctx context.Context, username string) (*domain.Promotion, error) {
	ctx, cancel := context.WithTimeout(ctx, p.queryTimeout)
	defer cancel()

	var promo domain.Promotion
	err := p.pool.QueryRow(ctx,
		"SELECT username, detail, created_at FROM promotions WHERE username = $1",
		username,
	).Scan(&promo.Username, &promo.Detail, &promo.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrPromotionNotFound
	}
	if err != nil {
		return nil, p.queryError(ctx, "getting promotion", err)
	}

	return &promo, nil
}

func (p *Postgres) All(ctx context.Context) ([]domain.Promotion, error) {
	ctx, cancel := context.WithTimeout(ctx, p.queryTimeout)
	defer cancel()

	rows, err := p.pool.Query(ctx, "SELECT username, detail, created_at FROM promotions ORDER BY created_at")
	if err != nil {
		return nil, p.queryError(ctx, "listing promotions", err)
	}
	defer rows.Close()

	var promos []domain.Promotion
	for rows.Next() {
		var promo domain.Promotion
		if err := rows.Scan(&promo.Username, &promo.Detail, &promo.CreatedAt); err != nil {
			return nil, p.queryError(ctx, "scanning promotion row", err)
		}
		promos = append(promos, promo)
	}
	if err := rows.Err(); err != nil {
		return nil, p.queryError(ctx, "reading promotion rows", err)
	}

	return promos, nil
}

func (p *Postgres) Delete(ctx context.Context, username string) error {
	ctx, cancel := context.WithTimeout(ctx, p.queryTimeout)
	defer cancel()

	tag, err := p.pool.Exec(ctx, "DELETE FROM promotions WHERE username = $1", username)
	if err != nil {
		return p.queryError(ctx, "deleting promotion", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPromotionNotFound
	}

	return nil
}

func (p *Postgres) queryError(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrConnection, op, err)
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrQuery, op, err)
}
