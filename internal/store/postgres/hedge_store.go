package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbengine/internal/domain"
)

// HedgeStore implements domain.HedgeStore using PostgreSQL.
type HedgeStore struct {
	pool *pgxpool.Pool
}

// NewHedgeStore creates a new HedgeStore.
func NewHedgeStore(pool *pgxpool.Pool) *HedgeStore {
	return &HedgeStore{pool: pool}
}

// Create records a hedge attempt.
func (s *HedgeStore) Create(ctx context.Context, o domain.HedgeOutcome) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO hedge_outcomes (execution_id, hedge_id, symbol, long_exchange, short_exchange, size, success, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8, $9)`,
		o.ExecutionID, o.HedgeID, o.Symbol, o.LongExchange, o.ShortExchange,
		o.Size.String(), o.Success, o.Error, o.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert hedge outcome for %s: %w", o.ExecutionID, err)
	}
	return nil
}

// ListByExecution returns the hedge attempts of one execution, oldest first.
func (s *HedgeStore) ListByExecution(ctx context.Context, executionID string) ([]domain.HedgeOutcome, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT execution_id, hedge_id, symbol, long_exchange, short_exchange, size::text, success, error, created_at
		FROM hedge_outcomes WHERE execution_id = $1 ORDER BY id`,
		executionID,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list hedge outcomes: %w", err)
	}
	defer rows.Close()

	var list []domain.HedgeOutcome
	for rows.Next() {
		var o domain.HedgeOutcome
		var size string
		if err := rows.Scan(&o.ExecutionID, &o.HedgeID, &o.Symbol, &o.LongExchange, &o.ShortExchange,
			&size, &o.Success, &o.Error, &o.Timestamp); err != nil {
			return nil, fmt.Errorf("postgres: scan hedge outcome: %w", err)
		}
		if o.Size, err = decimal.NewFromString(size); err != nil {
			return nil, fmt.Errorf("postgres: parse hedge size %q: %w", size, err)
		}
		list = append(list, o)
	}
	return list, rows.Err()
}
