package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbengine/internal/domain"
)

// ExecutionStore implements domain.ExecutionStore using PostgreSQL.
type ExecutionStore struct {
	pool *pgxpool.Pool
}

// NewExecutionStore creates a new ExecutionStore.
func NewExecutionStore(pool *pgxpool.Pool) *ExecutionStore {
	return &ExecutionStore{pool: pool}
}

const executionColumns = `id, opportunity_id, symbol, opp_type, status, profit::text, size::text,
	buy_exchange, sell_exchange, order_id, error, duration_ms, executed_at`

// Create inserts a finalized execution record. Re-inserting the same ID is a
// no-op so replays from the event stream are safe.
func (s *ExecutionStore) Create(ctx context.Context, rec domain.ExecutionRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO executions (id, opportunity_id, symbol, opp_type, status, profit, size,
			buy_exchange, sell_exchange, order_id, error, duration_ms, executed_at)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7::numeric, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO NOTHING`,
		rec.ID, rec.OpportunityID, rec.Symbol, string(rec.Type), string(rec.Status),
		rec.Profit.String(), rec.Size.String(),
		rec.BuyExchange, rec.SellExchange, rec.OrderID, rec.Error, rec.DurationMs, rec.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert execution %s: %w", rec.ID, err)
	}
	return nil
}

// GetByID returns a single execution record.
func (s *ExecutionStore) GetByID(ctx context.Context, id string) (domain.ExecutionRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+executionColumns+` FROM executions WHERE id = $1`, id)
	rec, err := scanExecution(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ExecutionRecord{}, domain.ErrNotFound
		}
		return domain.ExecutionRecord{}, fmt.Errorf("postgres: get execution %s: %w", id, err)
	}
	return rec, nil
}

// List returns execution records newest first.
func (s *ExecutionStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.ExecutionRecord, error) {
	query, args := pagedQuery(`SELECT `+executionColumns+` FROM executions WHERE 1=1`, "executed_at", opts)
	return s.query(ctx, "list executions", query, args...)
}

// ListBefore returns every record executed before the cutoff, oldest first.
func (s *ExecutionStore) ListBefore(ctx context.Context, before time.Time) ([]domain.ExecutionRecord, error) {
	return s.query(ctx, "list executions before",
		`SELECT `+executionColumns+` FROM executions WHERE executed_at < $1 ORDER BY executed_at`, before)
}

// DeleteBefore removes every record executed before the cutoff.
func (s *ExecutionStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM executions WHERE executed_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete executions before %s: %w", before.Format(time.RFC3339), err)
	}
	return tag.RowsAffected(), nil
}

// SumProfit returns the realized profit of successful executions since the
// given time.
func (s *ExecutionStore) SumProfit(ctx context.Context, since time.Time) (decimal.Decimal, error) {
	var sum string
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(profit), 0)::text FROM executions WHERE status = $1 AND executed_at >= $2`,
		string(domain.ExecSuccess), since,
	).Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("postgres: sum execution profit: %w", err)
	}
	d, err := decimal.NewFromString(sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("postgres: parse profit sum %q: %w", sum, err)
	}
	return d, nil
}

func (s *ExecutionStore) query(ctx context.Context, op, query string, args ...any) ([]domain.ExecutionRecord, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: %s: %w", op, err)
	}
	defer rows.Close()

	var list []domain.ExecutionRecord
	for rows.Next() {
		rec, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: %s: scan: %w", op, err)
		}
		list = append(list, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: %s rows: %w", op, err)
	}
	return list, nil
}

func scanExecution(row pgx.Row) (domain.ExecutionRecord, error) {
	var rec domain.ExecutionRecord
	var oppType, status, profit, size string
	if err := row.Scan(
		&rec.ID, &rec.OpportunityID, &rec.Symbol, &oppType, &status, &profit, &size,
		&rec.BuyExchange, &rec.SellExchange, &rec.OrderID, &rec.Error, &rec.DurationMs, &rec.Timestamp,
	); err != nil {
		return domain.ExecutionRecord{}, err
	}
	rec.Type = domain.OpportunityType(oppType)
	rec.Status = domain.ExecStatus(status)
	var err error
	if rec.Profit, err = decimal.NewFromString(profit); err != nil {
		return domain.ExecutionRecord{}, fmt.Errorf("parse profit %q: %w", profit, err)
	}
	if rec.Size, err = decimal.NewFromString(size); err != nil {
		return domain.ExecutionRecord{}, fmt.Errorf("parse size %q: %w", size, err)
	}
	rec.Timestamp = rec.Timestamp.UTC()
	return rec, nil
}
