package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// ExecutionStore persists finalized execution records beyond the in-memory
// log.
type ExecutionStore interface {
	Create(ctx context.Context, rec ExecutionRecord) error
	GetByID(ctx context.Context, id string) (ExecutionRecord, error)
	List(ctx context.Context, opts ListOpts) ([]ExecutionRecord, error)
	ListBefore(ctx context.Context, before time.Time) ([]ExecutionRecord, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
	SumProfit(ctx context.Context, since time.Time) (decimal.Decimal, error)
}

// HedgeStore persists hedge sub-flow outcomes.
type HedgeStore interface {
	Create(ctx context.Context, outcome HedgeOutcome) error
	ListByExecution(ctx context.Context, executionID string) ([]HedgeOutcome, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail"`
	CreatedAt time.Time      `json:"created_at"`
}

// Audit events written by the host around the automation engine.
const (
	AuditConfigUpdated   = "automation.config_updated"
	AuditStatusChanged   = "automation.status_changed"
	AuditHedgeFailed     = "automation.hedge_failed"
	AuditHistoryArchived = "automation.history_archived"
)

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	// List returns entries newest first. An empty event matches all events.
	List(ctx context.Context, event string, opts ListOpts) ([]AuditEntry, error)
}

// AutomationConfigStore keeps the last applied automation config so a restart
// resumes with the operator's tuning.
type AutomationConfigStore interface {
	Load(ctx context.Context) (AutomationConfig, error)
	Save(ctx context.Context, cfg AutomationConfig) error
}
