package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExecStatus is the lifecycle state of one execution.
type ExecStatus string

const (
	ExecPending ExecStatus = "pending"
	ExecSuccess ExecStatus = "success"
	ExecFailed  ExecStatus = "failed"
)

// Terminal reports whether the status is final.
func (s ExecStatus) Terminal() bool {
	return s == ExecSuccess || s == ExecFailed
}

// ExecutionRecord describes one dispatched opportunity. It is immutable once
// its status is terminal.
type ExecutionRecord struct {
	ID            string          `json:"id"`
	OpportunityID string          `json:"opportunity_id,omitempty"`
	Symbol        string          `json:"symbol"`
	Type          OpportunityType `json:"type"`
	Status        ExecStatus      `json:"status"`
	Profit        decimal.Decimal `json:"profit"`
	Timestamp     time.Time       `json:"timestamp"`
	BuyExchange   string          `json:"buy_exchange"`
	SellExchange  string          `json:"sell_exchange"`
	Size          decimal.Decimal `json:"size"`
	OrderID       string          `json:"order_id,omitempty"`
	Error         string          `json:"error,omitempty"`
	DurationMs    int64           `json:"duration_ms"`
}

// HedgeOutcome is the result of the hedge sub-flow that may follow a
// successful execution. It never changes the owning execution record.
type HedgeOutcome struct {
	ExecutionID   string          `json:"execution_id"`
	HedgeID       string          `json:"hedge_id,omitempty"`
	Symbol        string          `json:"symbol"`
	LongExchange  string          `json:"long_exchange"`
	ShortExchange string          `json:"short_exchange"`
	Size          decimal.Decimal `json:"size"`
	Success       bool            `json:"success"`
	Error         string          `json:"error,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
}

// Stats is the running aggregate over all finalized executions since start
// or the last reset.
type Stats struct {
	TotalExecutions      int64           `json:"total_executions"`
	SuccessfulExecutions int64           `json:"successful_executions"`
	FailedExecutions     int64           `json:"failed_executions"`
	HedgesCreated        int64           `json:"hedges_created"`
	HedgesFailed         int64           `json:"hedges_failed"`
	TotalProfit          decimal.Decimal `json:"total_profit"`
	CurrentExecutions    int             `json:"current_executions"`
	IsRunning            bool            `json:"is_running"`

	ScansCompleted       int64      `json:"scans_completed"`
	ScansFailed          int64      `json:"scans_failed"`
	OpportunitiesSeen    int64      `json:"opportunities_seen"`
	OpportunitiesDropped int64      `json:"opportunities_dropped"`
	LastScanAt           *time.Time `json:"last_scan_at,omitempty"`
}

// ScanReport summarises one scan cycle.
type ScanReport struct {
	StartedAt  time.Time `json:"started_at"`
	Discovered int       `json:"discovered"`
	Eligible   int       `json:"eligible"`
	Dispatched int       `json:"dispatched"`
	Skipped    bool      `json:"skipped,omitempty"`
	Error      string    `json:"error,omitempty"`
}
