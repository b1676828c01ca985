package automation

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbengine/internal/domain"
)

// DefaultLogCapacity is the number of execution records kept in memory.
const DefaultLogCapacity = 10

// Ledger aggregates finalized executions into Stats and keeps the most
// recent records, newest first.
type Ledger struct {
	mu       sync.Mutex
	stats    domain.Stats
	log      []domain.ExecutionRecord
	capacity int
}

// NewLedger creates a Ledger keeping at most capacity records. A
// non-positive capacity uses DefaultLogCapacity.
func NewLedger(capacity int) *Ledger {
	if capacity <= 0 {
		capacity = DefaultLogCapacity
	}
	return &Ledger{
		stats:    domain.Stats{TotalProfit: decimal.Zero},
		log:      make([]domain.ExecutionRecord, 0, capacity),
		capacity: capacity,
	}
}

// Finalize folds a terminal record into the counters and prepends it to the
// log. Non-terminal records are ignored.
func (l *Ledger) Finalize(rec domain.ExecutionRecord) {
	if !rec.Status.Terminal() {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.stats.TotalExecutions++
	switch rec.Status {
	case domain.ExecSuccess:
		l.stats.SuccessfulExecutions++
		l.stats.TotalProfit = l.stats.TotalProfit.Add(rec.Profit)
	case domain.ExecFailed:
		l.stats.FailedExecutions++
	}

	l.log = append(l.log, domain.ExecutionRecord{})
	copy(l.log[1:], l.log)
	l.log[0] = rec
	if len(l.log) > l.capacity {
		l.log = l.log[:l.capacity]
	}
}

// RecordHedge counts a hedge outcome.
func (l *Ledger) RecordHedge(outcome domain.HedgeOutcome) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if outcome.Success {
		l.stats.HedgesCreated++
	} else {
		l.stats.HedgesFailed++
	}
}

// RecordScan counts a completed scan cycle.
func (l *Ledger) RecordScan(report domain.ScanReport) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if report.Skipped {
		return
	}
	l.stats.ScansCompleted++
	if report.Error != "" {
		l.stats.ScansFailed++
	}
	l.stats.OpportunitiesSeen += int64(report.Discovered)
	l.stats.OpportunitiesDropped += int64(report.Discovered - report.Dispatched)
	at := report.StartedAt
	l.stats.LastScanAt = &at
}

// Stats returns a copy of the counters. CurrentExecutions and IsRunning are
// owned by the engine and left zero here.
func (l *Ledger) Stats() domain.Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	st := l.stats
	if st.LastScanAt != nil {
		at := *st.LastScanAt
		st.LastScanAt = &at
	}
	return st
}

// Log returns a copy of the retained records, newest first.
func (l *Ledger) Log() []domain.ExecutionRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.ExecutionRecord, len(l.log))
	copy(out, l.log)
	return out
}

// Reset zeroes every counter and empties the log.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stats = domain.Stats{TotalProfit: decimal.Zero}
	l.log = l.log[:0]
}
