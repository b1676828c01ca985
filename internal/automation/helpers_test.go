package automation

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbengine/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakeDiscoverer struct {
	mu    sync.Mutex
	opps  []domain.Opportunity
	err   error
	calls []domain.DiscoveryRequest
	// block, when set, makes Discover wait for ctx after signalling entered.
	block   bool
	entered chan struct{}
}

func (d *fakeDiscoverer) Discover(ctx context.Context, req domain.DiscoveryRequest) ([]domain.Opportunity, error) {
	d.mu.Lock()
	d.calls = append(d.calls, req)
	block, entered := d.block, d.entered
	d.mu.Unlock()
	if block {
		if entered != nil {
			entered <- struct{}{}
		}
		<-ctx.Done()
		return nil, ctx.Err()
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	out := make([]domain.Opportunity, len(d.opps))
	copy(out, d.opps)
	return out, nil
}

func (d *fakeDiscoverer) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

type fakeExecutor struct {
	mu   sync.Mutex
	fn   func(ctx context.Context, req domain.ExecutionRequest) (domain.ExecutionResult, error)
	reqs []domain.ExecutionRequest
}

func (x *fakeExecutor) Execute(ctx context.Context, req domain.ExecutionRequest) (domain.ExecutionResult, error) {
	x.mu.Lock()
	x.reqs = append(x.reqs, req)
	fn := x.fn
	x.mu.Unlock()
	if fn == nil {
		return domain.ExecutionResult{Success: true, OrderID: "ord-" + req.Symbol}, nil
	}
	return fn(ctx, req)
}

func (x *fakeExecutor) requests() []domain.ExecutionRequest {
	x.mu.Lock()
	defer x.mu.Unlock()
	out := make([]domain.ExecutionRequest, len(x.reqs))
	copy(out, x.reqs)
	return out
}

type fakeHedger struct {
	mu     sync.Mutex
	err    error
	reqs   []domain.HedgeRequest
	called chan struct{}
}

func (h *fakeHedger) CreateHedge(_ context.Context, req domain.HedgeRequest) (domain.HedgeResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reqs = append(h.reqs, req)
	if h.called != nil {
		close(h.called)
		h.called = nil
	}
	if h.err != nil {
		return domain.HedgeResult{}, h.err
	}
	return domain.HedgeResult{Success: true, HedgeID: "hedge-1"}, nil
}

func (h *fakeHedger) requests() []domain.HedgeRequest {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]domain.HedgeRequest, len(h.reqs))
	copy(out, h.reqs)
	return out
}

type recordingSink struct {
	mu         sync.Mutex
	executions []domain.ExecutionRecord
	hedges     []domain.HedgeOutcome
	configs    []domain.AutomationConfig
	statuses   []domain.Stats
	scans      []domain.ScanReport
}

func (s *recordingSink) OnExecution(_ context.Context, rec domain.ExecutionRecord, _ domain.Stats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executions = append(s.executions, rec)
}

func (s *recordingSink) OnHedge(_ context.Context, o domain.HedgeOutcome, _ domain.Stats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hedges = append(s.hedges, o)
}

func (s *recordingSink) OnConfig(_ context.Context, cfg domain.AutomationConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs = append(s.configs, cfg)
}

func (s *recordingSink) OnStatus(_ context.Context, st domain.Stats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, st)
}

func (s *recordingSink) OnScan(_ context.Context, r domain.ScanReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scans = append(s.scans, r)
}

// testConfig is permissive so individual tests only tweak what they check.
func testConfig() domain.AutomationConfig {
	return domain.AutomationConfig{
		MinProfitThreshold:      dec("0"),
		MinProfitPercentage:     dec("0"),
		MaxPositionSize:         dec("1000"),
		AutoHedge:               false,
		HedgeMinFundingCapture:  dec("0"),
		ScanIntervalSeconds:     60,
		MaxConcurrentExecutions: 5,
		CooldownSeconds:         0,
		EnabledTypes:            []domain.OpportunityType{domain.OpportunityCrossExchange, domain.OpportunityFundingRate},
		EnabledExchanges:        []string{"binance", "bybit", "okx"},
		EnabledSymbols:          []string{"BTC/USD", "ETH/USD", "SOL/USD"},
	}
}

func opportunity(symbol, profit string) domain.Opportunity {
	return domain.Opportunity{
		Type:             domain.OpportunityCrossExchange,
		Symbol:           symbol,
		BuyExchange:      "binance",
		SellExchange:     "bybit",
		NetProfit:        dec(profit),
		SpreadPercentage: dec("1"),
		VolumeAvailable:  dec("500"),
	}
}
