// Package paper provides in-process collaborators for dry runs: discovery
// replays a fixed list of opportunities, orders fill at the quoted profit
// with an optional simulated rejection rate, and hedges always open.
package paper

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/arbengine/internal/domain"
)

// Config configures the paper venue.
type Config struct {
	// RejectRate is the probability in [0,1] that an order is rejected.
	RejectRate    float64
	Latency       time.Duration
	Opportunities []domain.Opportunity
}

// Venue implements domain.Discoverer, domain.OrderExecutor and
// domain.HedgeCreator without touching any exchange.
type Venue struct {
	cfg    Config
	now    func() time.Time
	roll   func() float64
	logger *slog.Logger

	mu     sync.Mutex
	orders []domain.ExecutionRequest
	hedges []domain.HedgeRequest
}

// New creates a paper Venue.
func New(cfg Config, logger *slog.Logger) *Venue {
	return &Venue{
		cfg:    cfg,
		now:    time.Now,
		roll:   rand.Float64,
		logger: logger.With(slog.String("component", "paper_venue")),
	}
}

// Discover returns the fixtures that fall inside the requested universe.
// Each call stamps fresh IDs and detection times.
func (v *Venue) Discover(ctx context.Context, req domain.DiscoveryRequest) ([]domain.Opportunity, error) {
	if err := v.wait(ctx); err != nil {
		return nil, err
	}
	now := v.now().UTC()
	out := make([]domain.Opportunity, 0, len(v.cfg.Opportunities))
	for _, o := range v.cfg.Opportunities {
		if len(req.Types) > 0 && !slices.Contains(req.Types, o.Type) {
			continue
		}
		if len(req.Symbols) > 0 && !slices.Contains(req.Symbols, o.Symbol) {
			continue
		}
		o.ID = uuid.New().String()
		o.DetectedAt = now
		if o.Hedge != nil {
			h := *o.Hedge
			o.Hedge = &h
		}
		out = append(out, o)
	}
	return out, nil
}

// Execute fills the order at the quoted profit unless the rejection roll
// fails.
func (v *Venue) Execute(ctx context.Context, req domain.ExecutionRequest) (domain.ExecutionResult, error) {
	if err := v.wait(ctx); err != nil {
		return domain.ExecutionResult{}, err
	}
	v.mu.Lock()
	v.orders = append(v.orders, req)
	v.mu.Unlock()

	if v.cfg.RejectRate > 0 && v.roll() < v.cfg.RejectRate {
		v.logger.InfoContext(ctx, "paper order rejected",
			slog.String("execution_id", req.ExecutionID),
			slog.String("symbol", req.Symbol),
		)
		return domain.ExecutionResult{Success: false, Message: "simulated rejection"}, nil
	}
	return domain.ExecutionResult{
		Success: true,
		OrderID: "paper-" + uuid.New().String(),
	}, nil
}

// CreateHedge records the hedge and reports success.
func (v *Venue) CreateHedge(ctx context.Context, req domain.HedgeRequest) (domain.HedgeResult, error) {
	if err := v.wait(ctx); err != nil {
		return domain.HedgeResult{}, err
	}
	v.mu.Lock()
	v.hedges = append(v.hedges, req)
	v.mu.Unlock()
	return domain.HedgeResult{Success: true, HedgeID: "paper-hedge-" + uuid.New().String()}, nil
}

// Orders returns every order request received so far.
func (v *Venue) Orders() []domain.ExecutionRequest {
	v.mu.Lock()
	defer v.mu.Unlock()
	return slices.Clone(v.orders)
}

// Hedges returns every hedge opened so far.
func (v *Venue) Hedges() []domain.HedgeRequest {
	v.mu.Lock()
	defer v.mu.Unlock()
	return slices.Clone(v.hedges)
}

func (v *Venue) wait(ctx context.Context) error {
	if v.cfg.Latency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(v.cfg.Latency)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var (
	_ domain.Discoverer    = (*Venue)(nil)
	_ domain.OrderExecutor = (*Venue)(nil)
	_ domain.HedgeCreator  = (*Venue)(nil)
)
