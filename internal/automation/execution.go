package automation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbengine/internal/domain"
)

// dispatch starts the execution of an opportunity whose slot is already
// held. The execution outlives ctx cancellation so stopping the scheduler
// never abandons a trade half way.
func (e *Engine) dispatch(ctx context.Context, opp domain.Opportunity, cfg domain.AutomationConfig) {
	rec := domain.ExecutionRecord{
		ID:            e.newID(),
		OpportunityID: opp.ID,
		Symbol:        opp.Symbol,
		Type:          opp.Type,
		Status:        domain.ExecPending,
		Profit:        decimal.Zero,
		Timestamp:     e.now().UTC(),
		BuyExchange:   opp.BuyExchange,
		SellExchange:  opp.SellExchange,
		Size:          PositionSize(opp, cfg),
	}
	execCtx := context.WithoutCancel(ctx)

	e.inflight.Add(1)
	go func() {
		defer e.inflight.Done()
		e.execute(execCtx, opp, rec, cfg)
	}()
}

// execute drives one record from pending to a terminal state, then runs the
// hedge sub-flow when it applies. The hedge is placed while sinks handle the
// execution event; its outcome is published after it.
func (e *Engine) execute(ctx context.Context, opp domain.Opportunity, rec domain.ExecutionRecord, cfg domain.AutomationConfig) {
	req := domain.ExecutionRequest{
		ExecutionID:  rec.ID,
		Type:         opp.Type,
		Symbol:       opp.Symbol,
		Side:         InferSide(opp),
		Size:         rec.Size,
		OrderType:    domain.OrderTypeMarket,
		BuyExchange:  opp.BuyExchange,
		SellExchange: opp.SellExchange,
	}

	started := e.now()
	res, err := callWithTimeout(ctx, cfg.ExecutionTimeout(), func(ctx context.Context) (domain.ExecutionResult, error) {
		return e.executor.Execute(ctx, req)
	})
	rec = resolveExecution(rec, opp, res, err)
	rec.DurationMs = e.now().Sub(started).Milliseconds()

	stats := e.finalize(rec)

	log := e.logger.With(
		slog.String("execution_id", rec.ID),
		slog.String("symbol", rec.Symbol),
		slog.String("type", string(rec.Type)),
	)
	if rec.Status == domain.ExecSuccess {
		log.InfoContext(ctx, "automation: execution succeeded",
			slog.String("profit", rec.Profit.String()),
			slog.String("size", rec.Size.String()),
		)
	} else {
		log.WarnContext(ctx, "automation: execution failed", slog.String("error", rec.Error))
	}

	var hedged chan domain.HedgeOutcome
	// Hedge gating reads the live config so an operator can switch hedging
	// off while executions are in flight.
	if live := e.configs.Get(); rec.Status == domain.ExecSuccess && e.hedger != nil && ShouldHedge(opp, live) {
		hedged = make(chan domain.HedgeOutcome, 1)
		go func() {
			hedged <- e.placeHedge(ctx, rec, opp, live)
		}()
	}

	e.sink.OnExecution(ctx, rec, stats)

	if hedged != nil {
		e.recordHedge(ctx, <-hedged)
	}
}

// finalize releases the slot and records the terminal record as one step.
func (e *Engine) finalize(rec domain.ExecutionRecord) domain.Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.throttle.Release(rec.Symbol)
	e.ledger.Finalize(rec)
	return e.statsLocked()
}

// placeHedge calls the hedge collaborator and converts the result into an
// outcome.
func (e *Engine) placeHedge(ctx context.Context, rec domain.ExecutionRecord, opp domain.Opportunity, cfg domain.AutomationConfig) domain.HedgeOutcome {
	req := domain.HedgeRequest{
		ExecutionID:     rec.ID,
		Symbol:          rec.Symbol,
		LongExchange:    opp.Hedge.LongExchange,
		ShortExchange:   opp.Hedge.ShortExchange,
		Size:            rec.Size,
		HoldPeriodHours: opp.Hedge.HoldPeriodHours,
	}
	res, err := callWithTimeout(ctx, cfg.ExecutionTimeout(), func(ctx context.Context) (domain.HedgeResult, error) {
		return e.hedger.CreateHedge(ctx, req)
	})

	outcome := domain.HedgeOutcome{
		ExecutionID:   rec.ID,
		HedgeID:       res.HedgeID,
		Symbol:        rec.Symbol,
		LongExchange:  req.LongExchange,
		ShortExchange: req.ShortExchange,
		Size:          req.Size,
		Timestamp:     e.now().UTC(),
	}
	switch {
	case err != nil:
		outcome.Error = err.Error()
	case !res.Success:
		outcome.Error = rejectionMessage(domain.ErrHedgeRejected, res.Message)
	default:
		outcome.Success = true
	}
	return outcome
}

// recordHedge counts the outcome and publishes it.
func (e *Engine) recordHedge(ctx context.Context, outcome domain.HedgeOutcome) {
	e.mu.Lock()
	e.ledger.RecordHedge(outcome)
	stats := e.statsLocked()
	e.mu.Unlock()

	if outcome.Success {
		e.logger.InfoContext(ctx, "automation: hedge created",
			slog.String("execution_id", outcome.ExecutionID),
			slog.String("hedge_id", outcome.HedgeID),
		)
	} else {
		e.logger.WarnContext(ctx, "automation: hedge failed",
			slog.String("execution_id", outcome.ExecutionID),
			slog.String("error", outcome.Error),
		)
	}
	e.sink.OnHedge(ctx, outcome, stats)
}

// PositionSize caps the available volume at the configured maximum. Zero or
// unknown volume falls back to the maximum.
func PositionSize(opp domain.Opportunity, cfg domain.AutomationConfig) decimal.Decimal {
	if !opp.VolumeAvailable.IsPositive() {
		return cfg.MaxPositionSize
	}
	return decimal.Min(opp.VolumeAvailable, cfg.MaxPositionSize)
}

// InferSide picks the primary leg direction from the venue pair.
func InferSide(opp domain.Opportunity) domain.OrderSide {
	if opp.BuyExchange != "" {
		return domain.SideBuy
	}
	return domain.SideSell
}

// ShouldHedge reports whether a successful execution of opp gets a hedge.
func ShouldHedge(opp domain.Opportunity, cfg domain.AutomationConfig) bool {
	if !cfg.AutoHedge || opp.Hedge == nil {
		return false
	}
	return opp.Hedge.ExpectedFundingCapture.GreaterThanOrEqual(cfg.HedgeMinFundingCapture)
}

func resolveExecution(rec domain.ExecutionRecord, opp domain.Opportunity, res domain.ExecutionResult, err error) domain.ExecutionRecord {
	rec.OrderID = res.OrderID
	switch {
	case err != nil:
		rec.Status = domain.ExecFailed
		rec.Profit = decimal.Zero
		rec.Error = err.Error()
	case !res.Success:
		rec.Status = domain.ExecFailed
		rec.Profit = decimal.Zero
		rec.Error = rejectionMessage(domain.ErrOrderRejected, res.Message)
	default:
		rec.Status = domain.ExecSuccess
		rec.Profit = opp.NetProfit
		if res.RealizedProfit != nil {
			rec.Profit = *res.RealizedProfit
		}
	}
	return rec
}

func rejectionMessage(sentinel error, msg string) string {
	if msg == "" {
		return sentinel.Error()
	}
	return fmt.Sprintf("%s: %s", sentinel, msg)
}

// callWithTimeout bounds fn by d. A zero d leaves the call unbounded. The
// caller is released at the deadline even if fn ignores its context.
func callWithTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if d <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		val T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		ch <- result{val: v, err: err}
	}()

	select {
	case r := <-ch:
		return r.val, r.err
	case <-ctx.Done():
		var zero T
		return zero, fmt.Errorf("%w after %s", domain.ErrExecutionTimeout, d)
	}
}
