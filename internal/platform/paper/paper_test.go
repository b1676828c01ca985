package paper

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbengine/internal/domain"
)

func fixtures() []domain.Opportunity {
	return []domain.Opportunity{
		{Type: domain.OpportunityCrossExchange, Symbol: "BTC/USDT", BuyExchange: "binance", SellExchange: "okx", NetProfit: decimal.NewFromInt(12)},
		{Type: domain.OpportunityFundingRate, Symbol: "ETH/USDT", NetProfit: decimal.NewFromInt(7),
			Hedge: &domain.HedgeRecommendation{LongExchange: "bybit", ShortExchange: "okx", ExpectedFundingCapture: decimal.NewFromInt(6)}},
	}
}

func newVenue(cfg Config) *Venue {
	return New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestDiscover_FiltersUniverseAndStampsIDs(t *testing.T) {
	v := newVenue(Config{Opportunities: fixtures()})

	all, err := v.Discover(context.Background(), domain.DiscoveryRequest{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.NotEmpty(t, all[0].ID)
	assert.False(t, all[0].DetectedAt.IsZero())

	again, err := v.Discover(context.Background(), domain.DiscoveryRequest{})
	require.NoError(t, err)
	assert.NotEqual(t, all[0].ID, again[0].ID)

	btc, err := v.Discover(context.Background(), domain.DiscoveryRequest{
		Types:   []domain.OpportunityType{domain.OpportunityCrossExchange, domain.OpportunityFundingRate},
		Symbols: []string{"BTC/USDT"},
	})
	require.NoError(t, err)
	require.Len(t, btc, 1)
	assert.Equal(t, "BTC/USDT", btc[0].Symbol)
}

func TestDiscover_HedgeIsCopied(t *testing.T) {
	v := newVenue(Config{Opportunities: fixtures()})
	opps, err := v.Discover(context.Background(), domain.DiscoveryRequest{})
	require.NoError(t, err)

	opps[1].Hedge.LongExchange = "mutated"
	assert.Equal(t, "bybit", v.cfg.Opportunities[1].Hedge.LongExchange)
}

func TestExecute_RejectRate(t *testing.T) {
	v := newVenue(Config{RejectRate: 0.5})

	v.roll = func() float64 { return 0.2 }
	res, err := v.Execute(context.Background(), domain.ExecutionRequest{ExecutionID: "a"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "simulated rejection", res.Message)

	v.roll = func() float64 { return 0.7 }
	res, err = v.Execute(context.Background(), domain.ExecutionRequest{ExecutionID: "b"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Nil(t, res.RealizedProfit)
	assert.Contains(t, res.OrderID, "paper-")

	assert.Len(t, v.Orders(), 2)
}

func TestCreateHedge_AlwaysSucceeds(t *testing.T) {
	v := newVenue(Config{})
	res, err := v.CreateHedge(context.Background(), domain.HedgeRequest{ExecutionID: "a", Symbol: "ETH/USDT"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.NotEmpty(t, res.HedgeID)
	assert.Len(t, v.Hedges(), 1)
}

func TestLatencyRespectsContext(t *testing.T) {
	v := newVenue(Config{Latency: time.Minute})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := v.Execute(ctx, domain.ExecutionRequest{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, v.Orders())
}
