package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// OrderSide is the direction of the primary leg.
type OrderSide string

const (
	SideBuy  OrderSide = "buy"
	SideSell OrderSide = "sell"
)

// OrderType is the order style requested from the execution venue.
type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

// DiscoveryRequest narrows a discovery call to the enabled universe.
type DiscoveryRequest struct {
	Types     []OpportunityType `json:"types"`
	Exchanges []string          `json:"exchanges"`
	Symbols   []string          `json:"symbols"`
}

// ExecutionRequest asks the execution venue to trade one opportunity.
type ExecutionRequest struct {
	ExecutionID  string          `json:"execution_id"`
	Type         OpportunityType `json:"type"`
	Symbol       string          `json:"symbol"`
	Side         OrderSide       `json:"side"`
	Size         decimal.Decimal `json:"size"`
	OrderType    OrderType       `json:"order_type"`
	BuyExchange  string          `json:"buy_exchange"`
	SellExchange string          `json:"sell_exchange"`
}

// ExecutionResult is the venue's answer. RealizedProfit is nil when the venue
// does not report one.
type ExecutionResult struct {
	Success        bool             `json:"success"`
	OrderID        string           `json:"order_id,omitempty"`
	RealizedProfit *decimal.Decimal `json:"realized_profit,omitempty"`
	Message        string           `json:"message,omitempty"`
}

// HedgeRequest asks the hedge venue to open an offsetting position.
type HedgeRequest struct {
	ExecutionID     string          `json:"execution_id"`
	Symbol          string          `json:"symbol"`
	LongExchange    string          `json:"long_exchange"`
	ShortExchange   string          `json:"short_exchange"`
	Size            decimal.Decimal `json:"size"`
	HoldPeriodHours int             `json:"hold_period_hours,omitempty"`
}

// HedgeResult is the hedge venue's answer.
type HedgeResult struct {
	Success bool   `json:"success"`
	HedgeID string `json:"hedge_id,omitempty"`
	Message string `json:"message,omitempty"`
}

// Discoverer finds arbitrage opportunities.
type Discoverer interface {
	Discover(ctx context.Context, req DiscoveryRequest) ([]Opportunity, error)
}

// OrderExecutor trades one opportunity.
type OrderExecutor interface {
	Execute(ctx context.Context, req ExecutionRequest) (ExecutionResult, error)
}

// HedgeCreator opens hedge positions. Tracking them afterwards is the
// creator's responsibility.
type HedgeCreator interface {
	CreateHedge(ctx context.Context, req HedgeRequest) (HedgeResult, error)
}
