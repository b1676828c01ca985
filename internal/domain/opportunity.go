package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OpportunityType classifies an arbitrage opportunity.
type OpportunityType string

const (
	OpportunityCrossExchange OpportunityType = "cross_exchange"
	OpportunityFundingRate   OpportunityType = "funding_rate"
)

// AllOpportunityTypes lists every type the engine knows how to execute.
var AllOpportunityTypes = []OpportunityType{OpportunityCrossExchange, OpportunityFundingRate}

// Valid reports whether t is a known opportunity type.
func (t OpportunityType) Valid() bool {
	switch t {
	case OpportunityCrossExchange, OpportunityFundingRate:
		return true
	default:
		return false
	}
}

// HedgeRecommendation is attached by discovery to opportunities that can be
// paired with an offsetting position for funding capture.
type HedgeRecommendation struct {
	LongExchange           string          `json:"long_exchange"`
	ShortExchange          string          `json:"short_exchange"`
	ExpectedFundingCapture decimal.Decimal `json:"expected_funding_capture"`
	HoldPeriodHours        int             `json:"hold_period_hours"`
}

// Opportunity is a candidate trade surfaced by discovery. It lives for one
// scan cycle and is passed by value.
type Opportunity struct {
	ID               string               `json:"id,omitempty"`
	Type             OpportunityType      `json:"type"`
	Symbol           string               `json:"symbol"`
	BuyExchange      string               `json:"buy_exchange"`
	SellExchange     string               `json:"sell_exchange"`
	NetProfit        decimal.Decimal      `json:"net_profit"`
	SpreadPercentage decimal.Decimal      `json:"spread_percentage"`
	VolumeAvailable  decimal.Decimal      `json:"volume_available"`
	Hedge            *HedgeRecommendation `json:"hedge_recommendation,omitempty"`
	DetectedAt       time.Time            `json:"detected_at,omitempty"`
}
