package automation

import "github.com/alanyoungcy/arbengine/internal/domain"

// RejectReason names the first eligibility rule an opportunity failed.
type RejectReason string

const (
	RejectTypeDisabled     RejectReason = "type_disabled"
	RejectExchangeDisabled RejectReason = "exchange_disabled"
	RejectSymbolDisabled   RejectReason = "symbol_disabled"
	RejectBelowMinProfit   RejectReason = "below_min_profit"
	RejectBelowMinSpread   RejectReason = "below_min_spread"
)

// Rejection pairs a dropped opportunity with its reason.
type Rejection struct {
	Opportunity domain.Opportunity
	Reason      RejectReason
}

// Check evaluates every eligibility rule against opp. It returns the first
// failed rule, or ok=true when opp is eligible.
func Check(opp domain.Opportunity, cfg domain.AutomationConfig) (RejectReason, bool) {
	switch {
	case !cfg.TypeEnabled(opp.Type):
		return RejectTypeDisabled, false
	case !cfg.ExchangeEnabled(opp.BuyExchange) || !cfg.ExchangeEnabled(opp.SellExchange):
		return RejectExchangeDisabled, false
	case !cfg.SymbolEnabled(opp.Symbol):
		return RejectSymbolDisabled, false
	case opp.NetProfit.LessThan(cfg.MinProfitThreshold):
		return RejectBelowMinProfit, false
	case opp.SpreadPercentage.LessThan(cfg.MinProfitPercentage):
		return RejectBelowMinSpread, false
	}
	return "", true
}

// Filter returns the eligible opportunities in their original order. The
// input slice is not modified.
func Filter(opps []domain.Opportunity, cfg domain.AutomationConfig) []domain.Opportunity {
	kept, _ := FilterWithReasons(opps, cfg)
	return kept
}

// FilterWithReasons is Filter that also reports why each dropped
// opportunity was rejected.
func FilterWithReasons(opps []domain.Opportunity, cfg domain.AutomationConfig) ([]domain.Opportunity, []Rejection) {
	kept := make([]domain.Opportunity, 0, len(opps))
	var rejected []Rejection
	for _, opp := range opps {
		if reason, ok := Check(opp, cfg); !ok {
			rejected = append(rejected, Rejection{Opportunity: opp, Reason: reason})
			continue
		}
		kept = append(kept, opp)
	}
	return kept, rejected
}
