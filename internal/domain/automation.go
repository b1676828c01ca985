package domain

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// AutomationConfig holds the live tunables of the automation engine.
type AutomationConfig struct {
	MinProfitThreshold      decimal.Decimal   `json:"min_profit_threshold"`
	MinProfitPercentage     decimal.Decimal   `json:"min_profit_percentage"`
	MaxPositionSize         decimal.Decimal   `json:"max_position_size"`
	AutoHedge               bool              `json:"auto_hedge"`
	HedgeMinFundingCapture  decimal.Decimal   `json:"hedge_min_funding_capture"`
	ScanIntervalSeconds     int               `json:"scan_interval_seconds"`
	MaxConcurrentExecutions int               `json:"max_concurrent_executions"`
	CooldownSeconds         int               `json:"cooldown_seconds"`
	ExecutionTimeoutSeconds int               `json:"execution_timeout_seconds"`
	EnabledTypes            []OpportunityType `json:"enabled_types"`
	EnabledExchanges        []string          `json:"enabled_exchanges"`
	EnabledSymbols          []string          `json:"enabled_symbols"`

	Version   uint64    `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultAutomationConfig returns the compiled-in defaults.
func DefaultAutomationConfig() AutomationConfig {
	return AutomationConfig{
		MinProfitThreshold:      decimal.NewFromInt(10),
		MinProfitPercentage:     decimal.RequireFromString("0.5"),
		MaxPositionSize:         decimal.NewFromInt(1000),
		AutoHedge:               true,
		HedgeMinFundingCapture:  decimal.NewFromInt(5),
		ScanIntervalSeconds:     30,
		MaxConcurrentExecutions: 3,
		CooldownSeconds:         60,
		ExecutionTimeoutSeconds: 30,
		EnabledTypes:            []OpportunityType{OpportunityCrossExchange, OpportunityFundingRate},
		EnabledExchanges:        []string{"binance", "bybit", "okx"},
		EnabledSymbols:          []string{"BTC/USDT", "ETH/USDT", "SOL/USDT"},
	}
}

// Clone returns a deep copy so callers cannot mutate shared slices.
func (c AutomationConfig) Clone() AutomationConfig {
	c.EnabledTypes = slices.Clone(c.EnabledTypes)
	c.EnabledExchanges = slices.Clone(c.EnabledExchanges)
	c.EnabledSymbols = slices.Clone(c.EnabledSymbols)
	return c
}

// TypeEnabled reports whether t is in EnabledTypes.
func (c AutomationConfig) TypeEnabled(t OpportunityType) bool {
	return slices.Contains(c.EnabledTypes, t)
}

// ExchangeEnabled reports whether exchange is in EnabledExchanges.
func (c AutomationConfig) ExchangeEnabled(exchange string) bool {
	return slices.Contains(c.EnabledExchanges, exchange)
}

// SymbolEnabled reports whether symbol is in EnabledSymbols.
func (c AutomationConfig) SymbolEnabled(symbol string) bool {
	return slices.Contains(c.EnabledSymbols, symbol)
}

// ScanInterval is the scan period clamped to at least one second.
func (c AutomationConfig) ScanInterval() time.Duration {
	if c.ScanIntervalSeconds < 1 {
		return time.Second
	}
	return time.Duration(c.ScanIntervalSeconds) * time.Second
}

// MaxConcurrent is MaxConcurrentExecutions clamped to at least one.
func (c AutomationConfig) MaxConcurrent() int {
	if c.MaxConcurrentExecutions < 1 {
		return 1
	}
	return c.MaxConcurrentExecutions
}

// Cooldown is the per-symbol spacing between executions. Negative values
// count as zero.
func (c AutomationConfig) Cooldown() time.Duration {
	if c.CooldownSeconds < 0 {
		return 0
	}
	return time.Duration(c.CooldownSeconds) * time.Second
}

// ExecutionTimeout returns the collaborator call bound, or zero when calls are
// unbounded.
func (c AutomationConfig) ExecutionTimeout() time.Duration {
	if c.ExecutionTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.ExecutionTimeoutSeconds) * time.Second
}

// AutomationPatch is a partial update. Nil fields are left unchanged.
type AutomationPatch struct {
	MinProfitThreshold      *decimal.Decimal   `json:"min_profit_threshold,omitempty"`
	MinProfitPercentage     *decimal.Decimal   `json:"min_profit_percentage,omitempty"`
	MaxPositionSize         *decimal.Decimal   `json:"max_position_size,omitempty"`
	AutoHedge               *bool              `json:"auto_hedge,omitempty"`
	HedgeMinFundingCapture  *decimal.Decimal   `json:"hedge_min_funding_capture,omitempty"`
	ScanIntervalSeconds     *int               `json:"scan_interval_seconds,omitempty"`
	MaxConcurrentExecutions *int               `json:"max_concurrent_executions,omitempty"`
	CooldownSeconds         *int               `json:"cooldown_seconds,omitempty"`
	ExecutionTimeoutSeconds *int               `json:"execution_timeout_seconds,omitempty"`
	EnabledTypes            *[]OpportunityType `json:"enabled_types,omitempty"`
	EnabledExchanges        *[]string          `json:"enabled_exchanges,omitempty"`
	EnabledSymbols          *[]string          `json:"enabled_symbols,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p AutomationPatch) Empty() bool {
	return p == AutomationPatch{}
}

// Apply shallow-merges the patch into cfg and returns the result. Version and
// UpdatedAt are left to the caller.
func (p AutomationPatch) Apply(cfg AutomationConfig) AutomationConfig {
	out := cfg.Clone()
	if p.MinProfitThreshold != nil {
		out.MinProfitThreshold = *p.MinProfitThreshold
	}
	if p.MinProfitPercentage != nil {
		out.MinProfitPercentage = *p.MinProfitPercentage
	}
	if p.MaxPositionSize != nil {
		out.MaxPositionSize = *p.MaxPositionSize
	}
	if p.AutoHedge != nil {
		out.AutoHedge = *p.AutoHedge
	}
	if p.HedgeMinFundingCapture != nil {
		out.HedgeMinFundingCapture = *p.HedgeMinFundingCapture
	}
	if p.ScanIntervalSeconds != nil {
		out.ScanIntervalSeconds = *p.ScanIntervalSeconds
	}
	if p.MaxConcurrentExecutions != nil {
		out.MaxConcurrentExecutions = *p.MaxConcurrentExecutions
	}
	if p.CooldownSeconds != nil {
		out.CooldownSeconds = *p.CooldownSeconds
	}
	if p.ExecutionTimeoutSeconds != nil {
		out.ExecutionTimeoutSeconds = *p.ExecutionTimeoutSeconds
	}
	if p.EnabledTypes != nil {
		out.EnabledTypes = slices.Clone(*p.EnabledTypes)
	}
	if p.EnabledExchanges != nil {
		out.EnabledExchanges = slices.Clone(*p.EnabledExchanges)
	}
	if p.EnabledSymbols != nil {
		out.EnabledSymbols = slices.Clone(*p.EnabledSymbols)
	}
	return out
}

// Validate rejects values that cannot be coerced into the config types. Range
// problems such as a zero scan interval are allowed through and clamped by
// the consumers.
func (p AutomationPatch) Validate() error {
	if p.EnabledTypes != nil {
		for _, t := range *p.EnabledTypes {
			if !t.Valid() {
				return ErrInvalidPatch
			}
		}
	}
	return nil
}
