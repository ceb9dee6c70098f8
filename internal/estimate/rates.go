package estimate

// Rates holds the per-unit costs and markup fractions used whenever a caller
// does not supply an override.
type Rates struct {
	PricePerCY         float64 `json:"price_per_cy"`
	RebarCostPerSqft   float64 `json:"rebar_cost_per_sqft"`
	LaborRatePerHour   float64 `json:"labor_rate_per_hour"`
	LaborHoursPerSqft  float64 `json:"labor_hours_per_sqft"`
	FormsCostPerSqft   float64 `json:"forms_cost_per_sqft"`
	TearoutCostPerSqft float64 `json:"tearout_cost_per_sqft"`
	OverheadPct        float64 `json:"overhead_pct"`
	ProfitPct          float64 `json:"profit_pct"`
}

// DefaultRates returns the stock rate table.
func DefaultRates() Rates {
	return Rates{
		PricePerCY:         140.0,
		RebarCostPerSqft:   1.25,
		LaborRatePerHour:   60.0,
		LaborHoursPerSqft:  0.02,
		FormsCostPerSqft:   1.50,
		TearoutCostPerSqft: 3.50,
		OverheadPct:        0.15,
		ProfitPct:          0.12,
	}
}
