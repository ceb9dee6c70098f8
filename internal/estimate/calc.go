package estimate

import "math"

const (
	defaultThicknessIn = 4.0
	cubicFeetPerYard   = 27.0
	inchesPerFoot      = 12.0
)

// Dimensions are the resolved slab measurements.
type Dimensions struct {
	WidthFt     float64 `json:"width_ft"`
	LengthFt    float64 `json:"length_ft"`
	AreaSqft    float64 `json:"area_sqft"`
	ThicknessIn float64 `json:"thickness_in"`
	VolumeCY    float64 `json:"volume_cy"`
}

// LineItems are the direct costs of the pour.
type LineItems struct {
	ConcreteCost   float64 `json:"concrete_cost"`
	RebarCost      float64 `json:"rebar_cost"`
	FormsCost      float64 `json:"forms_cost"`
	OtherMaterials float64 `json:"other_materials"`
	LaborHours     float64 `json:"labor_hours"`
	LaborCost      float64 `json:"labor_cost"`
	TearoutCost    float64 `json:"tearout_cost"`
}

// Summary rolls the line items up into the quoted total.
type Summary struct {
	Subtotal float64 `json:"subtotal"`
	Overhead float64 `json:"overhead"`
	Profit   float64 `json:"profit"`
	Total    float64 `json:"total"`
}

// Params are the effective rates after defaulting.
type Params struct {
	Rates
	Tearout bool `json:"tearout"`
}

// Result is one itemized estimate.
type Result struct {
	Inputs    Dimensions `json:"inputs"`
	LineItems LineItems  `json:"line_items"`
	Summary   Summary    `json:"summary"`
	Params    Params     `json:"params"`
}

// Calculator computes estimates against a fixed rate table. It holds no
// mutable state and is safe for concurrent use.
type Calculator struct {
	rates Rates
}

// NewCalculator returns a Calculator that falls back to rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Rates returns the fallback table.
func (c *Calculator) Rates() Rates {
	return c.rates
}

// Calculate runs in against the calculator's rate table.
func (c *Calculator) Calculate(in Input) Result {
	return Calculate(in, c.rates)
}

// Calculate computes an itemized estimate. Each value is rounded as soon as
// it is computed so later sums build on the rounded figures.
func Calculate(in Input, rates Rates) Result {
	width := numberOrZero(in.WidthFt)
	length := numberOrZero(in.LengthFt)
	area := round2(width * length)

	thickness := orDefaultIfZeroOrAbsent(in.ThicknessIn, defaultThicknessIn)
	volume := round3(area * (thickness / inchesPerFoot) / cubicFeetPerYard)

	params := Params{
		Rates: Rates{
			PricePerCY:         orDefaultIfZeroOrAbsent(in.PricePerCY, rates.PricePerCY),
			RebarCostPerSqft:   orDefaultIfZeroOrAbsent(in.RebarCostPerSqft, rates.RebarCostPerSqft),
			FormsCostPerSqft:   orDefaultIfZeroOrAbsent(in.FormsCostPerSqft, rates.FormsCostPerSqft),
			LaborRatePerHour:   orDefaultIfZeroOrAbsent(in.LaborRatePerHour, rates.LaborRatePerHour),
			LaborHoursPerSqft:  orDefaultIfZeroOrAbsent(in.LaborHoursPerSqft, rates.LaborHoursPerSqft),
			TearoutCostPerSqft: orDefaultIfZeroOrAbsent(in.TearoutCostPerSqft, rates.TearoutCostPerSqft),
			OverheadPct:        orDefaultIfAbsent(in.OverheadPct, rates.OverheadPct),
			ProfitPct:          orDefaultIfAbsent(in.ProfitPct, rates.ProfitPct),
		},
		Tearout: bool(in.Tearout),
	}

	concrete := round2(volume * params.PricePerCY)
	rebar := round2(area * params.RebarCostPerSqft)
	forms := round2(area * params.FormsCostPerSqft)

	laborHours := round2(area * params.LaborHoursPerSqft)
	laborCost := round2(laborHours * params.LaborRatePerHour)

	tearout := 0.0
	if params.Tearout {
		tearout = round2(area * params.TearoutCostPerSqft)
	}

	// other_materials is a flat amount and goes into the sum as given.
	other := numberOrZero(in.OtherMaterials)

	subtotal := round2(concrete + rebar + forms + other + laborCost + tearout)
	overhead := round2(subtotal * params.OverheadPct)
	profit := round2((subtotal + overhead) * params.ProfitPct)
	total := round2(subtotal + overhead + profit)

	return Result{
		Inputs: Dimensions{
			WidthFt:     width,
			LengthFt:    length,
			AreaSqft:    area,
			ThicknessIn: thickness,
			VolumeCY:    volume,
		},
		LineItems: LineItems{
			ConcreteCost:   concrete,
			RebarCost:      rebar,
			FormsCost:      forms,
			OtherMaterials: other,
			LaborHours:     laborHours,
			LaborCost:      laborCost,
			TearoutCost:    tearout,
		},
		Summary: Summary{
			Subtotal: subtotal,
			Overhead: overhead,
			Profit:   profit,
			Total:    total,
		},
		Params: params,
	}
}

func numberOrZero(n Number) float64 {
	if !n.Present {
		return 0
	}
	return n.Value
}

// orDefaultIfZeroOrAbsent is the rule for rate fields, where zero means
// "not supplied".
func orDefaultIfZeroOrAbsent(n Number, def float64) float64 {
	if !n.Present || n.Value == 0 {
		return def
	}
	return n.Value
}

// orDefaultIfAbsent is the rule for percentage fields: an explicit zero is
// a real override.
func orDefaultIfAbsent(n Number, def float64) float64 {
	if !n.Present {
		return def
	}
	return n.Value
}

// Finite reports whether every figure in r is a finite number. Inputs near
// the float64 limit can overflow to Inf, which JSON cannot carry.
func (r Result) Finite() bool {
	for _, v := range []float64{
		r.Inputs.WidthFt, r.Inputs.LengthFt, r.Inputs.AreaSqft, r.Inputs.ThicknessIn, r.Inputs.VolumeCY,
		r.LineItems.ConcreteCost, r.LineItems.RebarCost, r.LineItems.FormsCost, r.LineItems.OtherMaterials,
		r.LineItems.LaborHours, r.LineItems.LaborCost, r.LineItems.TearoutCost,
		r.Summary.Subtotal, r.Summary.Overhead, r.Summary.Profit, r.Summary.Total,
		r.Params.PricePerCY, r.Params.RebarCostPerSqft, r.Params.LaborRatePerHour, r.Params.LaborHoursPerSqft,
		r.Params.FormsCostPerSqft, r.Params.TearoutCostPerSqft, r.Params.OverheadPct, r.Params.ProfitPct,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
