package estimate

import (
	"bytes"
	"encoding/json"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// Number is a leniently decoded numeric field. Decoding never fails: values
// that cannot be read as a number become 0. Present is false only when the
// field is absent or null.
type Number struct {
	Value   float64
	Present bool
}

// N returns a present Number.
func N(v float64) Number {
	return Number{Value: v, Present: true}
}

// UnmarshalJSON accepts numbers, numeric strings and booleans.
func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*n = Number{}
		return nil
	}

	n.Present = true
	n.Value = 0

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		n.Value = parseNumber(s)
	case 't':
		n.Value = 1
	case 'f':
		n.Value = 0
	case '{', '[':
		n.Value = 0
	default:
		v, err := strconv.ParseFloat(string(data), 64)
		if err == nil {
			n.Value = v
		}
	}
	return nil
}

// MarshalJSON writes null for an absent value.
func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Present {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

// parseNumber reads a numeric string, returning 0 for anything unreadable.
// Blank strings are 0, surrounding whitespace is ignored.
func parseNumber(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	// ParseFloat accepts "NaN" and "Inf"; neither is a usable measurement.
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// Flag is true only for a JSON true or the literal string "true".
type Flag bool

// UnmarshalJSON never fails.
func (f *Flag) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*f = Flag(bytes.Equal(data, []byte("true")) || bytes.Equal(data, []byte(`"true"`)))
	return nil
}

// Input carries the caller-supplied overrides for one calculation.
type Input struct {
	WidthFt            Number `json:"width_ft"`
	LengthFt           Number `json:"length_ft"`
	ThicknessIn        Number `json:"thickness_in"`
	PricePerCY         Number `json:"price_per_cy"`
	RebarCostPerSqft   Number `json:"rebar_cost_per_sqft"`
	FormsCostPerSqft   Number `json:"forms_cost_per_sqft"`
	LaborRatePerHour   Number `json:"labor_rate_per_hour"`
	LaborHoursPerSqft  Number `json:"labor_hours_per_sqft"`
	TearoutCostPerSqft Number `json:"tearout_cost_per_sqft"`
	OverheadPct        Number `json:"overhead_pct"`
	ProfitPct          Number `json:"profit_pct"`
	OtherMaterials     Number `json:"other_materials"`
	Tearout            Flag   `json:"tearout"`
}

// FieldNames returns the exact JSON keys Input reads.
func FieldNames() []string {
	t := reflect.TypeOf(Input{})
	names := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("json"), ",")
		if name != "" && name != "-" {
			names = append(names, name)
		}
	}
	return names
}
