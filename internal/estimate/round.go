package estimate

import (
	"math"

	"github.com/shopspring/decimal"
)

func round2(v float64) float64 {
	return roundTo(v, 2)
}

func round3(v float64) float64 {
	return roundTo(v, 3)
}

// roundTo rounds half away from zero on the shortest decimal form of v, so
// 1.005 becomes 1.01 rather than the 1.00 that v*100 rounding gives.
func roundTo(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
