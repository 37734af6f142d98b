package domain

import "math"

// EquityReturns computes (e[i]-e[i-1])/e[i-1] over a curve, skipping NaN and Inf.
func EquityReturns(curve []EquityPoint) []float64 {
	if len(curve) < 2 {
		return nil
	}
	out := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		r := (curve[i].Equity - curve[i-1].Equity) / curve[i-1].Equity
		if math.IsNaN(r) || math.IsInf(r, 0) {
			continue
		}
		out = append(out, r)
	}
	return out
}
