package metrics

import (
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// TTestResult is the outcome of a two-sample t-test.
type TTestResult struct {
	TStatistic     float64
	PValue         float64 // two-sided, [0, 1]
	DegreesFreedom float64
	MeanDiff       float64 // mean(a) - mean(b)
}

// TwoSampleTTest runs Student's independent two-sample t-test with pooled
// variance. Samples too small or without variance give t=0, p=1.
func TwoSampleTTest(a, b []float64) TTestResult {
	na, nb := float64(len(a)), float64(len(b))
	if len(a) < 2 || len(b) < 2 {
		return TTestResult{PValue: 1}
	}

	meanA, varA := stat.MeanVariance(a, nil)
	meanB, varB := stat.MeanVariance(b, nil)
	df := na + nb - 2
	res := TTestResult{PValue: 1, DegreesFreedom: df, MeanDiff: meanA - meanB}

	pooled := ((na-1)*varA + (nb-1)*varB) / df
	se := math.Sqrt(pooled * (1/na + 1/nb))
	if !(se > 0) || math.IsInf(se, 0) {
		return res
	}

	t := res.MeanDiff / se
	if math.IsNaN(t) || math.IsInf(t, 0) {
		return res
	}

	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	p := 2 * dist.Survival(math.Abs(t))
	res.TStatistic = t
	res.PValue = math.Max(0, math.Min(1, p))
	return res
}
