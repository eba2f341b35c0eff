package pricing

import "math"

const (
	// DefaultVolWindow is the number of trailing log returns used by default.
	DefaultVolWindow = 20

	// FallbackVolatility is returned whenever history is too thin or degenerate.
	FallbackVolatility = 0.20

	tradingDaysPerYear = 252.0
)

// HistoricalVolatility returns the annualized volatility of closes, computed
// from the sample standard deviation of the trailing window log returns and
// scaled by sqrt(252).
//
// It never fails: fewer than two prices, a window below two, or a zero/NaN
// result all yield FallbackVolatility. When fewer returns than window exist,
// all of them are used.
func HistoricalVolatility(closes []float64, window int) float64 {
	if len(closes) < 2 || window < 2 {
		return FallbackVolatility
	}

	rets := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		prev, cur := closes[i-1], closes[i]
		if prev <= 0 || cur <= 0 {
			continue
		}
		rets = append(rets, math.Log(cur/prev))
	}
	if len(rets) > window {
		rets = rets[len(rets)-window:]
	}

	sd := sampleStdDev(rets)
	if sd == 0 || math.IsNaN(sd) || math.IsInf(sd, 0) {
		return FallbackVolatility
	}
	return sd * math.Sqrt(tradingDaysPerYear)
}

// sampleStdDev uses the n-1 denominator; fewer than two values give NaN.
func sampleStdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return math.NaN()
	}
	mean := 0.0
	for _, v := range xs {
		mean += v
	}
	mean /= float64(len(xs))

	ss := 0.0
	for _, v := range xs {
		ss += (v - mean) * (v - mean)
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}
