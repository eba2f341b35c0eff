package pricing

import (
	"math"
	"time"
)

// DaysPerYear converts calendar days to the year fraction used for T.
const DaysPerYear = 365.0

// BlackScholesPrice calculates the price of a European option using the Black-Scholes model.
//
// Parameters:
//   - isCall: true for call option, false for put option
//   - S: spot price of the underlying asset
//   - K: strike price of the option
//   - T: time to expiry in years
//   - r: risk-free interest rate (annual, continuously compounded)
//   - sigma: volatility of the underlying asset (annual, as a decimal)
//
// Returns:
//
//	The theoretical price of the option, never negative. At or past expiry
//	(T <= 0), or with a non-positive volatility, the exercise value is returned:
//	max(0, S-K) for calls and max(0, K-S) for puts.
func BlackScholesPrice(
	isCall bool,
	S float64, // spot
	K float64, // strike
	T float64, // time to expiry in years
	r float64, // risk-free rate
	sigma float64, // volatility
) float64 {

	if T <= 0 || sigma <= 0 || S <= 0 || K <= 0 {
		return Intrinsic(isCall, S, K)
	}

	sqrtT := math.Sqrt(T)
	d1 := (math.Log(S/K) + (r+0.5*sigma*sigma)*T) / (sigma * sqrtT)
	d2 := d1 - sigma*sqrtT

	var price float64
	if isCall {
		price = S*normCDF(d1) - K*math.Exp(-r*T)*normCDF(d2)
	} else {
		price = K*math.Exp(-r*T)*normCDF(-d2) - S*normCDF(-d1)
	}

	if price <= 0 || math.IsNaN(price) {
		return 0
	}
	return price
}

// Intrinsic returns the exercise value of an option.
func Intrinsic(isCall bool, S, K float64) float64 {
	if isCall {
		return math.Max(0, S-K)
	}
	return math.Max(0, K-S)
}

// YearFraction returns the whole calendar days between valuation and expiry
// divided by DaysPerYear. Times of day are ignored.
func YearFraction(valuation, expiry time.Time) float64 {
	v := time.Date(valuation.Year(), valuation.Month(), valuation.Day(), 0, 0, 0, 0, time.UTC)
	e := time.Date(expiry.Year(), expiry.Month(), expiry.Day(), 0, 0, 0, 0, time.UTC)
	days := math.Round(e.Sub(v).Hours() / 24)
	return days / DaysPerYear
}

// normCDF computes the cumulative distribution function of the standard normal distribution
// for a given value x using the error function.
func normCDF(x float64) float64 {
	return 0.5 * (1.0 + math.Erf(x/math.Sqrt2))
}
