package engine

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/contactkeval/option-wheel/internal/backtest/scheduler"
)

// BuildEquityCurve turns a ledger into one point per distinct calendar
// date, first record winning under a stable sort, prefixed by the starting
// capital on the day before the earliest record. An empty ledger yields a
// nil curve.
func BuildEquityCurve(ledger []Action, startingCapital decimal.Decimal) []EquityPoint {
	if len(ledger) == 0 {
		return nil
	}

	sorted := make([]Action, len(ledger))
	copy(sorted, ledger)
	sort.SliceStable(sorted, func(i, j int) bool {
		return scheduler.Day(sorted[i].Date).Before(scheduler.Day(sorted[j].Date))
	})

	first := scheduler.Day(sorted[0].Date)
	curve := make([]EquityPoint, 0, len(sorted)+1)
	curve = append(curve, EquityPoint{Date: first.AddDate(0, 0, -1), Value: startingCapital})

	for _, a := range sorted {
		day := scheduler.Day(a.Date)
		if curve[len(curve)-1].Date.Equal(day) {
			continue
		}
		curve = append(curve, EquityPoint{Date: day, Value: a.PortfolioValue})
	}
	return curve
}
