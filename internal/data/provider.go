package data

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// DateLayout is the calendar-date key format used across providers.
const DateLayout = "2006-01-02"

// ErrNoData reports that a provider holds no bars for the requested ticker and range.
var ErrNoData = errors.New("no price data")

// PriceProvider supplies daily OHLCV history.
type PriceProvider interface {
	// GetBars returns daily bars for underlying within [fromDate, toDate],
	// ascending by date. An empty result is reported as ErrNoData.
	GetBars(ctx context.Context, underlying string, fromDate, toDate time.Time) ([]Bar, error)
}

// QuoteProvider supplies live option quotes for an expiry.
type QuoteProvider interface {
	// GetOptionQuote returns the quote of the listed strike nearest to strike
	// for the given expiry and option type ("put" or "call").
	GetOptionQuote(ctx context.Context, underlying string, expiryDate time.Time, optType string, strike float64) (Quote, error)
}

// Bar simplified OHLC
type Bar struct {
	Date  time.Time `json:"date"`
	Open  float64   `json:"open"`
	High  float64   `json:"high"`
	Low   float64   `json:"low"`
	Close float64   `json:"close"`
	Vol   float64   `json:"volume"`
}

// Quote is a single option contract's top of book.
type Quote struct {
	Strike float64
	Bid    float64
	Ask    float64
}

// Mid returns the bid/ask midpoint.
func (q Quote) Mid() float64 {
	return (q.Bid + q.Ask) / 2
}

// DateKey normalizes t to its calendar-date key.
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// BarsByDate indexes bars by calendar date. The first bar wins on duplicates.
func BarsByDate(bars []Bar) map[string]Bar {
	out := make(map[string]Bar, len(bars))
	for _, b := range bars {
		k := DateKey(b.Date)
		if _, ok := out[k]; !ok {
			out[k] = b
		}
	}
	return out
}

// SortBars orders bars ascending by date in place.
func SortBars(bars []Bar) {
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
}

// --------------------------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------------------------

// OptionSymbolFromParts: OCC-like formatter (best-effort)
func OptionSymbolFromParts(underlying string, expiryDate time.Time, optionType string, strike float64) string {
	// OCC: <root><YYMMDD><C|P><strike*1000 padded to 8 digits>
	expDt := expiryDate.UTC().Format("060102")
	optType := "C"
	if strings.ToLower(optionType) == "put" || strings.ToLower(optionType) == "p" {
		optType = "P"
	}
	strikeInt := int(math.Round(strike * 1000))
	return fmt.Sprintf("O:%s%s%s%08d", strings.ToUpper(underlying), expDt, optType, strikeInt)
}

// Closest finds the closest float64 in a sorted slice to the target value using binary search (sort.Search).
// Ties resolve to the higher value. The slice must not be empty.
func Closest(numList []float64, target float64) float64 {
	n := len(numList)
	if n == 0 {
		panic("empty list")
	}

	i := sort.Search(n, func(i int) bool {
		return numList[i] >= target
	})

	if i == 0 {
		return numList[0]
	}
	if i == n {
		return numList[n-1]
	}

	before := numList[i-1]
	after := numList[i]

	if math.Abs(before-target) < math.Abs(after-target) {
		return before
	}
	return after
}
