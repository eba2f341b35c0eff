// Package testutil holds fixtures shared by package tests: hand-built bar
// series, a static price provider and a fixed premium provider.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/contactkeval/option-wheel/internal/data"
	"github.com/contactkeval/option-wheel/internal/premium"
)

// Date parses YYYY-MM-DD as UTC midnight and panics on malformed input.
func Date(s string) time.Time {
	t, err := time.Parse(data.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

// FlatBars returns one bar per weekday in [from, to] at a constant price.
func FlatBars(from, to time.Time, price float64) []data.Bar {
	var bars []data.Bar
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		bars = append(bars, data.Bar{Date: d, Open: price, High: price, Low: price, Close: price, Vol: 1000})
	}
	return bars
}

// Week returns Monday to Friday bars for the week starting at monday, where
// Monday opens at open and Friday closes at close. Other prices are
// interpolated so the series looks plausible.
func Week(monday time.Time, open, close float64) []data.Bar {
	bars := make([]data.Bar, 0, 5)
	step := (close - open) / 4
	for i := 0; i < 5; i++ {
		px := open + step*float64(i)
		bars = append(bars, data.Bar{
			Date:  monday.AddDate(0, 0, i),
			Open:  px,
			High:  px,
			Low:   px,
			Close: px,
			Vol:   1000,
		})
	}
	bars[0].Open = open
	bars[4].Close = close
	return bars
}

// Weeks concatenates Week series for consecutive weeks starting at monday.
// Each element of moves is an (open, close) pair.
func Weeks(monday time.Time, moves ...[2]float64) []data.Bar {
	var bars []data.Bar
	for i, m := range moves {
		bars = append(bars, Week(monday.AddDate(0, 0, 7*i), m[0], m[1])...)
	}
	return bars
}

// StaticPriceProvider serves a fixed bar series filtered to the requested
// range.
type StaticPriceProvider struct {
	Bars []data.Bar
	Err  error

	mu    sync.Mutex
	calls int
}

func (p *StaticPriceProvider) GetBars(ctx context.Context, underlying string, fromDate, toDate time.Time) ([]data.Bar, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()

	if p.Err != nil {
		return nil, p.Err
	}
	var out []data.Bar
	for _, b := range p.Bars {
		if b.Date.Before(fromDate) || b.Date.After(toDate) {
			continue
		}
		out = append(out, b)
	}
	if len(out) == 0 {
		return nil, data.ErrNoData
	}
	return out, nil
}

// Calls reports how many times GetBars was invoked.
func (p *StaticPriceProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// FixedPremium answers every put and call with a constant per-share premium
// and remembers the requests it saw.
type FixedPremium struct {
	Put  float64
	Call float64
	Err  error

	mu       sync.Mutex
	requests []premium.Request
}

func (f *FixedPremium) PutPremium(ctx context.Context, req premium.Request) (float64, error) {
	return f.answer(req, f.Put)
}

func (f *FixedPremium) CallPremium(ctx context.Context, req premium.Request) (float64, error) {
	return f.answer(req, f.Call)
}

func (f *FixedPremium) answer(req premium.Request, v float64) (float64, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.Err != nil {
		return 0, f.Err
	}
	return v, nil
}

// Requests returns a copy of the requests seen so far.
func (f *FixedPremium) Requests() []premium.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]premium.Request(nil), f.requests...)
}
