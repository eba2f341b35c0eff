// Package engine runs the options wheel backtest.
//
// A run walks the weekly Friday expiries of the requested range. Each cycle
// enters on the Monday of the expiry week: with no shares it sells a
// cash-secured put, holding one lot it sells a covered call. Friday's close
// decides assignment or call-away. Every event lands in an append-only
// ledger and the run ends with a Summary marked to the last close.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/contactkeval/option-wheel/internal/backtest/scheduler"
	"github.com/contactkeval/option-wheel/internal/backtest/strategy"
	"github.com/contactkeval/option-wheel/internal/data"
	"github.com/contactkeval/option-wheel/internal/logger"
	"github.com/contactkeval/option-wheel/internal/metrics"
	"github.com/contactkeval/option-wheel/internal/premium"
	"github.com/contactkeval/option-wheel/internal/pricing"
)

const (
	DefaultRiskFreeRate = 0.05
	DefaultBufferDays   = 60

	// EmptyScheduleNotice is the Summary notice of a run with no Friday in range.
	EmptyScheduleNotice = "no weekly expiry dates in range"
)

// PremiumProvider prices one leg per share. premium.Chain implements it.
type PremiumProvider interface {
	PutPremium(ctx context.Context, req premium.Request) (float64, error)
	CallPremium(ctx context.Context, req premium.Request) (float64, error)
}

type Engine struct {
	prices     data.PriceProvider
	premiums   PremiumProvider
	rate       float64
	volWindow  int
	bufferDays int
	ruleExpr   string
	rule       *strategy.StrikeRule
}

// Option customises an Engine.
type Option func(*Engine)

func WithRiskFreeRate(r float64) Option { return func(e *Engine) { e.rate = r } }

func WithVolWindow(n int) Option { return func(e *Engine) { e.volWindow = n } }

// WithBufferDays sets how many calendar days of history before Start are
// fetched for the volatility lookback.
func WithBufferDays(n int) Option { return func(e *Engine) { e.bufferDays = n } }

// WithStrikeRule replaces the percentage-of-open strike with a govaluate
// expression over open and pct.
func WithStrikeRule(expr string) Option { return func(e *Engine) { e.ruleExpr = expr } }

// NewEngine builds an engine. It fails only on a strike rule that does not
// compile.
func NewEngine(prices data.PriceProvider, premiums PremiumProvider, opts ...Option) (*Engine, error) {
	e := &Engine{
		prices:     prices,
		premiums:   premiums,
		rate:       DefaultRiskFreeRate,
		volWindow:  pricing.DefaultVolWindow,
		bufferDays: DefaultBufferDays,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.bufferDays < 0 {
		e.bufferDays = 0
	}

	rule, err := strategy.NewStrikeRule(e.ruleExpr)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	e.rule = rule
	return e, nil
}

// Run executes one backtest. Only configuration and data-unavailable
// errors are expected; any other error is an unexpected fault and the
// partial run is discarded.
func (e *Engine) Run(ctx context.Context, cfg SimulationConfig) (res *Result, err error) {
	began := time.Now()
	defer func() {
		metrics.BacktestDuration.Observe(time.Since(began).Seconds())
		metrics.BacktestsTotal.WithLabelValues(outcome(res, err)).Inc()
	}()

	if err := cfg.Validate(); err != nil {
		logger.Errorf("event=backtest_rejected err=%v", err)
		return nil, err
	}

	ticker := strings.ToUpper(strings.TrimSpace(cfg.Ticker))
	start, end := scheduler.Day(cfg.Start), scheduler.Day(cfg.End)
	historyStart := start.AddDate(0, 0, -e.bufferDays)

	logger.Infof("event=backtest_start ticker=%s strike_pct=%.4f start=%s end=%s capital=%s rule=%q",
		ticker, cfg.StrikePct, data.DateKey(start), data.DateKey(end), cfg.StartingCapital, e.rule)

	bars, err := e.fetchBars(ctx, ticker, historyStart, end)
	if err != nil {
		logger.Errorf("event=backtest_no_data ticker=%s err=%v", ticker, err)
		return nil, err
	}
	byDate := data.BarsByDate(bars)

	fridays := scheduler.WeeklyFridays(start, end)
	if len(fridays) == 0 {
		logger.Infof("event=backtest_empty_schedule ticker=%s start=%s end=%s", ticker, data.DateKey(start), data.DateKey(end))
		return &Result{
			Ledger:  []Action{},
			Summary: Summary{Notice: EmptyScheduleNotice, StartingCapital: cfg.StartingCapital},
		}, nil
	}

	st := newRunState(cfg.StartingCapital)
	for _, friday := range fridays {
		monday := scheduler.EntryDate(friday)
		if monday.Before(historyStart) || friday.After(end) {
			continue
		}
		monBar, okMon := byDate[data.DateKey(monday)]
		friBar, okFri := byDate[data.DateKey(friday)]
		if !okMon || !okFri {
			logger.Tracef("event=cycle_skipped friday=%s monday_bar=%v friday_bar=%v", data.DateKey(friday), okMon, okFri)
			continue
		}

		in, err := e.prepareCycle(ctx, ticker, cfg.StrikePct, st.portfolio.State(), monday, friday, monBar, friBar, closesThrough(bars, monday))
		if errors.Is(err, strategy.ErrNonPositiveStrike) {
			// a sub-cent open leaves nothing to sell this week
			logger.Tracef("event=cycle_skipped friday=%s reason=non_positive_strike err=%v", data.DateKey(friday), err)
			continue
		}
		if err != nil {
			return nil, err
		}

		for _, a := range stepCycle(st, in) {
			metrics.LedgerActions.WithLabelValues(a.Kind.MetricLabel()).Inc()
			logger.Debugf("event=action date=%s kind=%q price=%s strike=%s premium=%s shares=%d cash=%s value=%s",
				data.DateKey(a.Date), a.Kind, a.StockPrice, a.Strike, a.Premium, a.SharesHeld, a.Cash, a.PortfolioValue)
		}
	}

	lastClose := decimal.NewFromFloat(bars[len(bars)-1].Close)
	summary := st.summarize(cfg.StartingCapital, lastClose)
	logger.Infof("event=backtest_done ticker=%s actions=%d ending=%s return_pct=%s",
		ticker, len(st.ledger), summary.EndingBalance.StringFixed(2), summary.TotalReturnPct.StringFixed(2))

	return &Result{Ledger: st.ledger, Summary: summary}, nil
}

// fetchBars returns the usable history, date-normalised and ascending.
func (e *Engine) fetchBars(ctx context.Context, ticker string, from, to time.Time) ([]data.Bar, error) {
	raw, err := e.prices.GetBars(ctx, ticker, from, to)
	if err != nil {
		return nil, fmt.Errorf("%w for %s from %s to %s: %w", ErrDataUnavailable, ticker, data.DateKey(from), data.DateKey(to), err)
	}

	bars := make([]data.Bar, 0, len(raw))
	for _, b := range raw {
		if !validPrice(b.Open) || !validPrice(b.Close) {
			continue
		}
		b.Date = scheduler.Day(b.Date)
		bars = append(bars, b)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w for %s from %s to %s: %w", ErrDataUnavailable, ticker, data.DateKey(from), data.DateKey(to), data.ErrNoData)
	}
	data.SortBars(bars)
	return bars, nil
}

func (e *Engine) prepareCycle(
	ctx context.Context,
	ticker string,
	pct float64,
	state State,
	monday, friday time.Time,
	monBar, friBar data.Bar,
	closes []float64,
) (cycleInput, error) {

	vol := pricing.HistoricalVolatility(closes, e.volWindow)
	strike, err := e.rule.Resolve(monBar.Open, pct)
	if err != nil {
		return cycleInput{}, fmt.Errorf("strike for cycle %s: %w", data.DateKey(friday), err)
	}

	req := premium.Request{
		Ticker:       ticker,
		Spot:         monBar.Open,
		Strike:       strike.InexactFloat64(),
		Expiry:       friday,
		Valuation:    monday,
		Volatility:   vol,
		RiskFreeRate: e.rate,
	}

	var perShare float64
	if state == SeekingPut {
		perShare, err = e.premiums.PutPremium(ctx, req)
	} else {
		perShare, err = e.premiums.CallPremium(ctx, req)
	}
	if err != nil {
		return cycleInput{}, fmt.Errorf("premium lookup for cycle %s: %w", data.DateKey(friday), err)
	}
	if math.IsNaN(perShare) || math.IsInf(perShare, 0) || perShare < 0 {
		return cycleInput{}, fmt.Errorf("premium lookup for cycle %s: unusable premium %v", data.DateKey(friday), perShare)
	}

	logger.Tracef("event=cycle_prepared friday=%s state=%s open=%.2f close=%.2f vol=%.4f strike=%s premium=%.4f",
		data.DateKey(friday), state, monBar.Open, friBar.Close, vol, strike, perShare)

	return cycleInput{
		Monday:  monday,
		Friday:  friday,
		Open:    decimal.NewFromFloat(monBar.Open),
		Close:   decimal.NewFromFloat(friBar.Close),
		Strike:  strike,
		Premium: decimal.NewFromFloat(perShare),
	}, nil
}

// closesThrough returns the closes of all bars dated on or before day.
// bars must be ascending.
func closesThrough(bars []data.Bar, day time.Time) []float64 {
	n := sort.Search(len(bars), func(i int) bool { return bars[i].Date.After(day) })
	closes := make([]float64, n)
	for i := 0; i < n; i++ {
		closes[i] = bars[i].Close
	}
	return closes
}

func validPrice(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func outcome(res *Result, err error) string {
	switch {
	case err == nil && res != nil && !res.Summary.HasMetrics():
		return "empty_schedule"
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidConfig):
		return "invalid_config"
	case errors.Is(err, ErrDataUnavailable):
		return "no_data"
	}
	return "error"
}
