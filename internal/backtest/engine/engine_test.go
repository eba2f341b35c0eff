package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/contactkeval/option-wheel/internal/backtest/strategy"
	"github.com/contactkeval/option-wheel/internal/data"
	"github.com/contactkeval/option-wheel/internal/premium"
	"github.com/contactkeval/option-wheel/internal/testutil"
)

var (
	monday1 = testutil.Date("2024-03-04")
	friday1 = testutil.Date("2024-03-08")
	monday2 = testutil.Date("2024-03-11")
	friday2 = testutil.Date("2024-03-15")
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func config(capital string, end time.Time) SimulationConfig {
	return SimulationConfig{
		Ticker:          "TEST",
		StrikePct:       0.95,
		Start:           monday1,
		End:             end,
		StartingCapital: dec(capital),
	}
}

func newTestEngine(t *testing.T, bars []data.Bar, prem PremiumProvider, opts ...Option) *Engine {
	t.Helper()
	e, err := NewEngine(&testutil.StaticPriceProvider{Bars: bars}, prem, opts...)
	if err != nil {
		t.Fatalf("failed to build engine: %v", err)
	}
	return e
}

func assertDec(t *testing.T, what string, actual decimal.Decimal, expected string) {
	t.Helper()
	if !actual.Equal(dec(expected)) {
		t.Fatalf("%s: expected %s, got %s", what, expected, actual)
	}
}

func TestRun_AssignedThenCalledAway(t *testing.T) {
	bars := testutil.Weeks(monday1, [2]float64{100, 90}, [2]float64{92, 98})
	e := newTestEngine(t, bars, &testutil.FixedPremium{Put: 1.5, Call: 1.0})

	res, err := e.Run(context.Background(), config("100000", friday2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := []struct {
		date   time.Time
		kind   ActionKind
		price  string
		strike string
		prem   string
		shares int
		cash   string
		value  string
	}{
		{monday1, SellPut, "100", "95", "150", 0, "100150", "100150"},
		{friday1, Assigned, "90", "95", "0", 100, "90650", "99650"},
		{monday2, SellCall, "92", "87.4", "100", 100, "90750", "99950"},
		{friday2, CalledAway, "98", "87.4", "0", 0, "99490", "99490"},
	}

	if len(res.Ledger) != len(expected) {
		t.Fatalf("expected %d actions, got %d: %+v", len(expected), len(res.Ledger), res.Ledger)
	}
	for i, exp := range expected {
		a := res.Ledger[i]
		if !a.Date.Equal(exp.date) || a.Kind != exp.kind || a.SharesHeld != exp.shares {
			t.Fatalf("action %d: expected %s %s shares=%d, got %s %s shares=%d",
				i, exp.date.Format(data.DateLayout), exp.kind, exp.shares, a.Date.Format(data.DateLayout), a.Kind, a.SharesHeld)
		}
		assertDec(t, "stock price", a.StockPrice, exp.price)
		assertDec(t, "strike", a.Strike, exp.strike)
		assertDec(t, "premium", a.Premium, exp.prem)
		assertDec(t, "cash", a.Cash, exp.cash)
		assertDec(t, "portfolio value", a.PortfolioValue, exp.value)
	}

	s := res.Summary
	if !s.HasMetrics() {
		t.Fatalf("unexpected notice %q", s.Notice)
	}
	if s.PutsSold != 1 || s.CallsSold != 1 || s.Assignments != 1 || s.CallAways != 1 || s.SkippedAssignments != 0 {
		t.Fatalf("unexpected counters %+v", s)
	}
	assertDec(t, "ending balance", s.EndingBalance, "99490")
	assertDec(t, "cash at end", s.CashAtEnd, "99490")
	assertDec(t, "total return", s.TotalReturnPct, "-0.51")
	assertDec(t, "premium collected", s.PremiumCollected, "250")
	assertDec(t, "last close", s.LastClose, "98")
	if s.SharesHeldAtEnd != 0 {
		t.Fatalf("expected no shares at end, got %d", s.SharesHeldAtEnd)
	}
}

func TestRun_PutExpiresWorthless(t *testing.T) {
	e := newTestEngine(t, testutil.Week(monday1, 100, 100), &testutil.FixedPremium{Put: 1.5})

	res, err := e.Run(context.Background(), config("100000", friday1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Ledger) != 1 || res.Ledger[0].Kind != SellPut {
		t.Fatalf("expected a single Sell Put, got %+v", res.Ledger)
	}
	assertDec(t, "cash after sell put", res.Ledger[0].Cash, "100150")
	if res.Summary.SharesHeldAtEnd != 0 || res.Summary.Assignments != 0 {
		t.Fatalf("expected no assignment, got %+v", res.Summary)
	}
	assertDec(t, "ending balance", res.Summary.EndingBalance, "100150")
	assertDec(t, "total return", res.Summary.TotalReturnPct, "0.15")
}

func TestRun_HoldingMarkedToLastClose(t *testing.T) {
	// assigned in week one, call not exercised in week two
	bars := testutil.Weeks(monday1, [2]float64{100, 90}, [2]float64{92, 85})
	e := newTestEngine(t, bars, &testutil.FixedPremium{Put: 1.5, Call: 1.0})

	res, err := e.Run(context.Background(), config("100000", friday2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Ledger) != 3 || res.Ledger[2].Kind != SellCall {
		t.Fatalf("unexpected ledger %+v", res.Ledger)
	}
	if res.Summary.SharesHeldAtEnd != ContractSize {
		t.Fatalf("expected to hold shares at end, got %d", res.Summary.SharesHeldAtEnd)
	}
	// 90750 cash + 100 * 85
	assertDec(t, "ending balance", res.Summary.EndingBalance, "99250")
}

func TestRun_InsufficientCashSkipsAssignment(t *testing.T) {
	bars := testutil.Weeks(monday1, [2]float64{100, 90}, [2]float64{100, 99})
	e := newTestEngine(t, bars, &testutil.FixedPremium{Put: 1.5})

	res, err := e.Run(context.Background(), config("5000", friday2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	kinds := []ActionKind{SellPut, AssignedSkipped, SellPut}
	if len(res.Ledger) != len(kinds) {
		t.Fatalf("expected %d actions, got %+v", len(kinds), res.Ledger)
	}
	for i, k := range kinds {
		if res.Ledger[i].Kind != k {
			t.Fatalf("action %d: expected %s, got %s", i, k, res.Ledger[i].Kind)
		}
	}
	skipped := res.Ledger[1]
	if skipped.SharesHeld != 0 || !skipped.Date.Equal(friday1) {
		t.Fatalf("unexpected skipped record %+v", skipped)
	}
	assertDec(t, "cash after skipped assignment", skipped.Cash, "5150")
	if res.Summary.SkippedAssignments != 1 || res.Summary.Assignments != 0 || res.Summary.PutsSold != 2 {
		t.Fatalf("unexpected counters %+v", res.Summary)
	}
}

func TestRun_EmptySchedule(t *testing.T) {
	e := newTestEngine(t, testutil.Week(monday1, 100, 100), &testutil.FixedPremium{Put: 1.5})

	cfg := config("100000", monday1)
	res, err := e.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("expected empty-schedule condition, got error %v", err)
	}
	if res.Summary.HasMetrics() || res.Summary.Notice != EmptyScheduleNotice {
		t.Fatalf("expected notice %q, got %+v", EmptyScheduleNotice, res.Summary)
	}
	if res.Ledger == nil || len(res.Ledger) != 0 {
		t.Fatalf("expected empty non-nil ledger, got %+v", res.Ledger)
	}
	if curve := BuildEquityCurve(res.Ledger, cfg.StartingCapital); curve != nil {
		t.Fatalf("expected nil equity curve, got %+v", curve)
	}
}

func TestRun_DataUnavailable(t *testing.T) {
	providers := []struct {
		name string
		prov *testutil.StaticPriceProvider
	}{
		{"provider error", &testutil.StaticPriceProvider{Err: errors.New("upstream 500")}},
		{"no bars in range", &testutil.StaticPriceProvider{Bars: testutil.Week(testutil.Date("2020-01-06"), 1, 1)}},
	}

	for _, p := range providers {
		t.Run(p.name, func(t *testing.T) {
			e, err := NewEngine(p.prov, &testutil.FixedPremium{Put: 1})
			if err != nil {
				t.Fatalf("failed to build engine: %v", err)
			}
			res, err := e.Run(context.Background(), config("100000", friday2))
			if !errors.Is(err, ErrDataUnavailable) {
				t.Fatalf("expected ErrDataUnavailable, got %v", err)
			}
			if res != nil {
				t.Fatalf("expected no result, got %+v", res)
			}
		})
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	valid := config("100000", friday2)
	tests := []struct {
		name   string
		mutate func(*SimulationConfig)
		field  string
	}{
		{"empty ticker", func(c *SimulationConfig) { c.Ticker = "  " }, "ticker"},
		{"zero pct", func(c *SimulationConfig) { c.StrikePct = 0 }, "strike_pct"},
		{"pct above one", func(c *SimulationConfig) { c.StrikePct = 1.01 }, "strike_pct"},
		{"zero capital", func(c *SimulationConfig) { c.StartingCapital = decimal.Zero }, "starting_capital"},
		{"negative capital", func(c *SimulationConfig) { c.StartingCapital = dec("-1") }, "starting_capital"},
		{"end before start", func(c *SimulationConfig) { c.End = c.Start.AddDate(0, 0, -1) }, "end"},
		{"missing dates", func(c *SimulationConfig) { c.Start = time.Time{} }, "start"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			prov := &testutil.StaticPriceProvider{Bars: testutil.Week(monday1, 100, 100)}
			e, _ := NewEngine(prov, &testutil.FixedPremium{})

			cfg := valid
			test.mutate(&cfg)
			_, err := e.Run(context.Background(), cfg)

			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
			var verr *ValidationError
			if !errors.As(err, &verr) || verr.Field != test.field {
				t.Fatalf("expected validation error on %s, got %v", test.field, err)
			}
			if prov.Calls() != 0 {
				t.Fatalf("expected no fetch before validation, got %d calls", prov.Calls())
			}
		})
	}
}

func TestRun_SkipsMissingTradingDays(t *testing.T) {
	bars := testutil.Weeks(monday1, [2]float64{100, 100}, [2]float64{100, 100}, [2]float64{100, 100})
	// drop the second Monday and the third Friday
	var filtered []data.Bar
	for _, b := range bars {
		if b.Date.Equal(monday2) || b.Date.Equal(testutil.Date("2024-03-22")) {
			continue
		}
		filtered = append(filtered, b)
	}
	e := newTestEngine(t, filtered, &testutil.FixedPremium{Put: 1})

	res, err := e.Run(context.Background(), config("100000", testutil.Date("2024-03-22")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Ledger) != 1 || !res.Ledger[0].Date.Equal(monday1) {
		t.Fatalf("expected only the first cycle to run, got %+v", res.Ledger)
	}
}

func TestRun_SubCentOpenSkipsCycle(t *testing.T) {
	// week two opens below half a cent, so its strike rounds to zero
	bars := testutil.Weeks(monday1, [2]float64{100, 101}, [2]float64{0.004, 0.004})
	prem := &testutil.FixedPremium{Put: 1.5}
	e := newTestEngine(t, bars, prem)

	res, err := e.Run(context.Background(), config("100000", friday2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Ledger) != 1 || res.Ledger[0].Kind != SellPut || !res.Ledger[0].Date.Equal(monday1) {
		t.Fatalf("expected only the week one Sell Put, got %+v", res.Ledger)
	}
	if n := len(prem.Requests()); n != 1 {
		t.Fatalf("expected one premium lookup, got %d", n)
	}
	if res.Summary.PutsSold != 1 || res.Summary.SharesHeldAtEnd != 0 {
		t.Fatalf("unexpected summary %+v", res.Summary)
	}
	assertDec(t, "ending balance", res.Summary.EndingBalance, "100150")
}

func TestRun_PremiumRequest(t *testing.T) {
	prem := &testutil.FixedPremium{Put: 1.5}
	e := newTestEngine(t, testutil.Week(monday1, 100, 100), prem, WithRiskFreeRate(0.03))

	if _, err := e.Run(context.Background(), config("100000", friday1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reqs := prem.Requests()
	if len(reqs) != 1 {
		t.Fatalf("expected one premium request, got %d", len(reqs))
	}
	expected := premium.Request{
		Ticker:       "TEST",
		Spot:         100,
		Strike:       95,
		Expiry:       friday1,
		Valuation:    monday1,
		Volatility:   0.20, // a single close on or before Monday
		RiskFreeRate: 0.03,
	}
	got := reqs[0]
	if got.Ticker != expected.Ticker || got.Spot != expected.Spot || got.Strike != expected.Strike ||
		!got.Expiry.Equal(expected.Expiry) || !got.Valuation.Equal(expected.Valuation) ||
		got.Volatility != expected.Volatility || got.RiskFreeRate != expected.RiskFreeRate {
		t.Fatalf("expected request %+v, got %+v", expected, reqs[0])
	}
}

func TestRun_PremiumFaultAborts(t *testing.T) {
	e := newTestEngine(t, testutil.Week(monday1, 100, 100), &testutil.FixedPremium{Err: errors.New("boom")})

	res, err := e.Run(context.Background(), config("100000", friday1))
	if err == nil || res != nil {
		t.Fatalf("expected an aborted run, got res=%+v err=%v", res, err)
	}
	if errors.Is(err, ErrInvalidConfig) || errors.Is(err, ErrDataUnavailable) {
		t.Fatalf("expected an unexpected fault, got %v", err)
	}
}

func TestRun_StrikeRule(t *testing.T) {
	e := newTestEngine(t, testutil.Week(monday1, 100, 90), &testutil.FixedPremium{Put: 1}, WithStrikeRule("open * pct - 5"))

	res, err := e.Run(context.Background(), config("100000", friday1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// strike 90 and close 90: not below strike, no assignment
	if len(res.Ledger) != 1 {
		t.Fatalf("expected a single action, got %+v", res.Ledger)
	}
	assertDec(t, "strike", res.Ledger[0].Strike, "90")
}

func TestNewEngine_InvalidStrikeRule(t *testing.T) {
	_, err := NewEngine(&testutil.StaticPriceProvider{}, &testutil.FixedPremium{}, WithStrikeRule("open * spot"))
	if !errors.Is(err, ErrInvalidConfig) || !errors.Is(err, strategy.ErrInvalidStrikeExpression) {
		t.Fatalf("expected invalid strike expression config error, got %v", err)
	}
}

func TestRun_Idempotent(t *testing.T) {
	prov := data.NewSyntheticProvider(11)
	e, err := NewEngine(prov, premium.NewChain(nil))
	if err != nil {
		t.Fatalf("failed to build engine: %v", err)
	}
	cfg := SimulationConfig{
		Ticker:          "SPY",
		StrikePct:       0.97,
		Start:           testutil.Date("2024-01-01"),
		End:             testutil.Date("2024-06-30"),
		StartingCapital: dec("50000"),
	}

	first, err := e.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := e.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if !bytes.Equal(a, b) {
		t.Fatalf("expected identical results for identical inputs")
	}
	if len(first.Ledger) == 0 {
		t.Fatalf("expected a non-empty ledger over six months")
	}
}

func TestLedgerJSON(t *testing.T) {
	a := Action{Date: friday1, Kind: AssignedSkipped, StockPrice: dec("90"), Strike: dec("95")}
	b, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if !bytes.Contains(b, []byte(`"action":"Assigned (insufficient cash - skipped)"`)) {
		t.Fatalf("unexpected action encoding %s", b)
	}

	var back Action
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if back.Kind != AssignedSkipped || !back.Strike.Equal(a.Strike) {
		t.Fatalf("round trip mismatch: %+v", back)
	}

	var k ActionKind
	if err := k.UnmarshalText([]byte("Bought")); err == nil {
		t.Fatalf("expected error for unknown action kind")
	}
}
