package premium

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"strings"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/contactkeval/option-wheel/internal/data"
	"github.com/contactkeval/option-wheel/internal/logger"
	"github.com/contactkeval/option-wheel/internal/metrics"
)

var (
	monday = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	friday = time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC)
	req    = Request{
		Ticker:       "AAPL",
		Spot:         100,
		Strike:       95,
		Expiry:       friday,
		Valuation:    monday,
		Volatility:   0.25,
		RiskFreeRate: 0.05,
	}
)

type stubQuoter struct {
	premium float64
	ok      bool
	calls   int
}

func (s *stubQuoter) Quote(ctx context.Context, r Request, isCall bool) (float64, bool) {
	s.calls++
	return s.premium, s.ok
}

type stubQuoteProvider struct {
	quote data.Quote
	err   error
}

func (s stubQuoteProvider) GetOptionQuote(ctx context.Context, underlying string, expiryDate time.Time, optType string, strike float64) (data.Quote, error) {
	return s.quote, s.err
}

func TestChain_PrefersQuote(t *testing.T) {
	q := &stubQuoter{premium: 1.5, ok: true}
	before := promtest.ToFloat64(metrics.PremiumLookups.WithLabelValues("quote"))

	p, err := NewChain(q).PutPremium(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p != 1.5 {
		t.Fatalf("expected quoted premium 1.5, got %f", p)
	}
	if after := promtest.ToFloat64(metrics.PremiumLookups.WithLabelValues("quote")); after != before+1 {
		t.Fatalf("expected quote lookup to be counted")
	}
}

func TestChain_FallsBackToModel(t *testing.T) {
	q := &stubQuoter{ok: false}
	chain := NewChain(q)

	put, _ := chain.PutPremium(context.Background(), req)
	call, _ := chain.CallPremium(context.Background(), req)

	if q.calls != 2 {
		t.Fatalf("expected quoter consulted twice, got %d", q.calls)
	}
	if put != Estimate(req, false) || call != Estimate(req, true) {
		t.Fatalf("expected model prices, got put=%f call=%f", put, call)
	}
	if put <= 0 || call <= 0 {
		t.Fatalf("expected positive model premiums, got put=%f call=%f", put, call)
	}
}

func TestChain_ModelOnly(t *testing.T) {
	p, err := NewChain(nil).CallPremium(context.Background(), req)
	if err != nil || p != Estimate(req, true) {
		t.Fatalf("expected model price, got %f err=%v", p, err)
	}
}

func TestEstimate_AtExpiryIsIntrinsic(t *testing.T) {
	r := req
	r.Valuation = friday
	r.Spot = 90
	if p := Estimate(r, false); p != 5 {
		t.Fatalf("expected put intrinsic 5, got %f", p)
	}
	if p := Estimate(r, true); p != 0 {
		t.Fatalf("expected call intrinsic 0, got %f", p)
	}
}

func TestMarketQuoter(t *testing.T) {
	tests := []struct {
		name     string
		prov     stubQuoteProvider
		expected float64
		ok       bool
	}{
		{"mid of bid ask", stubQuoteProvider{quote: data.Quote{Strike: 95, Bid: 1.2, Ask: 1.4}}, 1.3, true},
		{"lookup error", stubQuoteProvider{err: errors.New("network down")}, 0, false},
		{"zero quote", stubQuoteProvider{quote: data.Quote{Strike: 95}}, 0, false},
		{"negative mid", stubQuoteProvider{quote: data.Quote{Strike: 95, Bid: -1, Ask: 0.5}}, 0, false},
		{"nan mid", stubQuoteProvider{quote: data.Quote{Strike: 95, Bid: math.NaN(), Ask: 1}}, 0, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			p, ok := NewMarketQuoter(test.prov).Quote(context.Background(), req, false)
			if ok != test.ok {
				t.Fatalf("expected ok=%v, got %v", test.ok, ok)
			}
			if ok && math.Abs(p-test.expected) > 1e-12 {
				t.Fatalf("expected %f, got %f", test.expected, p)
			}
		})
	}
}

func TestMarketQuoter_TracesContract(t *testing.T) {
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	logger.SetVerbosity(int(logger.Trace))
	defer func() {
		logger.SetOutput(os.Stderr)
		logger.SetVerbosity(int(logger.Info))
	}()

	prov := stubQuoteProvider{quote: data.Quote{Strike: 95, Bid: 1.2, Ask: 1.4}}
	if _, ok := NewMarketQuoter(prov).Quote(context.Background(), req, false); !ok {
		t.Fatalf("expected a usable quote")
	}
	if !strings.Contains(buf.String(), "O:AAPL240308P00095000") {
		t.Fatalf("expected the contract symbol in the trace log, got %q", buf.String())
	}
}
