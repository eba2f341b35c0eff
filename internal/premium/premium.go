// Package premium estimates the per-share premium of a weekly option leg.
//
// Lookup is a two-stage chain: a Quoter that may decline to answer (no live
// market, missing expiry or strike, unusable quote) followed by the
// Black-Scholes model, which always answers.
package premium

import (
	"context"
	"math"
	"time"

	"github.com/contactkeval/option-wheel/internal/data"
	"github.com/contactkeval/option-wheel/internal/logger"
	"github.com/contactkeval/option-wheel/internal/metrics"
	"github.com/contactkeval/option-wheel/internal/pricing"
)

// Request carries everything needed to price one leg.
type Request struct {
	Ticker       string
	Spot         float64
	Strike       float64
	Expiry       time.Time
	Valuation    time.Time
	Volatility   float64
	RiskFreeRate float64
}

// Quoter is the first stage. ok=false means "unavailable", never an error.
type Quoter interface {
	Quote(ctx context.Context, req Request, isCall bool) (premium float64, ok bool)
}

// Chain implements the Premium Provider consumed by the backtest engine.
type Chain struct {
	quoter Quoter
}

// NewChain builds a chain. A nil quoter means model-only pricing.
func NewChain(quoter Quoter) *Chain {
	return &Chain{quoter: quoter}
}

// PutPremium returns the per-share put premium.
func (c *Chain) PutPremium(ctx context.Context, req Request) (float64, error) {
	return c.lookup(ctx, req, false), nil
}

// CallPremium returns the per-share call premium.
func (c *Chain) CallPremium(ctx context.Context, req Request) (float64, error) {
	return c.lookup(ctx, req, true), nil
}

func (c *Chain) lookup(ctx context.Context, req Request, isCall bool) float64 {
	if c.quoter != nil {
		if p, ok := c.quoter.Quote(ctx, req, isCall); ok {
			metrics.PremiumLookups.WithLabelValues("quote").Inc()
			return p
		}
	}
	metrics.PremiumLookups.WithLabelValues("model").Inc()
	return Estimate(req, isCall)
}

// Estimate prices the leg with Black-Scholes using T = calendar days / 365.
func Estimate(req Request, isCall bool) float64 {
	T := pricing.YearFraction(req.Valuation, req.Expiry)
	return pricing.BlackScholesPrice(isCall, req.Spot, req.Strike, T, req.RiskFreeRate, req.Volatility)
}

// MarketQuoter adapts a data.QuoteProvider to the Quoter stage, using the
// bid/ask midpoint of the nearest listed strike.
type MarketQuoter struct {
	prov data.QuoteProvider
}

func NewMarketQuoter(prov data.QuoteProvider) *MarketQuoter {
	return &MarketQuoter{prov: prov}
}

func (q *MarketQuoter) Quote(ctx context.Context, req Request, isCall bool) (float64, bool) {
	optType := "put"
	if isCall {
		optType = "call"
	}

	quote, err := q.prov.GetOptionQuote(ctx, req.Ticker, req.Expiry, optType, req.Strike)
	if err != nil {
		logger.Debugf("live %s quote unavailable for %s %s K=%.2f: %v",
			optType, req.Ticker, req.Expiry.Format(data.DateLayout), req.Strike, err)
		return 0, false
	}

	mid := quote.Mid()
	if math.IsNaN(mid) || mid <= 0 {
		logger.Debugf("live %s quote unusable for %s K=%.2f: bid=%.2f ask=%.2f",
			optType, req.Ticker, quote.Strike, quote.Bid, quote.Ask)
		return 0, false
	}
	logger.Tracef("event=live_quote contract=%s bid=%.2f ask=%.2f mid=%.4f",
		data.OptionSymbolFromParts(req.Ticker, req.Expiry, optType, quote.Strike), quote.Bid, quote.Ask, mid)
	return mid, true
}
