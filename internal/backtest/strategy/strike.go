// Package strategy resolves the strike of each weekly wheel leg.
//
// The default rule is a fixed fraction of the Monday open. A strike rule
// expression (govaluate syntax over the variables open and pct) may replace
// it, e.g. "open * pct - 0.5" or "open * (pct - 0.01)". Either way the
// result is rounded to cents, half away from zero, on the exact decimal
// product. This deliberately differs from rounding the binary float, so
// open 100.10 at pct 0.95 gives 95.10 rather than 95.09.
package strategy

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/Knetic/govaluate"
	"github.com/shopspring/decimal"

	"github.com/contactkeval/option-wheel/internal/logger"
)

// Typed errors allow callers and tests to detect failure categories
// without string matching.
var (
	ErrInvalidStrikeExpression = errors.New("invalid strike expression")
	ErrNonPositiveStrike       = errors.New("strike must be positive")
)

// DefaultRule is the percentage-of-open rule.
const DefaultRule = "open * pct"

// StrikeRule is a compiled strike expression. The zero value and a nil
// *StrikeRule both apply DefaultRule.
type StrikeRule struct {
	source string
	expr   *govaluate.EvaluableExpression
}

// NewStrikeRule compiles expr. An empty expression selects DefaultRule.
// The expression is probed once with representative inputs so a run never
// discovers a broken rule mid-way.
func NewStrikeRule(expr string) (*StrikeRule, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" || expr == DefaultRule {
		return &StrikeRule{source: DefaultRule}, nil
	}

	compiled, err := govaluate.NewEvaluableExpression(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidStrikeExpression, expr, err)
	}
	for _, v := range compiled.Vars() {
		if v != "open" && v != "pct" {
			return nil, fmt.Errorf("%w: %q: unknown variable %q", ErrInvalidStrikeExpression, expr, v)
		}
	}

	rule := &StrikeRule{source: expr, expr: compiled}
	if _, err := rule.evaluate(100, 0.95); err != nil {
		return nil, err
	}
	logger.Debugf("event=strike_rule_compiled expr=%q", expr)
	return rule, nil
}

// String returns the rule source.
func (r *StrikeRule) String() string {
	if r == nil || r.source == "" {
		return DefaultRule
	}
	return r.source
}

// Resolve returns the strike for a leg entered at open with fraction pct.
func (r *StrikeRule) Resolve(open, pct float64) (decimal.Decimal, error) {
	if r == nil || r.expr == nil {
		strike := decimal.NewFromFloat(open).Mul(decimal.NewFromFloat(pct)).Round(2)
		if !strike.IsPositive() {
			return decimal.Zero, fmt.Errorf("%w: open=%.2f pct=%.4f", ErrNonPositiveStrike, open, pct)
		}
		return strike, nil
	}

	v, err := r.evaluate(open, pct)
	if err != nil {
		return decimal.Zero, err
	}
	strike := decimal.NewFromFloat(v).Round(2)
	if !strike.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %q gave %.4f for open=%.2f", ErrNonPositiveStrike, r.source, v, open)
	}
	return strike, nil
}

func (r *StrikeRule) evaluate(open, pct float64) (float64, error) {
	result, err := r.expr.Evaluate(map[string]interface{}{
		"open": open,
		"pct":  pct,
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrInvalidStrikeExpression, r.source, err)
	}

	f, ok := result.(float64)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %q evaluated to %v", ErrInvalidStrikeExpression, r.source, result)
	}
	return f, nil
}

// ResolveStrike compiles rule and resolves a single strike. Callers that
// resolve many strikes should compile once with NewStrikeRule.
func ResolveStrike(rule string, open, pct float64) (decimal.Decimal, error) {
	r, err := NewStrikeRule(rule)
	if err != nil {
		return decimal.Zero, err
	}
	return r.Resolve(open, pct)
}
