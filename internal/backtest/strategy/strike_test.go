package strategy

import (
	"errors"
	"testing"
)

func TestResolveStrike(t *testing.T) {
	tests := []struct {
		rule     string
		open     float64
		pct      float64
		expected string
	}{
		{"", 100, 0.95, "95"},
		{"", 581.39, 0.9, "523.25"},
		{"", 187.15, 0.97, "181.54"},
		{"", 10.01, 0.5, "5.01"},
		{DefaultRule, 100, 1, "100"},
		{"open * pct - 0.5", 100, 0.95, "94.5"},
		{"open * (pct - 0.01)", 200, 0.95, "188"},
		{"open - 5", 100, 0.95, "95"},
	}

	for _, test := range tests {
		actual, err := ResolveStrike(test.rule, test.open, test.pct)
		if err != nil {
			t.Fatalf("Failed to resolve strike: %v", err)
		}
		if actual.String() != test.expected {
			t.Fatalf("For rule {%s} open=%.2f pct=%.2f, expected %s, got %s", test.rule, test.open, test.pct, test.expected, actual)
		}
	}
}

func TestNewStrikeRule_Invalid(t *testing.T) {
	tests := []string{
		"open *",
		"open * delta",
		"open > pct",
		"'abc'",
	}

	for _, expr := range tests {
		if _, err := NewStrikeRule(expr); !errors.Is(err, ErrInvalidStrikeExpression) {
			t.Fatalf("For rule {%s}, expected ErrInvalidStrikeExpression, got %v", expr, err)
		}
	}
}

func TestResolve_NonPositiveStrike(t *testing.T) {
	rule, err := NewStrikeRule("open * pct - 1000")
	if err != nil {
		t.Fatalf("unexpected compile error: %v", err)
	}
	if _, err := rule.Resolve(100, 0.95); !errors.Is(err, ErrNonPositiveStrike) {
		t.Fatalf("expected ErrNonPositiveStrike, got %v", err)
	}
	if _, err := ResolveStrike("", 0.001, 0.5); !errors.Is(err, ErrNonPositiveStrike) {
		t.Fatalf("expected ErrNonPositiveStrike for sub-cent strike, got %v", err)
	}
}

func TestStrikeRule_NilUsesDefault(t *testing.T) {
	var rule *StrikeRule
	strike, err := rule.Resolve(100, 0.95)
	if err != nil || strike.String() != "95" {
		t.Fatalf("expected default rule strike 95, got %s err=%v", strike, err)
	}
	if rule.String() != DefaultRule {
		t.Fatalf("expected %q, got %q", DefaultRule, rule.String())
	}
}
