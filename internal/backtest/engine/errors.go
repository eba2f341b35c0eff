package engine

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidConfig marks configuration errors caught before any work.
	ErrInvalidConfig = errors.New("invalid backtest configuration")
	// ErrDataUnavailable marks runs aborted because no price history exists.
	ErrDataUnavailable = errors.New("price data unavailable")
)

// ValidationError describes a single rejected configuration field.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got %v)", e.Field, e.Message, e.Value)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidConfig
}

// Validate checks cfg. End equal to Start is accepted; such a range simply
// holds at most one Friday.
func (cfg SimulationConfig) Validate() error {
	if strings.TrimSpace(cfg.Ticker) == "" {
		return &ValidationError{Field: "ticker", Value: cfg.Ticker, Message: "must not be empty"}
	}
	if !(cfg.StrikePct > 0 && cfg.StrikePct <= 1) {
		return &ValidationError{Field: "strike_pct", Value: cfg.StrikePct, Message: "must be in (0, 1]"}
	}
	if !cfg.StartingCapital.IsPositive() {
		return &ValidationError{Field: "starting_capital", Value: cfg.StartingCapital, Message: "must be positive"}
	}
	if cfg.Start.IsZero() || cfg.End.IsZero() {
		return &ValidationError{Field: "start", Value: cfg.Start, Message: "start and end dates are required"}
	}
	if cfg.End.Before(cfg.Start) {
		return &ValidationError{Field: "end", Value: cfg.End.Format("2006-01-02"), Message: "must not be before start"}
	}
	return nil
}
