package repository

import (
	"fmt"
	"time"
)

// Period is a lookback window for historical data.
type Period string

const (
	Period1mo Period = "1mo"
	Period3mo Period = "3mo"
	Period6mo Period = "6mo"
	Period1y  Period = "1y"
	Period2y  Period = "2y"
	Period5y  Period = "5y"
	Period10y Period = "10y"
	PeriodMax Period = "max"
)

// IsValidPeriod returns true if p is a supported period.
func IsValidPeriod(p Period) bool {
	switch p {
	case Period1mo, Period3mo, Period6mo, Period1y, Period2y, Period5y, Period10y, PeriodMax:
		return true
	default:
		return false
	}
}

// DefaultPeriod returns the default lookback.
func DefaultPeriod() Period { return Period10y }

// ParsePeriod converts a raw string to a Period, defaulting when empty.
func ParsePeriod(s string) (Period, error) {
	if s == "" {
		return DefaultPeriod(), nil
	}
	p := Period(s)
	if !IsValidPeriod(p) {
		return "", fmt.Errorf("unsupported period: %s", s)
	}
	return p, nil
}

// Start returns the first day covered by p when looking back from now.
// PeriodMax returns the zero time.
func (p Period) Start(now time.Time) time.Time {
	switch p {
	case Period1mo:
		return now.AddDate(0, -1, 0)
	case Period3mo:
		return now.AddDate(0, -3, 0)
	case Period6mo:
		return now.AddDate(0, -6, 0)
	case Period1y:
		return now.AddDate(-1, 0, 0)
	case Period2y:
		return now.AddDate(-2, 0, 0)
	case Period5y:
		return now.AddDate(-5, 0, 0)
	case Period10y:
		return now.AddDate(-10, 0, 0)
	default:
		return time.Time{}
	}
}
