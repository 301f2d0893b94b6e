package calculator

import (
	"errors"
	"fmt"

	"github.com/markcheno/go-talib"
)

// ErrInsufficientData is returned when a series is too short for the requested window.
var ErrInsufficientData = errors.New("insufficient data")

// RSISeries computes the Wilder-smoothed RSI over closes.
// The first `period` entries have no history and are left at zero; callers drop them.
// Requires len(closes) > period.
func RSISeries(closes []float64, period int) ([]float64, error) {
	if period < 2 {
		return nil, errors.New("rsi period must be at least 2")
	}
	if len(closes) <= period {
		return nil, fmt.Errorf("rsi(%d) over %d closes: %w", period, len(closes), ErrInsufficientData)
	}
	return talib.Rsi(closes, period), nil
}
