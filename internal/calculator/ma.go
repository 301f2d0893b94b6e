package calculator

import (
	"errors"
	"fmt"

	"github.com/markcheno/go-talib"
)

// CalculateSMA computes the simple moving average of the last `period` prices.
func CalculateSMA(prices []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(prices) < period {
		return 0, errors.New("not enough data for SMA calculation")
	}
	return Mean(prices[len(prices)-period:]), nil
}

// EMASeries computes an SMA-seeded exponential moving average over closes.
// The first period-1 entries have no history and are left at zero.
// Requires len(closes) >= period.
func EMASeries(closes []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, errors.New("ema period must be positive")
	}
	if len(closes) < period {
		return nil, fmt.Errorf("ema(%d) over %d closes: %w", period, len(closes), ErrInsufficientData)
	}
	return talib.Ema(closes, period), nil
}
