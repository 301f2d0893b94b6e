package calculator

import (
	"fmt"
	"math"

	"RSISentinel/internal/model"
)

// BuildSeries computes RSI (and EMA when emaPeriod > 0) over bars and returns the
// aligned series with leading rows removed.
//
// Exactly max(rsiPeriod, emaPeriod-1) leading rows are dropped (rsiPeriod when EMA
// is disabled), so the result has len(bars)-drop rows re-indexed from zero.
func BuildSeries(symbol, timeframe string, bars []model.OHLCV, rsiPeriod, emaPeriod int) (*model.Series, error) {
	drop := LeadingRows(rsiPeriod, emaPeriod)
	if len(bars) <= drop {
		return nil, fmt.Errorf("build series %s %s: %d bars, need more than %d: %w",
			symbol, timeframe, len(bars), drop, ErrInsufficientData)
	}

	closes := extractCloses(bars)
	rsi, err := RSISeries(closes, rsiPeriod)
	if err != nil {
		return nil, err
	}

	s := &model.Series{
		Symbol:    symbol,
		Timeframe: timeframe,
		Bars:      append([]model.OHLCV(nil), bars[drop:]...),
		RSI:       append([]float64(nil), rsi[drop:]...),
	}
	if emaPeriod > 0 {
		ema, err := EMASeries(closes, emaPeriod)
		if err != nil {
			return nil, err
		}
		s.EMA = append([]float64(nil), ema[drop:]...)
	}
	return s, nil
}

// LeadingRows is the number of rows BuildSeries drops for the given periods.
func LeadingRows(rsiPeriod, emaPeriod int) int {
	drop := rsiPeriod
	if emaPeriod-1 > drop {
		drop = emaPeriod - 1
	}
	return drop
}

// ValidateSeries rejects series that must not reach the detectors.
func ValidateSeries(s *model.Series) error {
	n := len(s.Bars)
	if len(s.RSI) != n {
		return fmt.Errorf("%w: %d bars but %d rsi values", model.ErrInvalidSeries, n, len(s.RSI))
	}
	if s.EMA != nil && len(s.EMA) != n {
		return fmt.Errorf("%w: %d bars but %d ema values", model.ErrInvalidSeries, n, len(s.EMA))
	}
	for i, b := range s.Bars {
		if !finite(b.Open, b.High, b.Low, b.Close, b.Volume) {
			return fmt.Errorf("%w: non-finite candle at row %d", model.ErrInvalidSeries, i)
		}
		if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
			return fmt.Errorf("%w: non-positive price at row %d", model.ErrInvalidSeries, i)
		}
		if i > 0 && !b.Time.After(s.Bars[i-1].Time) {
			return fmt.Errorf("%w: timestamps not increasing at row %d", model.ErrInvalidSeries, i)
		}
		r := s.RSI[i]
		if !finite(r) || r < 0 || r > 100 {
			return fmt.Errorf("%w: rsi %.4f out of range at row %d", model.ErrInvalidSeries, r, i)
		}
		if s.EMA != nil && (!finite(s.EMA[i]) || s.EMA[i] <= 0) {
			return fmt.Errorf("%w: bad ema at row %d", model.ErrInvalidSeries, i)
		}
	}
	return nil
}

func finite(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func extractCloses(bars []model.OHLCV) []float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}
