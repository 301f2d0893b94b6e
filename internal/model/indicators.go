package model

import "errors"

// ErrInvalidSeries marks a series rejected before detection (NaN or out-of-range values).
var ErrInvalidSeries = errors.New("invalid indicator series")

// Series is a candle series with its indicator columns aligned index-for-index.
// Leading rows without indicator history have already been dropped.
type Series struct {
	Symbol    string
	Timeframe string
	Bars      []OHLCV
	RSI       []float64
	EMA       []float64 // nil when EMA was not requested
}

// Len returns the number of rows.
func (s *Series) Len() int { return len(s.Bars) }

// Last returns the index of the newest row, or -1 for an empty series.
func (s *Series) Last() int { return len(s.Bars) - 1 }

// Window returns rows [start, end) sharing the backing arrays.
func (s *Series) Window(start, end int) *Series {
	w := &Series{
		Symbol:    s.Symbol,
		Timeframe: s.Timeframe,
		Bars:      s.Bars[start:end],
		RSI:       s.RSI[start:end],
	}
	if s.EMA != nil {
		w.EMA = s.EMA[start:end]
	}
	return w
}

// Closes extracts the close column.
func (s *Series) Closes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Close
	}
	return out
}

// Highs extracts the high column.
func (s *Series) Highs() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.High
	}
	return out
}

// Lows extracts the low column.
func (s *Series) Lows() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Low
	}
	return out
}

// Volumes extracts the volume column.
func (s *Series) Volumes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Volume
	}
	return out
}

// Pivot is a locally prominent peak or trough.
type Pivot struct {
	Index      int
	Value      float64
	Prominence float64 // percent, smaller of the two sides
}
