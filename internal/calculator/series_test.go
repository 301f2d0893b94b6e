package calculator

import (
	"errors"
	"math"
	"testing"
	"time"

	"RSISentinel/internal/model"
)

func makeBars(closes []float64) []model.OHLCV {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]model.OHLCV, len(closes))
	for i, c := range closes {
		bars[i] = model.OHLCV{
			Time:   start.Add(time.Duration(i) * 15 * time.Minute),
			Open:   c,
			High:   c * 1.01,
			Low:    c * 0.99,
			Close:  c,
			Volume: 1000,
		}
	}
	return bars
}

func zigzag(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100 + float64(i%7) - float64(i%3)*0.5
	}
	return out
}

func TestBuildSeries_RowCounts(t *testing.T) {
	cases := []struct {
		name      string
		bars      int
		rsiPeriod int
		emaPeriod int
		wantLen   int
	}{
		{"rsi only", 100, 14, 0, 86},
		{"ema shorter than rsi", 100, 14, 10, 86},
		{"ema longer than rsi", 100, 14, 50, 51},
		{"one row left", 15, 14, 0, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, err := BuildSeries("BTC/USDT", "15m", makeBars(zigzag(tc.bars)), tc.rsiPeriod, tc.emaPeriod)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if s.Len() != tc.wantLen || len(s.RSI) != tc.wantLen {
				t.Fatalf("expected %d rows, got bars=%d rsi=%d", tc.wantLen, s.Len(), len(s.RSI))
			}
			if tc.emaPeriod > 0 && len(s.EMA) != tc.wantLen {
				t.Fatalf("expected %d ema rows, got %d", tc.wantLen, len(s.EMA))
			}
			if tc.emaPeriod == 0 && s.EMA != nil {
				t.Error("expected nil EMA when disabled")
			}
		})
	}
}

func TestBuildSeries_DropsExactlyLeadingRows(t *testing.T) {
	bars := makeBars(zigzag(40))
	s, err := BuildSeries("ETH/USDT", "30m", bars, 14, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !s.Bars[0].Time.Equal(bars[14].Time) {
		t.Errorf("first row should be input row 14, got %v", s.Bars[0].Time)
	}
	if err := ValidateSeries(s); err != nil {
		t.Errorf("built series should validate: %v", err)
	}
}

func TestBuildSeries_Insufficient(t *testing.T) {
	_, err := BuildSeries("BTC/USDT", "15m", makeBars(zigzag(14)), 14, 0)
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
	_, err = BuildSeries("BTC/USDT", "15m", makeBars(zigzag(49)), 14, 50)
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData with ema, got %v", err)
	}
}

func TestRSISeries_MonotonicRise(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	rsi, err := RSISeries(closes, 14)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rsi) != len(closes) {
		t.Fatalf("expected aligned output, got %d", len(rsi))
	}
	if math.Abs(rsi[29]-100) > 1e-9 {
		t.Errorf("expected RSI 100 for a pure uptrend, got %.4f", rsi[29])
	}
}

func TestRSISeries_BadPeriod(t *testing.T) {
	if _, err := RSISeries([]float64{1, 2, 3}, 1); err == nil {
		t.Error("expected error for period 1")
	}
}

func TestValidateSeries(t *testing.T) {
	good := func() *model.Series {
		bars := makeBars(zigzag(5))
		return &model.Series{Bars: bars, RSI: []float64{40, 45, 50, 55, 60}}
	}

	cases := []struct {
		name   string
		mutate func(s *model.Series)
		ok     bool
	}{
		{"valid", func(s *model.Series) {}, true},
		{"nan rsi", func(s *model.Series) { s.RSI[2] = math.NaN() }, false},
		{"rsi above 100", func(s *model.Series) { s.RSI[1] = 100.5 }, false},
		{"negative rsi", func(s *model.Series) { s.RSI[0] = -1 }, false},
		{"zero close", func(s *model.Series) { s.Bars[3].Close = 0 }, false},
		{"misaligned", func(s *model.Series) { s.RSI = s.RSI[:4] }, false},
		{"duplicate time", func(s *model.Series) { s.Bars[2].Time = s.Bars[1].Time }, false},
		{"inf volume", func(s *model.Series) { s.Bars[4].Volume = math.Inf(1) }, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := good()
			tc.mutate(s)
			err := ValidateSeries(s)
			if tc.ok && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tc.ok && !errors.Is(err, model.ErrInvalidSeries) {
				t.Fatalf("expected ErrInvalidSeries, got %v", err)
			}
		})
	}
}

func TestStdDev_Population(t *testing.T) {
	got := StdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if math.Abs(got-2.0) > 1e-12 {
		t.Errorf("expected 2.0, got %f", got)
	}
	if StdDev(nil) != 0 {
		t.Error("expected 0 for empty input")
	}
}

func TestCalculateSMA(t *testing.T) {
	got, err := CalculateSMA([]float64{1, 2, 3, 4}, 2)
	if err != nil || got != 3.5 {
		t.Errorf("expected 3.5, got %f (%v)", got, err)
	}
	if _, err := CalculateSMA([]float64{1}, 2); err == nil {
		t.Error("expected error for short input")
	}
}
