package collector

import (
	"context"
	"math"
	"time"

	"RSISentinel/internal/model"
)

// MockSource returns controllable fixed data for development and testing.
type MockSource struct {
	Price float64
	Data  map[string][]model.OHLCV // keyed by symbol + "|" + timeframe
	Err   error
	Now   func() time.Time
}

// NewMockSource creates a MockSource that synthesises oscillating candles around price.
func NewMockSource(price float64) *MockSource {
	return &MockSource{Price: price, Data: map[string][]model.OHLCV{}, Now: time.Now}
}

func (m *MockSource) Name() string { return "mock" }

func (m *MockSource) FetchCandles(_ context.Context, symbol, timeframe string, limit int) ([]model.OHLCV, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if bars, ok := m.Data[symbol+"|"+timeframe]; ok {
		if len(bars) > limit {
			bars = bars[len(bars)-limit:]
		}
		return bars, nil
	}
	now := time.Now
	if m.Now != nil {
		now = m.Now
	}
	return generateMockBars(m.Price, limit, timeframe, now()), nil
}

// generateMockBars produces a damped sine wave so RSI swings through its zones.
func generateMockBars(basePrice float64, count int, timeframe string, end time.Time) []model.OHLCV {
	step := model.TimeframeDuration(timeframe)
	if step == 0 {
		step = time.Hour
	}
	end = end.Truncate(step)
	bars := make([]model.OHLCV, count)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + 0.04*math.Sin(float64(i)/6) + float64(i-count/2)*0.0002)
		bars[i] = model.OHLCV{
			Time:   end.Add(-time.Duration(count-i) * step),
			Open:   p * 0.999,
			High:   p * 1.005,
			Low:    p * 0.995,
			Close:  p,
			Volume: 1000000 * (1 + 0.3*math.Cos(float64(i)/4)),
		}
	}
	return bars
}
