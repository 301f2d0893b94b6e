package strategy

import (
	"time"

	"RSISentinel/internal/model"
)

// row describes one synthetic candle with its RSI value.
type row struct {
	high, low, close, rsi, volume float64
}

func buildSeries(rows []row) *model.Series {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	s := &model.Series{Symbol: "BTC/USDT", Timeframe: "15m"}
	for i, r := range rows {
		s.Bars = append(s.Bars, model.OHLCV{
			Time:   start.Add(time.Duration(i) * 15 * time.Minute),
			Open:   r.close,
			High:   r.high,
			Low:    r.low,
			Close:  r.close,
			Volume: r.volume,
		})
		s.RSI = append(s.RSI, r.rsi)
	}
	return s
}

func flatRows(n int) []row {
	rows := make([]row, n)
	for i := range rows {
		rows[i] = row{high: 90, low: 89, close: 89.5, rsi: 50, volume: 1000}
	}
	return rows
}

// bearishRows has peaks of 100 and 110 at rows 20 and 30 with RSI 70 and 55,
// followed by lower closes.
func bearishRows() []row {
	rows := flatRows(50)
	rows[20] = row{high: 100, low: 99, close: 99.5, rsi: 70, volume: 1000}
	rows[30] = row{high: 110, low: 109, close: 109.5, rsi: 55, volume: 1000}
	return rows
}
