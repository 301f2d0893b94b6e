package collector

import (
	"context"
	"fmt"

	"RSISentinel/internal/calculator"
	"RSISentinel/internal/model"
)

// Collector fetches candles and turns them into indicator series.
type Collector struct {
	Source    Source
	RSIPeriod int
	EMAPeriod int // 0 disables the EMA column
}

// NewCollector creates a new Collector.
func NewCollector(src Source, rsiPeriod int) *Collector {
	return &Collector{Source: src, RSIPeriod: rsiPeriod}
}

// Candles fetches and cleans raw candles.
func (c *Collector) Candles(ctx context.Context, symbol, timeframe string, limit int) ([]model.OHLCV, error) {
	bars, err := c.Source.FetchCandles(ctx, symbol, timeframe, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch %s %s: %w", symbol, timeframe, err)
	}
	return CleanBars(bars), nil
}

// Series fetches candles and computes the RSI (and optional EMA) series.
func (c *Collector) Series(ctx context.Context, symbol, timeframe string, limit int) (*model.Series, error) {
	bars, err := c.Candles(ctx, symbol, timeframe, limit)
	if err != nil {
		return nil, err
	}
	s, err := calculator.BuildSeries(symbol, timeframe, bars, c.RSIPeriod, c.EMAPeriod)
	if err != nil {
		return nil, fmt.Errorf("build series %s %s: %w", symbol, timeframe, err)
	}
	return s, nil
}
