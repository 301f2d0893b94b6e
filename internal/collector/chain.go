package collector

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"RSISentinel/internal/model"
)

// Chain tries its sources in rank order, retrying each a bounded number of times.
type Chain struct {
	Sources    []Source
	MaxRetries int
	RetryDelay time.Duration
	Logger     zerolog.Logger
}

// NewChain creates a Chain. maxRetries below 1 is treated as 1.
func NewChain(logger zerolog.Logger, maxRetries int, retryDelay time.Duration, sources ...Source) *Chain {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &Chain{
		Sources:    sources,
		MaxRetries: maxRetries,
		RetryDelay: retryDelay,
		Logger:     logger.With().Str("component", "collector").Logger(),
	}
}

// NewChainFromNames builds a Chain from source names in rank order.
func NewChainFromNames(logger zerolog.Logger, names []string, proxyURL string, maxRetries int, retryDelay time.Duration) (*Chain, error) {
	sources := make([]Source, 0, len(names))
	for _, name := range names {
		src, err := NewSource(name, proxyURL)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	if len(sources) == 0 {
		return nil, errors.New("no data sources configured")
	}
	return NewChain(logger, maxRetries, retryDelay, sources...), nil
}

func (c *Chain) Name() string {
	names := make([]string, len(c.Sources))
	for i, s := range c.Sources {
		names[i] = s.Name()
	}
	return "chain(" + strings.Join(names, ",") + ")"
}

// FetchCandles returns cleaned candles from the first source that delivers any.
// When every source fails the result wraps ErrNoData and each source's error.
func (c *Chain) FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]model.OHLCV, error) {
	var errs []error
	for _, src := range c.Sources {
		bars, err := c.fetchWithRetry(ctx, src, symbol, timeframe, limit)
		if err == nil {
			if bars = CleanBars(bars); len(bars) > 0 {
				return bars, nil
			}
			err = errors.New("empty response")
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.Logger.Warn().Err(err).Str("source", src.Name()).Str("symbol", symbol).
			Str("timeframe", timeframe).Msg("source failed, falling back")
		errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
	}
	return nil, fmt.Errorf("%w for %s %s: %w", ErrNoData, symbol, timeframe, errors.Join(errs...))
}

func (c *Chain) fetchWithRetry(ctx context.Context, src Source, symbol, timeframe string, limit int) ([]model.OHLCV, error) {
	var lastErr error
	for attempt := 1; attempt <= c.MaxRetries; attempt++ {
		bars, err := src.FetchCandles(ctx, symbol, timeframe, limit)
		if err == nil {
			return bars, nil
		}
		lastErr = err
		if IsPermanent(err) || attempt == c.MaxRetries {
			break
		}
		c.Logger.Debug().Err(err).Str("source", src.Name()).Int("attempt", attempt).Msg("retrying fetch")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.RetryDelay):
		}
	}
	return nil, lastErr
}
