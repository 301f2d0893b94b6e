package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"RSISentinel/internal/model"
)

// ErrNoData is returned when no source could deliver candles.
var ErrNoData = errors.New("no market data available")

// Source fetches candles for one symbol and timeframe.
type Source interface {
	FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]model.OHLCV, error)
	Name() string
}

// PermanentError marks a failure that retrying will not fix, such as an unknown symbol.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err as a PermanentError.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err carries a PermanentError.
func IsPermanent(err error) bool {
	var p *PermanentError
	return errors.As(err, &p)
}

// newHTTPClient builds a client with an optional proxy.
func newHTTPClient(proxyURL string) *http.Client {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &http.Client{
		Timeout:   30 * time.Second,
		Transport: transport,
	}
}

// mockBasePrice centres the synthetic candles of the mock source.
const mockBasePrice = 100

// NewSource creates a source by config name: binance, binance_futures, yahoo or mock.
func NewSource(name, proxyURL string) (Source, error) {
	switch name {
	case "binance":
		return NewBinanceSource(proxyURL), nil
	case "binance_futures":
		return NewBinanceFuturesSource(proxyURL), nil
	case "yahoo":
		return NewYahooSource(proxyURL), nil
	case "mock":
		return NewMockSource(mockBasePrice), nil
	default:
		return nil, fmt.Errorf("unknown data source %q", name)
	}
}
