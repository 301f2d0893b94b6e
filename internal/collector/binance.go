package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"RSISentinel/internal/model"
)

const (
	BinanceSpotURL    = "https://api.binance.com"
	BinanceFuturesURL = "https://fapi.binance.com"

	// maxKlinesPerPage is the largest page the klines endpoints return.
	maxKlinesPerPage = 1000
)

// BinanceSource implements Source using the public Binance klines endpoints.
type BinanceSource struct {
	BaseURL string
	Futures bool
	Client  *http.Client
}

// NewBinanceSource creates a spot klines source with optional proxy support.
func NewBinanceSource(proxyURL string) *BinanceSource {
	return &BinanceSource{BaseURL: BinanceSpotURL, Client: newHTTPClient(proxyURL)}
}

// NewBinanceFuturesSource creates a USDⓈ-M futures klines source.
func NewBinanceFuturesSource(proxyURL string) *BinanceSource {
	return &BinanceSource{BaseURL: BinanceFuturesURL, Futures: true, Client: newHTTPClient(proxyURL)}
}

func (b *BinanceSource) Name() string {
	if b.Futures {
		return "binance_futures"
	}
	return "binance"
}

// BinanceSymbol converts "BTC/USDT" to "BTCUSDT".
func BinanceSymbol(symbol string) string {
	return strings.ToUpper(strings.ReplaceAll(symbol, "/", ""))
}

func (b *BinanceSource) path() string {
	if b.Futures {
		return "/fapi/v1/klines"
	}
	return "/api/v3/klines"
}

// FetchCandles returns up to limit of the most recent candles, oldest first.
// Limits above one page are served by paging backwards with endTime.
func (b *BinanceSource) FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]model.OHLCV, error) {
	if model.TimeframeDuration(timeframe) == 0 {
		return nil, Permanent(fmt.Errorf("binance: unsupported timeframe %q", timeframe))
	}
	pair := BinanceSymbol(symbol)

	var bars []model.OHLCV
	var endTime int64
	for remaining := limit; remaining > 0; {
		size := min(remaining, maxKlinesPerPage)
		page, err := b.fetchPage(ctx, pair, timeframe, size, endTime)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		bars = append(page, bars...)
		remaining -= len(page)
		if len(page) < size {
			break
		}
		endTime = page[0].Time.UnixMilli() - 1
	}
	return bars, nil
}

func (b *BinanceSource) fetchPage(ctx context.Context, pair, interval string, limit int, endTime int64) ([]model.OHLCV, error) {
	params := url.Values{}
	params.Set("symbol", pair)
	params.Set("interval", interval)
	params.Set("limit", strconv.Itoa(limit))
	if endTime > 0 {
		params.Set("endTime", strconv.FormatInt(endTime, 10))
	}
	endpoint := fmt.Sprintf("%s%s?%s", b.BaseURL, b.path(), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s fetch: %w", b.Name(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s read body: %w", b.Name(), err)
	}
	if resp.StatusCode == http.StatusBadRequest {
		// Invalid symbol or interval.
		return nil, Permanent(fmt.Errorf("%s: status %d, body: %s", b.Name(), resp.StatusCode, string(body)))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: status %d, body: %s", b.Name(), resp.StatusCode, string(body))
	}

	var raw [][]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%s decode: %w", b.Name(), err)
	}
	bars := make([]model.OHLCV, 0, len(raw))
	for _, k := range raw {
		if len(k) < 6 {
			continue
		}
		openTime, ok := k[0].(float64)
		if !ok {
			continue
		}
		bars = append(bars, model.OHLCV{
			Time:   time.UnixMilli(int64(openTime)).UTC(),
			Open:   parseFloat(k[1]),
			High:   parseFloat(k[2]),
			Low:    parseFloat(k[3]),
			Close:  parseFloat(k[4]),
			Volume: parseFloat(k[5]),
		})
	}
	return bars, nil
}

// parseFloat reads Binance's string-encoded numbers. Unparseable values become 0
// and are dropped later by CleanBars.
func parseFloat(v interface{}) float64 {
	switch n := v.(type) {
	case string:
		f, _ := strconv.ParseFloat(n, 64)
		return f
	case float64:
		return n
	default:
		return 0
	}
}
