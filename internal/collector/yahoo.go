package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"RSISentinel/internal/model"
)

const YahooBaseURL = "https://query1.finance.yahoo.com"

// YahooSource implements Source using the Yahoo Finance public chart API.
// Yahoo has no 4h interval, so 4h candles are aggregated from 1h bars.
type YahooSource struct {
	BaseURL   string
	Client    *http.Client
	SymbolMap map[string]string // maps internal symbol to Yahoo ticker
	Now       func() time.Time
}

// NewYahooSource creates a new Yahoo Finance source.
func NewYahooSource(proxyURL string) *YahooSource {
	return &YahooSource{
		BaseURL:   YahooBaseURL,
		Client:    newHTTPClient(proxyURL),
		SymbolMap: map[string]string{},
		Now:       time.Now,
	}
}

func (f *YahooSource) Name() string { return "yahoo" }

// yahooSymbol maps "BTC/USDT" to "BTC-USD" unless SymbolMap overrides it.
func (f *YahooSource) yahooSymbol(symbol string) string {
	if mapped, ok := f.SymbolMap[symbol]; ok {
		return mapped
	}
	base, quote, ok := strings.Cut(strings.ToUpper(symbol), "/")
	if !ok {
		return symbol
	}
	if quote == "USDT" || quote == "USDC" || quote == "BUSD" {
		quote = "USD"
	}
	return base + "-" + quote
}

// yahooInterval returns the Yahoo interval, how many of its bars make one
// requested candle, and the furthest back Yahoo serves that interval.
func yahooInterval(timeframe string) (interval string, group int, maxSpan time.Duration, ok bool) {
	const day = 24 * time.Hour
	switch timeframe {
	case "1m":
		return "1m", 1, 7 * day, true
	case "5m", "15m", "30m":
		return timeframe, 1, 59 * day, true
	case "1h":
		return "60m", 1, 729 * day, true
	case "4h":
		return "60m", 4, 729 * day, true
	case "1d":
		return "1d", 1, 0, true
	default:
		return "", 0, 0, false
	}
}

// yahooChart is the response structure from Yahoo Finance chart API.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []interface{} `json:"open"`
					High   []interface{} `json:"high"`
					Low    []interface{} `json:"low"`
					Close  []interface{} `json:"close"`
					Volume []interface{} `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func toFloat(v interface{}) float64 {
	if v == nil {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}

func at(vals []interface{}, i int) float64 {
	if i >= len(vals) {
		return 0
	}
	return toFloat(vals[i])
}

// FetchCandles returns up to limit of the most recent candles, oldest first.
func (f *YahooSource) FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]model.OHLCV, error) {
	interval, group, maxSpan, ok := yahooInterval(timeframe)
	if !ok {
		return nil, Permanent(fmt.Errorf("yahoo: unsupported timeframe %q", timeframe))
	}
	now := f.Now()
	span := time.Duration(limit+1) * model.TimeframeDuration(timeframe)
	if maxSpan > 0 && span > maxSpan {
		span = maxSpan
	}

	bars, err := f.fetchChart(ctx, symbol, interval, now.Add(-span), now)
	if err != nil {
		return nil, err
	}
	if group > 1 {
		bars = aggregate(bars, model.TimeframeDuration(timeframe))
	}
	if len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}
	return bars, nil
}

func (f *YahooSource) fetchChart(ctx context.Context, symbol, interval string, from, to time.Time) ([]model.OHLCV, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=%s&period1=%d&period2=%d",
		f.BaseURL, url.PathEscape(f.yahooSymbol(symbol)), interval, from.Unix(), to.Unix())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yahoo fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("yahoo read body: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, Permanent(fmt.Errorf("yahoo: unknown symbol %s", symbol))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo: status %d, body: %s", resp.StatusCode, string(body))
	}

	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("yahoo decode: %w", err)
	}
	if chart.Chart.Error != nil {
		return nil, Permanent(fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description))
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 ||
		len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("yahoo: no data returned")
	}

	result := chart.Chart.Result[0]
	quote := result.Indicators.Quote[0]
	bars := make([]model.OHLCV, 0, len(result.Timestamp))

	for i, ts := range result.Timestamp {
		o, h, l, c := at(quote.Open, i), at(quote.High, i), at(quote.Low, i), at(quote.Close, i)
		if o == 0 && h == 0 && l == 0 && c == 0 {
			continue // null bar
		}
		bars = append(bars, model.OHLCV{
			Time:   time.Unix(ts, 0).UTC(),
			Open:   o,
			High:   h,
			Low:    l,
			Close:  c,
			Volume: at(quote.Volume, i),
		})
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return bars, nil
}

// aggregate merges sorted bars into candles of width d aligned to UTC boundaries.
func aggregate(bars []model.OHLCV, d time.Duration) []model.OHLCV {
	var out []model.OHLCV
	for _, b := range bars {
		start := b.Time.Truncate(d)
		if n := len(out); n > 0 && out[n-1].Time.Equal(start) {
			cur := &out[n-1]
			cur.High = max(cur.High, b.High)
			cur.Low = min(cur.Low, b.Low)
			cur.Close = b.Close
			cur.Volume += b.Volume
			continue
		}
		b.Time = start
		out = append(out, b)
	}
	return out
}
