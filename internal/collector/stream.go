package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"RSISentinel/internal/model"
)

const (
	BinanceStreamURL = "wss://stream.binance.com:9443/stream"

	streamReconnectDelay = 5 * time.Second
	streamReadTimeout    = 90 * time.Second
)

// ClosedCandle is a finished kline delivered by KlineStream.
type ClosedCandle struct {
	Symbol    string
	Timeframe string
	Bar       model.OHLCV
}

// KlineStream subscribes to the Binance combined kline stream and reports
// every candle that closes.
type KlineStream struct {
	URL            string
	Symbols        []string
	Timeframes     []string
	Dialer         *websocket.Dialer
	ReconnectDelay time.Duration
	Logger         zerolog.Logger

	bySymbol map[string]string // BTCUSDT -> BTC/USDT
}

// NewKlineStream creates a stream for every symbol and timeframe pair.
func NewKlineStream(url string, symbols, timeframes []string, logger zerolog.Logger) *KlineStream {
	if url == "" {
		url = BinanceStreamURL
	}
	s := &KlineStream{
		URL:            url,
		Symbols:        symbols,
		Timeframes:     timeframes,
		Dialer:         &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		ReconnectDelay: streamReconnectDelay,
		Logger:         logger.With().Str("component", "kline_stream").Logger(),
		bySymbol:       make(map[string]string, len(symbols)),
	}
	for _, sym := range symbols {
		s.bySymbol[BinanceSymbol(sym)] = sym
	}
	return s
}

// StreamNames returns the combined-stream names, e.g. "btcusdt@kline_15m".
func (s *KlineStream) StreamNames() []string {
	names := make([]string, 0, len(s.Symbols)*len(s.Timeframes))
	for _, sym := range s.Symbols {
		for _, tf := range s.Timeframes {
			names = append(names, strings.ToLower(BinanceSymbol(sym))+"@kline_"+tf)
		}
	}
	return names
}

func (s *KlineStream) endpoint() string {
	return s.URL + "?streams=" + strings.Join(s.StreamNames(), "/")
}

// Run connects and reconnects until ctx is cancelled, calling handle for each closed candle.
// It always returns a non-nil error: ctx.Err() on shutdown.
func (s *KlineStream) Run(ctx context.Context, handle func(ClosedCandle)) error {
	for {
		err := s.runOnce(ctx, handle)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.Logger.Warn().Err(err).Dur("retry_in", s.ReconnectDelay).Msg("kline stream disconnected")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.ReconnectDelay):
		}
	}
}

func (s *KlineStream) runOnce(ctx context.Context, handle func(ClosedCandle)) error {
	conn, _, err := s.Dialer.DialContext(ctx, s.endpoint(), nil)
	if err != nil {
		return fmt.Errorf("dial kline stream: %w", err)
	}
	defer conn.Close()
	s.Logger.Info().Int("streams", len(s.Symbols)*len(s.Timeframes)).Msg("kline stream connected")

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		conn.SetReadDeadline(time.Now().Add(streamReadTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read kline stream: %w", err)
		}
		candle, closed, err := s.parse(data)
		if err != nil {
			s.Logger.Debug().Err(err).Msg("ignoring stream message")
			continue
		}
		if closed {
			handle(candle)
		}
	}
}

// combinedMessage is the envelope of the Binance combined stream.
type combinedMessage struct {
	Stream string `json:"stream"`
	Data   struct {
		Event  string `json:"e"`
		Symbol string `json:"s"`
		Kline  struct {
			OpenTime  int64  `json:"t"`
			CloseTime int64  `json:"T"`
			Interval  string `json:"i"`
			Open      string `json:"o"`
			Close     string `json:"c"`
			High      string `json:"h"`
			Low       string `json:"l"`
			Volume    string `json:"v"`
			Closed    bool   `json:"x"`
		} `json:"k"`
	} `json:"data"`
}

var errNotKline = errors.New("not a kline event")

func (s *KlineStream) parse(data []byte) (ClosedCandle, bool, error) {
	var msg combinedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return ClosedCandle{}, false, err
	}
	if msg.Data.Event != "kline" {
		return ClosedCandle{}, false, errNotKline
	}
	k := msg.Data.Kline
	symbol, ok := s.bySymbol[msg.Data.Symbol]
	if !ok {
		symbol = msg.Data.Symbol
	}
	f := func(v string) float64 {
		x, _ := strconv.ParseFloat(v, 64)
		return x
	}
	return ClosedCandle{
		Symbol:    symbol,
		Timeframe: k.Interval,
		Bar: model.OHLCV{
			Time:   time.UnixMilli(k.OpenTime).UTC(),
			Open:   f(k.Open),
			High:   f(k.High),
			Low:    f(k.Low),
			Close:  f(k.Close),
			Volume: f(k.Volume),
		},
	}, k.Closed, nil
}
