package backtest

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"RSISentinel/internal/model"
	"RSISentinel/internal/strategy"
)

var t0 = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func bar(i int, high, low, close float64) model.OHLCV {
	return model.OHLCV{Time: t0.Add(time.Duration(i) * 15 * time.Minute), Open: close, High: high, Low: low, Close: close, Volume: 1000}
}

// divergenceSeries has a bearish divergence at rows 40 and 50 and a steady
// decline from row 56 onwards.
func divergenceSeries() *model.Series {
	s := &model.Series{Symbol: "ETH/USDT", Timeframe: "15m"}
	for i := 0; i < 120; i++ {
		b := bar(i, 90, 89, 89.5)
		switch {
		case i == 40:
			b = bar(i, 100, 99, 99.5)
		case i == 50:
			b = bar(i, 110, 109, 109.5)
		case i >= 56:
			c := 89.5 * math.Pow(0.995, float64(i-55))
			b = bar(i, c+0.5, c-0.5, c)
		}
		rsi := 50.0
		if i == 40 {
			rsi = 70
		}
		if i == 50 {
			rsi = 55
		}
		s.Bars = append(s.Bars, b)
		s.RSI = append(s.RSI, rsi)
	}
	return s
}

// everyWindow emits one signal per call and optionally cancels after a number of calls.
type everyWindow struct {
	dir         model.Direction
	calls       int
	cancelAfter int
	cancel      context.CancelFunc
}

func (d *everyWindow) Detect(s *model.Series) ([]model.Signal, error) {
	d.calls++
	if d.cancel != nil && d.calls == d.cancelAfter {
		d.cancel()
	}
	last := s.Last()
	return []model.Signal{{
		Kind: model.KindDivergence, Direction: d.dir, Symbol: s.Symbol, Timeframe: s.Timeframe,
		Strength: 70, Timestamp: s.Bars[last].Time, CurrentPrice: s.Bars[last].Close,
	}}, nil
}

func TestSimulate(t *testing.T) {
	cases := []struct {
		name    string
		dir     model.Direction
		future  []model.OHLCV
		outcome model.Outcome
		profit  float64
		bars    int
	}{
		{"long take profit", model.Bullish, []model.OHLCV{bar(1, 101, 99.5, 100.5), bar(2, 103.2, 99, 103)}, model.OutcomeWin, 3, 2},
		{"long stop loss", model.Bullish, []model.OHLCV{bar(1, 101, 97.9, 98.5), bar(2, 104, 98, 103)}, model.OutcomeLoss, -2, 1},
		{"same bar favours stop", model.Bullish, []model.OHLCV{bar(1, 104, 97, 100)}, model.OutcomeLoss, -2, 1},
		{"short take profit", model.Bearish, []model.OHLCV{bar(1, 100.5, 99, 99.5), bar(2, 100, 96.9, 97)}, model.OutcomeWin, 3, 2},
		{"short stop loss", model.Bearish, []model.OHLCV{bar(1, 102.5, 99, 102)}, model.OutcomeLoss, -2, 1},
		{"long timeout", model.Bullish, []model.OHLCV{bar(1, 101, 99, 100.5), bar(2, 101.5, 99.5, 101)}, model.OutcomeTimeout, 1, 2},
		{"short timeout", model.Bearish, []model.OHLCV{bar(1, 101, 99, 100.5), bar(2, 101.5, 99.5, 101)}, model.OutcomeTimeout, -1, 2},
		{"empty future", model.Bullish, nil, model.OutcomeTimeout, 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Simulate(tc.dir, 100, tc.future, 3, 2)
			if got.Outcome != tc.outcome || got.BarsHeld != tc.bars {
				t.Fatalf("expected %s after %d bars, got %s after %d", tc.outcome, tc.bars, got.Outcome, got.BarsHeld)
			}
			if math.Abs(got.ProfitPct-tc.profit) > 1e-9 {
				t.Errorf("expected profit %.4f, got %.4f", tc.profit, got.ProfitPct)
			}
		})
	}
}

func TestSimulate_WinExactlyThreePercent(t *testing.T) {
	future := []model.OHLCV{bar(1, 101, 99, 100), bar(2, 103.5, 100, 103), bar(3, 104, 97, 97.5)}
	got := Simulate(model.Bullish, 100, future, 3, 2)
	if got.Outcome != model.OutcomeWin || got.ProfitPct != 3.0 {
		t.Fatalf("expected WIN with 3.0, got %s %.4f", got.Outcome, got.ProfitPct)
	}
	if math.Abs(got.Price-103) > 1e-9 {
		t.Errorf("expected exit at 103, got %.4f", got.Price)
	}
}

func TestRun_WindowWalk(t *testing.T) {
	s := divergenceSeries().Window(0, 50)
	det := &everyWindow{dir: model.Bullish}
	cfg := Config{WindowSize: 10, StepSize: 5, Lookahead: 5, TakeProfitPct: 3, StopLossPct: 2}

	res, err := Run(context.Background(), s, det, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Window ends 9, 14, ..., 44.
	if res.Windows != 8 || len(res.Trades) != 8 || det.calls != 8 {
		t.Fatalf("expected 8 windows and trades, got windows=%d trades=%d calls=%d", res.Windows, len(res.Trades), det.calls)
	}
	first := res.Trades[0]
	if !first.EntryTime.Equal(s.Bars[9].Time) || first.EntryPrice != s.Bars[9].Close {
		t.Errorf("first trade should enter at the close of row 9, got %v %.2f", first.EntryTime, first.EntryPrice)
	}
	if res.RunID == "" {
		t.Error("expected a run id")
	}
}

func TestRun_Idempotent(t *testing.T) {
	det, err := strategy.NewDivergenceDetector(strategy.DefaultDivergenceConfig())
	if err != nil {
		t.Fatalf("new detector: %v", err)
	}
	cfg := Config{WindowSize: 60, StepSize: 1, Lookahead: 20, TakeProfitPct: 3, StopLossPct: 2}
	a, err := Run(context.Background(), divergenceSeries(), det, cfg)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	b, err := Run(context.Background(), divergenceSeries(), det, cfg)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(a.Trades) == 0 {
		t.Fatal("expected the divergence to produce trades")
	}
	if !reflect.DeepEqual(a.Trades, b.Trades) || !reflect.DeepEqual(a.Metrics, b.Metrics) {
		t.Error("replaying identical input must give identical trades")
	}
	for _, tr := range a.Trades {
		if tr.Direction != model.Bearish || tr.Outcome != model.OutcomeWin {
			t.Fatalf("expected winning shorts into the decline, got %s %s", tr.Direction, tr.Outcome)
		}
	}
}

func TestRun_CancelKeepsPartialStats(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	det := &everyWindow{dir: model.Bearish, cancelAfter: 3, cancel: cancel}
	cfg := Config{WindowSize: 10, StepSize: 1, Lookahead: 5, TakeProfitPct: 3, StopLossPct: 2}

	res, err := Run(ctx, divergenceSeries(), det, cfg)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if res == nil || len(res.Trades) != 3 || res.Metrics.NumTrades != 3 {
		t.Fatalf("expected 3 trades kept after cancel, got %+v", res)
	}
}

func TestRun_BadConfig(t *testing.T) {
	if _, err := Run(context.Background(), divergenceSeries(), &everyWindow{}, Config{}); err == nil {
		t.Error("expected config error")
	}
}

func TestSummarize(t *testing.T) {
	trades := []model.TradeResult{
		{Symbol: "A", Outcome: model.OutcomeWin, ProfitPct: 3, BarsHeld: 2},
		{Symbol: "A", Outcome: model.OutcomeWin, ProfitPct: 3, BarsHeld: 4},
		{Symbol: "B", Outcome: model.OutcomeLoss, ProfitPct: -2, BarsHeld: 1},
		{Symbol: "B", Outcome: model.OutcomeTimeout, ProfitPct: 0.5, BarsHeld: 20},
	}
	m := Summarize(trades)
	if m.Wins != 2 || m.Losses != 1 || m.Timeouts != 1 {
		t.Fatalf("unexpected counts %+v", m)
	}
	if math.Abs(m.WinRate-200.0/3) > 1e-9 {
		t.Errorf("win rate must ignore timeouts, got %.4f", m.WinRate)
	}
	if m.ProfitFactor != 3 {
		t.Errorf("expected profit factor 3, got %.4f", m.ProfitFactor)
	}
	if math.Abs(m.AvgProfitPct-1.125) > 1e-9 || m.AvgBarsHeld != 6.75 {
		t.Errorf("unexpected averages %+v", m)
	}
	if m.AvgWinPct != 3 || m.AvgLossPct != -2 {
		t.Errorf("unexpected win/loss averages %+v", m)
	}

	noLoss := Summarize(trades[:2])
	if noLoss.ProfitFactor != 0 || noLoss.WinRate != 100 {
		t.Errorf("expected PF 0 and WR 100 without losses, got %+v", noLoss)
	}
	if Summarize(nil).NumTrades != 0 {
		t.Error("expected empty metrics")
	}
}

func TestFillMetrics_PerSymbol(t *testing.T) {
	res := &Result{Trades: []model.TradeResult{
		{Symbol: "A", Outcome: model.OutcomeWin, ProfitPct: 3},
		{Symbol: "B", Outcome: model.OutcomeLoss, ProfitPct: -2},
	}}
	fillMetrics(res)
	if res.PerSymbol["A"].Wins != 1 || res.PerSymbol["B"].Losses != 1 || res.Metrics.NumTrades != 2 {
		t.Errorf("unexpected rollup %+v", res.PerSymbol)
	}
}

func TestOptimize(t *testing.T) {
	grid := Grid{
		PivotOrders:   []int{2, 3},
		RSIThresholds: []RSIThresholds{{30, 50}, {35, 65}},
		MinPriceMoves: []float64{0.5, 20},
	}
	cfg := Config{WindowSize: 60, StepSize: 1, Lookahead: 20, TakeProfitPct: 3, StopLossPct: 2}
	res, err := Optimize(context.Background(), []*model.Series{divergenceSeries()}, strategy.DefaultDivergenceConfig(), grid, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Tested != 8 {
		t.Errorf("expected 8 grid points, got %d", res.Tested)
	}
	// Only the 30/50 pair admits RSI 55 on the second peak, and a 20% move filters everything.
	if len(res.Trials) != 2 {
		t.Fatalf("expected 2 trials with trades, got %d", len(res.Trials))
	}
	if res.Best == nil || res.Best.Params.PivotOrder != 2 || res.Best.Params.BearishRSI != 50 {
		t.Fatalf("expected the first qualifying point to win ties, got %+v", res.Best)
	}
	if res.Best.Score != Score(res.Best.Metrics) || res.Best.Metrics.WinRate != 100 {
		t.Errorf("unexpected best metrics %+v", res.Best)
	}
}

// losingSeries keeps the bearish divergence of divergenceSeries but rallies
// from row 56, so every short stops out.
func losingSeries() *model.Series {
	s := divergenceSeries()
	for i := 56; i < s.Len(); i++ {
		c := 89.5 * math.Pow(1.005, float64(i-55))
		s.Bars[i] = bar(i, c+0.5, c-0.5, c)
	}
	return s
}

func TestOptimize_ZeroScoreHasNoBest(t *testing.T) {
	grid := Grid{
		PivotOrders:   []int{2},
		RSIThresholds: []RSIThresholds{{30, 50}},
		MinPriceMoves: []float64{0.5},
	}
	cfg := Config{WindowSize: 60, StepSize: 1, Lookahead: 20, TakeProfitPct: 3, StopLossPct: 2}
	res, err := Optimize(context.Background(), []*model.Series{losingSeries()}, strategy.DefaultDivergenceConfig(), grid, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Trials) != 1 {
		t.Fatalf("expected the losing point to be listed, got %d trials", len(res.Trials))
	}
	trial := res.Trials[0]
	if trial.Metrics.Wins != 0 || trial.Metrics.Losses == 0 || trial.Score != 0 {
		t.Fatalf("expected an all-loss trial scoring 0, got %+v", trial)
	}
	if res.Best != nil {
		t.Errorf("expected no best for a zero score, got %+v", res.Best)
	}
}

func TestOptimize_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := Optimize(ctx, []*model.Series{divergenceSeries()}, strategy.DefaultDivergenceConfig(), DefaultGrid(), DefaultConfig())
	if !errors.Is(err, context.Canceled) || res == nil || res.Tested != 0 {
		t.Fatalf("expected immediate cancellation, got %+v %v", res, err)
	}
}

func TestDefaultGrid_Size(t *testing.T) {
	if got := DefaultGrid().Size(); got != 36 {
		t.Errorf("expected 36 combinations, got %d", got)
	}
}

func TestWriteCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.csv")
	trades := []model.TradeResult{{
		Symbol: "BTC/USDT", Timeframe: "15m", Direction: model.Bullish,
		EntryTime: t0, EntryPrice: 100, ExitTime: t0.Add(30 * time.Minute), ExitPrice: 103,
		Outcome: model.OutcomeWin, ProfitPct: 3, BarsHeld: 2, Strength: 82.5,
	}}
	if err := WriteCSV(path, trades); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 2 || !reflect.DeepEqual(rows[0], CSVHeader) {
		t.Fatalf("unexpected csv %v", rows)
	}
	want := []string{"BTC/USDT", "15m", "2024-05-01T00:00:00Z", "100", "BULLISH", "103", "2024-05-01T00:30:00Z", "WIN", "3", "2", "82.5"}
	if !reflect.DeepEqual(rows[1], want) {
		t.Errorf("unexpected row %v", rows[1])
	}
}

type mapSource map[string]*model.Series

func (m mapSource) Series(_ context.Context, symbol, _ string, _ int) (*model.Series, error) {
	s, ok := m[symbol]
	if !ok {
		return nil, errors.New("no data")
	}
	return s, nil
}

func TestRunner_RunSymbols(t *testing.T) {
	a := divergenceSeries()
	b := divergenceSeries()
	b.Symbol = "SOL/USDT"
	r := NewRunner(mapSource{"ETH/USDT": a, "SOL/USDT": b}, zerolog.Nop())
	det, err := strategy.NewDivergenceDetector(strategy.DefaultDivergenceConfig())
	if err != nil {
		t.Fatalf("new detector: %v", err)
	}
	cfg := Config{WindowSize: 60, StepSize: 1, Lookahead: 20, TakeProfitPct: 3, StopLossPct: 2}

	res, err := r.RunSymbols(context.Background(), []string{"ETH/USDT", "MISSING/USDT", "SOL/USDT"}, "15m", 500, det, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := res.Skipped["MISSING/USDT"]; !ok {
		t.Error("expected the missing symbol to be skipped")
	}
	if len(res.PerSymbol) != 2 || res.PerSymbol["ETH/USDT"].NumTrades != res.PerSymbol["SOL/USDT"].NumTrades {
		t.Errorf("expected equal per-symbol results, got %+v", res.PerSymbol)
	}
}
