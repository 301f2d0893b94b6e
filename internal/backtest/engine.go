package backtest

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"RSISentinel/internal/model"
	"RSISentinel/internal/strategy"
)

// Run replays s through det in sliding windows and simulates a trade for every signal.
//
// Window ends walk from WindowSize-1 in steps of StepSize while Lookahead future bars
// remain. Each trade enters at the close of the window's last bar. On cancellation the
// trades gathered so far are returned together with ctx.Err().
func Run(ctx context.Context, s *model.Series, det strategy.Detector, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("backtest config: %w", err)
	}
	res := &Result{RunID: uuid.NewString(), Timeframe: s.Timeframe}
	err := replay(ctx, res, s, det, cfg)
	fillMetrics(res)
	return res, err
}

func replay(ctx context.Context, res *Result, s *model.Series, det strategy.Detector, cfg Config) error {
	n := s.Len()
	if n > 0 {
		if res.Start.IsZero() || s.Bars[0].Time.Before(res.Start) {
			res.Start = s.Bars[0].Time
		}
		if s.Bars[n-1].Time.After(res.End) {
			res.End = s.Bars[n-1].Time
		}
	}
	for end := cfg.WindowSize - 1; end+cfg.Lookahead < n; end += cfg.StepSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		signals, err := det.Detect(s.Window(end-cfg.WindowSize+1, end+1))
		if err != nil {
			return fmt.Errorf("detect %s window ending %d: %w", s.Symbol, end, err)
		}
		res.Windows++
		if len(signals) == 0 {
			continue
		}
		entry := s.Bars[end]
		future := s.Bars[end+1 : end+1+cfg.Lookahead]
		for _, sig := range signals {
			exit := Simulate(sig.Direction, entry.Close, future, cfg.TakeProfitPct, cfg.StopLossPct)
			res.Trades = append(res.Trades, model.TradeResult{
				Symbol:     s.Symbol,
				Timeframe:  s.Timeframe,
				Kind:       sig.Kind,
				Direction:  sig.Direction,
				EntryTime:  entry.Time,
				EntryPrice: entry.Close,
				ExitTime:   exit.Time,
				ExitPrice:  exit.Price,
				Outcome:    exit.Outcome,
				ProfitPct:  exit.ProfitPct,
				BarsHeld:   exit.BarsHeld,
				Strength:   sig.Strength,
			})
		}
	}
	return nil
}

// SeriesSource loads an indicator series for a symbol.
type SeriesSource interface {
	Series(ctx context.Context, symbol, timeframe string, limit int) (*model.Series, error)
}

// Runner replays several symbols from a SeriesSource.
type Runner struct {
	Source SeriesSource
	Logger zerolog.Logger
}

// NewRunner creates a Runner.
func NewRunner(src SeriesSource, logger zerolog.Logger) *Runner {
	return &Runner{Source: src, Logger: logger.With().Str("component", "backtest").Logger()}
}

// LoadAll fetches every symbol. Symbols that fail to load are reported in skipped.
func (r *Runner) LoadAll(ctx context.Context, symbols []string, timeframe string, limit int) (series []*model.Series, skipped map[string]string, err error) {
	skipped = make(map[string]string)
	for _, sym := range symbols {
		if err := ctx.Err(); err != nil {
			return series, skipped, err
		}
		s, err := r.Source.Series(ctx, sym, timeframe, limit)
		if err != nil {
			r.Logger.Warn().Err(err).Str("symbol", sym).Msg("skipping symbol")
			skipped[sym] = err.Error()
			continue
		}
		series = append(series, s)
	}
	return series, skipped, nil
}

// RunSymbols loads and replays each symbol, merging the trades into one result.
func (r *Runner) RunSymbols(ctx context.Context, symbols []string, timeframe string, limit int, det strategy.Detector, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("backtest config: %w", err)
	}
	res := &Result{RunID: uuid.NewString(), Timeframe: timeframe, Skipped: make(map[string]string)}
	log := r.Logger.With().Str("run_id", res.RunID).Logger()

	for _, sym := range symbols {
		if err := ctx.Err(); err != nil {
			fillMetrics(res)
			return res, err
		}
		s, err := r.Source.Series(ctx, sym, timeframe, limit)
		if err != nil {
			log.Warn().Err(err).Str("symbol", sym).Msg("skipping symbol")
			res.Skipped[sym] = err.Error()
			continue
		}
		before := len(res.Trades)
		if err := replay(ctx, res, s, det, cfg); err != nil {
			fillMetrics(res)
			return res, err
		}
		log.Info().Str("symbol", sym).Int("bars", s.Len()).Int("trades", len(res.Trades)-before).Msg("symbol replayed")
	}
	fillMetrics(res)
	return res, nil
}
