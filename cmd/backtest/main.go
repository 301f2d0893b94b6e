package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"RSISentinel/internal/backtest"
	"RSISentinel/internal/collector"
	"RSISentinel/internal/config"
	"RSISentinel/internal/logging"
	"RSISentinel/internal/strategy"
)

func main() {
	var (
		cfgPath   = flag.String("config", "", "config file (default $CONFIG_PATH or configs/config.yaml)")
		symbols   = flag.String("symbols", "", "comma separated symbols (default backtest.symbols)")
		timeframe = flag.String("timeframe", "", "candle timeframe (default backtest.timeframe)")
		limit     = flag.Int("limit", 0, "candles per symbol (default backtest.candle_limit)")
		optimize  = flag.Bool("optimize", false, "grid-search divergence parameters instead of a single run")
		reversal  = flag.Bool("reversal", false, "include the RSI support/resistance detector")
		csvPath   = flag.String("csv", "", "trade export path (default backtest.csv_path, \"-\" disables)")
	)
	flag.Parse()

	_ = godotenv.Load()

	path := *cfgPath
	if path == "" {
		path = "configs/config.yaml"
		if v := os.Getenv("CONFIG_PATH"); v != "" {
			path = v
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[FATAL] load config: %v\n", err)
		os.Exit(1)
	}
	// Backtests never send alerts.
	cfg.Mode = config.ModeTest
	if *symbols != "" {
		cfg.Backtest.Symbols = strings.Split(strings.ReplaceAll(*symbols, " ", ""), ",")
	}
	if *timeframe != "" {
		cfg.Backtest.Timeframe = *timeframe
	}
	if *limit > 0 {
		cfg.Backtest.CandleLimit = *limit
	}
	if *csvPath != "" {
		cfg.Backtest.CSVPath = *csvPath
	}

	log := logging.New(cfg.Log.Level, cfg.Log.Pretty)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("config validation")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	chain, err := collector.NewChainFromNames(log, cfg.Exchange.Sources, cfg.Proxy, cfg.Exchange.MaxRetries, cfg.Exchange.RetryDelay)
	if err != nil {
		log.Fatal().Err(err).Msg("init data sources")
	}
	runner := backtest.NewRunner(collector.NewCollector(chain, cfg.RSI.Period), log)

	log.Info().
		Strs("symbols", cfg.Backtest.Symbols).
		Str("timeframe", cfg.Backtest.Timeframe).
		Int("limit", cfg.Backtest.CandleLimit).
		Bool("optimize", *optimize).
		Msg("backtest starting")

	if *optimize {
		runOptimize(ctx, runner, cfg, log)
		return
	}

	engine, err := strategy.NewEngine(cfg.Divergence, cfg.Reversal, *reversal)
	if err != nil {
		log.Fatal().Err(err).Msg("init detectors")
	}
	res, err := runner.RunSymbols(ctx, cfg.Backtest.Symbols, cfg.Backtest.Timeframe, cfg.Backtest.CandleLimit, engine, cfg.Backtest.Config)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("backtest")
	}
	if errors.Is(err, context.Canceled) {
		log.Warn().Msg("backtest interrupted, reporting partial results")
	}
	report(res, log)

	if cfg.Backtest.CSVPath != "-" && len(res.Trades) > 0 {
		if dir := filepath.Dir(cfg.Backtest.CSVPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				log.Fatal().Err(err).Msg("create csv directory")
			}
		}
		if err := backtest.WriteCSV(cfg.Backtest.CSVPath, res.Trades); err != nil {
			log.Fatal().Err(err).Msg("export trades")
		}
		log.Info().Str("path", cfg.Backtest.CSVPath).Int("trades", len(res.Trades)).Msg("trades exported")
	}
}

func report(res *backtest.Result, log zerolog.Logger) {
	symbols := make([]string, 0, len(res.PerSymbol))
	for sym := range res.PerSymbol {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	for _, sym := range symbols {
		m := res.PerSymbol[sym]
		log.Info().
			Str("symbol", sym).
			Int("trades", m.NumTrades).
			Int("wins", m.Wins).
			Int("losses", m.Losses).
			Int("timeouts", m.Timeouts).
			Float64("win_rate", m.WinRate).
			Float64("profit_factor", m.ProfitFactor).
			Float64("avg_profit_pct", m.AvgProfitPct).
			Msg("symbol result")
	}
	for sym, reason := range res.Skipped {
		log.Warn().Str("symbol", sym).Str("reason", reason).Msg("symbol skipped")
	}

	m := res.Metrics
	log.Info().
		Str("run_id", res.RunID).
		Int("windows", res.Windows).
		Int("trades", m.NumTrades).
		Int("wins", m.Wins).
		Int("losses", m.Losses).
		Int("timeouts", m.Timeouts).
		Float64("win_rate", m.WinRate).
		Float64("profit_factor", m.ProfitFactor).
		Float64("total_profit_pct", m.TotalProfitPct).
		Float64("avg_win_pct", m.AvgWinPct).
		Float64("avg_loss_pct", m.AvgLossPct).
		Float64("avg_bars_held", m.AvgBarsHeld).
		Msg("backtest complete")
}

func runOptimize(ctx context.Context, runner *backtest.Runner, cfg *config.Config, log zerolog.Logger) {
	series, skipped, err := runner.LoadAll(ctx, cfg.Backtest.Symbols, cfg.Backtest.Timeframe, cfg.Backtest.CandleLimit)
	if err != nil {
		log.Fatal().Err(err).Msg("load series")
	}
	for sym, reason := range skipped {
		log.Warn().Str("symbol", sym).Str("reason", reason).Msg("symbol skipped")
	}
	if len(series) == 0 {
		log.Fatal().Msg("no series to optimise")
	}

	grid := backtest.DefaultGrid()
	res, err := backtest.Optimize(ctx, series, cfg.Divergence, grid, cfg.Backtest.Config)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("optimize")
	}
	if errors.Is(err, context.Canceled) {
		log.Warn().Int("tested", res.Tested).Int("grid", grid.Size()).Msg("optimisation interrupted")
	}

	const top = 10
	for i, trial := range res.Trials {
		if i == top {
			break
		}
		log.Info().
			Int("rank", i+1).
			Str("params", trial.Params.String()).
			Int("trades", trial.Metrics.NumTrades).
			Float64("win_rate", trial.Metrics.WinRate).
			Float64("profit_factor", trial.Metrics.ProfitFactor).
			Float64("score", trial.Score).
			Msg("trial")
	}
	if res.Best == nil {
		log.Warn().Int("tested", res.Tested).Int("with_trades", len(res.Trials)).Msg("no parameter set scored above zero")
		return
	}
	log.Info().
		Str("best", res.Best.Params.String()).
		Float64("score", res.Best.Score).
		Int("tested", res.Tested).
		Int("with_trades", len(res.Trials)).
		Msg("optimisation complete")
}
