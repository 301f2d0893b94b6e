package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"RSISentinel/internal/api"
	"RSISentinel/internal/collector"
	"RSISentinel/internal/config"
	"RSISentinel/internal/logging"
	"RSISentinel/internal/notifier"
	"RSISentinel/internal/recorder"
	"RSISentinel/internal/scanstate"
	"RSISentinel/internal/scheduler"
	"RSISentinel/internal/strategy"
)

func main() {
	testMode := flag.Bool("test", false, "run a single scan without Telegram and exit")
	flag.Parse()

	// .env is optional
	_ = godotenv.Load()

	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[FATAL] load config: %v\n", err)
		os.Exit(1)
	}
	if *testMode {
		cfg.Mode = config.ModeTest
	}

	log := logging.New(cfg.Log.Level, cfg.Log.Pretty)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("config validation")
	}
	log.Info().Str("mode", cfg.Mode).Str("config", cfgPath).Msg("RSISentinel starting")

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("RSISentinel exited")
	}
}

// run wires every component and blocks until shutdown. Errors are returned so
// the deferred closes run before main exits.
func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Market data
	chain, err := collector.NewChainFromNames(log, cfg.Exchange.Sources, cfg.Proxy, cfg.Exchange.MaxRetries, cfg.Exchange.RetryDelay)
	if err != nil {
		return fmt.Errorf("init data sources: %w", err)
	}
	log.Info().Str("source", chain.Name()).Msg("data source ready")
	col := collector.NewCollector(chain, cfg.RSI.Period)

	// Detectors
	engine, err := strategy.NewEngine(cfg.Divergence, cfg.Reversal, cfg.Scan.Reversal)
	if err != nil {
		return fmt.Errorf("init detectors: %w", err)
	}

	rec, err := openRecorder(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer rec.Close()

	state, err := scanstate.NewManager(cfg.StateFile, log)
	if err != nil {
		return fmt.Errorf("init scan state: %w", err)
	}

	var sender notifier.Sender
	var tn *notifier.TelegramNotifier
	if cfg.Mode == config.ModeProduction {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, log)
		sender = tn
	} else {
		sender = notifier.NewLogSender(log)
	}

	sched := scheduler.NewScheduler(ctx, col, engine, sender, rec, state, scheduler.Options{
		Symbols:     cfg.Scan.Symbols,
		Timeframes:  cfg.Scan.Timeframes,
		CandleLimit: cfg.Scan.CandleLimit,
		Bullish:     cfg.Scan.Bullish,
		Bearish:     cfg.Scan.Bearish,
		MTF:         cfg.Scan.MTF,
		Cooldown:    cfg.Scan.Cooldown,
		Retention:   cfg.Scan.Retention,
		Zones:       cfg.Zones,
		QuickCount:  cfg.Scan.QuickCount,
	}, log)

	if cfg.Mode == config.ModeTest {
		report, err := sched.RunScan(ctx, cfg.Scan.Symbols)
		if err != nil {
			return fmt.Errorf("test scan: %w", err)
		}
		log.Info().Int("signals", len(report.Signals)).Int("failed", report.Failed).Msg("test complete")
		return nil
	}

	if err := sched.RegisterAll(cfg.Scan.Cron, cfg.Scan.CleanupCron); err != nil {
		return fmt.Errorf("register cron tasks: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	go tn.StartPolling(ctx, sched.HandleCommand)
	log.Info().Msg("telegram polling started")

	if cfg.Scan.Stream {
		stream := collector.NewKlineStream(cfg.Exchange.StreamURL, cfg.Scan.Symbols, cfg.Scan.Timeframes, log)
		go func() {
			if err := sched.RunStream(ctx, stream); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("kline stream stopped")
			}
		}()
		log.Info().Int("streams", len(stream.StreamNames())).Msg("kline stream started")
	}

	var srv *api.Server
	if cfg.API.Listen != "" {
		srv = api.NewServer(cfg.API.Listen, rec, state, log)
		go func() {
			if err := srv.Start(); err != nil {
				log.Error().Err(err).Msg("api server")
			}
		}()
	}

	if err := tn.SendWithRetry(ctx, startupMessage(cfg), 3); err != nil {
		log.Warn().Err(err).Msg("startup message")
	}
	if os.Getenv("RUN_ON_START") != "false" {
		log.Info().Msg("running initial scan")
		go sched.RunScanNow()
	}

	log.Info().Msg("RSISentinel is running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutdown signal received, stopping...")
	scans := state.GetState().ScanCount
	cancel()

	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("api shutdown")
		}
	}
	if err := tn.Send(shutdownCtx, fmt.Sprintf("🛑 <b>RSISentinel stopped</b>\n\nTotal scans: %d", scans)); err != nil {
		log.Warn().Err(err).Msg("shutdown message")
	}
	if n, err := rec.CleanupOld(shutdownCtx, cfg.Scan.Retention); err != nil {
		log.Warn().Err(err).Msg("final cleanup")
	} else {
		log.Info().Int64("deleted", n).Msg("old signals cleaned up")
	}
	log.Info().Msg("RSISentinel stopped")
	return nil
}

// openRecorder picks the signal store from config. A SQLite store that cannot
// be opened degrades to the no-op store; Postgres failures are returned.
func openRecorder(ctx context.Context, cfg *config.Config, log zerolog.Logger) (recorder.Recorder, error) {
	var rec recorder.Recorder
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		pg, err := recorder.NewPostgresRecorder(ctx, cfg.Database.URL, recorder.DefaultPoolConfig(), log)
		if err != nil {
			return nil, fmt.Errorf("init postgres recorder: %w", err)
		}
		rec = pg
	default:
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath, log)
		if err != nil {
			log.Warn().Err(err).Msg("init sqlite recorder failed, using noop")
			return recorder.NewNoopRecorder(), nil
		}
		rec = sr
	}
	log.Info().Str("driver", cfg.Database.Driver).Msg("signal store ready")

	if cfg.Redis.Addr != "" {
		client := recorder.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		rec = recorder.NewCooldownCache(rec, client, cfg.Scan.Cooldown, log)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("redis cooldown cache enabled")
	}
	return rec, nil
}

func startupMessage(cfg *config.Config) string {
	return fmt.Sprintf("🚀 <b>RSISentinel started</b>\n\n"+
		"Coins: %d\nTimeframes: %v\nMulti-timeframe filter: %v\nSend /help for commands.",
		len(cfg.Scan.Symbols), cfg.Scan.Timeframes, cfg.Scan.MTF)
}
