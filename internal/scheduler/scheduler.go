package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"RSISentinel/internal/calculator"
	"RSISentinel/internal/collector"
	"RSISentinel/internal/logging"
	"RSISentinel/internal/model"
	"RSISentinel/internal/notifier"
	"RSISentinel/internal/recorder"
	"RSISentinel/internal/scanstate"
	"RSISentinel/internal/strategy"
)

const sendRetries = 3

// errDetection marks a pair whose data loaded but failed detection.
var errDetection = errors.New("detection failed")

// Options are the scan settings taken from config.
type Options struct {
	Symbols     []string
	Timeframes  []string
	CandleLimit int
	Bullish     bool
	Bearish     bool
	MTF         bool
	Cooldown    time.Duration
	Retention   time.Duration
	Zones       strategy.ZoneThresholds
	QuickCount  int
}

// Scheduler runs the scan loop and owns all cron tasks.
type Scheduler struct {
	Cron      *cron.Cron
	Collector *collector.Collector
	Detector  strategy.Detector
	Notifier  notifier.Sender
	Recorder  recorder.Recorder
	State     *scanstate.Manager
	Options   Options
	Logger    zerolog.Logger
	Ctx       context.Context

	scanMu sync.Mutex
	now    func() time.Time
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, col *collector.Collector, det strategy.Detector, sender notifier.Sender,
	rec recorder.Recorder, state *scanstate.Manager, opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Cooldown <= 0 {
		opts.Cooldown = recorder.DefaultCooldown
	}
	return &Scheduler{
		Cron:      cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		Collector: col,
		Detector:  det,
		Notifier:  sender,
		Recorder:  rec,
		State:     state,
		Options:   opts,
		Logger:    logger.With().Str("component", "scheduler").Logger(),
		Ctx:       ctx,
		now:       time.Now,
	}
}

// RegisterAll registers the scan and cleanup tasks.
func (s *Scheduler) RegisterAll(scanCron, cleanupCron string) error {
	if _, err := s.Cron.AddFunc(scanCron, s.scanTask); err != nil {
		return fmt.Errorf("register scan task: %w", err)
	}
	if _, err := s.Cron.AddFunc(cleanupCron, s.cleanupTask); err != nil {
		return fmt.Errorf("register cleanup task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.Logger.Info().Int("tasks", len(s.Cron.Entries())).Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for running tasks.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.Logger.Info().Msg("scheduler stopped")
}

// RunScanNow executes a full scan immediately (for manual trigger / RUN_ON_START).
func (s *Scheduler) RunScanNow() {
	s.scanTask()
}

func (s *Scheduler) scanTask() {
	if _, err := s.RunScan(s.Ctx, s.Options.Symbols); err != nil && !errors.Is(err, context.Canceled) {
		s.Logger.Error().Err(err).Msg("scan failed")
	}
}

func (s *Scheduler) cleanupTask() {
	if _, err := s.RunCleanup(s.Ctx); err != nil {
		s.Logger.Error().Err(err).Msg("cleanup failed")
	}
}

// RunCleanup deletes stored signals older than the retention period.
func (s *Scheduler) RunCleanup(ctx context.Context) (int64, error) {
	if s.Options.Retention <= 0 {
		return 0, nil
	}
	n, err := s.Recorder.CleanupOld(ctx, s.Options.Retention)
	if err != nil {
		return 0, fmt.Errorf("cleanup: %w", err)
	}
	s.Logger.Info().Int64("deleted", n).Dur("retention", s.Options.Retention).Msg("old signals cleaned up")
	return n, nil
}

// ScanReport summarises one scan run.
type ScanReport struct {
	ID         string
	Symbols    int
	Pairs      int
	Failed     int
	Signals    []model.Signal // strongest first
	Alerted    int
	Duplicates int
	Took       time.Duration
}

type pair struct {
	symbol    string
	timeframe string
}

// RunScan scans every configured timeframe of symbols, alerting on new signals.
// On cancellation it returns the partial report with ctx.Err().
func (s *Scheduler) RunScan(ctx context.Context, symbols []string) (*ScanReport, error) {
	pairs := make([]pair, 0, len(symbols)*len(s.Options.Timeframes))
	for _, tf := range s.Options.Timeframes {
		for _, sym := range symbols {
			pairs = append(pairs, pair{sym, tf})
		}
	}
	report, err := s.scan(ctx, pairs)
	report.Symbols = len(symbols)
	return report, err
}

// ScanCandle scans the symbol and timeframe of a closed candle.
func (s *Scheduler) ScanCandle(ctx context.Context, c collector.ClosedCandle) (*ScanReport, error) {
	report, err := s.scan(ctx, []pair{{c.Symbol, c.Timeframe}})
	report.Symbols = 1
	return report, err
}

func (s *Scheduler) scan(ctx context.Context, pairs []pair) (*ScanReport, error) {
	s.scanMu.Lock()
	defer s.scanMu.Unlock()

	start := s.now()
	report := &ScanReport{ID: uuid.NewString(), Pairs: len(pairs)}
	log := logging.ScanLogger(s.Logger, report.ID)
	log.Info().Int("pairs", len(pairs)).Msg("scan started")

	trends := make(map[pair]strategy.Trend)
	var found []model.Signal
	for _, p := range pairs {
		if err := ctx.Err(); err != nil {
			report.Took = s.now().Sub(start)
			return report, err
		}
		signals, err := s.scanPair(ctx, p, trends, log)
		if err != nil {
			report.Failed++
			if errors.Is(err, errDetection) {
				s.State.RecordFailedDetection()
			} else {
				s.State.RecordFailedFetch()
			}
			continue
		}
		found = append(found, signals...)
	}

	sort.SliceStable(found, func(i, j int) bool { return found[i].Strength > found[j].Strength })
	report.Signals = found
	s.State.RecordSignals(found)

	for i := range found {
		if err := ctx.Err(); err != nil {
			report.Took = s.now().Sub(start)
			return report, err
		}
		s.alert(ctx, &found[i], report, log)
	}

	if report.Failed > 0 && report.Failed == report.Pairs {
		s.trySend(ctx, fmt.Sprintf("⚠️ <b>Scan error</b>\n\nNo market data for any of %d symbol/timeframe pairs.", report.Pairs))
	}

	s.State.RecordScan(report.ID)
	report.Took = s.now().Sub(start)
	log.Info().
		Int("signals", len(found)).
		Int("alerted", report.Alerted).
		Int("duplicates", report.Duplicates).
		Int("failed", report.Failed).
		Dur("took", report.Took).
		Msg("scan completed")
	return report, nil
}

// scanPair fetches one series and returns its enabled, confirmed signals.
// Missing or short data is logged and reported as an error so the caller can count it;
// detector errors are wrapped in errDetection.
func (s *Scheduler) scanPair(ctx context.Context, p pair, trends map[pair]strategy.Trend, log zerolog.Logger) ([]model.Signal, error) {
	series, err := s.Collector.Series(ctx, p.symbol, p.timeframe, s.Options.CandleLimit)
	if err != nil {
		level := zerolog.ErrorLevel
		if errors.Is(err, collector.ErrNoData) || errors.Is(err, calculator.ErrInsufficientData) {
			level = zerolog.WarnLevel
		}
		log.WithLevel(level).Err(err).Str("symbol", p.symbol).Str("timeframe", p.timeframe).Msg("skipping pair")
		return nil, err
	}

	signals, err := s.Detector.Detect(series)
	if err != nil {
		log.Error().Err(err).Str("symbol", p.symbol).Str("timeframe", p.timeframe).Msg("detection failed")
		return nil, fmt.Errorf("%w: %w", errDetection, err)
	}

	var out []model.Signal
	for _, sig := range signals {
		if sig.Direction == model.Bullish && !s.Options.Bullish || sig.Direction == model.Bearish && !s.Options.Bearish {
			continue
		}
		if s.Options.MTF {
			conf, ok := s.confirm(ctx, sig, trends, log)
			if ok {
				sig.MTF = &conf
				if !conf.Confirmed {
					log.Info().Str("symbol", sig.Symbol).Str("timeframe", sig.Timeframe).
						Str("type", sig.DedupKey()).Str("recommendation", conf.Recommendation).
						Msg("signal rejected by higher timeframe")
					continue
				}
			}
		}
		log.Info().Str("symbol", sig.Symbol).Str("timeframe", sig.Timeframe).
			Str("type", sig.DedupKey()).Float64("strength", sig.Strength).Msg("signal detected")
		out = append(out, sig)
	}
	return out, nil
}

// confirm checks sig against the trend of the next timeframe up. It reports
// false when the timeframe has no higher timeframe.
func (s *Scheduler) confirm(ctx context.Context, sig model.Signal, trends map[pair]strategy.Trend, log zerolog.Logger) (model.Confirmation, bool) {
	htf := strategy.HigherTimeframe(sig.Timeframe)
	if htf == "" {
		return model.Confirmation{}, false
	}
	key := pair{sig.Symbol, htf}
	trend, ok := trends[key]
	if !ok {
		bars, err := s.Collector.Candles(ctx, sig.Symbol, htf, s.Options.CandleLimit)
		if err != nil {
			log.Warn().Err(err).Str("symbol", sig.Symbol).Str("timeframe", htf).Msg("higher timeframe unavailable")
			trend = strategy.TrendUnknown
		} else {
			trend = strategy.ClassifyTrend(bars, strategy.DefaultTrendEMA)
		}
		trends[key] = trend
	}
	return strategy.Confirm(sig.Direction, htf, trend), true
}

// alert stores sig and sends it unless an alert of the same type went out within the cooldown.
func (s *Scheduler) alert(ctx context.Context, sig *model.Signal, report *ScanReport, log zerolog.Logger) {
	ev := log.With().Str("symbol", sig.Symbol).Str("timeframe", sig.Timeframe).Str("type", sig.DedupKey()).Logger()

	dup, err := s.Recorder.IsDuplicate(ctx, sig.Symbol, sig.Timeframe, sig.DedupKey(), s.Options.Cooldown)
	if err != nil {
		ev.Error().Err(err).Msg("duplicate check failed")
	}
	if dup {
		report.Duplicates++
		ev.Info().Msg("skipping duplicate")
		return
	}

	id, err := s.Recorder.Save(ctx, sig)
	if err != nil {
		ev.Error().Err(err).Msg("save signal failed")
	}
	if err := s.Notifier.SendWithRetry(ctx, notifier.FormatSignal(sig), sendRetries); err != nil {
		ev.Error().Err(err).Msg("send alert failed")
		return
	}
	report.Alerted++
	s.State.RecordAlert()
	if id > 0 {
		if err := s.Recorder.MarkAlerted(ctx, id); err != nil {
			ev.Error().Err(err).Int64("id", id).Msg("mark alerted failed")
		}
	}
	ev.Info().Float64("strength", sig.Strength).Msg("alert sent")
}

// Zones reads the current RSI zone of every symbol on every timeframe.
func (s *Scheduler) Zones(ctx context.Context) ([]strategy.ZoneReading, error) {
	var out []strategy.ZoneReading
	for _, tf := range s.Options.Timeframes {
		for _, sym := range s.Options.Symbols {
			if err := ctx.Err(); err != nil {
				return out, err
			}
			series, err := s.Collector.Series(ctx, sym, tf, s.Options.CandleLimit)
			if err != nil {
				s.Logger.Warn().Err(err).Str("symbol", sym).Str("timeframe", tf).Msg("zone reading skipped")
				continue
			}
			if r, ok := strategy.ReadZone(series, s.Options.Zones); ok {
				out = append(out, r)
			}
		}
	}
	return out, nil
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	switch command {
	case "/start", "/help":
		return notifier.HelpText(s.quickCount())
	case "/scan":
		return s.commandScan(ctx, s.Options.Symbols)
	case "/quick":
		return s.commandScan(ctx, s.Options.Symbols[:s.quickCount()])
	case "/zones":
		readings, err := s.Zones(ctx)
		if err != nil {
			return fmt.Sprintf("❌ Zone scan failed: %v", err)
		}
		return notifier.FormatZones(readings)
	case "/status":
		stats, err := s.Recorder.Statistics(ctx)
		if err != nil {
			s.Logger.Error().Err(err).Msg("load statistics")
			stats = nil
		}
		return notifier.FormatStatus(s.State.GetState(), stats, s.now())
	case "/coins":
		return notifier.FormatCoins(s.Options.Symbols, s.Options.Timeframes)
	default:
		return "Unknown command. Send /help for the list of commands."
	}
}

func (s *Scheduler) quickCount() int {
	n := s.Options.QuickCount
	if n <= 0 || n > len(s.Options.Symbols) {
		n = len(s.Options.Symbols)
	}
	return n
}

func (s *Scheduler) commandScan(ctx context.Context, symbols []string) string {
	report, err := s.RunScan(ctx, symbols)
	if err != nil {
		return fmt.Sprintf("❌ Scan interrupted: %v", err)
	}
	return notifier.FormatScanSummary(report.Signals, report.Symbols, report.Took)
}

func (s *Scheduler) trySend(ctx context.Context, text string) {
	if err := s.Notifier.SendWithRetry(ctx, text, sendRetries); err != nil {
		s.Logger.Error().Err(err).Msg("send notification")
	}
}
