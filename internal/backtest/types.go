package backtest

import (
	"errors"
	"fmt"
	"time"

	"RSISentinel/internal/model"
)

// Config controls the sliding-window replay and the simulated exits.
type Config struct {
	WindowSize    int     `yaml:"window_size"`
	StepSize      int     `yaml:"step_size"`
	Lookahead     int     `yaml:"lookahead"`
	TakeProfitPct float64 `yaml:"take_profit_pct"`
	StopLossPct   float64 `yaml:"stop_loss_pct"`
}

// DefaultConfig returns the standard replay settings.
func DefaultConfig() Config {
	return Config{
		WindowSize:    100,
		StepSize:      1,
		Lookahead:     20,
		TakeProfitPct: 3,
		StopLossPct:   2,
	}
}

// Validate rejects settings that cannot run.
func (c Config) Validate() error {
	if c.WindowSize <= 0 || c.StepSize <= 0 || c.Lookahead <= 0 {
		return fmt.Errorf("window_size, step_size and lookahead must be positive, got %d/%d/%d",
			c.WindowSize, c.StepSize, c.Lookahead)
	}
	if c.TakeProfitPct <= 0 || c.StopLossPct <= 0 {
		return errors.New("take_profit_pct and stop_loss_pct must be positive")
	}
	if c.StopLossPct >= 100 {
		return errors.New("stop_loss_pct must be below 100")
	}
	return nil
}

// Result is the outcome of replaying one or more series.
type Result struct {
	RunID     string
	Timeframe string
	Start     time.Time
	End       time.Time
	Windows   int
	Trades    []model.TradeResult
	PerSymbol map[string]Metrics
	Metrics   Metrics
	Skipped   map[string]string // symbol -> reason
}

// Metrics aggregates simulated trades.
type Metrics struct {
	NumTrades      int
	Wins           int
	Losses         int
	Timeouts       int
	WinRate        float64 // percent of decided trades (wins + losses)
	ProfitFactor   float64 // 0 when there are no losing trades
	TotalProfitPct float64
	AvgProfitPct   float64
	AvgWinPct      float64
	AvgLossPct     float64
	AvgBarsHeld    float64
}
