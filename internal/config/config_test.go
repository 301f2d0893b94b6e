package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Divergence.MinQuality != 60 || cfg.Reversal.MinStrength != 50 || cfg.RSI.Period != 14 {
		t.Errorf("detector defaults not applied: %+v", cfg.Divergence)
	}
	if cfg.Scan.Cooldown != 2*time.Hour || cfg.Exchange.RetryDelay != 3*time.Second {
		t.Errorf("unexpected durations %v %v", cfg.Scan.Cooldown, cfg.Exchange.RetryDelay)
	}
	if cfg.Database.SQLitePath == "" || cfg.Scan.Cron == "" || cfg.StateFile == "" {
		t.Error("string defaults not applied")
	}
}

func TestLoad_PartialSectionKeepsDefaults(t *testing.T) {
	path := writeFile(t, `
divergence:
  pivot_order: 4
scan:
  cooldown: 30m
  timeframes: [1h]
backtest:
  take_profit_pct: 5
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Divergence.PivotOrder != 4 || cfg.Divergence.LookbackCandles != 50 || !cfg.Divergence.RequireConfirmation {
		t.Errorf("partial divergence section lost defaults: %+v", cfg.Divergence)
	}
	if cfg.Scan.Cooldown != 30*time.Minute || len(cfg.Scan.Timeframes) != 1 {
		t.Errorf("scan overrides not applied: %+v", cfg.Scan)
	}
	if cfg.Backtest.TakeProfitPct != 5 || cfg.Backtest.StopLossPct != 2 || cfg.Backtest.WindowSize != 100 {
		t.Errorf("inline backtest config not merged: %+v", cfg.Backtest.Config)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("TELEGRAM_CHAT_ID", "42")
	t.Setenv("DATABASE_URL", "postgres://localhost/rsi")
	t.Setenv("SCAN_SYMBOLS", "BTC/USDT, ETH/USDT,")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(writeFile(t, "telegram:\n  bot_token: from-file\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Telegram.BotToken != "token" || cfg.Telegram.ChatID != "42" {
		t.Errorf("telegram env not applied: %+v", cfg.Telegram)
	}
	if cfg.Database.Driver != DriverPostgres || cfg.Database.URL == "" {
		t.Errorf("DATABASE_URL should select postgres: %+v", cfg.Database)
	}
	if len(cfg.Scan.Symbols) != 2 || cfg.Scan.Symbols[1] != "ETH/USDT" {
		t.Errorf("unexpected symbols %v", cfg.Scan.Symbols)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("unexpected level %q", cfg.Log.Level)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config: %v", err)
	}
}

func TestLoad_BadYAML(t *testing.T) {
	if _, err := Load(writeFile(t, "scan: [unterminated")); err == nil {
		t.Error("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"test mode needs no telegram", func(c *Config) { c.Mode = ModeTest }, false},
		{"production needs token", func(c *Config) {}, true},
		{"production with credentials", func(c *Config) { c.Telegram.BotToken, c.Telegram.ChatID = "t", "1" }, false},
		{"unknown mode", func(c *Config) { c.Mode = "paper" }, true},
		{"no symbols", func(c *Config) { c.Mode = ModeTest; c.Scan.Symbols = nil }, true},
		{"limit below period", func(c *Config) { c.Mode = ModeTest; c.Scan.CandleLimit = 10 }, true},
		{"postgres without url", func(c *Config) { c.Mode = ModeTest; c.Database.Driver = DriverPostgres }, true},
		{"bad divergence", func(c *Config) { c.Mode = ModeTest; c.Divergence.MinQuality = 120 }, true},
		{"bad reversal", func(c *Config) { c.Mode = ModeTest; c.Reversal.SupportZone.High = 70 }, true},
		{"bad zones", func(c *Config) { c.Mode = ModeTest; c.Zones.Oversold = 20 }, true},
		{"bad backtest", func(c *Config) { c.Mode = ModeTest; c.Backtest.Lookahead = 0 }, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := Default()
			tc.mutate(c)
			err := c.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}
