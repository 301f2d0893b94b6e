package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"RSISentinel/internal/backtest"
	"RSISentinel/internal/strategy"
)

// Run modes for cmd/bot.
const (
	ModeProduction = "production"
	ModeTest       = "test"
)

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds all application configuration.
type Config struct {
	Mode string `yaml:"mode"`

	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`

	Exchange struct {
		Sources    []string      `yaml:"sources"` // binance, binance_futures, yahoo, mock
		MaxRetries int           `yaml:"max_retries"`
		RetryDelay time.Duration `yaml:"retry_delay"`
		StreamURL  string        `yaml:"stream_url"`
	} `yaml:"exchange"`

	Scan struct {
		Symbols     []string      `yaml:"symbols"`
		Timeframes  []string      `yaml:"timeframes"`
		CandleLimit int           `yaml:"candle_limit"`
		Cron        string        `yaml:"cron"`
		CleanupCron string        `yaml:"cleanup_cron"`
		Retention   time.Duration `yaml:"retention"`
		Cooldown    time.Duration `yaml:"cooldown"`
		Bullish     bool          `yaml:"bullish"`
		Bearish     bool          `yaml:"bearish"`
		Reversal    bool          `yaml:"reversal"`
		MTF         bool          `yaml:"mtf"`
		Stream      bool          `yaml:"stream"`
		QuickCount  int           `yaml:"quick_count"`
	} `yaml:"scan"`

	RSI struct {
		Period int `yaml:"period"`
	} `yaml:"rsi"`

	Divergence strategy.DivergenceConfig `yaml:"divergence"`
	Reversal   strategy.ReversalConfig   `yaml:"reversal"`
	Zones      strategy.ZoneThresholds   `yaml:"zones"`

	Backtest struct {
		backtest.Config `yaml:",inline"`
		Symbols         []string `yaml:"symbols"`
		Timeframe       string   `yaml:"timeframe"`
		CandleLimit     int      `yaml:"candle_limit"`
		CSVPath         string   `yaml:"csv_path"`
	} `yaml:"backtest"`

	Database struct {
		Driver     string `yaml:"driver"`
		SQLitePath string `yaml:"sqlite_path"`
		URL        string `yaml:"url"`
	} `yaml:"database"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	API struct {
		Listen string `yaml:"listen"`
	} `yaml:"api"`

	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`

	StateFile string `yaml:"state_file"`
	Proxy     string `yaml:"proxy"`
}

// Default returns a Config with every detector section at its production values.
// Load starts from it so a partial YAML file only overrides what it names.
func Default() *Config {
	cfg := &Config{Mode: ModeProduction}
	cfg.Exchange.Sources = []string{"binance", "binance_futures", "yahoo"}
	cfg.Exchange.MaxRetries = 3
	cfg.Exchange.RetryDelay = 3 * time.Second
	cfg.Scan.Symbols = []string{"BTC/USDT", "ETH/USDT", "BNB/USDT", "SOL/USDT", "XRP/USDT"}
	cfg.Scan.Timeframes = []string{"15m", "1h", "4h"}
	cfg.Scan.CandleLimit = 200
	cfg.Scan.Retention = 30 * 24 * time.Hour
	cfg.Scan.Cooldown = 2 * time.Hour
	cfg.Scan.Bullish = true
	cfg.Scan.Bearish = true
	cfg.Scan.Reversal = true
	cfg.Scan.QuickCount = 5
	cfg.RSI.Period = 14
	cfg.Divergence = strategy.DefaultDivergenceConfig()
	cfg.Reversal = strategy.DefaultReversalConfig()
	cfg.Zones = strategy.DefaultZoneThresholds()
	cfg.Backtest.Config = backtest.DefaultConfig()
	cfg.Backtest.Timeframe = "1h"
	cfg.Backtest.CandleLimit = 1000
	cfg.Database.Driver = DriverSQLite
	cfg.Log.Level = "info"
	return cfg
}

// Load reads config from a YAML file, then applies environment variable overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("BOT_MODE"); v != "" {
		c.Mode = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Telegram.ChatID = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		c.Proxy = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		c.Database.SQLitePath = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.URL = v
		c.Database.Driver = DriverPostgres
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("SCAN_CRON"); v != "" {
		c.Scan.Cron = v
	}
	if v := os.Getenv("SCAN_SYMBOLS"); v != "" {
		c.Scan.Symbols = splitList(v)
	}
	if v := os.Getenv("API_LISTEN"); v != "" {
		c.API.Listen = v
	}
	if v := os.Getenv("SCAN_STREAM"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Scan.Stream = b
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Mode == "" {
		c.Mode = ModeProduction
	}
	if c.Scan.Cron == "" {
		c.Scan.Cron = "0 */15 * * * *"
	}
	if c.Scan.CleanupCron == "" {
		c.Scan.CleanupCron = "0 0 3 * * *"
	}
	if c.Exchange.StreamURL == "" {
		c.Exchange.StreamURL = "wss://stream.binance.com:9443/stream"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverSQLite
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/rsi_sentinel.db"
	}
	if c.StateFile == "" {
		c.StateFile = "data/scan_state.json"
	}
	if len(c.Backtest.Symbols) == 0 {
		c.Backtest.Symbols = c.Scan.Symbols
	}
	if c.Backtest.CSVPath == "" {
		c.Backtest.CSVPath = "data/backtest_trades.csv"
	}
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Validate checks that all required fields are set and that every detector
// section can be constructed. Telegram credentials are only required in production.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeProduction:
		if c.Telegram.BotToken == "" {
			return errors.New("telegram.bot_token is required")
		}
		if c.Telegram.ChatID == "" {
			return errors.New("telegram.chat_id is required")
		}
	case ModeTest:
	default:
		return fmt.Errorf("mode must be %q or %q, got %q", ModeProduction, ModeTest, c.Mode)
	}
	if len(c.Scan.Symbols) == 0 {
		return errors.New("scan.symbols must not be empty")
	}
	if len(c.Scan.Timeframes) == 0 {
		return errors.New("scan.timeframes must not be empty")
	}
	if len(c.Exchange.Sources) == 0 {
		return errors.New("exchange.sources must not be empty")
	}
	if c.Exchange.MaxRetries <= 0 {
		return fmt.Errorf("exchange.max_retries must be positive, got %d", c.Exchange.MaxRetries)
	}
	if c.RSI.Period < 2 {
		return fmt.Errorf("rsi.period must be at least 2, got %d", c.RSI.Period)
	}
	if c.Scan.CandleLimit <= c.RSI.Period {
		return fmt.Errorf("scan.candle_limit (%d) must exceed rsi.period (%d)", c.Scan.CandleLimit, c.RSI.Period)
	}
	if c.Scan.Cooldown < 0 || c.Scan.Retention < 0 {
		return errors.New("scan.cooldown and scan.retention must not be negative")
	}
	if c.Database.Driver != DriverSQLite && c.Database.Driver != DriverPostgres {
		return fmt.Errorf("database.driver must be %q or %q, got %q", DriverSQLite, DriverPostgres, c.Database.Driver)
	}
	if c.Database.Driver == DriverPostgres && c.Database.URL == "" {
		return errors.New("database.url is required for the postgres driver")
	}
	if err := c.Divergence.Validate(); err != nil {
		return fmt.Errorf("divergence: %w", err)
	}
	if err := c.Reversal.Validate(); err != nil {
		return fmt.Errorf("reversal: %w", err)
	}
	if err := c.Zones.Validate(); err != nil {
		return fmt.Errorf("zones: %w", err)
	}
	if err := c.Backtest.Config.Validate(); err != nil {
		return fmt.Errorf("backtest: %w", err)
	}
	return nil
}
