package store

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"inr-trade-matcher/internal/types"

	"gopkg.in/yaml.v3"
)

// DefaultStablecoins is the widest stablecoin set any engine revision used.
var DefaultStablecoins = []string{
	"USDT", "USDC", "DAI", "FDUSD", "BUSD", "TUSD", "USDP",
	"PYUSD", "GUSD", "USDD", "FRAX", "LUSD", "USDE", "USDJ",
}

type Config struct {
	Strategy     string   `yaml:"strategy"`
	BuyWindow    string   `yaml:"buy_window"`
	TrackSkipped bool     `yaml:"track_skipped"`
	Stablecoins  []string `yaml:"stablecoins"`
	YieldEvery   int      `yaml:"yield_every"`
	Inventory    struct {
		Backend    string `yaml:"backend"`
		SQLitePath string `yaml:"sqlite_path"`
		// SpillThreshold switches "auto" to SQLite once the buy count exceeds it.
		SpillThreshold int `yaml:"spill_threshold"`
	} `yaml:"inventory"`
	PnL struct {
		SellPrice string `yaml:"sell_price"`
	} `yaml:"pnl"`
	Report struct {
		OutputDir string `yaml:"output_dir"`
		Precision int    `yaml:"precision"`
	} `yaml:"report"`
	Audit struct {
		Enabled       bool   `yaml:"enabled"`
		Dir           string `yaml:"dir"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"audit"`
	Server struct {
		Addr           string        `yaml:"addr"`
		MaxUploadBytes int64         `yaml:"max_upload_bytes"`
		RatePerSecond  float64       `yaml:"rate_per_second"`
		RateBurst      int           `yaml:"rate_burst"`
		CacheTTL       time.Duration `yaml:"cache_ttl"`
		ReadTimeout    time.Duration `yaml:"read_timeout"`
		WriteTimeout   time.Duration `yaml:"write_timeout"`
	} `yaml:"server"`
}

func (c *Config) Validate() error {
	if _, err := types.ParseStrategy(c.Strategy); err != nil {
		return fmt.Errorf("invalid strategy '%s': must be 'aggregate', 'daily', 'fifo' or 'chronological'", c.Strategy)
	}
	if c.BuyWindow != "cumulative" && c.BuyWindow != "sameDay" {
		return fmt.Errorf("invalid buy_window '%s': must be 'cumulative' or 'sameDay'", c.BuyWindow)
	}
	if len(c.Stablecoins) == 0 {
		return errors.New("stablecoins cannot be empty")
	}
	switch c.Inventory.Backend {
	case "memory", "auto":
	case "sqlite":
		if c.Inventory.SQLitePath == "" {
			return errors.New("inventory.sqlite_path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("inventory.backend must be 'memory', 'sqlite' or 'auto', got '%s'", c.Inventory.Backend)
	}
	if c.PnL.SellPrice != "usdt" && c.PnL.SellPrice != "inr" {
		return fmt.Errorf("pnl.sell_price must be 'usdt' or 'inr', got '%s'", c.PnL.SellPrice)
	}
	if c.Report.Precision < 2 || c.Report.Precision > 10 {
		return fmt.Errorf("report.precision must be between 2-10, got %d", c.Report.Precision)
	}
	return nil
}

// Default returns a configuration with every default and environment
// override applied.
func Default() *Config {
	var c Config
	applyDefaults(&c)
	applyEnv(&c)
	return &c
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig(b)
}

func ParseConfig(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	applyDefaults(&c)
	applyEnv(&c)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &c, nil
}

func applyDefaults(c *Config) {
	if c.Strategy == "" {
		c.Strategy = "fifo"
	}
	if s, err := types.ParseStrategy(c.Strategy); err == nil {
		c.Strategy = s.String()
	}
	if c.BuyWindow == "" {
		c.BuyWindow = "cumulative"
	}
	if len(c.Stablecoins) == 0 {
		c.Stablecoins = append([]string(nil), DefaultStablecoins...)
	}
	for i, s := range c.Stablecoins {
		c.Stablecoins[i] = strings.ToUpper(strings.TrimSpace(s))
	}
	if c.YieldEvery == 0 {
		c.YieldEvery = 10
	}
	if c.Inventory.Backend == "" {
		c.Inventory.Backend = "memory"
	}
	if c.Inventory.SpillThreshold == 0 {
		c.Inventory.SpillThreshold = 100000
	}
	if c.PnL.SellPrice == "" {
		c.PnL.SellPrice = "usdt"
	}
	if c.Report.Precision == 0 {
		c.Report.Precision = 6
	}
	if c.Report.OutputDir == "" {
		c.Report.OutputDir = "reports"
	}
	if c.Audit.Dir == "" {
		c.Audit.Dir = "logs/audit"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.MaxUploadBytes == 0 {
		c.Server.MaxUploadBytes = 20 << 20
	}
	if c.Server.RatePerSecond == 0 {
		c.Server.RatePerSecond = 10
	}
	if c.Server.RateBurst == 0 {
		c.Server.RateBurst = 30
	}
	if c.Server.CacheTTL == 0 {
		c.Server.CacheTTL = 15 * time.Minute
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 60 * time.Second
	}
}

// applyEnv lets the environment override paths set in the file.
func applyEnv(c *Config) {
	if v := os.Getenv("MATCHER_OUTPUT_DIR"); v != "" {
		c.Report.OutputDir = v
	}
	if v := os.Getenv("MATCHER_AUDIT_DIR"); v != "" {
		c.Audit.Dir = v
	}
}
