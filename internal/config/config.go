package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// SourceConfig names a fetcher and its priority within a series (lower wins).
type SourceConfig struct {
	Type     string `yaml:"type"`
	Priority int    `yaml:"priority"`
}

// SeriesConfig defines one stored series and where its points come from.
type SeriesConfig struct {
	Slug          string         `yaml:"slug"`
	Name          string         `yaml:"name"`
	Description   string         `yaml:"description"`
	Unit          string         `yaml:"unit"`
	Metric        string         `yaml:"metric"`
	Status        string         `yaml:"status"`
	Sources       []SourceConfig `yaml:"sources"`
	MergeStrategy string         `yaml:"merge_strategy"`
	RoundDecimals int            `yaml:"round_decimals"`
}

// Config holds all application configuration.
type Config struct {
	Server struct {
		Port string `yaml:"port"`
		Mode string `yaml:"mode"` // gin mode: debug, release, test
	} `yaml:"server"`
	Database struct {
		Driver     string `yaml:"driver"`
		SQLitePath string `yaml:"sqlite_path"`
		MySQLDSN   string `yaml:"mysql_dsn"`
	} `yaml:"database"`
	Sources struct {
		ShillerURL     string `yaml:"shiller_url"`
		StooqURL       string `yaml:"stooq_url"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
		Proxy          string `yaml:"proxy"`
	} `yaml:"sources"`
	Series   []SeriesConfig `yaml:"series"`
	Analysis struct {
		DefaultWindow    int `yaml:"default_window"`
		MinWindow        int `yaml:"min_window"`
		MaxWindow        int `yaml:"max_window"`
		DefaultShift     int `yaml:"default_shift"`
		MaxShift         int `yaml:"max_shift"`
		ComparisonWindow int `yaml:"comparison_window"`
		CacheTTLSeconds  int `yaml:"cache_ttl_seconds"`
	} `yaml:"analysis"`
	Schedule struct {
		UpdateCron string `yaml:"update_cron"`
	} `yaml:"schedule"`
	Telegram struct {
		BotToken     string `yaml:"bot_token"`
		ChatID       string `yaml:"chat_id"`
		DigestCrisis string `yaml:"digest_crisis"`
	} `yaml:"telegram"`
}

const (
	DefaultShillerURL = "http://www.econ.yale.edu/~shiller/data/ie_data.xls"
	DefaultStooqURL   = "https://stooq.com/q/d/l/?s=%5Espx&i=m"
)

// DefaultSeries is used when the config file lists no series.
func DefaultSeries() []SeriesConfig {
	return []SeriesConfig{
		{
			Slug:        "spx_price_monthly",
			Name:        "S&P 500 Price (Monthly)",
			Description: "Monthly closing price of S&P 500 index from Shiller + Stooq datasets",
			Unit:        "index_points",
			Metric:      "price",
			Sources: []SourceConfig{
				{Type: "shiller", Priority: 1},
				{Type: "stooq", Priority: 2},
			},
			MergeStrategy: "fill_gaps",
			RoundDecimals: 2,
		},
		{
			Slug:          "spx_pe_monthly",
			Name:          "S&P 500 P/E Ratio (Monthly)",
			Description:   "Monthly P/E ratio of S&P 500 index from Shiller dataset",
			Unit:          "ratio",
			Metric:        "pe",
			Sources:       []SourceConfig{{Type: "shiller", Priority: 1}},
			MergeStrategy: "fill_gaps",
			RoundDecimals: 2,
		},
	}
}

// Load reads .env, the YAML file at path, then applies environment overrides and defaults.
func Load(path string) (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("GIN_MODE"); v != "" {
		cfg.Server.Mode = v
	}
	if v := os.Getenv("DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("MYSQL_DSN"); v != "" {
		cfg.Database.MySQLDSN = v
	}
	if v := os.Getenv("SHILLER_DATA_URL"); v != "" {
		cfg.Sources.ShillerURL = v
	}
	if v := os.Getenv("STOOQ_DATA_URL"); v != "" {
		cfg.Sources.StooqURL = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Sources.Proxy = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("CRON_UPDATE"); v != "" {
		cfg.Schedule.UpdateCron = v
	}
	if v := os.Getenv("CACHE_TTL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Analysis.CacheTTLSeconds = n
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = "3001"
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "release"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/crash_radar.db"
	}
	if cfg.Sources.ShillerURL == "" {
		cfg.Sources.ShillerURL = DefaultShillerURL
	}
	if cfg.Sources.StooqURL == "" {
		cfg.Sources.StooqURL = DefaultStooqURL
	}
	if cfg.Sources.TimeoutSeconds == 0 {
		cfg.Sources.TimeoutSeconds = 30
	}
	if len(cfg.Series) == 0 {
		cfg.Series = DefaultSeries()
	}
	for i := range cfg.Series {
		if cfg.Series[i].MergeStrategy == "" {
			cfg.Series[i].MergeStrategy = "fill_gaps"
		}
		if cfg.Series[i].Status == "" {
			cfg.Series[i].Status = "active"
		}
	}
	a := &cfg.Analysis
	if a.DefaultWindow == 0 {
		a.DefaultWindow = 120
	}
	if a.MinWindow == 0 {
		a.MinWindow = 12
	}
	if a.MaxWindow == 0 {
		a.MaxWindow = 180
	}
	if a.DefaultShift == 0 {
		a.DefaultShift = 36
	}
	if a.MaxShift == 0 {
		a.MaxShift = 48
	}
	if a.ComparisonWindow == 0 {
		a.ComparisonWindow = 30
	}
	if a.CacheTTLSeconds == 0 {
		a.CacheTTLSeconds = 300
	}
	if cfg.Schedule.UpdateCron == "" {
		cfg.Schedule.UpdateCron = "0 0 6 * * *"
	}
	if cfg.Telegram.DigestCrisis == "" {
		cfg.Telegram.DigestCrisis = "2001"
	}
}

// TelegramEnabled reports whether both Telegram credentials are set.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}

// Validate checks that all required fields are set and consistent.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "memory":
	case "mysql":
		if c.Database.MySQLDSN == "" {
			return fmt.Errorf("database.mysql_dsn is required for the mysql driver")
		}
	default:
		return fmt.Errorf("database.driver %q is not supported", c.Database.Driver)
	}

	a := c.Analysis
	if a.MinWindow <= 0 || a.MinWindow > a.MaxWindow {
		return fmt.Errorf("analysis.min_window must be positive and <= max_window")
	}
	if a.DefaultWindow < a.MinWindow || a.DefaultWindow > a.MaxWindow {
		return fmt.Errorf("analysis.default_window must be within [%d, %d]", a.MinWindow, a.MaxWindow)
	}
	if a.DefaultShift < 0 || a.DefaultShift > a.MaxShift {
		return fmt.Errorf("analysis.default_shift must be within [0, %d]", a.MaxShift)
	}
	if a.ComparisonWindow <= 0 {
		return fmt.Errorf("analysis.comparison_window must be positive")
	}

	seen := make(map[string]bool)
	for _, s := range c.Series {
		if s.Slug == "" {
			return fmt.Errorf("series slug is required")
		}
		if seen[s.Slug] {
			return fmt.Errorf("series %s is defined twice", s.Slug)
		}
		seen[s.Slug] = true
		if s.Metric != "price" && s.Metric != "pe" {
			return fmt.Errorf("series %s: metric %q must be price or pe", s.Slug, s.Metric)
		}
		if len(s.Sources) == 0 {
			return fmt.Errorf("series %s: at least one source is required", s.Slug)
		}
		if s.MergeStrategy != "fill_gaps" && s.MergeStrategy != "overwrite" {
			return fmt.Errorf("series %s: merge_strategy %q is not supported", s.Slug, s.MergeStrategy)
		}
	}
	return nil
}
