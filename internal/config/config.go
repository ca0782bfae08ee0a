package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Connector ConnectorConfig `mapstructure:"connector"`
	Kalshi    KalshiConfig    `mapstructure:"kalshi"`
	Mock      MockConfig      `mapstructure:"mock"`
	Ranking   RankingConfig   `mapstructure:"ranking"`
	Publish   PublishConfig   `mapstructure:"publish"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Server    ServerConfig    `mapstructure:"server"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Report    ReportConfig    `mapstructure:"report"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ConnectorConfig selects the data source and its cadence
type ConnectorConfig struct {
	Source       string        `mapstructure:"source"` // "mock" or "kalshi"
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// KalshiConfig holds the remote connector configuration
type KalshiConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	SeriesPages  int           `mapstructure:"series_pages"`
	EventsPages  int           `mapstructure:"events_pages"`
	PageSize     int           `mapstructure:"page_size"`
	LimitMarkets int           `mapstructure:"limit_markets"`
	BandCents    float64       `mapstructure:"band_cents"`
	MaxRetries   int           `mapstructure:"max_retries"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// MockConfig holds the synthetic connector configuration
type MockConfig struct {
	Markets int   `mapstructure:"markets"`
	Seed    int64 `mapstructure:"seed"`
}

// RankingConfig holds the ranking query defaults
type RankingConfig struct {
	Limit      int     `mapstructure:"limit"`
	MaxP       float64 `mapstructure:"max_p"`
	MinScore   float64 `mapstructure:"min_score"`
	MinHistory int     `mapstructure:"min_history"`
	Window     int     `mapstructure:"window"`
}

// PublishConfig holds the publish-filter thresholds, independently
// configurable from the ranking thresholds
type PublishConfig struct {
	ZMin          float64 `mapstructure:"z_min"`
	DepthRatioMin float64 `mapstructure:"depth_ratio_min"`
	EntropyMin    float64 `mapstructure:"entropy_min"`
	PMin          float64 `mapstructure:"p_min"`
	PMax          float64 `mapstructure:"p_max"`
}

// StorageConfig holds persistence configuration
type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// ServerConfig holds the HTTP API configuration
type ServerConfig struct {
	Addr    string `mapstructure:"addr"`
	Enabled bool   `mapstructure:"enabled"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// ReportConfig holds the static report generator configuration
type ReportConfig struct {
	OutputPath  string `mapstructure:"output_path"`
	WarmupPolls int    `mapstructure:"warmup_polls"`
	Limit       int    `mapstructure:"limit"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)
	setDefaults(v)

	// Enable environment variable override
	v.SetEnvPrefix("SCANNER")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Connector defaults
	v.SetDefault("connector.source", "mock")
	v.SetDefault("connector.poll_interval", "10s")

	// Kalshi defaults
	v.SetDefault("kalshi.base_url", "https://api.elections.kalshi.com/trade-api/v2")
	v.SetDefault("kalshi.series_pages", 25)
	v.SetDefault("kalshi.events_pages", 10)
	v.SetDefault("kalshi.page_size", 200)
	v.SetDefault("kalshi.limit_markets", 50)
	v.SetDefault("kalshi.band_cents", 3.0)
	v.SetDefault("kalshi.max_retries", 6)
	v.SetDefault("kalshi.timeout", "25s")

	// Mock defaults
	v.SetDefault("mock.markets", 60)
	v.SetDefault("mock.seed", 7)

	// Ranking defaults
	v.SetDefault("ranking.limit", 25)
	v.SetDefault("ranking.max_p", 0.98)
	v.SetDefault("ranking.min_score", 0.0)
	v.SetDefault("ranking.min_history", 3)
	v.SetDefault("ranking.window", 60)

	// Publish-filter defaults
	v.SetDefault("publish.z_min", 2.5)
	v.SetDefault("publish.depth_ratio_min", 0.05)
	v.SetDefault("publish.entropy_min", 0.45)
	v.SetDefault("publish.p_min", 0.05)
	v.SetDefault("publish.p_max", 0.95)

	// Storage defaults
	v.SetDefault("storage.db_path", "./data/scanner.db")

	// Server defaults
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.enabled", true)

	// Telegram defaults
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	// Report defaults
	v.SetDefault("report.output_path", "./docs/index.html")
	v.SetDefault("report.warmup_polls", 6)
	v.SetDefault("report.limit", 80)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.Connector.Source != "mock" && c.Connector.Source != "kalshi" {
		return fmt.Errorf("connector.source must be one of: mock, kalshi")
	}
	if c.Connector.PollInterval < time.Second {
		return fmt.Errorf("connector.poll_interval must be at least 1 second")
	}

	if c.Connector.Source == "kalshi" {
		if c.Kalshi.BaseURL == "" {
			return fmt.Errorf("kalshi.base_url is required")
		}
		if c.Kalshi.SeriesPages < 1 || c.Kalshi.EventsPages < 1 {
			return fmt.Errorf("kalshi page counts must be at least 1")
		}
		if c.Kalshi.PageSize < 1 {
			return fmt.Errorf("kalshi.page_size must be at least 1")
		}
		if c.Kalshi.LimitMarkets < 1 {
			return fmt.Errorf("kalshi.limit_markets must be at least 1")
		}
		if c.Kalshi.BandCents < 0 {
			return fmt.Errorf("kalshi.band_cents must not be negative")
		}
		if c.Kalshi.MaxRetries < 1 {
			return fmt.Errorf("kalshi.max_retries must be at least 1")
		}
	}

	if c.Mock.Markets < 1 {
		return fmt.Errorf("mock.markets must be at least 1")
	}

	if c.Ranking.Limit < 1 {
		return fmt.Errorf("ranking.limit must be at least 1")
	}
	if c.Ranking.MaxP <= 0.0 || c.Ranking.MaxP > 1.0 {
		return fmt.Errorf("ranking.max_p must be in (0.0, 1.0]")
	}
	if c.Ranking.MinHistory < 1 {
		return fmt.Errorf("ranking.min_history must be at least 1")
	}
	if c.Ranking.Window < c.Ranking.MinHistory {
		return fmt.Errorf("ranking.window must be at least ranking.min_history")
	}

	if c.Publish.PMin < 0.0 || c.Publish.PMax > 1.0 || c.Publish.PMin > c.Publish.PMax {
		return fmt.Errorf("publish.p_min/p_max must satisfy 0 <= p_min <= p_max <= 1")
	}

	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path is required")
	}

	if c.Server.Enabled && c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required when server is enabled")
	}

	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	if c.Report.WarmupPolls < 0 {
		return fmt.Errorf("report.warmup_polls must not be negative")
	}
	if c.Report.Limit < 1 {
		return fmt.Errorf("report.limit must be at least 1")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}
