// Package config loads and validates poster configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/amzdeals/postbot/internal/poster"
)

// Store backends accepted by store.backend.
const (
	BackendCSV    = "csv"
	BackendSQLite = "sqlite"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Site     SiteConfig     `mapstructure:"site"`
	Store    StoreConfig    `mapstructure:"store"`
	Engine   EngineConfig   `mapstructure:"engine"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Ops      OpsConfig      `mapstructure:"ops"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// SiteConfig identifies the retail site being scraped.
type SiteConfig struct {
	Origin    string `mapstructure:"origin"`
	UserAgent string `mapstructure:"user_agent"`
}

// StoreConfig selects and locates the worklist backend.
type StoreConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
}

// EngineConfig governs the retry-and-progress loop.
type EngineConfig struct {
	MaxAttempts         int `mapstructure:"max_attempts"`
	RetryBackoffSeconds int `mapstructure:"retry_backoff_seconds"`
	ItemDelaySeconds    int `mapstructure:"item_delay_seconds"`
	IdleDelaySeconds    int `mapstructure:"idle_delay_seconds"`
}

// HTTPConfig configures outbound HTTP client behavior.
type HTTPConfig struct {
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
}

// TelegramConfig holds the Bot API destination and credentials.
type TelegramConfig struct {
	Token   string `mapstructure:"token"`
	ChatID  string `mapstructure:"chat_id"`
	APIBase string `mapstructure:"api_base"`
}

// OpsConfig controls the optional health/metrics listener.
type OpsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("POSTBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The credentials predate the POSTBOT_ prefix, so both spellings work.
	_ = v.BindEnv("telegram.token", "POSTBOT_TELEGRAM_TOKEN", "TELEGRAM_TOKEN")
	_ = v.BindEnv("telegram.chat_id", "POSTBOT_TELEGRAM_CHAT_ID", "TELEGRAM_CHAT_ID")

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("site.origin", poster.DefaultOrigin)
	v.SetDefault("site.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")
	v.SetDefault("store.backend", BackendCSV)
	v.SetDefault("store.path", "products.csv")
	v.SetDefault("engine.max_attempts", 3)
	v.SetDefault("engine.retry_backoff_seconds", 10)
	v.SetDefault("engine.item_delay_seconds", 60)
	v.SetDefault("engine.idle_delay_seconds", 300)
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.rate_limit_rps", 0.5)
	v.SetDefault("telegram.api_base", "https://api.telegram.org")
	v.SetDefault("ops.enabled", false)
	v.SetDefault("ops.port", 9090)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Site.Origin == "" {
		return fmt.Errorf("site.origin must be set")
	}
	if c.Store.Backend != BackendCSV && c.Store.Backend != BackendSQLite {
		return fmt.Errorf("store.backend must be %q or %q", BackendCSV, BackendSQLite)
	}
	if c.Store.Path == "" {
		return fmt.Errorf("store.path must be set")
	}
	if c.Engine.MaxAttempts <= 0 {
		return fmt.Errorf("engine.max_attempts must be > 0")
	}
	if c.Engine.RetryBackoffSeconds < 0 || c.Engine.ItemDelaySeconds < 0 || c.Engine.IdleDelaySeconds < 0 {
		return fmt.Errorf("engine delays must not be negative")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Ops.Enabled && c.Ops.Port <= 0 {
		return fmt.Errorf("ops.port must be > 0 when ops is enabled")
	}
	return nil
}

// RetryBackoff is the fixed wait between attempts on the same item.
func (c Config) RetryBackoff() time.Duration {
	return time.Duration(c.Engine.RetryBackoffSeconds) * time.Second
}

// ItemDelay is the fixed wait between consecutive items.
func (c Config) ItemDelay() time.Duration {
	return time.Duration(c.Engine.ItemDelaySeconds) * time.Second
}

// IdleDelay is the wait between full passes over the worklist.
func (c Config) IdleDelay() time.Duration {
	return time.Duration(c.Engine.IdleDelaySeconds) * time.Second
}

// HTTPTimeout bounds a single outbound fetch.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}
