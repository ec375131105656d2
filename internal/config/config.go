// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all configuration knobs for both binaries. The enrichment
// CLI only reads Enrich and Logging; the notifier reads Notifier and Logging.
type Config struct {
	Enrich   EnrichConfig   `mapstructure:"enrich"`
	Notifier NotifierConfig `mapstructure:"notifier"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// EnrichConfig governs the enrichment CLI: external API credentials,
// template/schema locations, and request behavior.
type EnrichConfig struct {
	FirecrawlAPIKey  string  `mapstructure:"firecrawl_api_key"`
	FirecrawlAPIURL  string  `mapstructure:"firecrawl_api_url"`
	GeminiAPIKey     string  `mapstructure:"gemini_api_key"`
	GeminiModel      string  `mapstructure:"gemini_model"`
	BrightDataAPIKey string  `mapstructure:"brightdata_api_key"`
	BrightDataAPIURL string  `mapstructure:"brightdata_api_url"`
	PromptsDir       string  `mapstructure:"prompts_dir"`
	SchemasDir       string  `mapstructure:"schemas_dir"`
	OutputDir        string  `mapstructure:"output_dir"`
	TimeoutSeconds   int     `mapstructure:"timeout_seconds"`
	MaxRetries       int     `mapstructure:"max_retries"`
	BatchRatePerSec  float64 `mapstructure:"batch_rate_per_sec"`
}

// NotifierConfig governs the notification relay server.
type NotifierConfig struct {
	Host                   string `mapstructure:"host"`
	Port                   int    `mapstructure:"port"`
	CloseAPIKey            string `mapstructure:"closeio_api_key"`
	CloseAPIURL            string `mapstructure:"closeio_api_url"`
	DiscordWebhookURL      string `mapstructure:"discord_webhook_url"`
	PollingEnabled         bool   `mapstructure:"polling_enabled"`
	PollingIntervalSeconds int    `mapstructure:"polling_interval_seconds"`
	CacheRetentionHours    int    `mapstructure:"cache_retention_hours"`
	DatabaseDSN            string `mapstructure:"database_dsn"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PROSPECTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

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
	v.SetDefault("enrich.firecrawl_api_url", "https://api.firecrawl.dev/v1")
	v.SetDefault("enrich.gemini_model", "gemini-2.0-flash")
	v.SetDefault("enrich.brightdata_api_url", "https://api.brightdata.com/datasets/v3")
	v.SetDefault("enrich.prompts_dir", "prompts")
	v.SetDefault("enrich.schemas_dir", "schemas")
	v.SetDefault("enrich.output_dir", "output")
	v.SetDefault("enrich.timeout_seconds", 60)
	v.SetDefault("enrich.max_retries", 3)
	v.SetDefault("enrich.batch_rate_per_sec", 0.5)
	v.SetDefault("notifier.host", "0.0.0.0")
	v.SetDefault("notifier.port", 8000)
	v.SetDefault("notifier.closeio_api_url", "https://api.close.com/api/v1")
	v.SetDefault("notifier.polling_enabled", true)
	v.SetDefault("notifier.polling_interval_seconds", 300)
	v.SetDefault("notifier.cache_retention_hours", 24)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Notifier.Port <= 0 {
		return fmt.Errorf("notifier.port must be > 0")
	}
	if c.Notifier.PollingEnabled && c.Notifier.PollingIntervalSeconds <= 0 {
		return fmt.Errorf("notifier.polling_interval_seconds must be > 0 when polling is enabled")
	}
	if c.Notifier.CacheRetentionHours <= 0 {
		return fmt.Errorf("notifier.cache_retention_hours must be > 0")
	}
	if c.Enrich.TimeoutSeconds <= 0 {
		return fmt.Errorf("enrich.timeout_seconds must be > 0")
	}
	if c.Enrich.MaxRetries < 0 {
		return fmt.Errorf("enrich.max_retries must be >= 0")
	}
	if c.Enrich.BatchRatePerSec <= 0 {
		return fmt.Errorf("enrich.batch_rate_per_sec must be > 0")
	}
	return nil
}

// RequestTimeout converts the enrichment timeout into a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Enrich.TimeoutSeconds) * time.Second
}

// PollingInterval converts the polling interval into a duration.
func (c Config) PollingInterval() time.Duration {
	return time.Duration(c.Notifier.PollingIntervalSeconds) * time.Second
}

// CacheRetention converts the cache retention window into a duration.
func (c Config) CacheRetention() time.Duration {
	return time.Duration(c.Notifier.CacheRetentionHours) * time.Hour
}
