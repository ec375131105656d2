package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
enrich:
  firecrawl_api_key: fc-test
  gemini_api_key: gm-test
  gemini_model: gemini-test
  prompts_dir: tpl
  schemas_dir: defs
  output_dir: out
  timeout_seconds: 45
  max_retries: 2
  batch_rate_per_sec: 1.5
notifier:
  host: 127.0.0.1
  port: 9000
  closeio_api_key: cl-test
  discord_webhook_url: https://discord.example/hook
  polling_enabled: true
  polling_interval_seconds: 60
  cache_retention_hours: 12
  database_dsn: postgres://localhost/opens
logging:
  development: false
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Notifier.Port != 9000 {
		t.Fatalf("expected port 9000, got %d", cfg.Notifier.Port)
	}
	if cfg.Enrich.PromptsDir != "tpl" || cfg.Enrich.SchemasDir != "defs" {
		t.Fatalf("expected directory overrides to apply: %+v", cfg.Enrich)
	}
	if cfg.Enrich.FirecrawlAPIKey != "fc-test" || cfg.Notifier.CloseAPIKey != "cl-test" {
		t.Fatalf("expected credentials to be loaded")
	}
	if cfg.Logging.Development {
		t.Fatalf("expected logging.development false")
	}
	if got := cfg.RequestTimeout(); got != 45*time.Second {
		t.Fatalf("expected request timeout 45s, got %v", got)
	}
	if got := cfg.PollingInterval(); got != time.Minute {
		t.Fatalf("expected polling interval 1m, got %v", got)
	}
	if got := cfg.CacheRetention(); got != 12*time.Hour {
		t.Fatalf("expected cache retention 12h, got %v", got)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Notifier.Port != 8000 {
		t.Fatalf("expected default port 8000, got %d", cfg.Notifier.Port)
	}
	if cfg.Notifier.PollingIntervalSeconds != 300 {
		t.Fatalf("expected default polling interval 300s, got %d", cfg.Notifier.PollingIntervalSeconds)
	}
	if cfg.Notifier.CacheRetentionHours != 24 {
		t.Fatalf("expected default cache retention 24h, got %d", cfg.Notifier.CacheRetentionHours)
	}
	if cfg.Enrich.FirecrawlAPIURL != "https://api.firecrawl.dev/v1" {
		t.Fatalf("unexpected scraping API URL: %s", cfg.Enrich.FirecrawlAPIURL)
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Enrich: EnrichConfig{
			TimeoutSeconds:  60,
			MaxRetries:      3,
			BatchRatePerSec: 0.5,
		},
		Notifier: NotifierConfig{
			Port:                   8000,
			PollingEnabled:         true,
			PollingIntervalSeconds: 300,
			CacheRetentionHours:    24,
		},
	}

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "invalid port",
			cfg: func() Config {
				c := base
				c.Notifier.Port = 0
				return c
			}(),
			want: "notifier.port",
		},
		{
			name: "polling enabled without interval",
			cfg: func() Config {
				c := base
				c.Notifier.PollingIntervalSeconds = 0
				return c
			}(),
			want: "notifier.polling_interval_seconds",
		},
		{
			name: "invalid retention",
			cfg: func() Config {
				c := base
				c.Notifier.CacheRetentionHours = 0
				return c
			}(),
			want: "notifier.cache_retention_hours",
		},
		{
			name: "invalid timeout",
			cfg: func() Config {
				c := base
				c.Enrich.TimeoutSeconds = 0
				return c
			}(),
			want: "enrich.timeout_seconds",
		},
		{
			name: "invalid batch rate",
			cfg: func() Config {
				c := base
				c.Enrich.BatchRatePerSec = 0
				return c
			}(),
			want: "enrich.batch_rate_per_sec",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
