// Package config provides configuration types and defaults for greenlit.
package config

import (
	"fmt"
	"time"

	"github.com/tiangong-ai/greenlit/internal/tracing"
)

// RetryConfig tunes the shared adapter retry policy.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	Multiplier  float64       `mapstructure:"multiplier"`
	Jitter      bool          `mapstructure:"jitter"`
	Deadline    time.Duration `mapstructure:"deadline"` // covers all retries of one call
}

// CacheConfig controls the read-through cache tiers.
type CacheConfig struct {
	Disabled bool `mapstructure:"disabled"`
	// TTLs holds per-capability time-to-live overrides, keyed by capability.
	TTLs map[string]time.Duration `mapstructure:"ttls"`
	// DefaultTTL applies to capabilities without an override.
	DefaultTTL time.Duration `mapstructure:"default_ttl"`
}

// TTLFor returns the TTL for a capability.
func (c CacheConfig) TTLFor(capability string) time.Duration {
	if ttl, ok := c.TTLs[capability]; ok {
		return ttl
	}
	return c.DefaultTTL
}

// SynthesisConfig points at the LLM collaborator.
type SynthesisConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Model    string `mapstructure:"model"`
}

// SourcesConfig controls source endpoint overrides, mostly for tests and
// self-hosted deployments.
type SourcesConfig struct {
	GitHubBaseURL       string `mapstructure:"github_base_url"`
	ScholarBaseURL      string `mapstructure:"scholar_base_url"`
	UNSDGBaseURL        string `mapstructure:"un_sdg_base_url"`
	OSDGBaseURL         string `mapstructure:"osdg_base_url"`
	ChartMCPEndpoint    string `mapstructure:"chart_mcp_endpoint"`
	GridIntensityBinary string `mapstructure:"grid_intensity_binary"`
	CatalogPath         string `mapstructure:"catalog_path"` // empty = builtin catalogue
}

// Config holds all configuration options for greenlit.
type Config struct {
	CacheDir       string          `mapstructure:"cache_dir"`
	SecretsFile    string          `mapstructure:"secrets_file"`
	EnabledSources []string        `mapstructure:"enabled_sources"` // empty = all
	ProfileDir     string          `mapstructure:"profile_dir"`     // extra user profiles
	Retry          RetryConfig     `mapstructure:"retry"`
	Cache          CacheConfig     `mapstructure:"cache"`
	Synthesis      SynthesisConfig `mapstructure:"synthesis"`
	Sources        SourcesConfig   `mapstructure:"sources"`
	Tracing        tracing.Config  `mapstructure:"tracing"`
}

// Defaults returns the configuration used when no config file exists.
func Defaults() Config {
	return Config{
		CacheDir:    ".cache/greenlit",
		SecretsFile: ".greenlit/secrets.yaml",
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   time.Second,
			Multiplier:  2,
			Jitter:      true,
			Deadline:    2 * time.Minute,
		},
		Cache: CacheConfig{
			DefaultTTL: 6 * time.Hour,
			TTLs: map[string]time.Duration{
				"carbon-intensity": 15 * time.Minute,
				"taxonomy-map":     24 * time.Hour,
			},
		},
		Synthesis: SynthesisConfig{
			Endpoint: "https://api.openai.com/v1/responses",
			Model:    "o4-mini-deep-research",
		},
		Tracing: tracing.DefaultConfig(),
	}
}

// Validate rejects configurations that cannot work.
func (c Config) Validate() error {
	if c.CacheDir == "" {
		return fmt.Errorf("cache_dir must not be empty")
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.Multiplier < 1 {
		return fmt.Errorf("retry.multiplier must be at least 1, got %v", c.Retry.Multiplier)
	}
	return nil
}
