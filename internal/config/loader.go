package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of every configuration environment variable.
const EnvPrefix = "CADHUB_"

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if CADHUB_CONFIG is set
//  3. env (prefix CADHUB_)
func Load(ctx context.Context) (*Config, error) {
	return LoadFrom(ctx, os.Getenv(EnvPrefix+"CONFIG"))
}

// LoadFrom is Load with an explicit YAML path. An empty path skips the file layer.
func LoadFrom(_ context.Context, path string) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// CADHUB_LLM_HOST_URL -> llm_host_url (flat keys, underscores preserved)
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, strings.ToLower(EnvPrefix))
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the invariants the hub relies on.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case strings.TrimSpace(c.LLMHostURL) == "":
		return fmt.Errorf("%w: llm_host_url must not be empty", ErrInvalidConfig)
	case c.LLMTimeout <= 0:
		return fmt.Errorf("%w: llm_timeout must be positive", ErrInvalidConfig)
	case c.GHTimeout <= 0:
		return fmt.Errorf("%w: gh_timeout must be positive", ErrInvalidConfig)
	case c.ResultTTL <= 0:
		return fmt.Errorf("%w: result_ttl must be positive", ErrInvalidConfig)
	case c.SweepInterval <= 0:
		return fmt.Errorf("%w: sweep_interval must be positive", ErrInvalidConfig)
	case c.LLMRatePerSec < 0:
		return fmt.Errorf("%w: llm_rate_per_sec must not be negative", ErrInvalidConfig)
	case c.MetricsRefreshInterval <= 0:
		return fmt.Errorf("%w: metrics_refresh_interval must be positive", ErrInvalidConfig)
	case c.PromptWorkers < 0:
		return fmt.Errorf("%w: prompt_workers must not be negative", ErrInvalidConfig)
	case c.PromptWorkers > 0 && c.PromptQueueSize <= 0:
		return fmt.Errorf("%w: prompt_queue_size must be positive when prompt_workers is set", ErrInvalidConfig)
	}
	return nil
}
