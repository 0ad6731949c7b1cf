// Package config handles BizChat configuration loading and management.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	apperr "github.com/bizchat-ai/bizchat/internal/errors"
)

// Default returns the default configuration.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".bizchat")

	return &Config{
		Server: ServerConfig{
			Addr:               "127.0.0.1:8080",
			MaxBodyBytes:       16 << 20,
			ShutdownTimeoutSec: 10,
		},
		LLM: LLMConfig{
			BaseURL:           "http://127.0.0.1:1234/v1",
			APIKey:            "lm-studio",
			Model:             "qwen3-vl-4b-instruct",
			Temperature:       0.7,
			MaxTokens:         2000,
			TimeoutSec:        120,
			RequestsPerMinute: 60,
		},
		Store: StoreConfig{
			Path: filepath.Join(dataDir, "bizchat.db"),
		},
		Context: ContextConfig{
			MaxChars: 1500,
		},
		Resolver: ResolverConfig{
			KeywordRatio: 0.5,
		},
		Actions: ActionsConfig{
			LastEventFallback: true,
		},
		Moderation: ModerationConfig{
			ForbiddenWords: nil,
		},
		Logging: LoggingConfig{
			Level:       "info",
			Development: false,
		},
	}
}

// Load loads the configuration from the given path.
// If the file doesn't exist, returns defaults.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, apperr.Wrap(err, apperr.CodeConfigInvalid,
			fmt.Sprintf("cannot parse config %q", configPath), apperr.CategoryPermanent)
	}

	cfg = expandPaths(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save saves the configuration to the given path.
func (c *Config) Save(configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	file, err := os.Create(configPath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := toml.NewEncoder(file)
	return encoder.Encode(c)
}

// Validate checks values that would otherwise fail deep inside the pipeline.
func (c *Config) Validate() error {
	if c.LLM.BaseURL == "" {
		return apperr.Permanent(apperr.CodeConfigInvalid, "llm.base_url must be set")
	}
	if c.LLM.Model == "" {
		return apperr.Permanent(apperr.CodeConfigInvalid, "llm.model must be set")
	}
	if c.LLM.TimeoutSec <= 0 {
		return apperr.Permanent(apperr.CodeConfigInvalid, "llm.timeout_sec must be positive")
	}
	if c.Context.MaxChars <= 0 {
		return apperr.Permanent(apperr.CodeConfigInvalid, "context.max_chars must be positive")
	}
	if c.Resolver.KeywordRatio <= 0 || c.Resolver.KeywordRatio > 1 {
		return apperr.Permanent(apperr.CodeConfigInvalid, "resolver.keyword_ratio must be in (0, 1]")
	}
	if c.Store.Path == "" {
		return apperr.Permanent(apperr.CodeConfigInvalid, "store.path must be set")
	}
	return nil
}

// expandPaths expands a leading ~ in filesystem paths.
func expandPaths(cfg *Config) *Config {
	homeDir, _ := os.UserHomeDir()

	if len(cfg.Store.Path) > 0 && cfg.Store.Path[0] == '~' {
		cfg.Store.Path = filepath.Join(homeDir, cfg.Store.Path[1:])
	}

	return cfg
}
