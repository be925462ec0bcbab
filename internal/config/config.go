package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Run       RunConfig       `yaml:"run"`
	Artifacts ArtifactsConfig `yaml:"artifacts"`
	Store     StoreConfig     `yaml:"store"`
	Vault     VaultConfig     `yaml:"vault"`
	Telegram  TelegramConfig  `yaml:"telegram"`
}

type RunConfig struct {
	// AgentTimeout bounds a single planner or judge attempt.
	AgentTimeout time.Duration `yaml:"agent_timeout"`
	// Deadline bounds the whole run wall-clock.
	Deadline time.Duration `yaml:"deadline"`
	// MaxAttempts is the total tries per agent (first attempt + retries).
	MaxAttempts int `yaml:"max_attempts"`
	// Concurrency caps how many planner processes run at once. 0 = unbounded.
	Concurrency int `yaml:"concurrency"`
	// RequiredSections are the Markdown headers a submission must contain.
	RequiredSections []string `yaml:"required_sections"`
}

type ArtifactsConfig struct {
	BaseDir string `yaml:"base_dir"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

type VaultConfig struct {
	Passphrase string `yaml:"passphrase"`
}

type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID int64  `yaml:"chat_id"`
}

func defaults() Config {
	return Config{
		Run: RunConfig{
			AgentTimeout:     10 * time.Minute,
			Deadline:         30 * time.Minute,
			MaxAttempts:      3,
			Concurrency:      0,
			RequiredSections: []string{"## Approach", "## Plan", "## Risks"},
		},
		Artifacts: ArtifactsConfig{
			BaseDir: "runs",
		},
		Store: StoreConfig{
			Path: "data/agora.db",
		},
	}
}

func Load() (*Config, error) {
	cfg := defaults()

	path := os.Getenv("AGORA_CONFIG")
	if path == "" {
		path = "config/agora.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file not found, use defaults + env
	} else {
		// Expand environment variables in YAML
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("AGORA_ARTIFACTS_DIR"); v != "" {
		cfg.Artifacts.BaseDir = v
	}
	if v := os.Getenv("AGORA_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("AGORA_VAULT_PASSPHRASE"); v != "" {
		cfg.Vault.Passphrase = v
	}
	if v := os.Getenv("AGORA_TELEGRAM_TOKEN"); v != "" {
		cfg.Telegram.Token = v
	}
	if v := os.Getenv("AGORA_TELEGRAM_CHAT_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Telegram.ChatID = id
		}
	}
	if v := os.Getenv("AGORA_AGENT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Run.AgentTimeout = d
		}
	}
	if v := os.Getenv("AGORA_RUN_DEADLINE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Run.Deadline = d
		}
	}
}

func validate(cfg *Config) error {
	if cfg.Run.MaxAttempts < 1 {
		return fmt.Errorf("run.max_attempts must be at least 1, got %d", cfg.Run.MaxAttempts)
	}
	if cfg.Run.AgentTimeout <= 0 {
		return fmt.Errorf("run.agent_timeout must be positive")
	}
	if cfg.Run.Deadline <= 0 {
		return fmt.Errorf("run.deadline must be positive")
	}
	if len(cfg.Run.RequiredSections) == 0 {
		return fmt.Errorf("run.required_sections must not be empty")
	}
	return nil
}
