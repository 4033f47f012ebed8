// Package config loads and persists application settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/arkshorizon/mailmind/internal/mailbox"
)

// IMAPConfig holds the mail-retrieval endpoint and account name. The
// account password lives in the system keyring, never in this file.
type IMAPConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`
}

// InferenceConfig holds the completion-service settings. The API key
// lives in the system keyring or environment.
type InferenceConfig struct {
	BaseURL    string `mapstructure:"base_url" yaml:"base_url"`
	Model      string `mapstructure:"model" yaml:"model"`
	TimeoutSec int    `mapstructure:"timeout_sec" yaml:"timeout_sec"`
}

// RetrievalConfig bounds what one query pulls from the inbox and feeds to
// the inference stages.
type RetrievalConfig struct {
	// Limit is the maximum number of recent messages fetched per query.
	Limit int `mapstructure:"limit" yaml:"limit"`

	// BodyLimit caps each normalized body, in runes. Clamped to
	// [500, 1000].
	BodyLimit int `mapstructure:"body_limit" yaml:"body_limit"`

	// PreviewLimit caps the per-message excerpt embedded in the
	// filtering prompt.
	PreviewLimit int `mapstructure:"preview_limit" yaml:"preview_limit"`

	// TimeoutSec bounds the whole mailbox leg of one query.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`
}

// ServerConfig holds the web-form listener settings.
type ServerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// Config is the top-level application configuration.
type Config struct {
	IMAP      IMAPConfig      `mapstructure:"imap" yaml:"imap"`
	Inference InferenceConfig `mapstructure:"inference" yaml:"inference"`
	Retrieval RetrievalConfig `mapstructure:"retrieval" yaml:"retrieval"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
}

// DefaultPath returns the default config file location,
// ~/.config/mailmind/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "mailmind", "config.yaml")
}

func defaultConfig() *Config {
	return &Config{
		IMAP: IMAPConfig{
			Host: "imap.gmail.com",
			Port: 993,
		},
		Inference: InferenceConfig{
			BaseURL:    "https://api.groq.com/openai/v1",
			Model:      "llama3-8b-8192",
			TimeoutSec: 30,
		},
		Retrieval: RetrievalConfig{
			Limit:        10,
			BodyLimit:    500,
			PreviewLimit: 200,
			TimeoutSec:   30,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
	}
}

// Load reads configuration from the given YAML file. A missing file
// yields the defaults. Every key can be overridden through the
// environment with a MAILMIND_ prefix (MAILMIND_IMAP_HOST and so on).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	def := defaultConfig()
	v.SetDefault("imap.host", def.IMAP.Host)
	v.SetDefault("imap.port", def.IMAP.Port)
	v.SetDefault("imap.username", def.IMAP.Username)
	v.SetDefault("inference.base_url", def.Inference.BaseURL)
	v.SetDefault("inference.model", def.Inference.Model)
	v.SetDefault("inference.timeout_sec", def.Inference.TimeoutSec)
	v.SetDefault("retrieval.limit", def.Retrieval.Limit)
	v.SetDefault("retrieval.body_limit", def.Retrieval.BodyLimit)
	v.SetDefault("retrieval.preview_limit", def.Retrieval.PreviewLimit)
	v.SetDefault("retrieval.timeout_sec", def.Retrieval.TimeoutSec)
	v.SetDefault("server.addr", def.Server.Addr)

	v.SetEnvPrefix("MAILMIND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !notFound && !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.Retrieval.BodyLimit = mailbox.ClampBodyLimit(cfg.Retrieval.BodyLimit)
	if cfg.Retrieval.Limit <= 0 {
		cfg.Retrieval.Limit = def.Retrieval.Limit
	}

	return cfg, nil
}

// Save writes the configuration to a YAML file at path, creating parent
// directories as needed.
func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("imap", cfg.IMAP)
	v.Set("inference", cfg.Inference)
	v.Set("retrieval", cfg.Retrieval)
	v.Set("server", cfg.Server)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
