// Package config provides configuration file support for patchgate.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/patchgate-project/patchgate/pkg/fsutil"
	"github.com/patchgate-project/patchgate/pkg/template"
)

// FileName is the configuration file looked up at the workspace root.
const FileName = ".patchgate.yaml"

// Config represents the patchgate configuration.
type Config struct {
	AutoBackup            bool         `yaml:"auto_backup"`
	BackupDir             string       `yaml:"backup_dir"`
	MaxChanges            int          `yaml:"max_changes"`
	ConfirmDestructive    bool         `yaml:"confirm_destructive"`
	FilePatternsToConfirm []string     `yaml:"file_patterns_to_confirm"`
	WatchConflicts        bool         `yaml:"watch_conflicts"`
	LogLevel              string       `yaml:"log_level"`
	Notify                NotifyConfig `yaml:"notify"`
	Editor                EditorConfig `yaml:"editor"`
	Prune                 PruneConfig  `yaml:"prune"`
}

// NotifyConfig configures the webhook notification sink.
type NotifyConfig struct {
	WebhookURL     string `yaml:"webhook_url"`
	WebhookSecret  string `yaml:"webhook_secret"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// EditorConfig configures editor integration.
type EditorConfig struct {
	// NvimAddress is the msgpack-rpc socket of a running Neovim instance.
	// Empty means use $NVIM_LISTEN_ADDRESS, or disable if that is unset too.
	NvimAddress string `yaml:"nvim_address"`
}

// PruneConfig configures backup retention.
type PruneConfig struct {
	MaxAgeDays int `yaml:"max_age_days"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		AutoBackup:         true,
		BackupDir:          "{home}/.local/state/patchgate/backups",
		MaxChanges:         100,
		ConfirmDestructive: true,
		FilePatternsToConfirm: []string{
			"*.env",
			".env.*",
			"*.pem",
			"*.key",
			"*credentials*",
			"*secrets*",
		},
		WatchConflicts: false,
		LogLevel:       "info",
		Notify: NotifyConfig{
			TimeoutSeconds: 5,
		},
		Prune: PruneConfig{
			MaxAgeDays: 30,
		},
	}
}

// Load loads configuration from .patchgate.yaml at the workspace root.
// Returns default config if the file doesn't exist.
func Load(root string) (*Config, error) {
	cfg := Default()
	cfgPath := filepath.Join(root, FileName)

	data, err := os.ReadFile(cfgPath)
	if os.IsNotExist(err) {
		return cfg, nil // No config file is OK, use defaults
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes configuration to .patchgate.yaml at the workspace root.
func Save(root string, cfg *Config) error {
	cfgPath := filepath.Join(root, FileName)

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := fsutil.AtomicWrite(cfgPath, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// ResolvedBackupDir expands placeholders in BackupDir.
func (c *Config) ResolvedBackupDir() string {
	return template.ExpandPath(c.BackupDir)
}

// WebhookTimeoutSeconds returns the notify timeout, falling back to the
// default when unset or nonsense.
func (c *Config) WebhookTimeoutSeconds() int {
	if c.Notify.TimeoutSeconds <= 0 {
		return 5
	}
	return c.Notify.TimeoutSeconds
}

func (c *Config) validate() error {
	if c.MaxChanges < 0 {
		return fmt.Errorf("max_changes must be >= 0, got %d", c.MaxChanges)
	}
	if c.Prune.MaxAgeDays < 0 {
		return fmt.Errorf("prune.max_age_days must be >= 0, got %d", c.Prune.MaxAgeDays)
	}
	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be one of debug, info, warn, error: %s", c.LogLevel)
	}
	return nil
}

// Keys returns the configuration keys addressable via Get and Set.
func Keys() []string {
	return []string{
		"auto_backup",
		"backup_dir",
		"max_changes",
		"confirm_destructive",
		"watch_conflicts",
		"log_level",
		"notify.webhook_url",
		"notify.webhook_secret",
		"notify.timeout_seconds",
		"editor.nvim_address",
		"prune.max_age_days",
	}
}

// Get returns a single configuration value as a string.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "auto_backup":
		return strconv.FormatBool(c.AutoBackup), nil
	case "backup_dir":
		return c.BackupDir, nil
	case "max_changes":
		return strconv.Itoa(c.MaxChanges), nil
	case "confirm_destructive":
		return strconv.FormatBool(c.ConfirmDestructive), nil
	case "watch_conflicts":
		return strconv.FormatBool(c.WatchConflicts), nil
	case "log_level":
		return c.LogLevel, nil
	case "notify.webhook_url":
		return c.Notify.WebhookURL, nil
	case "notify.webhook_secret":
		return c.Notify.WebhookSecret, nil
	case "notify.timeout_seconds":
		return strconv.Itoa(c.Notify.TimeoutSeconds), nil
	case "editor.nvim_address":
		return c.Editor.NvimAddress, nil
	case "prune.max_age_days":
		return strconv.Itoa(c.Prune.MaxAgeDays), nil
	default:
		return "", fmt.Errorf("unknown config key: %s", key)
	}
}

// Set updates a single configuration value from its string form.
func (c *Config) Set(key, value string) error {
	switch key {
	case "auto_backup":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("auto_backup must be true or false: %s", value)
		}
		c.AutoBackup = b
	case "backup_dir":
		c.BackupDir = value
	case "max_changes":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("max_changes must be a non-negative integer: %s", value)
		}
		c.MaxChanges = n
	case "confirm_destructive":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("confirm_destructive must be true or false: %s", value)
		}
		c.ConfirmDestructive = b
	case "watch_conflicts":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("watch_conflicts must be true or false: %s", value)
		}
		c.WatchConflicts = b
	case "log_level":
		c.LogLevel = value
		return c.validate()
	case "notify.webhook_url":
		c.Notify.WebhookURL = value
	case "notify.webhook_secret":
		c.Notify.WebhookSecret = value
	case "notify.timeout_seconds":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("notify.timeout_seconds must be a positive integer: %s", value)
		}
		c.Notify.TimeoutSeconds = n
	case "editor.nvim_address":
		c.Editor.NvimAddress = value
	case "prune.max_age_days":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("prune.max_age_days must be a non-negative integer: %s", value)
		}
		c.Prune.MaxAgeDays = n
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}
