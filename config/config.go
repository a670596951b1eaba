// Copyright 2025 The Moored Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"
	"github.com/stratastor/logger"
	"gopkg.in/yaml.v3"

	"github.com/moorfs/moored/internal/common"
	"github.com/moorfs/moored/internal/constants"
)

var (
	instance   *Config
	once       sync.Once
	configPath string // Tracks where the config was loaded from
)

// AuthProfile bundles a reusable credential set a share may reference
// instead of embedding its own username.
type AuthProfile struct {
	ID       string `mapstructure:"id"       yaml:"id"`
	Name     string `mapstructure:"name"     yaml:"name"`
	Username string `mapstructure:"username" yaml:"username"`
	Realm    string `mapstructure:"realm"    yaml:"realm"`
}

type Config struct {
	Server struct {
		Port      int    `mapstructure:"port"`
		LogLevel  string `mapstructure:"logLevel"`
		Daemonize bool   `mapstructure:"daemonize"`
	} `mapstructure:"server"`

	Logs struct {
		Path   string `mapstructure:"path"`
		Output string `mapstructure:"output"` // stdout or file
	} `mapstructure:"logs"`

	Logger struct {
		LogLevel     string `mapstructure:"logLevel"`
		EnableSentry bool   `mapstructure:"enableSentry"`
		SentryDSN    string `mapstructure:"sentryDSN"`
	} `mapstructure:"logger"`

	Mount struct {
		// Root is the parent directory for share mount points. Empty
		// means the built-in default under the user's home.
		Root string `mapstructure:"root"`
		// UsernameOverride replaces the local username when resolving
		// %USERNAME% placeholders in share URLs.
		UsernameOverride string `mapstructure:"usernameOverride"`
	} `mapstructure:"mount"`

	Reconcile struct {
		Interval           string `mapstructure:"interval"`           // policy + mount pass cadence
		NetworkSettleDelay string `mapstructure:"networkSettleDelay"` // wait after a network change
	} `mapstructure:"reconcile"`

	Cleanup struct {
		// StrayScanLimit bounds the `<name>-<n>` duplicate scan. The OS
		// rarely produces more than a handful; the bound is a heuristic.
		StrayScanLimit int `mapstructure:"strayScanLimit"`
	} `mapstructure:"cleanup"`

	Probe struct {
		Timeout string `mapstructure:"timeout"`
	} `mapstructure:"probe"`

	Shares struct {
		// ManagedPolicyPath points at the centrally pushed (MDM) share
		// list. Read-only from moored's perspective.
		ManagedPolicyPath string `mapstructure:"managedPolicyPath"`
		// UserSharesPath holds the user-defined share list.
		UserSharesPath string `mapstructure:"userSharesPath"`
	} `mapstructure:"shares"`

	Directory struct {
		// Optional AD/OpenDirectory lookup for the user's network home.
		Enabled       bool   `mapstructure:"enabled"`
		LDAPURL       string `mapstructure:"ldapURL"`
		BaseDN        string `mapstructure:"baseDN"`
		BindDN        string `mapstructure:"bindDN"`
		BindPassword  string `mapstructure:"bindPassword"`
		HomeAttribute string `mapstructure:"homeAttribute"`
	} `mapstructure:"directory"`

	Profiles []AuthProfile `mapstructure:"profiles"`

	Environment string `mapstructure:"environment"`
}

// LoadConfig loads the configuration with precedence rules.
func LoadConfig(configFilePath string) *Config {
	once.Do(func() {
		// Bootstrap logger; the configured one doesn't exist yet.
		l, err := logger.NewTag(logger.Config{LogLevel: "info"}, "config")
		if err != nil {
			fmt.Printf("failed to create logger: %v\n", err)
			os.Exit(1)
		}

		viper.Reset()
		viper.SetConfigType("yaml")

		// Flag beats MOORED_CONFIG beats the per-user default.
		systemConfigPath := filepath.Join(common.GetConfigDir(), constants.ConfigFileName)
		switch {
		case configFilePath != "":
			configPath = configFilePath
		case os.Getenv("MOORED_CONFIG") != "":
			configPath = os.Getenv("MOORED_CONFIG")
		default:
			configPath = systemConfigPath
		}
		if abs, err := filepath.Abs(configPath); err == nil {
			configPath = abs
		}
		viper.SetConfigFile(configPath)

		// Set defaults
		viper.SetDefault("environment", "dev")
		viper.SetDefault("server.port", 7142)
		viper.SetDefault("server.logLevel", "debug")
		viper.SetDefault("server.daemonize", false)
		viper.SetDefault("logs.path", filepath.Join(common.GetConfigDir(), "moored.log"))
		viper.SetDefault("logs.output", "stdout")
		viper.SetDefault("logger.logLevel", "debug")
		viper.SetDefault("logger.enableSentry", false)
		viper.SetDefault("logger.sentryDSN", "")

		viper.SetDefault("mount.root", "")
		viper.SetDefault("mount.usernameOverride", "")

		viper.SetDefault("reconcile.interval", "5m")
		viper.SetDefault("reconcile.networkSettleDelay", "3s")

		viper.SetDefault("cleanup.strayScanLimit", 30)
		viper.SetDefault("probe.timeout", "2s")

		viper.SetDefault("shares.managedPolicyPath",
			filepath.Join(common.GetManagedConfigDir(), constants.ConfigFileName))
		viper.SetDefault("shares.userSharesPath",
			filepath.Join(common.GetConfigDir(), constants.UserSharesFileName))

		viper.SetDefault("directory.enabled", false)
		viper.SetDefault("directory.ldapURL", "")
		viper.SetDefault("directory.baseDN", "")
		viper.SetDefault("directory.bindDN", "")
		viper.SetDefault("directory.bindPassword", "")
		viper.SetDefault("directory.homeAttribute", "homeDirectory")

		// Bind environment variables
		viper.AutomaticEnv()
		viper.SetEnvPrefix("MOORED")
		viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

		readErr := viper.ReadInConfig()

		instance = unmarshalInto(l)

		switch {
		case readErr == nil:
			configPath = viper.ConfigFileUsed()
			l.Info("config loaded", "path", configPath)
		case isNotFound(readErr):
			// First run: materialize the defaults so the user has a file
			// to edit.
			configPath = systemConfigPath
			l.Info("no config file, writing defaults", "path", systemConfigPath)
			if err := SaveConfig(systemConfigPath); err != nil {
				l.Error("could not write default config", "err", err)
			}
		default:
			// Unreadable file: run on defaults rather than refuse to start,
			// the daemon still has managed policy and user shares to serve.
			l.Error("config file unreadable, using defaults",
				"path", configPath, "err", readErr)
		}

		redacted := *instance
		redacted.Directory.BindPassword = "[REDACTED]"
		l.Debug("effective configuration", "config", fmt.Sprintf("%+v", redacted))
	})

	return instance
}

func unmarshalInto(l logger.Logger) *Config {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		l.Error("could not decode configuration", "err", err)
	}
	return &cfg
}

func isNotFound(err error) bool {
	_, ok := err.(viper.ConfigFileNotFoundError)
	return ok
}

// SaveConfig writes the live configuration to path, defaulting to the
// per-user config file.
func SaveConfig(path string) error {
	if path == "" {
		path = filepath.Join(common.GetConfigDir(), constants.ConfigFileName)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(instance)
	if err != nil {
		return fmt.Errorf("encode configuration: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write configuration: %w", err)
	}

	configPath = path
	return nil
}

// GetLoadedConfigPath returns the path of the currently loaded configuration file.
func GetLoadedConfigPath() string {
	return configPath
}

// GetConfig returns the current configuration instance.
func GetConfig() *Config {
	if instance == nil {
		return LoadConfig("")
	}
	return instance
}

// NewLoggerConfig maps the logger section onto the logging library's
// own config type. A nil Config yields sane info-level defaults.
func NewLoggerConfig(cfg *Config) logger.Config {
	if cfg == nil {
		return logger.Config{LogLevel: "info"}
	}
	return logger.Config{
		LogLevel:     cfg.Logger.LogLevel,
		EnableSentry: cfg.Logger.EnableSentry,
		SentryDSN:    cfg.Logger.SentryDSN,
	}
}
