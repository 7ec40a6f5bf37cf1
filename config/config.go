// Package config loads the application configuration: a viper-backed
// config file with environment overrides, and a yaml store of named
// device profiles.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config is the application-level configuration. Device-side settings
// live on the device itself and are edited through the configs API.
type Config struct {
	Host      string `mapstructure:"host"`
	Password  string `mapstructure:"password"`
	VideoPort int    `mapstructure:"video_port"`
	AudioPort int    `mapstructure:"audio_port"`
	LogLevel  string `mapstructure:"log_level"`
}

// Dir returns the per-user configuration directory.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".ultimate64-manager"), nil
}

// Load reads the config file (explicit path, or config.yaml in Dir) with
// environment overrides under the U64 prefix. A missing file yields
// defaults, not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetDefault("video_port", 11000)
	v.SetDefault("log_level", "info")

	v.SetEnvPrefix("U64")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(dir)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		missing := errors.As(err, &notFound) || os.IsNotExist(err)
		if !missing {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}

// SlogLevel maps the configured log level onto slog.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
