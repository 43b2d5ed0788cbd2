// Package config loads application settings from a config file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Storage StorageConfig `mapstructure:"storage"`
	Trash   TrashConfig   `mapstructure:"trash"`
	Edit    EditConfig    `mapstructure:"edit"`
	Logger  LoggerConfig  `mapstructure:"logger"`
}

// StorageConfig selects and configures the persistence backend.
type StorageConfig struct {
	// Driver is either "sqlite" or "postgres".
	Driver string `mapstructure:"driver" validate:"oneof=sqlite postgres"`
	// DSN is the postgres connection string, required for that driver.
	DSN string `mapstructure:"dsn" validate:"required_if=Driver postgres"`
	// Path is the sqlite database file, required for that driver.
	Path string `mapstructure:"path" validate:"required_if=Driver sqlite"`
}

// TrashConfig controls automatic cleanup of trashed notes.
type TrashConfig struct {
	Retention time.Duration `mapstructure:"retention" validate:"min=0"`
}

// EditConfig tunes the note editor.
type EditConfig struct {
	MaxUndo    int           `mapstructure:"max_undo" validate:"min=1"`
	BatchDelay time.Duration `mapstructure:"batch_delay" validate:"min=0"`
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
}

// Load reads the config file (if present), applies environment overrides
// prefixed with NOTEKEEP_, and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("notekeep")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("notekeep")
		v.SetConfigType("yaml")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "notekeep"))
		}
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.path", defaultDBPath())
	v.SetDefault("storage.dsn", "")
	v.SetDefault("trash.retention", "168h")
	v.SetDefault("edit.max_undo", 100)
	v.SetDefault("edit.batch_delay", "500ms")
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
}

func defaultDBPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "notekeep.db"
	}
	return filepath.Join(dir, "notekeep", "notekeep.db")
}
