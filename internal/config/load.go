package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "CARDFEED"

var defaults = map[string]interface{}{
	"server.port":                 8080,
	"server.log_level":            "info",
	"server.base_path":            "/api/v1",
	"database.driver":             "none",
	"database.url":                "",
	"auth.jwt_secret":             "",
	"auth.token_lifetime_minutes": 60,
	"scheduler.tick_interval":     "30s",
	"bus.buffer_size":             64,
	"stream.heartbeat_interval":   "5s",
	"feed.default_limit":          10,
	"actions.break_delay":         "30m",
	"task.worker_count":           2,
	"task.queue_size":             100,
	"slack.signing_secret":        "",
	"llm.gemini_api_key":          "",
	"llm.model_name":              "gemini-2.0-flash",
	"llm.max_retries":             3,
	"llm.retry_delay_seconds":     2,
}

// Load configuration from environment variables and optionally a config.yaml
// in the working directory. Environment variables take precedence over values
// from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile behaves like Load but reads the given YAML file instead of
// searching the working directory. A missing file is an error only when a
// path was given.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cfg against its struct tags.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}
