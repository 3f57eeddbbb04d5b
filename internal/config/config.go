// Package config loads settings for the mataresit command-line tools from the
// environment, an optional .env file and an optional mataresit.yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrMissingAPIKey is returned by RequireAPIKey when MATARESIT_API_KEY is unset.
var ErrMissingAPIKey = errors.New("MATARESIT_API_KEY environment variable not set")

// Config holds settings shared by the CLI, the fake server and the examples.
type Config struct {
	APIKey       string        `mapstructure:"MATARESIT_API_KEY"`
	BaseURL      string        `mapstructure:"MATARESIT_BASE_URL" validate:"required,url"`
	Timeout      time.Duration `mapstructure:"MATARESIT_TIMEOUT" validate:"gt=0"`
	MaxRetries   int           `mapstructure:"MATARESIT_MAX_RETRIES" validate:"gte=0,lte=10"`
	BatchSize    int           `mapstructure:"MATARESIT_BATCH_SIZE" validate:"gte=1,lte=100"`
	BatchDelay   time.Duration `mapstructure:"MATARESIT_BATCH_DELAY" validate:"gte=0"`
	PollInterval time.Duration `mapstructure:"MATARESIT_POLL_INTERVAL" validate:"gt=0"`
	MaxWait      time.Duration `mapstructure:"MATARESIT_MAX_WAIT" validate:"gt=0"`
	RateLimit    float64       `mapstructure:"MATARESIT_RATE_LIMIT" validate:"gte=0"`
	FakeAddr     string        `mapstructure:"MATARESIT_FAKE_ADDR" validate:"required,hostname_port"`

	LogLevel     string `mapstructure:"LOG_LEVEL" validate:"required,oneof=debug info warn error"`
	LogFormat    string `mapstructure:"LOG_FORMAT" validate:"required,oneof=json console"`
	OutputFormat string `mapstructure:"OUTPUT_FORMAT" validate:"required,oneof=json yaml"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads .env (if present), then the environment and mataresit.yaml,
// applies defaults and validates the result. A missing API key is not an
// error here; call RequireAPIKey where one is needed.
func Load() (*Config, error) {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("mataresit")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	v.SetDefault("MATARESIT_BASE_URL", "https://mpmkbtsufihzdelrlszs.supabase.co/functions/v1/external-api/api/v1")
	v.SetDefault("MATARESIT_TIMEOUT", "30s")
	v.SetDefault("MATARESIT_MAX_RETRIES", 3)
	v.SetDefault("MATARESIT_BATCH_SIZE", 10)
	v.SetDefault("MATARESIT_BATCH_DELAY", "1s")
	v.SetDefault("MATARESIT_POLL_INTERVAL", "2s")
	v.SetDefault("MATARESIT_MAX_WAIT", "30s")
	v.SetDefault("MATARESIT_RATE_LIMIT", 0)
	v.SetDefault("MATARESIT_FAKE_ADDR", "127.0.0.1:8787")
	v.SetDefault("LOG_LEVEL", "warn")
	v.SetDefault("LOG_FORMAT", "console")
	v.SetDefault("OUTPUT_FORMAT", "json")

	_ = v.ReadInConfig()

	for _, key := range []string{"MATARESIT_API_KEY"} {
		_ = v.BindEnv(key)
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("config unmarshal error: %w", err)
	}
	if err := validate.Struct(&c); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &c, nil
}

// MustLoad loads configuration or exits the process on failure.
func MustLoad() *Config {
	c, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	return c
}

// RequireAPIKey reports ErrMissingAPIKey when no API key was configured.
func (c *Config) RequireAPIKey() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}
