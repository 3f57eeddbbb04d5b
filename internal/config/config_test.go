package config

import (
	"errors"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MATARESIT_API_KEY", "")
	t.Chdir(t.TempDir())

	c, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if c.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", c.MaxRetries)
	}
	if c.BatchSize != 10 {
		t.Errorf("BatchSize = %d, want 10", c.BatchSize)
	}
	if c.PollInterval != 2*time.Second {
		t.Errorf("PollInterval = %v, want 2s", c.PollInterval)
	}
	if c.MaxWait != 30*time.Second {
		t.Errorf("MaxWait = %v, want 30s", c.MaxWait)
	}
	if !errors.Is(c.RequireAPIKey(), ErrMissingAPIKey) {
		t.Errorf("RequireAPIKey() = %v, want ErrMissingAPIKey", c.RequireAPIKey())
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("MATARESIT_API_KEY", "mk_test_123")
	t.Setenv("MATARESIT_BASE_URL", "http://127.0.0.1:9999")
	t.Setenv("MATARESIT_MAX_RETRIES", "5")
	t.Setenv("MATARESIT_BATCH_SIZE", "25")
	t.Setenv("MATARESIT_MAX_WAIT", "1m")
	t.Setenv("OUTPUT_FORMAT", "yaml")

	c, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if c.APIKey != "mk_test_123" {
		t.Errorf("APIKey = %q", c.APIKey)
	}
	if c.BaseURL != "http://127.0.0.1:9999" {
		t.Errorf("BaseURL = %q", c.BaseURL)
	}
	if c.MaxRetries != 5 || c.BatchSize != 25 {
		t.Errorf("MaxRetries, BatchSize = %d, %d", c.MaxRetries, c.BatchSize)
	}
	if c.MaxWait != time.Minute {
		t.Errorf("MaxWait = %v, want 1m", c.MaxWait)
	}
	if c.OutputFormat != "yaml" {
		t.Errorf("OutputFormat = %q", c.OutputFormat)
	}
	if err := c.RequireAPIKey(); err != nil {
		t.Errorf("RequireAPIKey() = %v", err)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"batch size zero", "MATARESIT_BATCH_SIZE", "0"},
		{"unknown output", "OUTPUT_FORMAT", "xml"},
		{"bad log level", "LOG_LEVEL", "loud"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("Load() with %s=%s succeeded, want error", tt.key, tt.value)
			}
		})
	}
}
