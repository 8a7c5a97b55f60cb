package config

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/tinywideclouds/go-expo-push/pkg/expo"
)

// Config defines the *single*, authoritative configuration.
type Config struct {
	PushURL          string
	ReceiptURL       string
	AccessToken      string
	Gzip             expo.GzipPolicy
	PushChunkSize    int
	ReceiptChunkSize int
	HTTPTimeout      time.Duration
}

// UpdateConfigWithEnvOverrides applies environment variables and final validation.
func UpdateConfigWithEnvOverrides(cfg *Config, logger *slog.Logger) (*Config, error) {
	logger.Debug("Applying environment variable overrides...")

	if val := os.Getenv("EXPO_PUSH_URL"); val != "" {
		logger.Debug("Overriding config value", "key", "EXPO_PUSH_URL", "source", "env")
		cfg.PushURL = val
	}
	if val := os.Getenv("EXPO_RECEIPT_URL"); val != "" {
		logger.Debug("Overriding config value", "key", "EXPO_RECEIPT_URL", "source", "env")
		cfg.ReceiptURL = val
	}
	if val := os.Getenv("EXPO_ACCESS_TOKEN"); val != "" {
		logger.Debug("Overriding config value", "key", "EXPO_ACCESS_TOKEN", "source", "env")
		cfg.AccessToken = val
	}
	if val := os.Getenv("EXPO_GZIP"); val != "" {
		policy, err := expo.ParseGzipPolicy(val)
		if err != nil {
			return nil, fmt.Errorf("EXPO_GZIP: %w", err)
		}
		logger.Debug("Overriding config value", "key", "EXPO_GZIP", "source", "env")
		cfg.Gzip = policy
	}
	if val := os.Getenv("EXPO_PUSH_CHUNK_SIZE"); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			return nil, fmt.Errorf("EXPO_PUSH_CHUNK_SIZE: %w", err)
		}
		logger.Debug("Overriding config value", "key", "EXPO_PUSH_CHUNK_SIZE", "source", "env")
		cfg.PushChunkSize = n
	}
	if val := os.Getenv("EXPO_RECEIPT_CHUNK_SIZE"); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			return nil, fmt.Errorf("EXPO_RECEIPT_CHUNK_SIZE: %w", err)
		}
		logger.Debug("Overriding config value", "key", "EXPO_RECEIPT_CHUNK_SIZE", "source", "env")
		cfg.ReceiptChunkSize = n
	}
	if val := os.Getenv("EXPO_HTTP_TIMEOUT"); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return nil, fmt.Errorf("EXPO_HTTP_TIMEOUT: %w", err)
		}
		logger.Debug("Overriding config value", "key", "EXPO_HTTP_TIMEOUT", "source", "env")
		cfg.HTTPTimeout = d
	}

	// Final Validation
	if cfg.PushURL == "" {
		cfg.PushURL = expo.DefaultPushURL
	}
	if cfg.ReceiptURL == "" {
		cfg.ReceiptURL = expo.DefaultReceiptURL
	}
	if cfg.PushChunkSize == 0 {
		cfg.PushChunkSize = expo.DefaultPushChunkSize
	}
	if cfg.ReceiptChunkSize == 0 {
		cfg.ReceiptChunkSize = expo.DefaultReceiptChunkSize
	}
	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = expo.DefaultTimeout
	}
	if cfg.PushChunkSize < 0 {
		return nil, fmt.Errorf("push_chunk_size must be positive, got %d", cfg.PushChunkSize)
	}
	if cfg.ReceiptChunkSize < 0 {
		return nil, fmt.Errorf("receipt_chunk_size must be positive, got %d", cfg.ReceiptChunkSize)
	}
	if cfg.HTTPTimeout < 0 {
		return nil, fmt.Errorf("http_timeout must be positive, got %s", cfg.HTTPTimeout)
	}

	logger.Debug("Configuration finalized and validated successfully",
		"push_url", cfg.PushURL, "gzip", cfg.Gzip.String())
	return cfg, nil
}

// ClientOptions translates the configuration into expo client options.
func (c *Config) ClientOptions(logger *slog.Logger) []expo.Option {
	opts := []expo.Option{
		expo.WithPushURL(c.PushURL),
		expo.WithReceiptURL(c.ReceiptURL),
		expo.WithGzipPolicy(c.Gzip),
		expo.WithPushChunkSize(c.PushChunkSize),
		expo.WithReceiptChunkSize(c.ReceiptChunkSize),
		expo.WithHTTPClient(&http.Client{Timeout: c.HTTPTimeout}),
		expo.WithLogger(logger),
	}
	if c.AccessToken != "" {
		opts = append(opts, expo.WithAccessToken(c.AccessToken))
	}
	return opts
}
