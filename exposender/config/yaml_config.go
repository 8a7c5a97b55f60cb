package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/tinywideclouds/go-expo-push/pkg/expo"
)

// YamlConfig is the structure that mirrors the raw config.yaml file.
type YamlConfig struct {
	PushURL          string `yaml:"push_url"`
	ReceiptURL       string `yaml:"receipt_url"`
	AccessToken      string `yaml:"access_token"`
	Gzip             string `yaml:"gzip"`
	PushChunkSize    int    `yaml:"push_chunk_size"`
	ReceiptChunkSize int    `yaml:"receipt_chunk_size"`
	HTTPTimeout      string `yaml:"http_timeout"`
}

// NewConfigFromYaml converts the YamlConfig into a clean, base Config struct.
func NewConfigFromYaml(baseCfg *YamlConfig, logger *slog.Logger) (*Config, error) {
	logger.Debug("Mapping YAML config to base config struct")

	policy, err := expo.ParseGzipPolicy(baseCfg.Gzip)
	if err != nil {
		return nil, fmt.Errorf("gzip: %w", err)
	}

	var timeout time.Duration
	if baseCfg.HTTPTimeout != "" {
		if timeout, err = time.ParseDuration(baseCfg.HTTPTimeout); err != nil {
			return nil, fmt.Errorf("http_timeout: %w", err)
		}
	}

	cfg := &Config{
		PushURL:          baseCfg.PushURL,
		ReceiptURL:       baseCfg.ReceiptURL,
		AccessToken:      baseCfg.AccessToken,
		Gzip:             policy,
		PushChunkSize:    baseCfg.PushChunkSize,
		ReceiptChunkSize: baseCfg.ReceiptChunkSize,
		HTTPTimeout:      timeout,
	}

	logger.Debug("YAML config mapping complete",
		"push_url", cfg.PushURL,
		"receipt_url", cfg.ReceiptURL,
		"gzip", cfg.Gzip.String(),
	)

	return cfg, nil
}
