package config_test

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-expo-push/exposender/config"
	"github.com/tinywideclouds/go-expo-push/pkg/expo"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestUpdateConfigWithEnvOverrides(t *testing.T) {
	logger := newTestLogger()

	baseConfig := func() *config.Config {
		return &config.Config{
			PushURL:       "https://base.example.com/push",
			AccessToken:   "base-token",
			Gzip:          expo.GzipNever,
			PushChunkSize: 50,
		}
	}

	t.Run("Success - All overrides applied", func(t *testing.T) {
		cfg := baseConfig()

		t.Setenv("EXPO_PUSH_URL", "https://env.example.com/push")
		t.Setenv("EXPO_RECEIPT_URL", "https://env.example.com/receipts")
		t.Setenv("EXPO_ACCESS_TOKEN", "env-token")
		t.Setenv("EXPO_GZIP", "if-larger-than(1024)")
		t.Setenv("EXPO_PUSH_CHUNK_SIZE", "10")
		t.Setenv("EXPO_RECEIPT_CHUNK_SIZE", "20")
		t.Setenv("EXPO_HTTP_TIMEOUT", "5s")

		finalCfg, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		require.NoError(t, err)

		assert.Equal(t, "https://env.example.com/push", finalCfg.PushURL)
		assert.Equal(t, "https://env.example.com/receipts", finalCfg.ReceiptURL)
		assert.Equal(t, "env-token", finalCfg.AccessToken)
		assert.Equal(t, expo.GzipIfLargerThan(1024), finalCfg.Gzip)
		assert.Equal(t, 10, finalCfg.PushChunkSize)
		assert.Equal(t, 20, finalCfg.ReceiptChunkSize)
		assert.Equal(t, 5*time.Second, finalCfg.HTTPTimeout)
	})

	t.Run("Success - Defaults filled and base preserved", func(t *testing.T) {
		cfg := baseConfig()
		finalCfg, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		require.NoError(t, err)

		assert.Equal(t, "https://base.example.com/push", finalCfg.PushURL)
		assert.Equal(t, expo.DefaultReceiptURL, finalCfg.ReceiptURL)
		assert.Equal(t, "base-token", finalCfg.AccessToken)
		assert.Equal(t, 50, finalCfg.PushChunkSize)
		assert.Equal(t, expo.DefaultReceiptChunkSize, finalCfg.ReceiptChunkSize)
		assert.Equal(t, expo.DefaultTimeout, finalCfg.HTTPTimeout)
	})

	t.Run("Validation Failure - Bad env values", func(t *testing.T) {
		testCases := map[string]string{
			"EXPO_GZIP":               "sometimes",
			"EXPO_PUSH_CHUNK_SIZE":    "many",
			"EXPO_RECEIPT_CHUNK_SIZE": "-1",
			"EXPO_HTTP_TIMEOUT":       "soon",
		}
		for key, val := range testCases {
			t.Run(key, func(t *testing.T) {
				t.Setenv(key, val)
				_, err := config.UpdateConfigWithEnvOverrides(baseConfig(), logger)
				assert.Error(t, err)
			})
		}
	})
}

func TestConfig_ClientOptions(t *testing.T) {
	cfg, err := config.UpdateConfigWithEnvOverrides(&config.Config{AccessToken: "secret"}, newTestLogger())
	require.NoError(t, err)

	client, err := expo.NewClient(cfg.ClientOptions(newTestLogger())...)
	require.NoError(t, err)
	assert.NotNil(t, client)

	bad := *cfg
	bad.PushChunkSize = -3
	_, err = expo.NewClient(bad.ClientOptions(newTestLogger())...)
	assert.Error(t, err)
}
