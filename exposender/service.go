// Package exposender assembles the batch sender: configuration, the Expo
// client and the line processor.
package exposender

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/tinywideclouds/go-expo-push/exposender/config"
	"github.com/tinywideclouds/go-expo-push/internal/pipeline"
	"github.com/tinywideclouds/go-expo-push/pkg/dispatch"
	"github.com/tinywideclouds/go-expo-push/pkg/expo"
)

type Wrapper struct {
	processor *pipeline.Processor
	logger    *slog.Logger
}

// New assembles the service around a real Expo client built from cfg.
func New(cfg *config.Config, logger *slog.Logger) (*Wrapper, error) {
	client, err := expo.NewClient(cfg.ClientOptions(logger)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create expo client: %w", err)
	}
	return NewWithSender(client, logger), nil
}

// NewWithSender assembles the service around any dispatch.Sender.
func NewWithSender(sender dispatch.Sender, logger *slog.Logger) *Wrapper {
	return &Wrapper{
		processor: pipeline.NewProcessor(sender, logger),
		logger:    logger,
	}
}

// Send pushes every message in in and writes ticket records to out.
func (w *Wrapper) Send(ctx context.Context, in io.Reader, out io.Writer) (pipeline.Summary, error) {
	w.logger.Info("Sending push batch...")
	summary, err := w.processor.Send(ctx, in, out)
	if err != nil {
		return summary, fmt.Errorf("push batch failed: %w", err)
	}
	return summary, nil
}

// Receipts polls every receipt id in in and writes receipt records to out.
func (w *Wrapper) Receipts(ctx context.Context, in io.Reader, out io.Writer) (int, error) {
	w.logger.Info("Fetching push receipts...")
	n, err := w.processor.Receipts(ctx, in, out)
	if err != nil {
		return 0, fmt.Errorf("receipt lookup failed: %w", err)
	}
	return n, nil
}
