// Package pipeline turns line-oriented input into gateway calls for the batch
// sender.
package pipeline

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"log/slog"

	"github.com/tinywideclouds/go-expo-push/pkg/expo"
)

// maxLineSize bounds one input line; the gateway caps a message at 4 KiB
// anyway, so anything near this is malformed.
const maxLineSize = 1 << 20

// Line is one raw input record.
type Line struct {
	Number  int
	Payload []byte
}

// Transformer decodes one line. skip=true drops the line; a non-nil error
// says why.
type Transformer[T any] func(ctx context.Context, line Line) (*T, bool, error)

// PushMessageTransformer decodes one JSON object per line into a message. The
// recipient is validated by expo.PushToken's decoder.
func PushMessageTransformer(_ context.Context, line Line) (*expo.PushMessage, bool, error) {
	if len(bytes.TrimSpace(line.Payload)) == 0 {
		return nil, true, nil
	}

	var msg expo.PushMessage
	if err := json.Unmarshal(line.Payload, &msg); err != nil {
		return nil, true, fmt.Errorf("failed to unmarshal push message on line %d: %w", line.Number, err)
	}
	if msg.To.IsZero() {
		return nil, true, fmt.Errorf("push message on line %d has no recipient", line.Number)
	}
	return &msg, false, nil
}

// ReceiptIDTransformer reads one receipt id per line.
func ReceiptIDTransformer(_ context.Context, line Line) (*expo.PushReceiptID, bool, error) {
	id := expo.PushReceiptID(bytes.TrimSpace(line.Payload))
	if id == "" {
		return nil, true, nil
	}
	return &id, false, nil
}

// LineReader streams transformed records out of an io.Reader. Records are
// produced lazily, so the caller holds at most what it buffers itself.
type LineReader[T any] struct {
	r         io.Reader
	transform Transformer[T]
	logger    *slog.Logger

	// Skipped counts lines dropped with an error.
	Skipped int
	err     error
}

func NewLineReader[T any](r io.Reader, transform Transformer[T], logger *slog.Logger) *LineReader[T] {
	return &LineReader[T]{r: r, transform: transform, logger: logger}
}

// All yields every accepted record. It can be ranged over once.
func (lr *LineReader[T]) All(ctx context.Context) iter.Seq[T] {
	return func(yield func(T) bool) {
		sc := bufio.NewScanner(lr.r)
		sc.Buffer(make([]byte, 0, 64<<10), maxLineSize)
		n := 0
		for sc.Scan() {
			n++
			rec, skip, err := lr.transform(ctx, Line{Number: n, Payload: sc.Bytes()})
			if err != nil {
				lr.Skipped++
				lr.logger.Warn("Skipping malformed line", "line", n, "err", err)
				continue
			}
			if skip {
				continue
			}
			if !yield(*rec) {
				return
			}
		}
		if err := sc.Err(); err != nil {
			lr.err = fmt.Errorf("read input after line %d: %w", n, err)
		}
	}
}

// Err reports a read failure that ended All early.
func (lr *LineReader[T]) Err() error { return lr.err }
