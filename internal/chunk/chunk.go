// Package chunk splits a single-pass sequence into bounded batches and hands
// them, in order, to a callback.
package chunk

import (
	"context"
	"errors"
	"fmt"
	"iter"
)

// ErrInvalidSize is returned for a chunk size below one.
var ErrInvalidSize = errors.New("chunk: size must be greater than zero")

// Func receives one chunk. The slice is reused for the next chunk and must not
// be retained after Func returns.
type Func[T any] func(ctx context.Context, index int, items []T) error

// Each pulls at most size items from seq at a time and calls fn with them.
// Chunks are processed strictly one after the other. The first error from fn,
// or a cancelled ctx, stops the walk and is returned as is. It reports how
// many chunks fn completed without error.
func Each[T any](ctx context.Context, seq iter.Seq[T], size int, fn Func[T]) (int, error) {
	if size <= 0 {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidSize, size)
	}

	next, stop := iter.Pull(seq)
	defer stop()

	buf := make([]T, 0, size)
	chunks := 0
	for {
		buf = buf[:0]
		for len(buf) < size {
			item, ok := next()
			if !ok {
				break
			}
			buf = append(buf, item)
		}
		if len(buf) == 0 {
			return chunks, nil
		}
		if err := ctx.Err(); err != nil {
			return chunks, err
		}
		if err := fn(ctx, chunks, buf); err != nil {
			return chunks, err
		}
		chunks++
		if len(buf) < size {
			return chunks, nil
		}
	}
}
