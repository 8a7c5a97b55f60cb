// Package compression holds the gzip encoder used for request bodies and the
// decoders used for gateway responses.
package compression

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

// Content-Encoding values understood by this package.
const (
	EncodingGzip    = "gzip"
	EncodingDeflate = "deflate"
)

// AcceptEncoding is the value advertised on every request.
const AcceptEncoding = EncodingGzip + ", " + EncodingDeflate

// Writers are reset per use, so a pool avoids allocating the compressor
// state on every chunk.
var gzipWriters = sync.Pool{
	New: func() any { return gzip.NewWriter(io.Discard) },
}

// Gzip compresses src and returns the encoded bytes. It is safe for
// concurrent use.
func Gzip(src []byte) ([]byte, error) {
	var out bytes.Buffer
	out.Grow(len(src) / 2)

	zw := gzipWriters.Get().(*gzip.Writer)
	defer func() {
		// Detach from out so the pool does not keep the last body alive.
		zw.Reset(io.Discard)
		gzipWriters.Put(zw)
	}()
	zw.Reset(&out)

	if _, err := zw.Write(src); err != nil {
		return nil, fmt.Errorf("gzip write: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("gzip close: %w", err)
	}
	return out.Bytes(), nil
}

// NewReader wraps body according to a Content-Encoding header value. An empty
// or "identity" encoding returns body unchanged.
func NewReader(encoding string, body io.Reader) (io.ReadCloser, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "identity":
		return io.NopCloser(body), nil
	case EncodingGzip, "x-gzip":
		zr, err := gzip.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		return zr, nil
	case EncodingDeflate:
		// HTTP "deflate" is the zlib wrapper around a deflate stream.
		zr, err := zlib.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("deflate reader: %w", err)
		}
		return zr, nil
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", encoding)
	}
}
