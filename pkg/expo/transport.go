package expo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/tinywideclouds/go-expo-push/internal/compression"
)

// send posts one serialized chunk and returns the 2xx response. Any other
// status is turned into a transport error carrying the code; the body of a
// successful response is left for decodeEnvelope.
func (c *Client) send(ctx context.Context, op, url string, payload []byte) (*http.Response, error) {
	body := payload
	compressed := c.gzip.ShouldCompress(len(payload))
	if compressed {
		zipped, err := c.compress(payload)
		if err != nil {
			return nil, newError(ErrCompression, op, err)
		}
		body = zipped
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, newError(ErrTransport, op, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	// Setting Accept-Encoding ourselves switches off net/http's transparent
	// gzip, so decodeEnvelope inflates the reply.
	req.Header.Set("Accept-Encoding", compression.AcceptEncoding)
	req.Header.Set("Content-Type", "application/json")
	if compressed {
		req.Header.Set("Content-Encoding", compression.EncodingGzip)
	}
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	c.logger.Debug("Sending request", "op", op, "url", url, "bytes", len(payload), "wire_bytes", len(body), "compressed", compressed)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, newError(ErrTransport, op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		reason := describeRejection(resp)
		c.logger.Warn("Gateway rejected request", "op", op, "status", resp.StatusCode, "reason", reason)

		e := newError(ErrTransport, op, nil)
		e.StatusCode = resp.StatusCode
		if reason != "" {
			e.Err = errors.New(reason)
		}
		return nil, e
	}
	return resp, nil
}

// isStreamErr reports failures of the connection itself, as opposed to bad
// content, while a response body is being read.
func isStreamErr(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
