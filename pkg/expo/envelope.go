package expo

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tinywideclouds/go-expo-push/internal/compression"
)

// maxErrorBody bounds how much of a rejected reply is read for diagnostics.
const maxErrorBody = 64 << 10

// envelope is the {"data": ...} wrapper used by both endpoints. Request-level
// failures come back as {"errors": [...]} instead.
type envelope[T any] struct {
	Data   *T             `json:"data"`
	Errors []gatewayError `json:"errors,omitempty"`
}

type gatewayError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e gatewayError) String() string {
	if e.Code == "" {
		return e.Message
	}
	return e.Code + ": " + e.Message
}

func joinGatewayErrors(errs []gatewayError) string {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		parts = append(parts, e.String())
	}
	return strings.Join(parts, "; ")
}

// decodeEnvelope reads a successful reply and returns its data field. The
// body is always closed.
func decodeEnvelope[T any](op string, resp *http.Response) (T, error) {
	var zero T
	defer resp.Body.Close()

	body, err := compression.NewReader(resp.Header.Get("Content-Encoding"), resp.Body)
	if err != nil {
		return zero, newError(ErrDecode, op, err)
	}
	defer body.Close()

	var env envelope[T]
	dec := json.NewDecoder(body)
	if err := dec.Decode(&env); err != nil {
		return zero, decodeFailure(op, err)
	}
	// The envelope must be the whole body.
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			err = errors.New("unexpected data after envelope")
		}
		return zero, decodeFailure(op, err)
	}
	if env.Data == nil {
		if len(env.Errors) > 0 {
			return zero, newError(ErrDecode, op, fmt.Errorf("gateway errors: %s", joinGatewayErrors(env.Errors)))
		}
		return zero, newError(ErrDecode, op, errors.New(`response has no "data" field`))
	}
	return *env.Data, nil
}

func decodeFailure(op string, err error) error {
	if isStreamErr(err) {
		// The connection broke, not the content.
		return newError(ErrTransport, op, fmt.Errorf("read response: %w", err))
	}
	return newError(ErrDecode, op, fmt.Errorf("malformed response body: %w", err))
}

// describeRejection extracts a human readable reason from a non-2xx reply.
func describeRejection(resp *http.Response) string {
	body, err := compression.NewReader(resp.Header.Get("Content-Encoding"), io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return ""
	}
	defer body.Close()

	raw, _ := io.ReadAll(body)
	var env envelope[json.RawMessage]
	if json.Unmarshal(raw, &env) == nil && len(env.Errors) > 0 {
		return joinGatewayErrors(env.Errors)
	}
	return strings.TrimSpace(string(raw))
}
