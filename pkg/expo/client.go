// Package expo is a client for the Expo push notification gateway.
//
// Messages and receipt ids are accepted as single-pass sequences of any
// length. The client splits them into gateway-sized chunks, sends the chunks
// one after the other and returns the merged result in input order. A failure
// on any chunk fails the whole call; no partial result is returned.
//
//	client, err := expo.NewClient(expo.WithAccessToken(token))
//	msg := expo.NewPushMessage(expo.MustParsePushToken("ExpoPushToken[xxx]")).WithBody("hi")
//	tickets, err := client.SendPushNotifications(ctx, slices.Values([]expo.PushMessage{msg}))
package expo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/tinywideclouds/go-expo-push/internal/chunk"
	"github.com/tinywideclouds/go-expo-push/internal/compression"
	"github.com/tinywideclouds/go-expo-push/internal/jsonlist"
)

const (
	DefaultPushURL    = "https://exp.host/--/api/v2/push/send"
	DefaultReceiptURL = "https://exp.host/--/api/v2/push/getReceipts"

	// The gateway rejects larger chunks.
	DefaultPushChunkSize    = 100
	DefaultReceiptChunkSize = 300

	DefaultTimeout = 30 * time.Second
)

const (
	opSend     = "send"
	opReceipts = "getReceipts"
)

// Client talks to one gateway. It is immutable after NewClient and safe for
// concurrent use; every call keeps its state local.
type Client struct {
	pushURL          string
	receiptURL       string
	accessToken      string
	gzip             GzipPolicy
	pushChunkSize    int
	receiptChunkSize int
	httpClient       *http.Client
	logger           *slog.Logger

	compress func([]byte) ([]byte, error)
}

// Option configures a Client.
type Option func(*Client)

// WithPushURL overrides the submission endpoint.
func WithPushURL(u string) Option { return func(c *Client) { c.pushURL = u } }

// WithReceiptURL overrides the receipt endpoint.
func WithReceiptURL(u string) Option { return func(c *Client) { c.receiptURL = u } }

// WithAccessToken sends token as a bearer credential. Needed when enhanced
// push security is enabled for the project.
func WithAccessToken(token string) Option { return func(c *Client) { c.accessToken = token } }

// WithGzipPolicy sets request compression. Default GzipNever.
func WithGzipPolicy(p GzipPolicy) Option { return func(c *Client) { c.gzip = p } }

// WithPushChunkSize sets how many messages go into one request. It should not
// exceed DefaultPushChunkSize.
func WithPushChunkSize(n int) Option { return func(c *Client) { c.pushChunkSize = n } }

// WithReceiptChunkSize sets how many receipt ids go into one request. It
// should not exceed DefaultReceiptChunkSize.
func WithReceiptChunkSize(n int) Option { return func(c *Client) { c.receiptChunkSize = n } }

// WithHTTPClient replaces the transport. The client takes it over; it must be
// safe for concurrent use.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.httpClient = hc } }

// WithLogger sets the logger. By default nothing is logged.
func WithLogger(logger *slog.Logger) Option { return func(c *Client) { c.logger = logger } }

// NewClient builds a Client with defaults for every option not given.
func NewClient(opts ...Option) (*Client, error) {
	c := &Client{
		pushURL:          DefaultPushURL,
		receiptURL:       DefaultReceiptURL,
		gzip:             GzipNever,
		pushChunkSize:    DefaultPushChunkSize,
		receiptChunkSize: DefaultReceiptChunkSize,
		compress:         compression.Gzip,
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := validateURL(c.pushURL); err != nil {
		return nil, fmt.Errorf("push url: %w", err)
	}
	if err := validateURL(c.receiptURL); err != nil {
		return nil, fmt.Errorf("receipt url: %w", err)
	}
	if c.pushChunkSize <= 0 {
		return nil, fmt.Errorf("push chunk size must be positive, got %d", c.pushChunkSize)
	}
	if c.receiptChunkSize <= 0 {
		return nil, fmt.Errorf("receipt chunk size must be positive, got %d", c.receiptChunkSize)
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	c.logger = c.logger.With("component", "ExpoClient")
	return c, nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme in %q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host in %q", raw)
	}
	return nil
}

// SendPushNotification submits one message.
func (c *Client) SendPushNotification(ctx context.Context, msg PushMessage) (PushTicket, error) {
	tickets, err := c.SendPushNotificationsInOneChunk(ctx, slices.Values([]PushMessage{msg}))
	if err != nil {
		return PushTicket{}, err
	}
	return tickets[0], nil
}

// SendPushNotifications submits any number of messages, PushChunkSize at a
// time. The result has one ticket per message in input order. An empty
// sequence returns an empty slice without contacting the gateway.
func (c *Client) SendPushNotifications(ctx context.Context, msgs iter.Seq[PushMessage]) ([]PushTicket, error) {
	tickets := make([]PushTicket, 0)
	chunks, err := chunk.Each(ctx, msgs, c.pushChunkSize, func(ctx context.Context, index int, batch []PushMessage) error {
		c.logger.Debug("Dispatching push chunk", "chunk", index, "size", len(batch))
		got, err := c.SendPushNotificationsInOneChunk(ctx, slices.Values(batch))
		if err != nil {
			return err
		}
		tickets = append(tickets, got...)
		return nil
	})
	if err != nil {
		c.logger.Debug("Push dispatch aborted", "completed_chunks", chunks, "err", err)
		return nil, asClientError(opSend, err)
	}
	c.logger.Debug("Push dispatch complete", "chunks", chunks, "tickets", len(tickets))
	return tickets, nil
}

// SendPushNotificationsInOneChunk submits msgs as a single request. Chunks
// above DefaultPushChunkSize are rejected by the gateway. An empty sequence
// fails with ErrEmpty.
func (c *Client) SendPushNotificationsInOneChunk(ctx context.Context, msgs iter.Seq[PushMessage]) ([]PushTicket, error) {
	var buf bytes.Buffer
	n, err := jsonlist.Encode(&buf, msgs)
	if err != nil {
		return nil, encodeError(opSend, err)
	}

	resp, err := c.send(ctx, opSend, c.pushURL, buf.Bytes())
	if err != nil {
		return nil, err
	}
	tickets, err := decodeEnvelope[[]PushTicket](opSend, resp)
	if err != nil {
		return nil, err
	}
	if len(tickets) != n {
		return nil, newError(ErrDecode, opSend, fmt.Errorf("gateway returned %d tickets for %d messages", len(tickets), n))
	}
	return tickets, nil
}

// GetPushReceipt polls one receipt. The bool is false when the gateway has no
// receipt for id yet.
func (c *Client) GetPushReceipt(ctx context.Context, id PushReceiptID) (PushReceipt, bool, error) {
	receipts, err := c.GetPushReceiptsInOneChunk(ctx, slices.Values([]PushReceiptID{id}))
	if err != nil {
		return PushReceipt{}, false, err
	}
	r, ok := receipts[id]
	return r, ok, nil
}

// GetPushReceipts polls any number of receipt ids, ReceiptChunkSize at a
// time. Ids the gateway does not know are absent from the map. When an id is
// passed twice the last chunk containing it wins.
func (c *Client) GetPushReceipts(ctx context.Context, ids iter.Seq[PushReceiptID]) (map[PushReceiptID]PushReceipt, error) {
	out := make(map[PushReceiptID]PushReceipt)
	chunks, err := chunk.Each(ctx, ids, c.receiptChunkSize, func(ctx context.Context, index int, batch []PushReceiptID) error {
		c.logger.Debug("Dispatching receipt chunk", "chunk", index, "size", len(batch))
		got, err := c.GetPushReceiptsInOneChunk(ctx, slices.Values(batch))
		if err != nil {
			return err
		}
		maps.Copy(out, got)
		return nil
	})
	if err != nil {
		c.logger.Debug("Receipt lookup aborted", "completed_chunks", chunks, "err", err)
		return nil, asClientError(opReceipts, err)
	}
	c.logger.Debug("Receipt lookup complete", "chunks", chunks, "receipts", len(out))
	return out, nil
}

// GetPushReceiptsInOneChunk polls ids in a single request. An empty sequence
// fails with ErrEmpty. Receipts for ids that were not requested are dropped.
func (c *Client) GetPushReceiptsInOneChunk(ctx context.Context, ids iter.Seq[PushReceiptID]) (map[PushReceiptID]PushReceipt, error) {
	requested := make(map[PushReceiptID]struct{})
	var buf bytes.Buffer
	_, err := jsonlist.EncodeField(&buf, "ids", func(yield func(PushReceiptID) bool) {
		for id := range ids {
			requested[id] = struct{}{}
			if !yield(id) {
				return
			}
		}
	})
	if err != nil {
		return nil, encodeError(opReceipts, err)
	}

	resp, err := c.send(ctx, opReceipts, c.receiptURL, buf.Bytes())
	if err != nil {
		return nil, err
	}
	receipts, err := decodeEnvelope[map[PushReceiptID]PushReceipt](opReceipts, resp)
	if err != nil {
		return nil, err
	}
	for id := range receipts {
		if _, ok := requested[id]; !ok {
			c.logger.Warn("Dropping receipt for an id that was not requested", "id", id)
			delete(receipts, id)
		}
	}
	return receipts, nil
}

func encodeError(op string, err error) error {
	if errors.Is(err, jsonlist.ErrEmpty) {
		return newError(ErrEmpty, op, nil)
	}
	return newError(ErrSerialization, op, err)
}

// asClientError keeps errors from a chunk as they are and wraps anything the
// chunk walk produced itself, i.e. context cancellation.
func asClientError(op string, err error) error {
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return newError(ErrTransport, op, err)
}
