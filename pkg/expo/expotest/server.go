// Package expotest provides an in-process fake of the Expo push gateway for
// tests.
package expotest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"github.com/tinywideclouds/go-expo-push/internal/compression"
	"github.com/tinywideclouds/go-expo-push/pkg/expo"
)

const (
	PushPath    = "/--/api/v2/push/send"
	ReceiptPath = "/--/api/v2/push/getReceipts"
)

// Request is what the fake saw for one call, with the body already inflated.
type Request struct {
	Path   string
	Header http.Header
	Body   []byte
	// Items is the number of messages or receipt ids in the body.
	Items int
}

// Server mints a receipt id for every accepted message and remembers it, so
// tickets can be polled back as ok receipts.
type Server struct {
	*httptest.Server

	mu           sync.Mutex
	requests     []Request
	receipts     map[expo.PushReceiptID]expo.PushReceipt
	unregistered map[string]bool
	failures     map[int]int
	rawBody      string
	delay        time.Duration
	gzipReplies  bool
}

// NewServer starts a fake gateway that is closed when the test ends.
func NewServer(t testing.TB) *Server {
	s := &Server{
		receipts:     make(map[expo.PushReceiptID]expo.PushReceipt),
		unregistered: make(map[string]bool),
		failures:     make(map[int]int),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+PushPath, s.handlePush)
	mux.HandleFunc("POST "+ReceiptPath, s.handleReceipts)
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func (s *Server) PushURL() string    { return s.URL + PushPath }
func (s *Server) ReceiptURL() string { return s.URL + ReceiptPath }

// FailRequest makes the n-th request (1-based, counting both endpoints)
// answer with status.
func (s *Server) FailRequest(n, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[n] = status
}

// RespondWith replaces every 2xx body with raw.
func (s *Server) RespondWith(raw string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rawBody = raw
}

// Unregister makes tickets for token fail with DeviceNotRegistered.
func (s *Server) Unregister(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unregistered[token] = true
}

// SetReceipt stores the receipt returned for id.
func (s *Server) SetReceipt(id expo.PushReceiptID, r expo.PushReceipt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.receipts[id] = r
}

// SetDelay holds every reply back by d, or until the client gives up.
func (s *Server) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// CompressReplies gzips replies for clients that accept it.
func (s *Server) CompressReplies(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gzipReplies = on
}

// Requests returns a copy of everything received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	var msgs []struct {
		To string `json:"to"`
	}
	body, ok := s.begin(w, r, &msgs, func() int { return len(msgs) })
	if !ok {
		return
	}

	s.mu.Lock()
	tickets := make([]expo.PushTicket, 0, len(msgs))
	for _, m := range msgs {
		if s.unregistered[m.To] {
			tickets = append(tickets, expo.PushTicket{
				Status:  expo.StatusError,
				Message: fmt.Sprintf("%q is not a registered push notification recipient", m.To),
				Details: &expo.Details{Error: expo.DeviceNotRegistered, ExpoPushToken: m.To},
			})
			continue
		}
		id := expo.PushReceiptID(uuid.NewString())
		s.receipts[id] = expo.PushReceipt{Status: expo.StatusOK}
		tickets = append(tickets, expo.PushTicket{Status: expo.StatusOK, ID: id})
	}
	s.mu.Unlock()

	s.reply(w, r, body, tickets)
}

func (s *Server) handleReceipts(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []expo.PushReceiptID `json:"ids"`
	}
	body, ok := s.begin(w, r, &req, func() int { return len(req.IDs) })
	if !ok {
		return
	}

	s.mu.Lock()
	out := make(map[expo.PushReceiptID]expo.PushReceipt)
	for _, id := range req.IDs {
		if rec, known := s.receipts[id]; known {
			out[id] = rec
		}
	}
	s.mu.Unlock()

	s.reply(w, r, body, out)
}

// begin records the request, applies delay and injected failures, and
// decodes the body into dst. It returns the raw override body, if any.
func (s *Server) begin(w http.ResponseWriter, r *http.Request, dst any, items func() int) (string, bool) {
	zr, err := compression.NewReader(r.Header.Get("Content-Encoding"), r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return "", false
	}
	raw, err := io.ReadAll(zr)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return "", false
	}
	decodeErr := json.Unmarshal(raw, dst)

	s.mu.Lock()
	s.requests = append(s.requests, Request{Path: r.URL.Path, Header: r.Header.Clone(), Body: raw, Items: items()})
	n := len(s.requests)
	status, fail := s.failures[n]
	delay, override := s.delay, s.rawBody
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return "", false
		}
	}
	if fail {
		writeJSON(w, status, map[string]any{
			"errors": []map[string]string{{"code": "INJECTED", "message": fmt.Sprintf("request %d failed", n)}},
		})
		return "", false
	}
	if decodeErr != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"errors": []map[string]string{{"code": "VALIDATION_ERROR", "message": decodeErr.Error()}},
		})
		return "", false
	}
	return override, true
}

func (s *Server) reply(w http.ResponseWriter, r *http.Request, override string, data any) {
	var payload []byte
	if override != "" {
		payload = []byte(override)
	} else {
		payload, _ = json.Marshal(map[string]any{"data": data})
	}

	s.mu.Lock()
	zip := s.gzipReplies && strings.Contains(r.Header.Get("Accept-Encoding"), "gzip")
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if !zip {
		_, _ = w.Write(payload)
		return
	}
	w.Header().Set("Content-Encoding", "gzip")
	zw := gzip.NewWriter(w)
	_, _ = zw.Write(payload)
	_ = zw.Close()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
