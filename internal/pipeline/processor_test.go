package pipeline_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-expo-push/internal/pipeline"
	"github.com/tinywideclouds/go-expo-push/pkg/expo"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockSender drains the sequences so expectations can match on plain slices.
type mockSender struct {
	mock.Mock
}

func (m *mockSender) SendPushNotifications(ctx context.Context, msgs iter.Seq[expo.PushMessage]) ([]expo.PushTicket, error) {
	args := m.Called(ctx, slices.Collect(msgs))
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]expo.PushTicket), args.Error(1)
}

func (m *mockSender) GetPushReceipts(ctx context.Context, ids iter.Seq[expo.PushReceiptID]) (map[expo.PushReceiptID]expo.PushReceipt, error) {
	args := m.Called(ctx, slices.Collect(ids))
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[expo.PushReceiptID]expo.PushReceipt), args.Error(1)
}

func decodeLines[T any](t *testing.T, out *bytes.Buffer) []T {
	t.Helper()
	var recs []T
	dec := json.NewDecoder(out)
	for dec.More() {
		var rec T
		require.NoError(t, dec.Decode(&rec))
		recs = append(recs, rec)
	}
	return recs
}

func TestProcessor_Send(t *testing.T) {
	ctx := context.Background()
	input := strings.Join([]string{
		`{"to":"ExpoPushToken[a]","body":"one"}`,
		`{"to":"ExpoPushToken[b]","body":"two"}`,
		`not-json`,
		`{"to":"ExpoPushToken[c]","body":"three"}`,
	}, "\n")

	t.Run("Writes one ticket per message and reports invalid recipients", func(t *testing.T) {
		sender := new(mockSender)
		tickets := []expo.PushTicket{
			{Status: expo.StatusOK, ID: "id-a"},
			{Status: expo.StatusError, Message: "gone", Details: &expo.Details{Error: expo.DeviceNotRegistered}},
			{Status: expo.StatusError, Message: "big", Details: &expo.Details{Error: expo.MessageTooBig}},
		}
		sender.On("SendPushNotifications", mock.Anything, mock.MatchedBy(func(msgs []expo.PushMessage) bool {
			return len(msgs) == 3 && msgs[0].Body == "one" && msgs[2].Body == "three"
		})).Return(tickets, nil)

		var out bytes.Buffer
		summary, err := pipeline.NewProcessor(sender, newTestLogger()).Send(ctx, strings.NewReader(input), &out)

		require.NoError(t, err)
		assert.Equal(t, 3, summary.Sent)
		assert.Equal(t, 1, summary.Accepted)
		assert.Equal(t, 2, summary.Failed)
		assert.Equal(t, 1, summary.Skipped)
		assert.Equal(t, []expo.PushToken{expo.MustParsePushToken("ExpoPushToken[b]")}, summary.Invalid)

		recs := decodeLines[pipeline.TicketRecord](t, &out)
		require.Len(t, recs, 3)
		assert.Equal(t, "ExpoPushToken[a]", recs[0].To)
		assert.Equal(t, expo.PushReceiptID("id-a"), recs[0].Ticket.ID)
		assert.Equal(t, "ExpoPushToken[c]", recs[2].To)
		sender.AssertExpectations(t)
	})

	t.Run("Sender failure writes nothing", func(t *testing.T) {
		sender := new(mockSender)
		sendErr := &expo.Error{Kind: expo.ErrTransport, Op: "send", StatusCode: 503}
		sender.On("SendPushNotifications", mock.Anything, mock.Anything).Return(nil, sendErr)

		var out bytes.Buffer
		_, err := pipeline.NewProcessor(sender, newTestLogger()).Send(ctx, strings.NewReader(input), &out)

		require.ErrorIs(t, err, expo.ErrTransport)
		assert.Zero(t, out.Len())
	})

	t.Run("Ticket count mismatch is an error", func(t *testing.T) {
		sender := new(mockSender)
		sender.On("SendPushNotifications", mock.Anything, mock.Anything).
			Return([]expo.PushTicket{{Status: expo.StatusOK, ID: "x"}}, nil)

		var out bytes.Buffer
		_, err := pipeline.NewProcessor(sender, newTestLogger()).Send(ctx, strings.NewReader(input), &out)

		require.Error(t, err)
		assert.Contains(t, err.Error(), fmt.Sprintf("%d tickets for %d messages", 1, 3))
	})

	t.Run("Read failure still writes tickets for what was sent", func(t *testing.T) {
		sender := new(mockSender)
		sender.On("SendPushNotifications", mock.Anything, mock.MatchedBy(func(msgs []expo.PushMessage) bool {
			return len(msgs) == 1
		})).Return([]expo.PushTicket{{Status: expo.StatusOK, ID: "id-a"}}, nil)

		boom := errors.New("disk gone")
		in := io.MultiReader(strings.NewReader(`{"to":"ExpoPushToken[a]","body":"one"}`+"\n"), &failingReader{err: boom})

		var out bytes.Buffer
		summary, err := pipeline.NewProcessor(sender, newTestLogger()).Send(ctx, in, &out)

		require.ErrorIs(t, err, boom)
		assert.Equal(t, 1, summary.Sent)
		recs := decodeLines[pipeline.TicketRecord](t, &out)
		require.Len(t, recs, 1)
		assert.Equal(t, expo.PushReceiptID("id-a"), recs[0].Ticket.ID)
	})
}

func TestProcessor_Receipts(t *testing.T) {
	ctx := context.Background()

	t.Run("Marks missing ids as pending", func(t *testing.T) {
		sender := new(mockSender)
		sender.On("GetPushReceipts", mock.Anything, []expo.PushReceiptID{"a", "b", "c"}).
			Return(map[expo.PushReceiptID]expo.PushReceipt{
				"a": {Status: expo.StatusOK},
				"c": {Status: expo.StatusError, Message: "rate", Details: &expo.Details{Error: expo.MessageRateExceeded}},
			}, nil)

		var out bytes.Buffer
		n, err := pipeline.NewProcessor(sender, newTestLogger()).Receipts(ctx, strings.NewReader("a\n\nb\n c \n"), &out)

		require.NoError(t, err)
		assert.Equal(t, 3, n)

		recs := decodeLines[pipeline.ReceiptRecord](t, &out)
		require.Len(t, recs, 3)
		assert.True(t, recs[0].Receipt.OK())
		assert.True(t, recs[1].Pending)
		assert.Nil(t, recs[1].Receipt)
		assert.Equal(t, expo.MessageRateExceeded, recs[2].Receipt.Details.Error)
		sender.AssertExpectations(t)
	})

	t.Run("Lookup failure is returned", func(t *testing.T) {
		sender := new(mockSender)
		sender.On("GetPushReceipts", mock.Anything, mock.Anything).
			Return(nil, &expo.Error{Kind: expo.ErrDecode, Op: "getReceipts"})

		var out bytes.Buffer
		_, err := pipeline.NewProcessor(sender, newTestLogger()).Receipts(ctx, strings.NewReader("a\n"), &out)

		require.ErrorIs(t, err, expo.ErrDecode)
		assert.Zero(t, out.Len())
	})
}
