package expo_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-expo-push/pkg/expo"
)

func TestPushTicket_Unmarshal(t *testing.T) {
	t.Run("Accepted", func(t *testing.T) {
		var tk expo.PushTicket
		require.NoError(t, json.Unmarshal([]byte(`{"status":"ok","id":"XXXX-1"}`), &tk))
		assert.True(t, tk.OK())
		assert.Equal(t, expo.PushReceiptID("XXXX-1"), tk.ID)
		assert.NoError(t, tk.Err())
	})

	t.Run("Inline error", func(t *testing.T) {
		var tk expo.PushTicket
		raw := `{"status":"error","message":"not registered","details":{"error":"DeviceNotRegistered","expoPushToken":"ExpoPushToken[a]"}}`
		require.NoError(t, json.Unmarshal([]byte(raw), &tk))
		assert.False(t, tk.OK())

		var de *expo.DeliveryError
		require.True(t, errors.As(tk.Err(), &de))
		assert.Equal(t, expo.DeviceNotRegistered, de.Code())
		assert.Equal(t, "DeviceNotRegistered: not registered", de.Error())
		assert.Equal(t, "ExpoPushToken[a]", tk.Details.ExpoPushToken)
	})

	t.Run("Rejects unknown status", func(t *testing.T) {
		var tk expo.PushTicket
		assert.Error(t, json.Unmarshal([]byte(`{"status":"pending"}`), &tk))
	})

	t.Run("Rejects ok without id", func(t *testing.T) {
		var tk expo.PushTicket
		assert.Error(t, json.Unmarshal([]byte(`{"status":"ok"}`), &tk))
	})
}

func TestPushReceipt_Unmarshal(t *testing.T) {
	var receipts map[expo.PushReceiptID]expo.PushReceipt
	raw := `{
		"a": {"status": "ok"},
		"b": {"status": "error", "message": "rate", "details": {"error": "MessageRateExceeded"}}
	}`
	require.NoError(t, json.Unmarshal([]byte(raw), &receipts))

	assert.True(t, receipts["a"].OK())
	assert.NoError(t, receipts["a"].Err())

	var de *expo.DeliveryError
	require.True(t, errors.As(receipts["b"].Err(), &de))
	assert.Equal(t, expo.MessageRateExceeded, de.Code())

	var bad expo.PushReceipt
	assert.Error(t, json.Unmarshal([]byte(`{"status":""}`), &bad))
}

func TestDeliveryError_WithoutDetails(t *testing.T) {
	de := &expo.DeliveryError{Message: "something"}
	assert.Equal(t, "something", de.Error())
	assert.Empty(t, de.Code())
}

func TestInvalidTokens(t *testing.T) {
	a := expo.MustParsePushToken("ExpoPushToken[a]")
	b := expo.MustParsePushToken("ExpoPushToken[b]")
	c := expo.MustParsePushToken("ExpoPushToken[c]")
	msgs := []expo.PushMessage{expo.NewPushMessage(a), expo.NewPushMessage(b), expo.NewPushMessage(c)}

	tickets := []expo.PushTicket{
		{Status: expo.StatusOK, ID: "1"},
		{Status: expo.StatusError, Details: &expo.Details{Error: expo.DeviceNotRegistered}},
		{Status: expo.StatusError, Details: &expo.Details{Error: expo.MessageTooBig}},
	}

	assert.Equal(t, []expo.PushToken{b}, expo.InvalidTokens(msgs, tickets))
	assert.Empty(t, expo.InvalidTokens(msgs, nil))
}
