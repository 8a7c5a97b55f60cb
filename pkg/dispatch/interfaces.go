// Package dispatch holds the contracts the batch sender depends on, so the
// gateway client can be swapped for a mock in tests.
package dispatch

import (
	"context"
	"iter"

	"github.com/tinywideclouds/go-expo-push/pkg/expo"
)

// Sender submits push messages and polls their receipts. *expo.Client
// satisfies it.
type Sender interface {
	// SendPushNotifications returns one ticket per message, in input order.
	SendPushNotifications(ctx context.Context, msgs iter.Seq[expo.PushMessage]) ([]expo.PushTicket, error)

	// GetPushReceipts returns the receipts the gateway knows; unknown ids are
	// simply absent.
	GetPushReceipts(ctx context.Context, ids iter.Seq[expo.PushReceiptID]) (map[expo.PushReceiptID]expo.PushReceipt, error)
}

var _ Sender = (*expo.Client)(nil)
