package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"slices"

	"github.com/tinywideclouds/go-expo-push/pkg/dispatch"
	"github.com/tinywideclouds/go-expo-push/pkg/expo"
)

var errInputTruncated = errors.New("input ended with a read error")

// Summary describes one Send run.
type Summary struct {
	Sent     int
	Accepted int
	Failed   int
	Skipped  int
	// Invalid lists recipients reported as DeviceNotRegistered.
	Invalid []expo.PushToken
}

// TicketRecord is written to the output, one per message.
type TicketRecord struct {
	To     string          `json:"to"`
	Ticket expo.PushTicket `json:"ticket"`
}

// ReceiptRecord is written to the output, one per requested id.
type ReceiptRecord struct {
	ID      expo.PushReceiptID `json:"id"`
	Receipt *expo.PushReceipt  `json:"receipt,omitempty"`
	Pending bool               `json:"pending,omitempty"`
}

// Processor drives a dispatch.Sender from line input and writes JSON lines.
type Processor struct {
	sender dispatch.Sender
	logger *slog.Logger
}

func NewProcessor(sender dispatch.Sender, logger *slog.Logger) *Processor {
	return &Processor{
		sender: sender,
		logger: logger.With("component", "BatchProcessor"),
	}
}

// Send reads one message per line from in, submits them all and writes one
// TicketRecord per message to out.
func (p *Processor) Send(ctx context.Context, in io.Reader, out io.Writer) (Summary, error) {
	reader := NewLineReader(in, PushMessageTransformer, p.logger)

	// Only recipients are kept, to pair them with tickets afterwards.
	var recipients []expo.PushToken
	msgs := recordRecipients(reader.All(ctx), &recipients)

	tickets, err := p.sender.SendPushNotifications(ctx, msgs)
	summary := Summary{Skipped: reader.Skipped}
	if err != nil {
		p.logger.Error("Push dispatch failed", "err", err, "retryable", expo.IsRetryable(err))
		return summary, err
	}
	if len(tickets) != len(recipients) {
		return summary, fmt.Errorf("sender returned %d tickets for %d messages", len(tickets), len(recipients))
	}

	enc := json.NewEncoder(out)
	for i, ticket := range tickets {
		summary.Sent++
		if ticket.OK() {
			summary.Accepted++
		} else {
			summary.Failed++
			if ticket.Details != nil && ticket.Details.Error == expo.DeviceNotRegistered {
				summary.Invalid = append(summary.Invalid, recipients[i])
			}
		}
		if err := enc.Encode(TicketRecord{To: recipients[i].String(), Ticket: ticket}); err != nil {
			return summary, fmt.Errorf("write ticket: %w", err)
		}
	}

	if len(summary.Invalid) > 0 {
		p.logger.Info("Recipients no longer registered", "count", len(summary.Invalid))
		for _, tok := range summary.Invalid {
			p.logger.Debug("Invalid recipient", "token", tok.String())
		}
	}
	p.logger.Info("Push batch dispatched",
		"sent", summary.Sent, "accepted", summary.Accepted, "failed", summary.Failed, "skipped", summary.Skipped)

	if err := reader.Err(); err != nil {
		// Tickets for everything read so far are written; the rest was never sent.
		return summary, fmt.Errorf("%w: %w", errInputTruncated, err)
	}
	return summary, nil
}

// Receipts reads one receipt id per line from in and writes one ReceiptRecord
// per id, in input order. Ids without a receipt yet are marked pending.
func (p *Processor) Receipts(ctx context.Context, in io.Reader, out io.Writer) (int, error) {
	reader := NewLineReader(in, ReceiptIDTransformer, p.logger)
	// Held in full: output follows input order, and the merged map has none.
	ids := slices.Collect(reader.All(ctx))
	if err := reader.Err(); err != nil {
		return 0, err
	}

	receipts, err := p.sender.GetPushReceipts(ctx, slices.Values(ids))
	if err != nil {
		p.logger.Error("Receipt lookup failed", "err", err, "retryable", expo.IsRetryable(err))
		return 0, err
	}

	enc := json.NewEncoder(out)
	pending := 0
	for _, id := range ids {
		rec := ReceiptRecord{ID: id}
		if r, ok := receipts[id]; ok {
			rec.Receipt = &r
		} else {
			rec.Pending = true
			pending++
		}
		if err := enc.Encode(rec); err != nil {
			return 0, fmt.Errorf("write receipt: %w", err)
		}
	}
	p.logger.Info("Receipts fetched", "requested", len(ids), "found", len(receipts), "pending", pending)
	return len(ids), nil
}

func recordRecipients(msgs iter.Seq[expo.PushMessage], into *[]expo.PushToken) iter.Seq[expo.PushMessage] {
	return func(yield func(expo.PushMessage) bool) {
		for m := range msgs {
			*into = append(*into, m.To)
			if !yield(m) {
				return
			}
		}
	}
}
