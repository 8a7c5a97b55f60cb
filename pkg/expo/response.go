package expo

import (
	"encoding/json"
	"errors"
	"fmt"
)

// PushReceiptID is the key used to poll the delivery receipt of a ticket.
type PushReceiptID string

// Status of a ticket or receipt.
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// Error codes reported in Details.Error.
const (
	DeviceNotRegistered = "DeviceNotRegistered"
	MessageTooBig       = "MessageTooBig"
	MessageRateExceeded = "MessageRateExceeded"
	MismatchSenderID    = "MismatchSenderId"
	InvalidCredentials  = "InvalidCredentials"
)

// Details carries the machine readable part of a failed ticket or receipt.
type Details struct {
	Error         string `json:"error,omitempty"`
	ExpoPushToken string `json:"expoPushToken,omitempty"`
}

// PushTicket is the gateway's answer for one submitted message.
type PushTicket struct {
	Status  Status        `json:"status"`
	ID      PushReceiptID `json:"id,omitempty"`
	Message string        `json:"message,omitempty"`
	Details *Details      `json:"details,omitempty"`
}

// OK reports whether the message was accepted; ID is then set.
func (t PushTicket) OK() bool { return t.Status == StatusOK }

// Err returns the inline failure as an error, or nil for an accepted ticket.
func (t PushTicket) Err() error {
	if t.OK() {
		return nil
	}
	return &DeliveryError{Message: t.Message, Details: t.Details}
}

func (t *PushTicket) UnmarshalJSON(b []byte) error {
	type plain PushTicket
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	if err := checkStatus(p.Status); err != nil {
		return err
	}
	if p.Status == StatusOK && p.ID == "" {
		return errors.New("ok ticket without id")
	}
	*t = PushTicket(p)
	return nil
}

// PushReceipt is the delivery outcome for one receipt id.
type PushReceipt struct {
	Status  Status   `json:"status"`
	Message string   `json:"message,omitempty"`
	Details *Details `json:"details,omitempty"`
}

func (r PushReceipt) OK() bool { return r.Status == StatusOK }

func (r PushReceipt) Err() error {
	if r.OK() {
		return nil
	}
	return &DeliveryError{Message: r.Message, Details: r.Details}
}

func (r *PushReceipt) UnmarshalJSON(b []byte) error {
	type plain PushReceipt
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	if err := checkStatus(p.Status); err != nil {
		return err
	}
	*r = PushReceipt(p)
	return nil
}

func checkStatus(s Status) error {
	switch s {
	case StatusOK, StatusError:
		return nil
	default:
		return fmt.Errorf("unknown status %q", s)
	}
}

// DeliveryError is a per-item failure reported inside a successful response.
type DeliveryError struct {
	Message string
	Details *Details
}

func (e *DeliveryError) Error() string {
	if e.Details != nil && e.Details.Error != "" {
		return e.Details.Error + ": " + e.Message
	}
	return e.Message
}

// Code returns Details.Error, or "" when the gateway sent no details.
func (e *DeliveryError) Code() string {
	if e.Details == nil {
		return ""
	}
	return e.Details.Error
}
