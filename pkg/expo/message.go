package expo

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// PushToken identifies one device registered with the gateway. Build it with
// ParsePushToken; the zero value is not a valid recipient.
type PushToken struct {
	value string
}

var tokenPrefixes = []string{"ExponentPushToken[", "ExpoPushToken["}

// ParsePushToken validates the ExponentPushToken[...] / ExpoPushToken[...]
// form.
func ParsePushToken(s string) (PushToken, error) {
	for _, prefix := range tokenPrefixes {
		inner, ok := strings.CutPrefix(s, prefix)
		if !ok {
			continue
		}
		inner, ok = strings.CutSuffix(inner, "]")
		if !ok || inner == "" {
			break
		}
		return PushToken{value: s}, nil
	}
	return PushToken{}, fmt.Errorf("%w: %q", ErrInvalidToken, s)
}

// MustParsePushToken is ParsePushToken for constants and tests.
func MustParsePushToken(s string) PushToken {
	t, err := ParsePushToken(s)
	if err != nil {
		panic(err)
	}
	return t
}

func (t PushToken) String() string { return t.value }

// IsZero reports whether t was never parsed.
func (t PushToken) IsZero() bool { return t.value == "" }

func (t PushToken) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return nil, errors.New("push token is not set")
	}
	return json.Marshal(t.value)
}

func (t *PushToken) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParsePushToken(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Priority is the delivery priority hint.
type Priority string

const (
	PriorityDefault Priority = "default"
	PriorityNormal  Priority = "normal"
	PriorityHigh    Priority = "high"
)

// PushMessage is one notification for one recipient. The With* methods
// return modified copies, so a message handed to the client is never changed
// behind its back.
type PushMessage struct {
	To PushToken `json:"to"`

	// Data is delivered to the app; the gateway caps the whole payload at 4 KiB.
	Data       map[string]any `json:"data,omitempty"`
	Title      string         `json:"title,omitempty"`
	Subtitle   string         `json:"subtitle,omitempty"`
	Body       string         `json:"body,omitempty"`
	Sound      string         `json:"sound,omitempty"`
	TTL        *int           `json:"ttl,omitempty"`
	Expiration *int64         `json:"expiration,omitempty"`
	Priority   Priority       `json:"priority,omitempty"`
	// Badge of zero is meaningful (clears the badge), hence the pointer.
	Badge          *int   `json:"badge,omitempty"`
	ChannelID      string `json:"channelId,omitempty"`
	CategoryID     string `json:"categoryId,omitempty"`
	MutableContent bool   `json:"mutableContent,omitempty"`
}

// NewPushMessage starts a message for one recipient.
func NewPushMessage(to PushToken) PushMessage {
	return PushMessage{To: to}
}

func (m PushMessage) WithTitle(title string) PushMessage {
	m.Title = title
	return m
}

func (m PushMessage) WithSubtitle(subtitle string) PushMessage {
	m.Subtitle = subtitle
	return m
}

func (m PushMessage) WithBody(body string) PushMessage {
	m.Body = body
	return m
}

func (m PushMessage) WithSound(sound string) PushMessage {
	m.Sound = sound
	return m
}

// WithData replaces the data payload with a copy of data.
func (m PushMessage) WithData(data map[string]any) PushMessage {
	cp := make(map[string]any, len(data))
	for k, v := range data {
		cp[k] = v
	}
	m.Data = cp
	return m
}

func (m PushMessage) WithTTL(seconds int) PushMessage {
	m.TTL = &seconds
	return m
}

// WithExpiration sets an absolute unix timestamp after which delivery is
// abandoned.
func (m PushMessage) WithExpiration(unix int64) PushMessage {
	m.Expiration = &unix
	return m
}

func (m PushMessage) WithPriority(p Priority) PushMessage {
	m.Priority = p
	return m
}

func (m PushMessage) WithBadge(n int) PushMessage {
	m.Badge = &n
	return m
}

func (m PushMessage) WithChannelID(id string) PushMessage {
	m.ChannelID = id
	return m
}

func (m PushMessage) WithCategoryID(id string) PushMessage {
	m.CategoryID = id
	return m
}

func (m PushMessage) WithMutableContent(on bool) PushMessage {
	m.MutableContent = on
	return m
}
