// Package jsonlist writes a sequence of values as a JSON array straight into a
// byte buffer, one element at a time.
package jsonlist

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
)

// ErrEmpty is returned when the sequence yields no items. Nothing is written
// to the buffer in that case.
var ErrEmpty = errors.New("jsonlist: empty sequence")

// ItemError reports an element that could not be encoded.
type ItemError struct {
	Index int
	Err   error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("jsonlist: encode item %d: %v", e.Index, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }

// Encode appends the JSON array of items to buf and returns how many items it
// wrote. The sequence is consumed once. On error buf is restored to the length
// it had on entry.
func Encode[T any](buf *bytes.Buffer, items iter.Seq[T]) (int, error) {
	start := buf.Len()
	n := 0
	for item := range items {
		raw, err := json.Marshal(item)
		if err != nil {
			buf.Truncate(start)
			return 0, &ItemError{Index: n, Err: err}
		}
		if n == 0 {
			buf.WriteByte('[')
		} else {
			buf.WriteByte(',')
		}
		buf.Write(raw)
		n++
	}
	if n == 0 {
		return 0, ErrEmpty
	}
	buf.WriteByte(']')
	return n, nil
}

// EncodeField appends {"<field>":[items...]} to buf. It shares Encode's
// empty and error behavior.
func EncodeField[T any](buf *bytes.Buffer, field string, items iter.Seq[T]) (int, error) {
	key, err := json.Marshal(field)
	if err != nil {
		return 0, fmt.Errorf("jsonlist: encode field name: %w", err)
	}

	start := buf.Len()
	buf.WriteByte('{')
	buf.Write(key)
	buf.WriteByte(':')

	n, err := Encode(buf, items)
	if err != nil {
		buf.Truncate(start)
		return 0, err
	}
	buf.WriteByte('}')
	return n, nil
}
