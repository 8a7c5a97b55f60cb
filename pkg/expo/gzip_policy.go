package expo

import (
	"fmt"
	"strconv"
	"strings"
)

type gzipMode uint8

const (
	gzipNever gzipMode = iota
	gzipAlways
	gzipIfLarger
)

// GzipPolicy decides whether a request body is gzip-compressed. The zero
// value is GzipNever.
type GzipPolicy struct {
	mode      gzipMode
	threshold int
}

var (
	// GzipNever sends every body uncompressed.
	GzipNever = GzipPolicy{mode: gzipNever}
	// GzipAlways compresses every body.
	GzipAlways = GzipPolicy{mode: gzipAlways}
)

// GzipIfLargerThan compresses bodies strictly larger than threshold bytes,
// measured before compression.
func GzipIfLargerThan(threshold int) GzipPolicy {
	return GzipPolicy{mode: gzipIfLarger, threshold: threshold}
}

// ShouldCompress reports whether a serialized body of size bytes is to be
// compressed.
func (p GzipPolicy) ShouldCompress(size int) bool {
	switch p.mode {
	case gzipAlways:
		return true
	case gzipIfLarger:
		return size > p.threshold
	default:
		return false
	}
}

func (p GzipPolicy) String() string {
	switch p.mode {
	case gzipAlways:
		return "always"
	case gzipIfLarger:
		return fmt.Sprintf("if-larger-than(%d)", p.threshold)
	default:
		return "never"
	}
}

// ParseGzipPolicy reads the String form back, plus a bare byte count as a
// shorthand for GzipIfLargerThan.
func ParseGzipPolicy(s string) (GzipPolicy, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "", "never":
		return GzipNever, nil
	case "always":
		return GzipAlways, nil
	}

	raw := s
	if inner, ok := strings.CutPrefix(s, "if-larger-than("); ok {
		raw, ok = strings.CutSuffix(inner, ")")
		if !ok {
			return GzipPolicy{}, fmt.Errorf("invalid gzip policy %q", s)
		}
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return GzipPolicy{}, fmt.Errorf("invalid gzip policy %q", s)
	}
	return GzipIfLargerThan(n), nil
}
