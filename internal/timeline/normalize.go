// Package timeline normalizes host timestamps and lays out message timelines
// with date separators.
package timeline

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
)

const (
	// SecondsThreshold separates second-based from millisecond-based epochs.
	// Values below it are seconds.
	SecondsThreshold = 10_000_000_000

	// maxMillis is the largest representable instant (±100,000,000 days).
	maxMillis = 8.64e15
)

// Normalize resolves one raw candidate to an instant. Numbers and numeric
// strings must be finite and greater than zero.
func Normalize(raw any) fn.Option[time.Time] {
	switch v := raw.(type) {
	case nil:
		return fn.None[time.Time]()
	case time.Time:
		if v.IsZero() || v.UnixMilli() <= 0 {
			return fn.None[time.Time]()
		}
		return fn.Some(v)
	case fn.Option[time.Time]:
		return v
	case int:
		return fromNumber(float64(v))
	case int32:
		return fromNumber(float64(v))
	case int64:
		return fromNumber(float64(v))
	case uint64:
		return fromNumber(float64(v))
	case float32:
		return fromNumber(float64(v))
	case float64:
		return fromNumber(v)
	case json.Number:
		return fromString(v.String())
	case string:
		return fromString(v)
	default:
		return fn.None[time.Time]()
	}
}

// NormalizeCandidates returns the first candidate that normalizes. Callers
// pass candidates in priority order: message timestamp, envelope timestamp,
// generic timestamp, then the fallback.
func NormalizeCandidates(candidates ...any) fn.Option[time.Time] {
	for _, c := range candidates {
		if at := Normalize(c); at.IsSome() {
			return at
		}
	}
	return fn.None[time.Time]()
}

func fromString(s string) fn.Option[time.Time] {
	s = strings.TrimSpace(s)
	if s == "" {
		return fn.None[time.Time]()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fn.None[time.Time]()
	}
	return fromNumber(v)
}

func fromNumber(v float64) fn.Option[time.Time] {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return fn.None[time.Time]()
	}
	ms := v
	if v < SecondsThreshold {
		ms = v * 1000
	}
	if ms > maxMillis {
		return fn.None[time.Time]()
	}
	return fn.Some(time.UnixMilli(int64(ms)))
}
