// Package botdefense flags submissions that look automated: filled
// honeypot fields or a form completed faster than a human could.
package botdefense

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/bossnet/party-signup/internal/model"
)

// DefaultMinFillTime is the shortest plausible time between the form
// becoming interactive and its submission.
const DefaultMinFillTime = 3 * time.Second

// Signal names the heuristic that fired. It is for logs only and must not
// be sent back to the client.
type Signal string

const (
	SignalNone         Signal = ""
	SignalHoneypot     Signal = "honeypot"
	SignalTooFast      Signal = "too_fast"
	SignalBadTimestamp Signal = "bad_timestamp"
)

// Inspector applies both heuristics.
type Inspector struct {
	minFillTime time.Duration
	honeypots   []string
}

// New constructs an Inspector. A non-positive minFillTime falls back to
// DefaultMinFillTime.
func New(minFillTime time.Duration) *Inspector {
	if minFillTime <= 0 {
		minFillTime = DefaultMinFillTime
	}
	return &Inspector{
		minFillTime: minFillTime,
		honeypots:   model.HoneypotFields,
	}
}

// Inspect returns the first signal raised by sub, received at receivedAt,
// or SignalNone.
func (i *Inspector) Inspect(sub model.Submission, receivedAt time.Time) Signal {
	for _, field := range i.honeypots {
		if filled(sub[field]) {
			return SignalHoneypot
		}
	}

	raw, present := sub[model.FieldFormLoadTime]
	if !present || raw == nil {
		return SignalNone
	}
	loadedAtMs, ok := epochMillis(raw)
	if !ok {
		return SignalBadTimestamp
	}
	if loadedAtMs == 0 {
		return SignalNone
	}
	elapsed := receivedAt.Sub(time.UnixMilli(loadedAtMs))
	if elapsed < i.minFillTime {
		return SignalTooFast
	}
	return SignalNone
}

// filled reports whether a honeypot value counts as non-empty.
func filled(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case bool:
		return t
	case json.Number:
		f, err := t.Float64()
		return err != nil || f != 0
	case float64:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	default:
		return true
	}
}

func epochMillis(v any) (int64, bool) {
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n, true
		}
		f, err := t.Float64()
		if err != nil {
			return 0, false
		}
		return int64(f), true
	case float64:
		return int64(t), true
	case int64:
		return t, true
	case int:
		return int64(t), true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}
