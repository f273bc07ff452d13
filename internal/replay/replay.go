// Package replay selects which buffered messages a reconnecting participant
// receives.
//
// The window works in whole seconds. A short outage (reconnect within the
// threshold of the disconnect) replays the whole log. A long outage skips
// from the oldest entry until the first one no older than the threshold and
// replays that entry and everything after it.
package replay

import (
	"strings"

	"github.com/bft-labs/groupcast/internal/domain"
)

// Select returns the message texts to replay, in log order.
// ok is false when nothing qualifies and the sentinel must be sent instead.
//
// Entries after the first qualifying one are not re-checked against the
// threshold, even if their own age would exceed it.
func Select(entries []domain.LogEntry, disconnectedAt, reconnectedAt, threshold int64) (messages []string, ok bool) {
	if len(entries) == 0 {
		return nil, false
	}

	if reconnectedAt-disconnectedAt <= threshold {
		return texts(entries), true
	}

	for i, e := range entries {
		if reconnectedAt-e.ArrivedAt <= threshold {
			return texts(entries[i:]), true
		}
	}
	return nil, false
}

// Payload renders a selection as the single string pushed on reconnect.
func Payload(messages []string, ok bool) string {
	if !ok {
		return domain.ReplaySentinel
	}
	return strings.Join(messages, domain.ReplaySeparator)
}

// Split is the inverse of Payload as seen by a participant.
// It returns ok=false for the sentinel.
func Split(payload string) (messages []string, ok bool) {
	if payload == domain.ReplaySentinel {
		return nil, false
	}
	parts := strings.Split(payload, domain.ReplaySeparator)
	// Older coordinators terminate every message with the separator.
	for len(parts) > 0 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return parts, true
}

func texts(entries []domain.LogEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Message
	}
	return out
}
