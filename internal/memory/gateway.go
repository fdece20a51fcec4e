// Package memory persists a bounded per-user summary of the assistant's
// replies in an external key-value store. Memory is a best-effort
// enhancement: when disabled or unconfigured every operation is a no-op.
package memory

import (
	"context"
	"time"
)

// Expiry is how long a persisted summary lives. Each persist overwrites the
// prior value wholesale and restarts the clock.
const Expiry = 30 * 24 * time.Hour

// MaxSummaryLength caps the persisted summary, in runes.
const MaxSummaryLength = 2000

// Gateway reads and writes per-user memory summaries.
type Gateway interface {
	// Fetch returns the stored summary for the user, or "" when absent.
	Fetch(ctx context.Context, userID string) (string, error)
	// Persist overwrites the user's summary with a fresh expiry.
	Persist(ctx context.Context, userID, summary string) error
}

type noopGateway struct{}

func (noopGateway) Fetch(context.Context, string) (string, error) { return "", nil }
func (noopGateway) Persist(context.Context, string, string) error { return nil }

// Noop returns a gateway that stores nothing and fetches nothing.
func Noop() Gateway {
	return noopGateway{}
}

// CapSummary trims the text and keeps only its trailing MaxSummaryLength
// runes, the most recent context.
func CapSummary(text string) string {
	runes := []rune(text)
	if len(runes) <= MaxSummaryLength {
		return string(runes)
	}
	return string(runes[len(runes)-MaxSummaryLength:])
}
