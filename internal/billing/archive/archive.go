// Package archive persists raw provider webhook payloads so operators can
// replay or inspect them during manual reconciliation. Archival is best
// effort; the webhook projector logs failures and moves on.
package archive

import "context"

// EventArchive stores a raw event payload under the provider's event id.
type EventArchive interface {
	Store(ctx context.Context, eventID string, payload []byte) error
}

// Nop discards payloads. Used when no object storage is configured.
type Nop struct{}

func (Nop) Store(context.Context, string, []byte) error { return nil }
