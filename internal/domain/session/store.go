package session

import (
	"context"

	"github.com/google/uuid"
)

// Store persists booking sessions as flat field maps so that each edit can
// be written independently. Implementations bound entries with a TTL so
// abandoned sessions expire on their own.
type Store interface {
	// SetFields writes the given fields for a session, creating it if needed.
	SetFields(ctx context.Context, id uuid.UUID, fields map[string]string) error
	// Snapshot returns all stored fields for a session. An unknown session
	// returns an empty map and no error.
	Snapshot(ctx context.Context, id uuid.UUID) (map[string]string, error)
	// Clear removes every stored field for a session.
	Clear(ctx context.Context, id uuid.UUID) error
}
