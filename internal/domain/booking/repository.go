package booking

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the persistence contract for submitted booking records.
type Repository interface {
	// Save persists a new record.
	Save(ctx context.Context, record *Record) error

	// FindByReference retrieves a record by its booking reference.
	FindByReference(ctx context.Context, reference string) (*Record, error)

	// FindBySessionID retrieves the record submitted from a given session.
	FindBySessionID(ctx context.Context, sessionID uuid.UUID) (*Record, error)

	// ListRecent retrieves the most recently submitted records with pagination.
	ListRecent(ctx context.Context, page, limit int) ([]*Record, int64, error)
}
