package dashboard

import (
	"context"
	"errors"
	"time"

	"github.com/canemap/canemap/internal/filter"
)

// ErrSessionNotFound is returned when a session does not exist.
var ErrSessionNotFound = errors.New("session not found")

// Record is the persisted part of a session. Markers, progress and banner
// are transient and rebuilt by the next apply.
type Record struct {
	ID        string
	Filter    filter.State
	Applied   *filter.State
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r *Record) clone() *Record {
	cpy := *r
	cpy.Filter = r.Filter.Clone()
	if r.Applied != nil {
		applied := r.Applied.Clone()
		cpy.Applied = &applied
	}
	return &cpy
}

// Repository defines the interface for session persistence.
type Repository interface {
	// Get retrieves a session record by ID.
	Get(ctx context.Context, id string) (*Record, error)

	// Save creates or replaces a session record.
	Save(ctx context.Context, rec *Record) error

	// Delete deletes a session record. Deleting a missing record is not an error.
	Delete(ctx context.Context, id string) error

	// DeleteIdle deletes records not updated since cutoff and returns their IDs.
	DeleteIdle(ctx context.Context, cutoff time.Time) ([]string, error)
}
