// Package registry tracks file sessions by id. The interface is
// backend-neutral so handlers work identically over the in-process map
// and the MySQL table.
package registry

import (
	"context"
	"errors"

	"github.com/hyunwoo/slidecheck/internal/models"
)

// ErrNotFound is returned when no session exists for the given id.
var ErrNotFound = errors.New("session not found")

// Mutator edits a session in place under the registry's write guard.
type Mutator func(*models.FileSession)

// Registry is the process-wide session table.
type Registry interface {
	// Put stores a new session record.
	Put(ctx context.Context, session *models.FileSession) error
	// Get returns the session for id, or ErrNotFound.
	Get(ctx context.Context, id string) (*models.FileSession, error)
	// Update applies mutate to the stored session and returns the
	// result, or ErrNotFound.
	Update(ctx context.Context, id string, mutate Mutator) (*models.FileSession, error)
	// Delete removes the session, or returns ErrNotFound.
	Delete(ctx context.Context, id string) error
	// List returns all sessions. Used by the janitor sweep.
	List(ctx context.Context) ([]*models.FileSession, error)
}
