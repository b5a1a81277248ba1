// Package contents persists content objects: one row per distinct payload,
// keyed by digest and carrying its reference count.
package contents

import (
	"context"

	"github.com/dmitrijs2005/filevault/internal/server/models"
)

// Repository is implemented by the Postgres and SQLite stores. Every mutating
// method is a single statement so concurrent callers never lose an update.
type Repository interface {
	// Get returns the content object or common.ErrorNotFound.
	Get(ctx context.Context, digest string) (*models.ContentObject, error)
	// Insert stores obj unless a row with the same digest exists.
	// It reports whether this call created the row.
	Insert(ctx context.Context, obj *models.ContentObject) (bool, error)
	// Increment adds one reference and returns the updated row,
	// or common.ErrorNotFound when no row exists.
	Increment(ctx context.Context, digest string) (*models.ContentObject, error)
	// Decrement drops one reference and returns the updated row,
	// or common.ErrorNotFound when no referenced row exists.
	Decrement(ctx context.Context, digest string) (*models.ContentObject, error)
	// DeleteUnreferenced removes the row if its count is zero.
	DeleteUnreferenced(ctx context.Context, digest string) (bool, error)
}
