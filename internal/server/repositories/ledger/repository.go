// Package ledger persists per-owner storage aggregates (the storage_stats table).
package ledger

import (
	"context"
	"time"

	"github.com/dmitrijs2005/filevault/internal/server/models"
)

// Delta is a signed change applied to a ledger row in one statement.
type Delta struct {
	Files    int64
	Original int64
	Logical  int64
}

type Repository interface {
	// Get returns the owner's row or common.ErrorNotFound.
	Get(ctx context.Context, ownerID string) (*models.Ledger, error)
	// Lock creates the owner's row if missing and returns it locked for the
	// rest of the enclosing transaction.
	Lock(ctx context.Context, ownerID string, now time.Time) (*models.Ledger, error)
	// Apply adds d to the owner's row and returns the result.
	Apply(ctx context.Context, ownerID string, d Delta, now time.Time) (*models.Ledger, error)
}
