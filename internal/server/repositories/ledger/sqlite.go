package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/filevault/internal/dbx"
	"github.com/dmitrijs2005/filevault/internal/server/models"
)

// SQLiteRepository implements Repository for the single-node SQLite store.
// SQLite serialises writers per database, so Lock needs no row lock.
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Get(ctx context.Context, ownerID string) (*models.Ledger, error) {
	return scanLedger(r.db.QueryRowContext(ctx, `SELECT `+ledgerColumns+` FROM storage_stats WHERE owner_id=?`, ownerID))
}

func (r *SQLiteRepository) Lock(ctx context.Context, ownerID string, now time.Time) (*models.Ledger, error) {
	ensure := `INSERT INTO storage_stats (owner_id, updated_at) VALUES (?, ?)
		ON CONFLICT (owner_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, ensure, ownerID, now.UTC()); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return r.Get(ctx, ownerID)
}

func (r *SQLiteRepository) Apply(ctx context.Context, ownerID string, d Delta, now time.Time) (*models.Ledger, error) {
	query := `UPDATE storage_stats SET
			total_files = total_files + ?,
			original_storage_used = original_storage_used + ?,
			logical_storage_used = logical_storage_used + ?,
			updated_at = ?
		WHERE owner_id=?
		RETURNING ` + ledgerColumns
	return scanLedger(r.db.QueryRowContext(ctx, query, d.Files, d.Original, d.Logical, now.UTC(), ownerID))
}
