package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/dbx"
	"github.com/dmitrijs2005/filevault/internal/server/models"
)

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const ledgerColumns = `owner_id, total_files, original_storage_used, logical_storage_used, updated_at`

func (r *PostgresRepository) Get(ctx context.Context, ownerID string) (*models.Ledger, error) {
	query := `SELECT ` + ledgerColumns + ` FROM storage_stats WHERE owner_id=$1`
	return scanLedger(r.db.QueryRowContext(ctx, query, ownerID))
}

// Lock must run inside a transaction; the row lock is released on commit or rollback.
func (r *PostgresRepository) Lock(ctx context.Context, ownerID string, now time.Time) (*models.Ledger, error) {
	ensure := `INSERT INTO storage_stats (owner_id, updated_at) VALUES ($1, $2)
		ON CONFLICT (owner_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, ensure, ownerID, now); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	query := `SELECT ` + ledgerColumns + ` FROM storage_stats WHERE owner_id=$1 FOR UPDATE`
	return scanLedger(r.db.QueryRowContext(ctx, query, ownerID))
}

func (r *PostgresRepository) Apply(ctx context.Context, ownerID string, d Delta, now time.Time) (*models.Ledger, error) {
	query := `UPDATE storage_stats SET
			total_files = total_files + $2,
			original_storage_used = original_storage_used + $3,
			logical_storage_used = logical_storage_used + $4,
			updated_at = $5
		WHERE owner_id=$1
		RETURNING ` + ledgerColumns
	return scanLedger(r.db.QueryRowContext(ctx, query, ownerID, d.Files, d.Original, d.Logical, now))
}

func scanLedger(row *sql.Row) (*models.Ledger, error) {
	l := &models.Ledger{}
	err := row.Scan(&l.OwnerID, &l.TotalFiles, &l.OriginalStorageUsed, &l.LogicalStorageUsed, &l.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return l, nil
}
