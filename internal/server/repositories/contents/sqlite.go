package contents

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/filevault/internal/dbx"
	"github.com/dmitrijs2005/filevault/internal/server/models"
)

// SQLiteRepository implements Repository for the single-node SQLite store.
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Get(ctx context.Context, digest string) (*models.ContentObject, error) {
	query := `SELECT digest, byte_size, storage_key, ref_count, created_at
		FROM content_objects WHERE digest=?`
	return scanObject(r.db.QueryRowContext(ctx, query, digest))
}

func (r *SQLiteRepository) Insert(ctx context.Context, obj *models.ContentObject) (bool, error) {
	query := `INSERT INTO content_objects (digest, byte_size, storage_key, ref_count, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (digest) DO NOTHING`
	res, err := r.db.ExecContext(ctx, query, obj.Digest, obj.ByteSize, obj.StorageKey, obj.ReferenceCount, obj.CreatedAt.UTC())
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return affectedOne(res)
}

func (r *SQLiteRepository) Increment(ctx context.Context, digest string) (*models.ContentObject, error) {
	query := `UPDATE content_objects SET ref_count = ref_count + 1
		WHERE digest=?
		RETURNING digest, byte_size, storage_key, ref_count, created_at`
	return scanObject(r.db.QueryRowContext(ctx, query, digest))
}

func (r *SQLiteRepository) Decrement(ctx context.Context, digest string) (*models.ContentObject, error) {
	query := `UPDATE content_objects SET ref_count = ref_count - 1
		WHERE digest=? AND ref_count > 0
		RETURNING digest, byte_size, storage_key, ref_count, created_at`
	return scanObject(r.db.QueryRowContext(ctx, query, digest))
}

func (r *SQLiteRepository) DeleteUnreferenced(ctx context.Context, digest string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM content_objects WHERE digest=? AND ref_count = 0`, digest)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return affectedOne(res)
}
