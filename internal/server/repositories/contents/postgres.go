package contents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

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

func (r *PostgresRepository) Get(ctx context.Context, digest string) (*models.ContentObject, error) {
	query := `SELECT digest, byte_size, storage_key, ref_count, created_at
		FROM content_objects WHERE digest=$1`
	return scanObject(r.db.QueryRowContext(ctx, query, digest))
}

func (r *PostgresRepository) Insert(ctx context.Context, obj *models.ContentObject) (bool, error) {
	query := `INSERT INTO content_objects (digest, byte_size, storage_key, ref_count, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (digest) DO NOTHING`
	res, err := r.db.ExecContext(ctx, query, obj.Digest, obj.ByteSize, obj.StorageKey, obj.ReferenceCount, obj.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return affectedOne(res)
}

func (r *PostgresRepository) Increment(ctx context.Context, digest string) (*models.ContentObject, error) {
	query := `UPDATE content_objects SET ref_count = ref_count + 1
		WHERE digest=$1
		RETURNING digest, byte_size, storage_key, ref_count, created_at`
	return scanObject(r.db.QueryRowContext(ctx, query, digest))
}

func (r *PostgresRepository) Decrement(ctx context.Context, digest string) (*models.ContentObject, error) {
	query := `UPDATE content_objects SET ref_count = ref_count - 1
		WHERE digest=$1 AND ref_count > 0
		RETURNING digest, byte_size, storage_key, ref_count, created_at`
	return scanObject(r.db.QueryRowContext(ctx, query, digest))
}

func (r *PostgresRepository) DeleteUnreferenced(ctx context.Context, digest string) (bool, error) {
	query := `DELETE FROM content_objects WHERE digest=$1 AND ref_count = 0`
	res, err := r.db.ExecContext(ctx, query, digest)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return affectedOne(res)
}

func scanObject(row *sql.Row) (*models.ContentObject, error) {
	obj := &models.ContentObject{}
	err := row.Scan(&obj.Digest, &obj.ByteSize, &obj.StorageKey, &obj.ReferenceCount, &obj.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return obj, nil
}

func affectedOne(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("unexpected rows affected: %d", n)
	}
}
