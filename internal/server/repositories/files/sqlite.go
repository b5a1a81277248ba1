package files

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

func (r *SQLiteRepository) Create(ctx context.Context, file *models.File) error {
	query := `INSERT INTO files (` + fileColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, query, file.ID, file.OwnerID, file.OriginalFilename, file.ContentType,
		file.Digest, file.ByteSize, file.UploadedAt.UTC(), file.IsFirstReference)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return exactlyOne(res)
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*models.File, error) {
	return scanFile(r.db.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM files WHERE id=?`, id))
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM files WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return exactlyOne(res)
}

func (r *SQLiteRepository) List(ctx context.Context, ownerID string, filter models.FileFilter) ([]*models.File, error) {
	query, args := listQuery(ownerID, filter, question)
	return queryFiles(ctx, r.db, query, args...)
}

func (r *SQLiteRepository) CountByOwnerDigest(ctx context.Context, ownerID, digest string) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM files WHERE owner_id=? AND digest=?`, ownerID, digest).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) DistinctContentTypes(ctx context.Context, ownerID string) ([]string, error) {
	return queryStrings(ctx, r.db, `SELECT DISTINCT content_type FROM files WHERE owner_id=? ORDER BY content_type`, ownerID)
}
