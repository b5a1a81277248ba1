package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/dbx"
	"github.com/dmitrijs2005/filevault/internal/server/models"
)

// PostgresRepository implements file storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new file row. Exactly one row must be affected.
func (r *PostgresRepository) Create(ctx context.Context, file *models.File) error {
	query := `INSERT INTO files (` + fileColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	res, err := r.db.ExecContext(ctx, query, file.ID, file.OwnerID, file.OriginalFilename, file.ContentType,
		file.Digest, file.ByteSize, file.UploadedAt, file.IsFirstReference)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return exactlyOne(res)
}

// Get returns a file by id, or common.ErrorNotFound.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE id=$1`
	return scanFile(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM files WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return exactlyOne(res)
}

// List returns the owner's files matching filter, newest first.
func (r *PostgresRepository) List(ctx context.Context, ownerID string, filter models.FileFilter) ([]*models.File, error) {
	query, args := listQuery(ownerID, filter, dollar)
	return queryFiles(ctx, r.db, query, args...)
}

func (r *PostgresRepository) CountByOwnerDigest(ctx context.Context, ownerID, digest string) (int64, error) {
	var n int64
	query := `SELECT COUNT(*) FROM files WHERE owner_id=$1 AND digest=$2`
	if err := r.db.QueryRowContext(ctx, query, ownerID, digest).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) DistinctContentTypes(ctx context.Context, ownerID string) ([]string, error) {
	query := `SELECT DISTINCT content_type FROM files WHERE owner_id=$1 ORDER BY content_type`
	return queryStrings(ctx, r.db, query, ownerID)
}

func scanFile(row interface{ Scan(...any) error }) (*models.File, error) {
	f := &models.File{}
	err := row.Scan(&f.ID, &f.OwnerID, &f.OriginalFilename, &f.ContentType, &f.Digest, &f.ByteSize, &f.UploadedAt, &f.IsFirstReference)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return f, nil
}

func queryFiles(ctx context.Context, db dbx.DBTX, query string, args ...any) ([]*models.File, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select files: %w", err)
	}
	defer rows.Close()

	result := []*models.File{}
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func queryStrings(ctx context.Context, db dbx.DBTX, query string, args ...any) ([]string, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func exactlyOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrorNotFound
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}
