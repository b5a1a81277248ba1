// Package files persists logical file records.
package files

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/filevault/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, file *models.File) error
	Get(ctx context.Context, id string) (*models.File, error)
	// Delete removes the row and returns common.ErrorNotFound if it did not exist.
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, ownerID string, filter models.FileFilter) ([]*models.File, error)
	// CountByOwnerDigest counts the owner's files referencing digest.
	CountByOwnerDigest(ctx context.Context, ownerID, digest string) (int64, error)
	DistinctContentTypes(ctx context.Context, ownerID string) ([]string, error)
}

const fileColumns = `id, owner_id, original_filename, content_type, digest, byte_size, uploaded_at, is_first_reference`

// listQuery renders the filtered listing for a dialect; placeholder maps a
// 1-based argument position to its bind syntax.
func listQuery(ownerID string, f models.FileFilter, placeholder func(int) string) (string, []any) {
	var (
		sb   strings.Builder
		args []any
	)
	bind := func(v any) string {
		args = append(args, v)
		return placeholder(len(args))
	}

	sb.WriteString(`SELECT ` + fileColumns + ` FROM files WHERE owner_id=`)
	sb.WriteString(bind(ownerID))

	if f.Search != "" {
		sb.WriteString(` AND LOWER(original_filename) LIKE `)
		sb.WriteString(bind("%" + escapeLike(strings.ToLower(f.Search)) + "%"))
		sb.WriteString(` ESCAPE '\'`)
	}
	if f.ContentType != "" {
		sb.WriteString(` AND content_type=` + bind(f.ContentType))
	}
	if f.MinSize != nil {
		sb.WriteString(` AND byte_size >= ` + bind(*f.MinSize))
	}
	if f.MaxSize != nil {
		sb.WriteString(` AND byte_size <= ` + bind(*f.MaxSize))
	}
	if f.StartDate != nil {
		sb.WriteString(` AND uploaded_at >= ` + bind(f.StartDate.UTC()))
	}
	if f.EndDate != nil {
		sb.WriteString(` AND uploaded_at <= ` + bind(f.EndDate.UTC()))
	}
	sb.WriteString(` ORDER BY uploaded_at DESC, id DESC`)

	return sb.String(), args
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func dollar(n int) string { return fmt.Sprintf("$%d", n) }

func question(int) string { return "?" }
