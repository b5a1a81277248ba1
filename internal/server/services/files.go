package services

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/dbx"
	"github.com/dmitrijs2005/filevault/internal/digest"
	"github.com/dmitrijs2005/filevault/internal/logging"
	"github.com/dmitrijs2005/filevault/internal/server/metrics"
	"github.com/dmitrijs2005/filevault/internal/server/models"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/repomanager"
	"github.com/google/uuid"
	"github.com/im7mortal/kmutex"
	"github.com/juju/clock"
)

const defaultContentType = "application/octet-stream"

// FileRegistry manages logical files. Creating or deleting a file adjusts the
// referenced content object and the owner's ledger; ledger and file rows
// change in one transaction.
type FileRegistry struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	contents    *ContentRegistry
	quota       *QuotaLedger
	owners      *kmutex.Kmutex
	clock       clock.Clock
	metrics     *metrics.Collector
	logger      logging.Logger
}

func NewFileRegistry(db *sql.DB, m repomanager.RepositoryManager, contents *ContentRegistry, quota *QuotaLedger,
	clk clock.Clock, mc *metrics.Collector, logger logging.Logger) *FileRegistry {
	return &FileRegistry{
		db:          db,
		repomanager: m,
		contents:    contents,
		quota:       quota,
		owners:      kmutex.New(),
		clock:       clk,
		metrics:     mc,
		logger:      logger.With("module", "file_registry"),
	}
}

// CreateFile records a new file for ownerID whose bytes are read from payload
// and hash to sum. If the owner's quota rejects it, the content reference
// taken for it is given back.
func (r *FileRegistry) CreateFile(ctx context.Context, ownerID, filename, contentType string, sum digest.Sum, payload io.Reader) (*models.File, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner is required", common.ErrInvalidInput)
	}
	if sum.Size <= 0 {
		return nil, fmt.Errorf("%w: empty payload", common.ErrInvalidInput)
	}
	filename = cleanFilename(filename)
	if filename == "" {
		return nil, fmt.Errorf("%w: filename is required", common.ErrInvalidInput)
	}
	if contentType == "" {
		contentType = defaultContentType
	}

	obj, created, err := r.contents.CreateOrReference(ctx, sum, payload)
	if err != nil {
		return nil, err
	}

	r.owners.Lock(ownerID)
	defer r.owners.Unlock(ownerID)

	file, err := dbx.WithTxResult(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) (*models.File, error) {
		if _, err := r.quota.Lock(ctx, tx, ownerID); err != nil {
			return nil, err
		}
		files := r.repomanager.Files(tx)
		held, err := files.CountByOwnerDigest(ctx, ownerID, sum.Hex)
		if err != nil {
			return nil, err
		}
		if _, err := r.quota.TryAdmit(ctx, tx, ownerID, sum.Size, held == 0); err != nil {
			return nil, err
		}

		f := &models.File{
			ID:               uuid.NewString(),
			OwnerID:          ownerID,
			OriginalFilename: filename,
			ContentType:      contentType,
			Digest:           obj.Digest,
			ByteSize:         obj.ByteSize,
			UploadedAt:       r.clock.Now().UTC(),
			IsFirstReference: created,
		}
		if err := files.Create(ctx, f); err != nil {
			return nil, err
		}
		return f, nil
	})
	if err != nil {
		if _, rerr := r.contents.Release(context.WithoutCancel(ctx), sum.Hex); rerr != nil {
			r.logger.Error(ctx, "content release after failed create", "digest", sum.Hex, "error", rerr)
		}
		return nil, err
	}

	r.metrics.ObserveUpload(created, file.ByteSize)
	r.logger.Info(ctx, "file created", "id", file.ID, "owner", ownerID, "digest", file.Digest, "deduplicated", !created)
	return file, nil
}

// DeleteFile removes one of the owner's files. The content loses a reference
// in the same transaction and its blob is deleted after commit if that was
// the last one.
func (r *FileRegistry) DeleteFile(ctx context.Context, id, ownerID string) error {
	f, err := r.Get(ctx, id, ownerID)
	if err != nil {
		return err
	}

	r.owners.Lock(ownerID)
	defer r.owners.Unlock(ownerID)
	r.contents.locks.Lock(f.Digest)
	defer r.contents.locks.Unlock(f.Digest)

	locator, err := dbx.WithTxResult(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) (string, error) {
		if _, err := r.quota.Lock(ctx, tx, ownerID); err != nil {
			return "", err
		}
		files := r.repomanager.Files(tx)
		if err := files.Delete(ctx, f.ID); err != nil {
			return "", err
		}
		left, err := files.CountByOwnerDigest(ctx, ownerID, f.Digest)
		if err != nil {
			return "", err
		}
		if _, err := r.quota.Release(ctx, tx, ownerID, f.ByteSize, left == 0); err != nil {
			return "", err
		}
		return r.contents.releaseTx(ctx, tx, f.Digest)
	})
	if err != nil {
		return err
	}

	if locator != "" {
		r.contents.reclaim(ctx, f.Digest, locator)
	}
	r.logger.Info(ctx, "file deleted", "id", f.ID, "owner", ownerID, "digest", f.Digest, "reclaimed", locator != "")
	return nil
}

// Get returns the owner's file. A file of another owner yields
// common.ErrPermissionDenied.
func (r *FileRegistry) Get(ctx context.Context, id, ownerID string) (*models.File, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner is required", common.ErrInvalidInput)
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.ErrorNotFound
	}
	f, err := r.repomanager.Files(r.db).Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if f.OwnerID != ownerID {
		return nil, common.ErrPermissionDenied
	}
	return f, nil
}

// List returns the owner's files matching filter, newest first.
func (r *FileRegistry) List(ctx context.Context, ownerID string, filter models.FileFilter) ([]*models.File, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner is required", common.ErrInvalidInput)
	}
	if filter.MinSize != nil && filter.MaxSize != nil && *filter.MinSize > *filter.MaxSize {
		return nil, fmt.Errorf("%w: min_size exceeds max_size", common.ErrInvalidInput)
	}
	if filter.StartDate != nil && filter.EndDate != nil && filter.StartDate.After(*filter.EndDate) {
		return nil, fmt.Errorf("%w: start_date is after end_date", common.ErrInvalidInput)
	}
	return r.repomanager.Files(r.db).List(ctx, ownerID, filter)
}

// DistinctContentTypes lists the content types among the owner's files.
func (r *FileRegistry) DistinctContentTypes(ctx context.Context, ownerID string) ([]string, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner is required", common.ErrInvalidInput)
	}
	return r.repomanager.Files(r.db).DistinctContentTypes(ctx, ownerID)
}

func cleanFilename(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, `\`, "/"))
	if name == "" {
		return ""
	}
	base := path.Base(name)
	if base == "." || base == "/" || base == ".." {
		return ""
	}
	return base
}
