package services

import (
	"context"
	"io"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/digest"
	"github.com/dmitrijs2005/filevault/internal/logging"
	"github.com/dmitrijs2005/filevault/internal/server/config"
	"github.com/dmitrijs2005/filevault/internal/server/models"
)

// Vault is the operation surface offered to transports.
type Vault struct {
	files    *FileRegistry
	contents *ContentRegistry
	quota    *QuotaLedger
	spoolDir string
	logger   logging.Logger
}

func NewVault(cfg *config.Config, files *FileRegistry, contents *ContentRegistry, quota *QuotaLedger, logger logging.Logger) *Vault {
	return &Vault{
		files:    files,
		contents: contents,
		quota:    quota,
		spoolDir: cfg.SpoolDir,
		logger:   logger.With("module", "vault"),
	}
}

// Upload hashes r into a spool file and stores it as a new file of ownerID.
func (v *Vault) Upload(ctx context.Context, ownerID, filename, contentType string, r io.Reader) (*models.File, error) {
	if ownerID == "" {
		return nil, common.ErrInvalidInput
	}
	spool, sum, err := digest.Spool(ctx, v.spoolDir, r)
	if err != nil {
		return nil, err
	}
	defer spool.Close()

	return v.files.CreateFile(ctx, ownerID, filename, contentType, sum, spool)
}

func (v *Vault) Delete(ctx context.Context, id, ownerID string) error {
	return v.files.DeleteFile(ctx, id, ownerID)
}

func (v *Vault) Get(ctx context.Context, id, ownerID string) (*models.File, error) {
	return v.files.Get(ctx, id, ownerID)
}

// Open returns the file record and a reader over its bytes. The caller closes it.
func (v *Vault) Open(ctx context.Context, id, ownerID string) (*models.File, io.ReadCloser, error) {
	f, err := v.files.Get(ctx, id, ownerID)
	if err != nil {
		return nil, nil, err
	}
	rc, err := v.contents.Open(ctx, f.Digest)
	if err != nil {
		return nil, nil, err
	}
	return f, rc, nil
}

func (v *Vault) List(ctx context.Context, ownerID string, filter models.FileFilter) ([]*models.File, error) {
	return v.files.List(ctx, ownerID, filter)
}

func (v *Vault) Stats(ctx context.Context, ownerID string) (*models.Stats, error) {
	if ownerID == "" {
		return nil, common.ErrInvalidInput
	}
	return v.quota.Stats(ctx, ownerID)
}

func (v *Vault) DistinctContentTypes(ctx context.Context, ownerID string) ([]string, error) {
	return v.files.DistinctContentTypes(ctx, ownerID)
}
