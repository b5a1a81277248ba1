package services

import (
	"context"
	"database/sql"
	"io"
	"io/fs"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/filevault/internal/logging"
	"github.com/dmitrijs2005/filevault/internal/server/blobstore"
	"github.com/dmitrijs2005/filevault/internal/server/config"
	"github.com/dmitrijs2005/filevault/internal/server/metrics"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/repomanager"
	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/require"
)

type env struct {
	db       *sql.DB
	rm       repomanager.RepositoryManager
	blobRoot string
	blobs    *hookStore
	clock    *testclock.Clock
	contents *ContentRegistry
	quota    *QuotaLedger
	files    *FileRegistry
	vault    *Vault
}

// hookStore wraps a LocalStore and lets tests intercept calls.
type hookStore struct {
	blobstore.Store
	onPut    func(ctx context.Context, key string) error
	onDelete func(ctx context.Context, locator string) error
	puts     atomic.Int32
}

func (h *hookStore) Put(ctx context.Context, key string, r io.Reader, size int64) (string, error) {
	h.puts.Add(1)
	if h.onPut != nil {
		if err := h.onPut(ctx, key); err != nil {
			return "", err
		}
	}
	return h.Store.Put(ctx, key, r, size)
}

func (h *hookStore) Delete(ctx context.Context, locator string) error {
	if h.onDelete != nil {
		if err := h.onDelete(ctx, locator); err != nil {
			return err
		}
	}
	return h.Store.Delete(ctx, locator)
}

func newEnv(t *testing.T, quota int64) *env {
	t.Helper()
	dir := t.TempDir()

	db, err := repomanager.OpenSQLite(filepath.Join(dir, "meta.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	rm := &repomanager.SQLiteRepositoryManager{}
	require.NoError(t, rm.RunMigrations(context.Background(), db))

	blobRoot := filepath.Join(dir, "blobs")
	local, err := blobstore.NewLocalStore(blobRoot)
	require.NoError(t, err)
	blobs := &hookStore{Store: local}

	cfg := &config.Config{StorageQuotaBytes: quota, SpoolDir: t.TempDir()}
	clk := testclock.NewClock(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))
	mc := metrics.NewCollector()
	logger := logging.NewNopLogger()

	contents := NewContentRegistry(db, rm, blobs, clk, mc, logger)
	quotaLedger := NewQuotaLedger(db, rm, cfg, clk, mc)
	files := NewFileRegistry(db, rm, contents, quotaLedger, clk, mc, logger)

	return &env{
		db:       db,
		rm:       rm,
		blobRoot: blobRoot,
		blobs:    blobs,
		clock:    clk,
		contents: contents,
		quota:    quotaLedger,
		files:    files,
		vault:    NewVault(cfg, files, contents, quotaLedger, logger),
	}
}

// blobCount counts stored blobs, ignoring in-flight temp files.
func (e *env) blobCount(t *testing.T) int {
	t.Helper()
	n := 0
	err := filepath.WalkDir(e.blobRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && d.Name() == "tmp" {
			return filepath.SkipDir
		}
		if !d.IsDir() {
			n++
		}
		return nil
	})
	require.NoError(t, err)
	return n
}
