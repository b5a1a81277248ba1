package repomanager

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/dbx"
	"github.com/dmitrijs2005/filevault/internal/server/models"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLite(t *testing.T) (*sql.DB, RepositoryManager) {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "meta.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	m := &SQLiteRepositoryManager{}
	require.NoError(t, m.RunMigrations(context.Background(), db))
	return db, m
}

func TestSQLite_ContentLifecycle(t *testing.T) {
	ctx := context.Background()
	db, m := newSQLite(t)
	repo := m.Contents(db)

	obj := &models.ContentObject{Digest: "d1", ByteSize: 5, StorageKey: "content/k", ReferenceCount: 1, CreatedAt: time.Now()}
	created, err := repo.Insert(ctx, obj)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.Insert(ctx, obj)
	require.NoError(t, err)
	assert.False(t, created)

	got, err := repo.Increment(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.ReferenceCount)
	assert.Equal(t, "content/k", got.StorageKey)

	ok, err := repo.DeleteUnreferenced(ctx, "d1")
	require.NoError(t, err)
	assert.False(t, ok)

	for _, want := range []int64{1, 0} {
		got, err = repo.Decrement(ctx, "d1")
		require.NoError(t, err)
		assert.Equal(t, want, got.ReferenceCount)
	}
	_, err = repo.Decrement(ctx, "d1")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	ok, err = repo.DeleteUnreferenced(ctx, "d1")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = repo.Get(ctx, "d1")
	assert.ErrorIs(t, err, common.ErrorNotFound)
	_, err = repo.Increment(ctx, "d1")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestSQLite_FilesListAndFilters(t *testing.T) {
	ctx := context.Background()
	db, m := newSQLite(t)

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	_, err := m.Contents(db).Insert(ctx, &models.ContentObject{Digest: "d1", ByteSize: 5, StorageKey: "k1", ReferenceCount: 3, CreatedAt: base})
	require.NoError(t, err)

	fr := m.Files(db)
	for i, f := range []*models.File{
		{ID: "a", OwnerID: "u1", OriginalFilename: "Report.PDF", ContentType: "application/pdf", Digest: "d1", ByteSize: 5, UploadedAt: base, IsFirstReference: true},
		{ID: "b", OwnerID: "u1", OriginalFilename: "notes_1.txt", ContentType: "text/plain", Digest: "d1", ByteSize: 5, UploadedAt: base.Add(time.Hour)},
		{ID: "c", OwnerID: "u2", OriginalFilename: "report.txt", ContentType: "text/plain", Digest: "d1", ByteSize: 5, UploadedAt: base.Add(2 * time.Hour)},
	} {
		require.NoError(t, fr.Create(ctx, f), "file %d", i)
	}

	got, err := fr.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, got.IsFirstReference)
	assert.True(t, got.UploadedAt.Equal(base))

	list, err := fr.List(ctx, "u1", models.FileFilter{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].ID)

	list, err = fr.List(ctx, "u1", models.FileFilter{Search: "report"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "a", list[0].ID)

	list, err = fr.List(ctx, "u1", models.FileFilter{Search: "_"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "b", list[0].ID)

	start := base.Add(30 * time.Minute)
	list, err = fr.List(ctx, "u1", models.FileFilter{StartDate: &start})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "b", list[0].ID)

	big := int64(6)
	list, err = fr.List(ctx, "u1", models.FileFilter{MinSize: &big})
	require.NoError(t, err)
	assert.Empty(t, list)

	n, err := fr.CountByOwnerDigest(ctx, "u1", "d1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	types, err := fr.DistinctContentTypes(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"application/pdf", "text/plain"}, types)

	require.NoError(t, fr.Delete(ctx, "a"))
	assert.ErrorIs(t, fr.Delete(ctx, "a"), common.ErrorNotFound)
	_, err = fr.Get(ctx, "a")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestSQLite_LedgerInTx(t *testing.T) {
	ctx := context.Background()
	db, m := newSQLite(t)
	now := time.Now()

	_, err := m.Ledger(db).Get(ctx, "u1")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	err = dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := m.Ledger(tx)
		l, err := repo.Lock(ctx, "u1", now)
		if err != nil {
			return err
		}
		assert.Zero(t, l.TotalFiles)
		_, err = repo.Apply(ctx, "u1", ledger.Delta{Files: 2, Original: 5, Logical: 10}, now)
		return err
	})
	require.NoError(t, err)

	l, err := m.Ledger(db).Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), l.TotalFiles)
	assert.Equal(t, int64(5), l.SpaceSaved())

	// The CHECK constraint rejects a negative aggregate.
	_, err = m.Ledger(db).Apply(ctx, "u1", ledger.Delta{Files: -3}, now)
	assert.Error(t, err)
}
