package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mib = 1 << 20

func upload(t *testing.T, e *env, owner, name string, payload []byte) *models.File {
	t.Helper()
	f, err := e.vault.Upload(context.Background(), owner, name, "text/plain", bytes.NewReader(payload))
	require.NoError(t, err)
	return f
}

func stats(t *testing.T, e *env, owner string) *models.Stats {
	t.Helper()
	st, err := e.vault.Stats(context.Background(), owner)
	require.NoError(t, err)
	return st
}

func refCount(t *testing.T, e *env, dg string) int64 {
	t.Helper()
	obj, err := e.contents.Get(context.Background(), dg)
	if errors.Is(err, common.ErrorNotFound) {
		return 0
	}
	require.NoError(t, err)
	return obj.ReferenceCount
}

func TestUpload_DeduplicatesIdenticalContent(t *testing.T) {
	e := newEnv(t, 0)
	payload := []byte("same bytes")

	f1 := upload(t, e, "u1", "a.txt", payload)
	f2 := upload(t, e, "u1", "b.txt", payload)

	assert.Equal(t, f1.Digest, f2.Digest)
	assert.NotEqual(t, f1.ID, f2.ID)
	assert.True(t, f1.IsFirstReference)
	assert.False(t, f2.IsFirstReference)
	assert.Equal(t, int64(2), refCount(t, e, f1.Digest))
	assert.Equal(t, 1, e.blobCount(t))

	st := stats(t, e, "u1")
	assert.Equal(t, int64(2), st.TotalFiles)
	assert.Equal(t, int64(len(payload)), st.OriginalStorageUsed)
	assert.Equal(t, int64(2*len(payload)), st.LogicalStorageUsed)
	assert.Equal(t, int64(len(payload)), st.SpaceSaved)
	assert.Equal(t, 50.0, st.SavingsPercentage)
}

func TestDelete_ReclaimsAfterLastFile(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, 0)
	payload := []byte("same bytes")

	f1 := upload(t, e, "u1", "a.txt", payload)
	f2 := upload(t, e, "u1", "b.txt", payload)

	require.NoError(t, e.vault.Delete(ctx, f1.ID, "u1"))
	assert.Equal(t, int64(1), refCount(t, e, f1.Digest))
	assert.Equal(t, 1, e.blobCount(t))
	st := stats(t, e, "u1")
	assert.Equal(t, int64(1), st.TotalFiles)
	assert.Equal(t, int64(len(payload)), st.OriginalStorageUsed)
	assert.Equal(t, int64(len(payload)), st.LogicalStorageUsed)

	require.NoError(t, e.vault.Delete(ctx, f2.ID, "u1"))
	assert.Zero(t, refCount(t, e, f1.Digest))
	assert.Zero(t, e.blobCount(t))
	assert.Equal(t, &models.Stats{}, stats(t, e, "u1"))

	assert.ErrorIs(t, e.vault.Delete(ctx, f2.ID, "u1"), common.ErrorNotFound)
}

func TestQuota_TenMiBScenario(t *testing.T) {
	e := newEnv(t, 10*mib)
	a := bytes.Repeat([]byte("a"), 6*mib)
	b := bytes.Repeat([]byte("b"), 5*mib)

	upload(t, e, "u1", "a1.bin", a)
	upload(t, e, "u1", "a2.bin", a)

	st := stats(t, e, "u1")
	assert.Equal(t, int64(6291456), st.OriginalStorageUsed)
	assert.Equal(t, int64(12582912), st.LogicalStorageUsed)
	assert.Equal(t, int64(6291456), st.SpaceSaved)
	assert.Equal(t, 60.0, st.UsedPercentage)

	_, err := e.vault.Upload(context.Background(), "u1", "b.bin", "application/octet-stream", bytes.NewReader(b))
	require.ErrorIs(t, err, common.ErrQuotaExceeded)
	assert.True(t, common.Retryable(err))

	// The rejected upload left no trace.
	assert.Equal(t, st, stats(t, e, "u1"))
	assert.Zero(t, refCount(t, e, sumOf(t, b).Hex))
	assert.Equal(t, 1, e.blobCount(t))

	// A duplicate of held content is still admitted at the limit.
	upload(t, e, "u1", "a3.bin", a)
}

func TestQuota_ExactlyAtLimitIsAdmitted(t *testing.T) {
	e := newEnv(t, 10)
	upload(t, e, "u1", "x", []byte("0123456789"))
	_, err := e.vault.Upload(context.Background(), "u1", "y", "", bytes.NewReader([]byte("z")))
	assert.ErrorIs(t, err, common.ErrQuotaExceeded)
}

func TestQuota_RejectionKeepsOtherOwnersReference(t *testing.T) {
	e := newEnv(t, 10)
	payload := []byte("0123456789")

	upload(t, e, "u1", "x", payload)
	upload(t, e, "u2", "filler", []byte("12345"))

	_, err := e.vault.Upload(context.Background(), "u2", "x", "", bytes.NewReader(payload))
	require.ErrorIs(t, err, common.ErrQuotaExceeded)
	assert.Equal(t, int64(1), refCount(t, e, sumOf(t, payload).Hex))
	assert.Equal(t, 2, e.blobCount(t))
}

func TestSharedContentAcrossOwners(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, 0)
	payload := []byte("shared")

	f1 := upload(t, e, "u1", "a", payload)
	f2 := upload(t, e, "u2", "a", payload)
	assert.False(t, f2.IsFirstReference)
	assert.Equal(t, int64(2), refCount(t, e, f1.Digest))

	for _, owner := range []string{"u1", "u2"} {
		st := stats(t, e, owner)
		assert.Equal(t, int64(len(payload)), st.OriginalStorageUsed, owner)
		assert.Equal(t, int64(len(payload)), st.LogicalStorageUsed, owner)
	}

	require.NoError(t, e.vault.Delete(ctx, f1.ID, "u1"))
	assert.Equal(t, &models.Stats{}, stats(t, e, "u1"))
	assert.Equal(t, int64(len(payload)), stats(t, e, "u2").OriginalStorageUsed)
	assert.Equal(t, 1, e.blobCount(t))
}

func TestDelete_OtherOwnerIsDenied(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, 0)
	f := upload(t, e, "u1", "a", []byte("mine"))

	assert.ErrorIs(t, e.vault.Delete(ctx, f.ID, "u2"), common.ErrPermissionDenied)
	_, err := e.vault.Get(ctx, f.ID, "u2")
	assert.ErrorIs(t, err, common.ErrPermissionDenied)

	assert.Equal(t, int64(1), refCount(t, e, f.Digest))
	assert.Equal(t, int64(1), stats(t, e, "u1").TotalFiles)
}

func TestUpload_InvalidInput(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, 0)

	_, err := e.vault.Upload(ctx, "u1", "empty", "", bytes.NewReader(nil))
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = e.vault.Upload(ctx, "", "a", "", bytes.NewReader([]byte("x")))
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = e.vault.Upload(ctx, "u1", "../", "", bytes.NewReader([]byte("x")))
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	assert.Zero(t, e.blobCount(t))
}

func TestUpload_DefaultsAndCleansNames(t *testing.T) {
	e := newEnv(t, 0)
	f, err := e.vault.Upload(context.Background(), "u1", `C:\docs\report.pdf`, "", bytes.NewReader([]byte("x")))
	require.NoError(t, err)
	assert.Equal(t, "report.pdf", f.OriginalFilename)
	assert.Equal(t, "application/octet-stream", f.ContentType)
}

func TestGet_UnknownIDs(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, 0)

	_, err := e.vault.Get(ctx, "not-a-uuid", "u1")
	assert.ErrorIs(t, err, common.ErrorNotFound)
	_, err = e.vault.Get(ctx, "6f1c1bb0-2f52-4d8c-9a55-6f0c1a7f1d10", "u1")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestOpen_StreamsContent(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, 0)
	f := upload(t, e, "u1", "a", []byte("payload"))

	got, rc, err := e.vault.Open(ctx, f.ID, "u1")
	require.NoError(t, err)
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(b))
	assert.Equal(t, f.ID, got.ID)

	_, _, err = e.vault.Open(ctx, f.ID, "u2")
	assert.ErrorIs(t, err, common.ErrPermissionDenied)
}

func TestListAndContentTypes(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, 0)

	_, err := e.vault.Upload(ctx, "u1", "notes.txt", "text/plain", bytes.NewReader([]byte("1")))
	require.NoError(t, err)
	e.clock.Advance(time.Minute)
	_, err = e.vault.Upload(ctx, "u1", "photo.png", "image/png", bytes.NewReader([]byte("22")))
	require.NoError(t, err)
	e.clock.Advance(time.Minute)
	upload(t, e, "u2", "other.txt", []byte("333"))

	list, err := e.vault.List(ctx, "u1", models.FileFilter{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "photo.png", list[0].OriginalFilename)

	list, err = e.vault.List(ctx, "u1", models.FileFilter{ContentType: "text/plain"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "notes.txt", list[0].OriginalFilename)

	minSize, maxSize := int64(2), int64(1)
	_, err = e.vault.List(ctx, "u1", models.FileFilter{MinSize: &minSize, MaxSize: &maxSize})
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	types, err := e.vault.DistinctContentTypes(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"image/png", "text/plain"}, types)
}

func TestConcurrentUploadsOfSameContent(t *testing.T) {
	e := newEnv(t, 0)
	payload := []byte("concurrent payload")
	const n = 10

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := e.vault.Upload(context.Background(), "u1", fmt.Sprintf("f%d", i), "", bytes.NewReader(payload))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	dg := sumOf(t, payload).Hex
	assert.Equal(t, int64(n), refCount(t, e, dg))
	assert.Equal(t, int32(1), e.blobs.puts.Load())
	assert.Equal(t, 1, e.blobCount(t))

	st := stats(t, e, "u1")
	assert.Equal(t, int64(n), st.TotalFiles)
	assert.Equal(t, int64(len(payload)), st.OriginalStorageUsed)
	assert.Equal(t, int64(n*len(payload)), st.LogicalStorageUsed)
}

func TestConcurrentDeletesReclaimOnce(t *testing.T) {
	e := newEnv(t, 0)
	payload := []byte("concurrent payload")
	const n = 10

	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		owner := fmt.Sprintf("u%d", i%2)
		ids = append(ids, upload(t, e, owner, "f", payload).ID)
	}

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i, id := range ids {
		wg.Add(1)
		go func(owner, id string) {
			defer wg.Done()
			errs <- e.vault.Delete(context.Background(), id, owner)
		}(fmt.Sprintf("u%d", i%2), id)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.Zero(t, refCount(t, e, sumOf(t, payload).Hex))
	assert.Zero(t, e.blobCount(t))
	assert.Equal(t, &models.Stats{}, stats(t, e, "u0"))
	assert.Equal(t, &models.Stats{}, stats(t, e, "u1"))
}

func TestConcurrentUploadAndDelete(t *testing.T) {
	e := newEnv(t, 0)
	payload := []byte("churn")
	seed := upload(t, e, "u1", "seed", payload)

	var wg sync.WaitGroup
	created := make(chan *models.File, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f, err := e.vault.Upload(context.Background(), "u1", "f", "", bytes.NewReader(payload))
			if assert.NoError(t, err) {
				created <- f
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, e.vault.Delete(context.Background(), seed.ID, "u1"))
	}()
	wg.Wait()
	close(created)

	assert.Len(t, created, 5)
	assert.Equal(t, int64(5), refCount(t, e, seed.Digest))
	assert.Equal(t, 1, e.blobCount(t))
	st := stats(t, e, "u1")
	assert.Equal(t, int64(5), st.TotalFiles)
	assert.Equal(t, int64(len(payload)), st.OriginalStorageUsed)
}
