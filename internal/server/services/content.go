// Package services holds the business logic of filevault: the content
// registry, the file registry, the quota ledger and the Vault facade over them.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/dbx"
	"github.com/dmitrijs2005/filevault/internal/digest"
	"github.com/dmitrijs2005/filevault/internal/logging"
	"github.com/dmitrijs2005/filevault/internal/server/blobstore"
	"github.com/dmitrijs2005/filevault/internal/server/metrics"
	"github.com/dmitrijs2005/filevault/internal/server/models"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/repomanager"
	"github.com/im7mortal/kmutex"
	"github.com/juju/clock"
	"github.com/sethvargo/go-retry"
)

var errLostInsertRace = errors.New("content row inserted concurrently")

// ContentRegistry owns content objects and their blobs. Mutations of one
// digest are serialised in-process by a keyed mutex; across processes the
// single-statement updates of the contents repository keep counts exact.
type ContentRegistry struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	blobs       blobstore.Store
	locks       *kmutex.Kmutex
	clock       clock.Clock
	metrics     *metrics.Collector
	logger      logging.Logger

	newKey  func(time.Time) string
	backoff func() retry.Backoff
}

func NewContentRegistry(db *sql.DB, m repomanager.RepositoryManager, blobs blobstore.Store,
	clk clock.Clock, mc *metrics.Collector, logger logging.Logger) *ContentRegistry {
	return &ContentRegistry{
		db:          db,
		repomanager: m,
		blobs:       blobs,
		locks:       kmutex.New(),
		clock:       clk,
		metrics:     mc,
		logger:      logger.With("module", "content_registry"),
		newKey:      RandomStorageKey,
		backoff: func() retry.Backoff {
			return retry.WithMaxRetries(3, retry.NewConstant(10*time.Millisecond))
		},
	}
}

// CreateOrReference adds a reference to the content identified by sum,
// creating it (and writing payload to the blob store exactly once) if it does
// not exist yet. created reports which of the two happened.
func (s *ContentRegistry) CreateOrReference(ctx context.Context, sum digest.Sum, payload io.Reader) (obj *models.ContentObject, created bool, err error) {
	if !digest.Valid(sum.Hex) || sum.Size < 0 {
		return nil, false, fmt.Errorf("%w: malformed digest", common.ErrInvalidInput)
	}

	s.locks.Lock(sum.Hex)
	defer s.locks.Unlock(sum.Hex)

	repo := s.repomanager.Contents(s.db)
	attempt := 0

	err = retry.Do(ctx, s.backoff(), func(ctx context.Context) error {
		attempt++
		existing, err := repo.Increment(ctx, sum.Hex)
		if err == nil {
			obj, created = existing, false
			return nil
		}
		if !errors.Is(err, common.ErrorNotFound) {
			return err
		}

		if attempt > 1 {
			if err := rewind(payload); err != nil {
				return err
			}
		}

		now := s.clock.Now()
		locator, err := s.blobs.Put(ctx, s.newKey(now), payload, sum.Size)
		if err != nil {
			return fmt.Errorf("%w: %v", common.ErrStorageIO, err)
		}

		fresh := &models.ContentObject{
			Digest:         sum.Hex,
			ByteSize:       sum.Size,
			StorageKey:     locator,
			ReferenceCount: 1,
			CreatedAt:      now,
		}
		inserted, err := repo.Insert(ctx, fresh)
		if err != nil || !inserted {
			s.deleteBlob(ctx, locator)
		}
		if err != nil {
			return err
		}
		if !inserted {
			s.logger.Debug(ctx, "lost content insert race", "digest", sum.Hex, "attempt", attempt)
			return retry.RetryableError(errLostInsertRace)
		}

		obj, created = fresh, true
		return nil
	})
	if errors.Is(err, errLostInsertRace) {
		return nil, false, fmt.Errorf("%w: %v", common.ErrStorageIO, err)
	}
	if err != nil {
		return nil, false, err
	}

	if created {
		s.logger.Info(ctx, "content stored", "digest", sum.Hex, "size", sum.Size, "key", obj.StorageKey)
	}
	return obj, created, nil
}

// Release drops one reference to digest. When it was the last one, the row is
// removed and the blob deleted; lastReference is then true.
func (s *ContentRegistry) Release(ctx context.Context, digest string) (lastReference bool, err error) {
	s.locks.Lock(digest)
	defer s.locks.Unlock(digest)

	locator, err := dbx.WithTxResult(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) (string, error) {
		return s.releaseTx(ctx, tx, digest)
	})
	if err != nil {
		return false, err
	}
	if locator == "" {
		return false, nil
	}
	s.reclaim(ctx, digest, locator)
	return true, nil
}

// releaseTx decrements within tx and returns the blob locator to reclaim
// after commit, or "" while references remain.
func (s *ContentRegistry) releaseTx(ctx context.Context, tx dbx.DBTX, digest string) (string, error) {
	repo := s.repomanager.Contents(tx)
	obj, err := repo.Decrement(ctx, digest)
	if err != nil {
		return "", err
	}
	if obj.ReferenceCount > 0 {
		return "", nil
	}
	deleted, err := repo.DeleteUnreferenced(ctx, digest)
	if err != nil {
		return "", err
	}
	if !deleted {
		return "", nil
	}
	return obj.StorageKey, nil
}

// reclaim deletes the blob of a removed content row. The metadata is already
// gone, so a failure only leaves an orphaned blob behind.
func (s *ContentRegistry) reclaim(ctx context.Context, digest, locator string) {
	s.metrics.ContentReclaimed()
	if err := s.blobs.Delete(context.WithoutCancel(ctx), locator); err != nil {
		s.metrics.BlobOrphaned()
		s.logger.Error(ctx, "blob delete failed", "digest", digest, "key", locator, "error", err)
		return
	}
	s.logger.Info(ctx, "content reclaimed", "digest", digest, "key", locator)
}

func (s *ContentRegistry) deleteBlob(ctx context.Context, locator string) {
	if err := s.blobs.Delete(context.WithoutCancel(ctx), locator); err != nil {
		s.metrics.BlobOrphaned()
		s.logger.Error(ctx, "blob cleanup failed", "key", locator, "error", err)
	}
}

// Get returns the content object for digest.
func (s *ContentRegistry) Get(ctx context.Context, digest string) (*models.ContentObject, error) {
	return s.repomanager.Contents(s.db).Get(ctx, digest)
}

// Open streams the bytes of digest.
func (s *ContentRegistry) Open(ctx context.Context, digest string) (io.ReadCloser, error) {
	obj, err := s.Get(ctx, digest)
	if err != nil {
		return nil, err
	}
	rc, err := s.blobs.Get(ctx, obj.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrStorageIO, err)
	}
	return rc, nil
}

func rewind(r io.Reader) error {
	sk, ok := r.(io.Seeker)
	if !ok {
		return fmt.Errorf("%w: payload cannot be replayed", common.ErrStorageIO)
	}
	if _, err := sk.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("%w: %v", common.ErrStorageIO, err)
	}
	return nil
}
