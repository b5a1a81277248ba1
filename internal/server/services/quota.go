package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/dbx"
	"github.com/dmitrijs2005/filevault/internal/server/config"
	"github.com/dmitrijs2005/filevault/internal/server/metrics"
	"github.com/dmitrijs2005/filevault/internal/server/models"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/ledger"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/repomanager"
	"github.com/dustin/go-humanize"
	"github.com/juju/clock"
)

// QuotaLedger maintains per-owner storage aggregates. The quota is enforced
// against OriginalStorageUsed: the distinct content an owner references.
// Mutations run inside the caller's transaction.
type QuotaLedger struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	limit       int64
	clock       clock.Clock
	metrics     *metrics.Collector
}

func NewQuotaLedger(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, clk clock.Clock, mc *metrics.Collector) *QuotaLedger {
	return &QuotaLedger{
		db:          db,
		repomanager: m,
		limit:       cfg.StorageQuotaBytes,
		clock:       clk,
		metrics:     mc,
	}
}

// Lock holds the owner's ledger row until tx ends, creating it if needed.
func (q *QuotaLedger) Lock(ctx context.Context, tx dbx.DBTX, ownerID string) (*models.Ledger, error) {
	return q.repomanager.Ledger(tx).Lock(ctx, ownerID, q.clock.Now())
}

// TryAdmit charges one file of byteSize to the owner. Only new content counts
// toward the quota, so a duplicate of content the owner already holds is
// always admitted.
func (q *QuotaLedger) TryAdmit(ctx context.Context, tx dbx.DBTX, ownerID string, byteSize int64, isNewContent bool) (*models.Ledger, error) {
	l, err := q.Lock(ctx, tx, ownerID)
	if err != nil {
		return nil, err
	}

	var original int64
	if isNewContent {
		original = byteSize
	}
	if q.limit > 0 && l.OriginalStorageUsed+original > q.limit {
		q.metrics.QuotaRejected()
		return nil, fmt.Errorf("%w: %s used, %s requested, limit %s", common.ErrQuotaExceeded,
			humanize.IBytes(uint64(l.OriginalStorageUsed)), humanize.IBytes(uint64(byteSize)), humanize.IBytes(uint64(q.limit)))
	}

	return q.repomanager.Ledger(tx).Apply(ctx, ownerID, ledger.Delta{
		Files:    1,
		Original: original,
		Logical:  byteSize,
	}, q.clock.Now())
}

// Release reverses TryAdmit for one deleted file.
func (q *QuotaLedger) Release(ctx context.Context, tx dbx.DBTX, ownerID string, byteSize int64, wasLastReference bool) (*models.Ledger, error) {
	if _, err := q.Lock(ctx, tx, ownerID); err != nil {
		return nil, err
	}
	var original int64
	if wasLastReference {
		original = byteSize
	}
	return q.repomanager.Ledger(tx).Apply(ctx, ownerID, ledger.Delta{
		Files:    -1,
		Original: -original,
		Logical:  -byteSize,
	}, q.clock.Now())
}

// Stats reports the owner's usage. An owner with no uploads gets zeros.
func (q *QuotaLedger) Stats(ctx context.Context, ownerID string) (*models.Stats, error) {
	l, err := q.repomanager.Ledger(q.db).Get(ctx, ownerID)
	if errors.Is(err, common.ErrorNotFound) {
		l = &models.Ledger{OwnerID: ownerID}
	} else if err != nil {
		return nil, err
	}

	st := &models.Stats{
		TotalFiles:          l.TotalFiles,
		OriginalStorageUsed: l.OriginalStorageUsed,
		LogicalStorageUsed:  l.LogicalStorageUsed,
		SpaceSaved:          l.SpaceSaved(),
		QuotaLimit:          q.limit,
	}
	if q.limit > 0 {
		st.UsedPercentage = percent(l.OriginalStorageUsed, q.limit)
	}
	if l.LogicalStorageUsed > 0 {
		st.SavingsPercentage = percent(st.SpaceSaved, l.LogicalStorageUsed)
	}
	return st, nil
}

// percent returns part/whole*100 rounded to two decimals.
func percent(part, whole int64) float64 {
	return math.Round(float64(part)/float64(whole)*10000) / 100
}
