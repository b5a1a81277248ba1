package models

import "time"

// Ledger holds the maintained storage aggregates of one owner.
type Ledger struct {
	OwnerID string
	// TotalFiles counts live logical files.
	TotalFiles int64
	// OriginalStorageUsed sums sizes of distinct content referenced by the owner.
	OriginalStorageUsed int64
	// LogicalStorageUsed sums sizes of all the owner's files, duplicates included.
	LogicalStorageUsed int64
	UpdatedAt          time.Time
}

// SpaceSaved is the number of bytes deduplication saved for the owner.
func (l *Ledger) SpaceSaved() int64 {
	return l.LogicalStorageUsed - l.OriginalStorageUsed
}

// Stats is the read model returned to API callers.
type Stats struct {
	TotalFiles          int64   `json:"total_files"`
	OriginalStorageUsed int64   `json:"original_storage_used"`
	LogicalStorageUsed  int64   `json:"logical_storage_used"`
	SpaceSaved          int64   `json:"space_saved"`
	QuotaLimit          int64   `json:"quota_limit"`
	UsedPercentage      float64 `json:"used_percentage"`
	SavingsPercentage   float64 `json:"savings_percentage"`
}
