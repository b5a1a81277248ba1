// Package models defines server-side data models persisted in the database.
package models

import "time"

// ContentObject is one physical payload, stored exactly once per digest.
type ContentObject struct {
	// Digest is the hex SHA-256 of the payload and the primary key.
	Digest string
	// ByteSize is the payload length.
	ByteSize int64
	// StorageKey locates the payload in the blob store.
	StorageKey string
	// ReferenceCount is the number of live logical files pointing here.
	// A row never survives a commit with a zero count.
	ReferenceCount int64
	CreatedAt      time.Time
}
