package models

import "time"

// File is one user-visible upload record. It points at a shared ContentObject
// by digest and never owns it.
type File struct {
	ID               string
	OwnerID          string
	OriginalFilename string
	ContentType      string
	Digest           string
	// ByteSize mirrors the referenced content size so listings need no join.
	ByteSize   int64
	UploadedAt time.Time
	// IsFirstReference is true for the file whose upload created the content
	// object. Informational only.
	IsFirstReference bool
}

// FileFilter narrows a file listing. Zero values mean "no constraint".
type FileFilter struct {
	// Search is a case-insensitive substring of the original filename.
	Search      string
	ContentType string
	MinSize     *int64
	MaxSize     *int64
	StartDate   *time.Time
	EndDate     *time.Time
}
