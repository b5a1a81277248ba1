package services

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RandomStorageKey returns a fresh blob key. Keys are never derived from the
// digest, so two writers racing on the same content cannot overwrite each other.
func RandomStorageKey(t time.Time) string {
	return fmt.Sprintf("content/%d/%d/%d/%v", t.Year(), t.Month(), t.Day(), uuid.New())
}
