// Package filex contains filesystem helpers: directory bootstrap and
// self-deleting spool files used to stage uploads on local disk.
package filex

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnsureDir creates dir (and parents) if needed and returns its absolute path.
// A relative dir is resolved against the current working directory.
func EnsureDir(dir string) (string, error) {
	if !filepath.IsAbs(dir) {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getwd: %w", err)
		}
		dir = filepath.Join(cwd, dir)
	}

	if err := os.MkdirAll(dir, 0o770); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}

	return dir, nil
}

// Spool is a temporary file that is removed on Close.
type Spool struct {
	*os.File
}

// NewSpool creates an empty spool file inside dir. An empty dir means the
// system temp directory.
func NewSpool(dir, pattern string) (*Spool, error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return nil, fmt.Errorf("create spool: %w", err)
	}
	return &Spool{File: f}, nil
}

// Rewind positions the spool at its start so it can be read back.
func (s *Spool) Rewind() error {
	_, err := s.Seek(0, 0)
	return err
}

// Close closes and deletes the spool file. It is safe to call more than once.
func (s *Spool) Close() error {
	if s == nil || s.File == nil {
		return nil
	}
	name := s.Name()
	_ = s.File.Close()
	s.File = nil
	if err := os.Remove(name); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
