// Package digest computes SHA-256 content fingerprints used as deduplication
// keys. Payloads are hashed while they are streamed, never buffered whole.
package digest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/dmitrijs2005/filevault/internal/filex"
)

// HexLen is the length of a hex-encoded SHA-256 digest.
const HexLen = sha256.Size * 2

// Sum is the fingerprint of one payload.
type Sum struct {
	Hex  string
	Size int64
}

// Compute hashes everything readable from r.
func Compute(ctx context.Context, r io.Reader) (Sum, error) {
	h := sha256.New()
	n, err := io.Copy(h, &ctxReader{ctx: ctx, r: r})
	if err != nil {
		return Sum{}, fmt.Errorf("hash payload: %w", err)
	}
	return Sum{Hex: hex.EncodeToString(h.Sum(nil)), Size: n}, nil
}

// Spool copies r into a new spool file under dir while hashing it. The
// returned spool is rewound and ready to be streamed to a blob store; the
// caller owns it and must Close it. On error nothing is left on disk.
func Spool(ctx context.Context, dir string, r io.Reader) (*filex.Spool, Sum, error) {
	s, err := filex.NewSpool(dir, "upload-*")
	if err != nil {
		return nil, Sum{}, err
	}

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(s, h), &ctxReader{ctx: ctx, r: r})
	if err != nil {
		_ = s.Close()
		return nil, Sum{}, fmt.Errorf("spool payload: %w", err)
	}
	if err := s.Rewind(); err != nil {
		_ = s.Close()
		return nil, Sum{}, fmt.Errorf("rewind spool: %w", err)
	}

	return s, Sum{Hex: hex.EncodeToString(h.Sum(nil)), Size: n}, nil
}

// Valid reports whether s looks like a lower-case hex SHA-256 digest.
func Valid(s string) bool {
	if len(s) != HexLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// ctxReader stops a copy as soon as ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
