package common

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limited", ErrRateLimited, true},
		{"quota exceeded wrapped", fmt.Errorf("upload: %w", ErrQuotaExceeded), true},
		{"not found", ErrorNotFound, false},
		{"permission denied", ErrPermissionDenied, false},
		{"storage", ErrStorageIO, false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Retryable(tt.err))
		})
	}
}
