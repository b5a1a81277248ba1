package config

import (
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		expected    *Config
		name        string
		args        []string
		expectPanic bool
	}{
		{name: "all flags", args: []string{"cmd",
			"-a", "127.0.0.1:9090", "-driver", "sqlite", "-d", "file:vault.db",
			"-blob", "local", "-blob-root", "/var/lib/blobs", "-spool", "/tmp/spool",
			"-u", "user", "-p", "password", "-b", "bucket", "-g", "us-west-1", "-e", "http://endpoint",
			"-l", "5", "-w", "10", "-q", "1048576", "-t", "15",
		}, expectPanic: false,
			expected: &Config{
				EndpointAddrHTTP:  "127.0.0.1:9090",
				DatabaseDriver:    "sqlite",
				DatabaseDSN:       "file:vault.db",
				BlobBackend:       "local",
				LocalBlobRoot:     "/var/lib/blobs",
				SpoolDir:          "/tmp/spool",
				S3RootUser:        "user",
				S3RootPassword:    "password",
				S3Bucket:          "bucket",
				S3Region:          "us-west-1",
				S3BaseEndpoint:    "http://endpoint",
				RateLimitCalls:    5,
				RateLimitWindow:   10 * time.Second,
				StorageQuotaBytes: 1048576,
				RequestTimeout:    15 * time.Second,
			}},
		{name: "foreign flags are ignored", args: []string{"cmd", "-c", "x.json", "-zzz", "1"},
			expected: &Config{}},
		{name: "bad integer", args: []string{"cmd", "-l", "many"}, expectPanic: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			origArgs := os.Args
			t.Cleanup(func() { os.Args = origArgs })
			os.Args = tt.args

			config := &Config{}

			if !tt.expectPanic {
				require.NotPanics(t, func() { parseFlags(config) })
				assert.Empty(t, cmp.Diff(config, tt.expected))
			} else {
				require.Panics(t, func() { parseFlags(config) })
			}
		})
	}
}
