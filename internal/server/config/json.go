package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/filevault/internal/flagx"
	"github.com/dmitrijs2005/filevault/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations use
// timex.Duration so both "1s" and integer nanoseconds are accepted. Pointer
// fields distinguish "absent" from a zero value, so a partial file only
// overrides what it names.
type JsonConfig struct {
	EndpointAddrHTTP  *string         `json:"endpoint_addr_http"`
	DatabaseDriver    *string         `json:"database_driver"`
	DatabaseDSN       *string         `json:"database_dsn"`
	BlobBackend       *string         `json:"blob_backend"`
	LocalBlobRoot     *string         `json:"local_blob_root"`
	SpoolDir          *string         `json:"spool_dir"`
	S3RootUser        *string         `json:"s3_root_user"`
	S3RootPassword    *string         `json:"s3_root_password"`
	S3Bucket          *string         `json:"s3_bucket"`
	S3Region          *string         `json:"s3_region"`
	S3BaseEndpoint    *string         `json:"s3_base_endpoint"`
	RateLimitCalls    *int            `json:"rate_limit_calls"`
	RateLimitWindow   *timex.Duration `json:"rate_limit_window"`
	StorageQuotaBytes *int64          `json:"storage_quota_bytes"`
	RequestTimeout    *timex.Duration `json:"request_timeout"`
}

// parseJson overlays values from the JSON file named by -c/-config (or the
// FILEVAULT_CONFIG environment variable) onto config. Without a path nothing
// is loaded. An unreadable file or invalid JSON panics, since the server
// cannot start with a configuration it did not understand.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()

	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.DatabaseDriver, c.DatabaseDriver)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.BlobBackend, c.BlobBackend)
	setString(&config.LocalBlobRoot, c.LocalBlobRoot)
	setString(&config.SpoolDir, c.SpoolDir)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	if c.RateLimitCalls != nil {
		config.RateLimitCalls = *c.RateLimitCalls
	}
	if c.RateLimitWindow != nil {
		config.RateLimitWindow = c.RateLimitWindow.Duration
	}
	if c.StorageQuotaBytes != nil {
		config.StorageQuotaBytes = *c.StorageQuotaBytes
	}
	if c.RequestTimeout != nil {
		config.RequestTimeout = c.RequestTimeout.Duration
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
