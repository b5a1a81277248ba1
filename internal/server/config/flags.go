package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/filevault/internal/flagx"
)

// parseFlags populates Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-driver     metadata store driver: "pgx" or "sqlite"
//	-d string   database DSN
//	-blob       blob backend: "s3" or "local"
//	-blob-root  root directory of the local blob backend
//	-spool      directory used to stage uploads
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-l int      rate limit: calls per window
//	-w int      rate limit: window, seconds
//	-q int      storage quota per user, bytes
//	-t int      request timeout, seconds
//
// os.Args is first filtered with flagx.FilterArgs so flags owned by other
// components (-c/-config) do not make parsing fail.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{
		"-a", "-driver", "-d", "-blob", "-blob-root", "-spool",
		"-u", "-p", "-b", "-g", "-e", "-l", "-w", "-q", "-t",
	})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDriver, "driver", config.DatabaseDriver, "database driver (pgx|sqlite)")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.BlobBackend, "blob", config.BlobBackend, "blob backend (s3|local)")
	fs.StringVar(&config.LocalBlobRoot, "blob-root", config.LocalBlobRoot, "local blob backend root")
	fs.StringVar(&config.SpoolDir, "spool", config.SpoolDir, "upload spool directory")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 root bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 root region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	fs.IntVar(&config.RateLimitCalls, "l", config.RateLimitCalls, "rate limit calls per window")
	rateLimitWindow := fs.Int("w", int(config.RateLimitWindow.Seconds()), "rate limit window (in seconds)")
	fs.Int64Var(&config.StorageQuotaBytes, "q", config.StorageQuotaBytes, "storage quota per user (in bytes)")
	requestTimeout := fs.Int("t", int(config.RequestTimeout.Seconds()), "request timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.RateLimitWindow = time.Duration(*rateLimitWindow) * time.Second
	config.RequestTimeout = time.Duration(*requestTimeout) * time.Second
}
