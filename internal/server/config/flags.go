package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/gophdrop/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string     HTTP bind address (e.g. ":8080")
//	-m string     metadata backend: postgres, redis or memory
//	-d string     PostgreSQL DSN
//	-r string     Redis URL
//	-o string     storage backend: s3 or minio
//	-u string     storage access key
//	-p string     storage secret key
//	-b string     bucket name
//	-g string     storage region
//	-e string     storage endpoint
//	-w duration   retention window (e.g. "24h")
//	-l string     log level: debug, info, warn, error
//
// os.Args is first filtered with flagx.FilterArgs so flags owned by other
// layers (-c, -env-file) do not cause parse errors.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-m", "-d", "-r", "-o", "-u", "-p", "-b", "-g", "-e", "-w", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "address and port to run server")
	fs.StringVar(&config.MetadataBackend, "m", config.MetadataBackend, "metadata backend (postgres|redis|memory)")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.RedisURL, "r", config.RedisURL, "redis URL")
	fs.StringVar(&config.StorageBackend, "o", config.StorageBackend, "storage backend (s3|minio)")
	fs.StringVar(&config.S3AccessKey, "u", config.S3AccessKey, "storage access key")
	fs.StringVar(&config.S3SecretKey, "p", config.S3SecretKey, "storage secret key")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "storage bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "storage region")
	fs.StringVar(&config.S3Endpoint, "e", config.S3Endpoint, "storage endpoint")
	fs.DurationVar(&config.RetentionWindow, "w", config.RetentionWindow, "retention window for unretrieved files")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
