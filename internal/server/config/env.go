package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophdrop/internal/flagx"
	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment variable read by parseEnv.
const EnvPrefix = "GOPHDROP_"

const defaultEnvFile = ".env"

// parseEnv overlays GOPHDROP_* environment variables onto config.
//
// A dotenv file is loaded first: the one named by -env-file, or ./.env when
// present. Variables already set in the process environment win over the
// file. Malformed values panic, as with the JSON layer.
func parseEnv(config *Config) {
	loadEnvFile(flagx.EnvFileFlags())

	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok {
			*dst = v
		}
	}
	dur := func(name string, dst *time.Duration) {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				panic(fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
			}
			*dst = d
		}
	}
	num := func(name string, dst *int) {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				panic(fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
			}
			*dst = n
		}
	}
	boolean := func(name string, dst *bool) {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				panic(fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
			}
			*dst = b
		}
	}

	str("HTTP_ADDR", &config.HTTPAddr)
	str("METADATA_BACKEND", &config.MetadataBackend)
	str("DATABASE_DSN", &config.DatabaseDSN)
	str("REDIS_URL", &config.RedisURL)

	str("STORAGE_BACKEND", &config.StorageBackend)
	str("S3_ACCESS_KEY", &config.S3AccessKey)
	str("S3_SECRET_KEY", &config.S3SecretKey)
	str("S3_BUCKET", &config.S3Bucket)
	str("S3_REGION", &config.S3Region)
	str("S3_ENDPOINT", &config.S3Endpoint)
	boolean("S3_USE_PATH_STYLE", &config.S3UsePathStyle)
	boolean("S3_USE_SSL", &config.S3UseSSL)
	boolean("S3_CREATE_BUCKET", &config.S3CreateBucket)

	dur("RETENTION_WINDOW", &config.RetentionWindow)
	dur("UPLOAD_TTL", &config.UploadTTL)
	dur("DOWNLOAD_TTL", &config.DownloadTTL)
	dur("REAP_GRACE", &config.ReapGrace)
	if v, ok := os.LookupEnv(EnvPrefix + "MAX_UPLOAD_BYTES"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			panic(fmt.Errorf("%sMAX_UPLOAD_BYTES: %w", EnvPrefix, err))
		}
		config.MaxUploadBytes = n
	}
	num("MAX_PASSWORD_ATTEMPTS", &config.MaxPasswordAttempts)

	dur("SWEEP_INTERVAL", &config.SweepInterval)
	dur("SWEEP_TIMEOUT", &config.SweepTimeout)
	num("SWEEP_BATCH_SIZE", &config.SweepBatchSize)

	if v, ok := os.LookupEnv(EnvPrefix + "CORS_ALLOWED_ORIGINS"); ok {
		config.CORSAllowedOrigins = splitList(v)
	}
	str("LOG_LEVEL", &config.LogLevel)
}

func loadEnvFile(path string) {
	if path == "" {
		if _, err := os.Stat(defaultEnvFile); errors.Is(err, fs.ErrNotExist) {
			return
		}
		path = defaultEnvFile
	}
	if err := godotenv.Load(path); err != nil {
		panic(err)
	}
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
