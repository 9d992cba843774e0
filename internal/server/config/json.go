package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/gophdrop/internal/flagx"
	"github.com/dmitrijs2005/gophdrop/internal/timex"
)

// JsonConfig is the on-disk shape of the JSON config file. Durations accept
// "15m" style strings or integer nanoseconds. Pointer fields distinguish
// "absent" from false/zero.
type JsonConfig struct {
	HTTPAddr string `json:"http_addr"`

	MetadataBackend string `json:"metadata_backend"`
	DatabaseDSN     string `json:"database_dsn"`
	RedisURL        string `json:"redis_url"`

	StorageBackend string `json:"storage_backend"`
	S3AccessKey    string `json:"s3_access_key"`
	S3SecretKey    string `json:"s3_secret_key"`
	S3Bucket       string `json:"s3_bucket"`
	S3Region       string `json:"s3_region"`
	S3Endpoint     string `json:"s3_endpoint"`
	S3UsePathStyle *bool  `json:"s3_use_path_style"`
	S3UseSSL       *bool  `json:"s3_use_ssl"`
	S3CreateBucket *bool  `json:"s3_create_bucket"`

	RetentionWindow     timex.Duration `json:"retention_window"`
	UploadTTL           timex.Duration `json:"upload_ttl"`
	DownloadTTL         timex.Duration `json:"download_ttl"`
	ReapGrace           timex.Duration `json:"reap_grace"`
	MaxUploadBytes      int64          `json:"max_upload_bytes"`
	MaxPasswordAttempts int            `json:"max_password_attempts"`

	SweepInterval  timex.Duration `json:"sweep_interval"`
	SweepTimeout   timex.Duration `json:"sweep_timeout"`
	SweepBatchSize int            `json:"sweep_batch_size"`

	CORSAllowedOrigins []string `json:"cors_allowed_origins"`
	LogLevel           string   `json:"log_level"`
}

// parseJson loads the file named by -c/-config, if any, and copies every
// field present in it into config. Unreadable or invalid files panic.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setStr(&config.HTTPAddr, c.HTTPAddr)
	setStr(&config.MetadataBackend, c.MetadataBackend)
	setStr(&config.DatabaseDSN, c.DatabaseDSN)
	setStr(&config.RedisURL, c.RedisURL)

	setStr(&config.StorageBackend, c.StorageBackend)
	setStr(&config.S3AccessKey, c.S3AccessKey)
	setStr(&config.S3SecretKey, c.S3SecretKey)
	setStr(&config.S3Bucket, c.S3Bucket)
	setStr(&config.S3Region, c.S3Region)
	setStr(&config.S3Endpoint, c.S3Endpoint)
	if c.S3UsePathStyle != nil {
		config.S3UsePathStyle = *c.S3UsePathStyle
	}
	if c.S3UseSSL != nil {
		config.S3UseSSL = *c.S3UseSSL
	}
	if c.S3CreateBucket != nil {
		config.S3CreateBucket = *c.S3CreateBucket
	}

	setDur(&config.RetentionWindow, c.RetentionWindow)
	setDur(&config.UploadTTL, c.UploadTTL)
	setDur(&config.DownloadTTL, c.DownloadTTL)
	setDur(&config.ReapGrace, c.ReapGrace)
	if c.MaxUploadBytes != 0 {
		config.MaxUploadBytes = c.MaxUploadBytes
	}
	if c.MaxPasswordAttempts != 0 {
		config.MaxPasswordAttempts = c.MaxPasswordAttempts
	}

	setDur(&config.SweepInterval, c.SweepInterval)
	setDur(&config.SweepTimeout, c.SweepTimeout)
	if c.SweepBatchSize != 0 {
		config.SweepBatchSize = c.SweepBatchSize
	}

	if c.CORSAllowedOrigins != nil {
		config.CORSAllowedOrigins = c.CORSAllowedOrigins
	}
	setStr(&config.LogLevel, c.LogLevel)
}

func setStr(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDur(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
