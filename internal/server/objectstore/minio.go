package objectstore

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/dmitrijs2005/gophdrop/internal/server/models"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig selects a bucket on a MinIO (or other S3-compatible) server.
// Setting Region avoids a bucket-location lookup before every presign.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// MinioStore implements Store with minio-go.
type MinioStore struct {
	client *minio.Client
	bucket string
}

func NewMinioStore(c MinioConfig) (*MinioStore, error) {
	client, err := minio.New(c.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(c.AccessKey, c.SecretKey, ""),
		Secure: c.UseSSL,
		Region: c.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &MinioStore{client: client, bucket: c.Bucket}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *MinioStore) EnsureBucket(ctx context.Context, region string) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket existence: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return fmt.Errorf("create bucket %q: %w", s.bucket, err)
	}
	return nil
}

func (s *MinioStore) PresignUpload(ctx context.Context, key string, maxSize int64, ttl time.Duration) (*models.UploadDescriptor, error) {
	policy := minio.NewPostPolicy()
	if err := policy.SetBucket(s.bucket); err != nil {
		return nil, err
	}
	if err := policy.SetKey(key); err != nil {
		return nil, err
	}
	if err := policy.SetExpires(time.Now().UTC().Add(ttl)); err != nil {
		return nil, err
	}
	if err := policy.SetContentLengthRange(1, maxSize); err != nil {
		return nil, err
	}

	u, fields, err := s.client.PresignedPostPolicy(ctx, policy)
	if err != nil {
		return nil, fmt.Errorf("presign post policy: %w", err)
	}
	return &models.UploadDescriptor{URL: u.String(), Fields: fields}, nil
}

func (s *MinioStore) PresignDownload(ctx context.Context, key, filename string, ttl time.Duration) (*models.DownloadDescriptor, error) {
	params := url.Values{}
	params.Set("response-content-disposition", contentDisposition(filename))

	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, ttl, params)
	if err != nil {
		return nil, fmt.Errorf("presign get object: %w", err)
	}
	return &models.DownloadDescriptor{URL: u.String()}, nil
}

func (s *MinioStore) Stat(ctx context.Context, key string) (*ObjectInfo, error) {
	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isMinioNotFound(err) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("stat object %q: %w", key, err)
	}
	return &ObjectInfo{Key: key, Size: info.Size}, nil
}

func (s *MinioStore) Delete(ctx context.Context, key string) error {
	err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	if err != nil && !isMinioNotFound(err) {
		return fmt.Errorf("remove object %q: %w", key, err)
	}
	return nil
}

func isMinioNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound
}
