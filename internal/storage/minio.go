// Package storage holds the blob store behind uploaded documents and record
// attachments. Objects live in a single MinIO bucket; the database keeps only
// object paths.
package storage

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/fathmn/jokari-knowledge-hub/internal/models"
)

// BlobStore is the object storage contract used by the services.
type BlobStore interface {
	Put(ctx context.Context, objectPath string, reader io.Reader, size int64, contentType string) error
	Get(ctx context.Context, objectPath string) (io.ReadCloser, error)
	DownloadToTemp(ctx context.Context, objectPath string) (string, error)
	Delete(ctx context.Context, objectPath string) error
	PresignedURL(ctx context.Context, objectPath string, expiry time.Duration) (string, error)
}

// Config holds MinIO connection settings.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MinioStore implements BlobStore on a MinIO bucket.
type MinioStore struct {
	client *minio.Client
	bucket string
	logger *log.Logger
}

// NewMinioStore connects to MinIO and creates the bucket if it does not
// exist yet.
func NewMinioStore(ctx context.Context, cfg Config, logger *log.Logger) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, models.NewUpstream("failed to create minio client", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, models.NewUpstream("failed to check minio bucket", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, models.NewUpstream("failed to create minio bucket", err)
		}
		logger.Printf("[STORAGE] Created bucket %s", cfg.Bucket)
	}

	return &MinioStore{client: client, bucket: cfg.Bucket, logger: logger}, nil
}

func (s *MinioStore) Put(ctx context.Context, objectPath string, reader io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, objectPath, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return models.NewUpstream("failed to store object "+objectPath, err)
	}
	return nil
}

func (s *MinioStore) Get(ctx context.Context, objectPath string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, objectPath, minio.GetObjectOptions{})
	if err != nil {
		return nil, models.NewUpstream("failed to fetch object "+objectPath, err)
	}
	return obj, nil
}

// DownloadToTemp copies the object into a temp file named after the object
// so parsers can sniff the extension. The caller removes the file.
func (s *MinioStore) DownloadToTemp(ctx context.Context, objectPath string) (string, error) {
	obj, err := s.Get(ctx, objectPath)
	if err != nil {
		return "", err
	}
	defer obj.Close()

	f, err := os.CreateTemp("", "ingest-*"+filepath.Ext(objectPath))
	if err != nil {
		return "", models.NewInternal("failed to create temp file", err)
	}

	if _, err := io.Copy(f, obj); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", models.NewUpstream("failed to download object "+objectPath, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", models.NewInternal("failed to close temp file", err)
	}
	return f.Name(), nil
}

func (s *MinioStore) Delete(ctx context.Context, objectPath string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, objectPath, minio.RemoveObjectOptions{}); err != nil {
		return models.NewUpstream("failed to delete object "+objectPath, err)
	}
	return nil
}

func (s *MinioStore) PresignedURL(ctx context.Context, objectPath string, expiry time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, objectPath, expiry, nil)
	if err != nil {
		return "", models.NewUpstream("failed to presign object "+objectPath, err)
	}
	return u.String(), nil
}
