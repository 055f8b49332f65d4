// Package archive stores visit audio and exported report documents in the
// clinic's object storage.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/naheedk999/docai/internal/config"
)

// Storage wraps MinIO/S3 interactions for raw recordings and exported PDFs.
type Storage struct {
	client       *minio.Client
	rawBucket    string
	exportBucket string
	region       string
}

// New creates a MinIO client from the Config.
func New(cfg *config.Config) (*Storage, error) {
	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: cfg.S3UseSSL,
		Region: cfg.S3Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	return &Storage{
		client:       client,
		rawBucket:    cfg.RawBucket,
		exportBucket: cfg.ExportBucket,
		region:       cfg.S3Region,
	}, nil
}

// EnsureBuckets makes sure the raw/export buckets exist before use.
func (s *Storage) EnsureBuckets(ctx context.Context) error {
	for _, bucket := range []string{s.rawBucket, s.exportBucket} {
		exists, err := s.client.BucketExists(ctx, bucket)
		if err != nil {
			return fmt.Errorf("check bucket %s: %w", bucket, err)
		}
		if !exists {
			if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
				return fmt.Errorf("make bucket %s: %w", bucket, err)
			}
		}
	}
	return nil
}

// UploadAudio uploads a raw visit recording into the raw bucket.
func (s *Storage) UploadAudio(ctx context.Context, objectKey string, reader io.Reader, size int64, contentType string) error {
	opts := minio.PutObjectOptions{ContentType: contentType}
	_, err := s.client.PutObject(ctx, s.rawBucket, objectKey, reader, size, opts)
	if err != nil {
		return fmt.Errorf("upload audio object: %w", err)
	}
	return nil
}

// DownloadAudio fetches the raw recording bytes from storage.
func (s *Storage) DownloadAudio(ctx context.Context, objectKey string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.rawBucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get audio object: %w", err)
	}
	defer obj.Close()
	buf, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read audio object: %w", err)
	}
	return buf, nil
}

// UploadPDF uploads an exported report document into the export bucket.
func (s *Storage) UploadPDF(ctx context.Context, objectKey string, data []byte) error {
	reader := bytes.NewReader(data)
	opts := minio.PutObjectOptions{ContentType: "application/pdf"}
	_, err := s.client.PutObject(ctx, s.exportBucket, objectKey, reader, int64(len(data)), opts)
	if err != nil {
		return fmt.Errorf("upload export object: %w", err)
	}
	return nil
}

// DownloadPDF fetches an exported report document.
func (s *Storage) DownloadPDF(ctx context.Context, objectKey string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.exportBucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get export object: %w", err)
	}
	defer obj.Close()
	buf, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read export object: %w", err)
	}
	return buf, nil
}

// PresignExportURL returns a signed GET URL for an exported document.
func (s *Storage) PresignExportURL(ctx context.Context, objectKey string, ttl time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.exportBucket, objectKey, ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign export object: %w", err)
	}
	return u.String(), nil
}
