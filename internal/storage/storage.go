// Package storage issues presigned URLs for audio objects. The API never
// touches file bytes; clients upload and download directly.
package storage

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/voxscribe/api/internal/config"
)

// ObjectStorage is the presigning contract the handlers depend on.
type ObjectStorage interface {
	PresignedPutURL(ctx context.Context, key, contentType string) (string, error)
	PresignedGetURL(ctx context.Context, key string) (string, error)
}

// MinioStorage implements ObjectStorage against any S3-compatible endpoint.
type MinioStorage struct {
	client *minio.Client
	bucket string
	expiry time.Duration
}

func NewMinioStorage(cfg config.StorageConfig) (*MinioStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &MinioStorage{client: client, bucket: cfg.Bucket, expiry: cfg.PresignExpiry}, nil
}

// PresignedPutURL returns a time-limited upload URL for the key.
func (s *MinioStorage) PresignedPutURL(ctx context.Context, key, contentType string) (string, error) {
	u, err := s.client.PresignedPutObject(ctx, s.bucket, key, s.expiry)
	if err != nil {
		return "", fmt.Errorf("failed to presign put url: %w", err)
	}
	return u.String(), nil
}

// PresignedGetURL returns a time-limited download URL for the key.
func (s *MinioStorage) PresignedGetURL(ctx context.Context, key string) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("failed to presign get url: %w", err)
	}
	return u.String(), nil
}

var mimeToExtension = map[string]string{
	"audio/mpeg": ".mp3",
	"audio/mp4":  ".m4a",
	"audio/wav":  ".wav",
	"audio/ogg":  ".ogg",
	"audio/flac": ".flac",
}

// BuildObjectKey derives the object key for an upload. File names that
// already carry an extension are namespaced under the user; bare names get
// an extension from the mime type.
func BuildObjectKey(userID, fileName, mimeType string, now time.Time) string {
	name := path.Base(fileName)
	if !strings.Contains(name, ".") {
		name += mimeToExtension[mimeType]
	}
	return fmt.Sprintf("%s/audios/%d-%s", userID, now.UnixMilli(), name)
}
