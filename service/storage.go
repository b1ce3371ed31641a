package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/Abdullah-608/gigpanda/config"
	"github.com/Abdullah-608/gigpanda/model"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// StorageService stores submission file attachments in object storage.
type StorageService struct {
	client *minio.Client
	bucket string
	config *config.MinioConfig
}

func NewStorageService(cfg *config.MinioConfig) (*StorageService, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &StorageService{
		client: client,
		bucket: cfg.Bucket,
		config: cfg,
	}, nil
}

// EnsureBucket creates the bucket if it doesn't exist
func (s *StorageService) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}

	if !exists {
		err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return nil
}

// UploadSubmissionFile stores one deliverable and returns its attachment
// record with a presigned download URL.
func (s *StorageService) UploadSubmissionFile(ctx context.Context, contractID, milestoneID, filename string, reader io.Reader, size int64, contentType string) (model.FileAttachment, error) {
	objectName := fmt.Sprintf("contracts/%s/%s/%s/%s", contractID, milestoneID, uuid.New().String(), filename)

	_, err := s.client.PutObject(ctx, s.bucket, objectName, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return model.FileAttachment{}, fmt.Errorf("failed to upload file: %w", err)
	}

	expiry := time.Duration(s.config.ExpireDays) * 24 * time.Hour
	url, err := s.client.PresignedGetObject(ctx, s.bucket, objectName, expiry, nil)
	if err != nil {
		return model.FileAttachment{}, fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return model.FileAttachment{
		Filename: filename,
		Mimetype: contentType,
		Size:     size,
		URL:      url.String(),
	}, nil
}

// DeleteFile deletes a file from object storage.
func (s *StorageService) DeleteFile(ctx context.Context, objectName string) error {
	err := s.client.RemoveObject(ctx, s.bucket, objectName, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}

	return nil
}
