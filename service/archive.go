package service

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/signdesk/esign-backend/config"
)

// ArchiveService keeps a durable copy of signed PDFs in object storage.
// Provider download references are transient, so when a contract completes
// the signed document is copied into our own bucket. Archiving is
// best-effort: a failure is reported to the caller but never blocks the
// lifecycle transition.
type ArchiveService struct {
	client     *minio.Client
	bucket     string
	config     *config.MinioConfig
	httpClient *http.Client
}

func NewArchiveService(cfg *config.MinioConfig) (*ArchiveService, error) {
	// Pinning the region keeps presigning a purely local operation.
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &ArchiveService{
		client: client,
		bucket: cfg.Bucket,
		config: cfg,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}, nil
}

// EnsureBucket creates the archive bucket if it doesn't exist
func (s *ArchiveService) EnsureBucket(ctx context.Context) error {
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

// ArchiveSignedPDF downloads the signed document from the provider's
// transient reference and stores it under the contract id. Returns the
// object name of the stored copy.
func (s *ArchiveService) ArchiveSignedPDF(ctx context.Context, contractID, downloadURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", downloadURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create download request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download signed document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("signed document download failed: status %d", resp.StatusCode)
	}

	objectName := fmt.Sprintf("signed/%s.pdf", contractID)
	_, err = s.client.PutObject(ctx, s.bucket, objectName, resp.Body, resp.ContentLength, minio.PutObjectOptions{
		ContentType: "application/pdf",
	})
	if err != nil {
		return "", fmt.Errorf("failed to store signed document: %w", err)
	}

	return objectName, nil
}

// PresignedURL generates a time-limited URL for an archived object.
func (s *ArchiveService) PresignedURL(ctx context.Context, objectName string) (string, error) {
	expiry := time.Duration(s.config.ExpireDays) * 24 * time.Hour
	url, err := s.client.PresignedGetObject(ctx, s.bucket, objectName, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return url.String(), nil
}
