package objectstore

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"campus/contexts/identity-access/student-directory/ports"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	pkgerrors "github.com/pkg/errors"
)

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicURL overrides the scheme and host used in returned avatar URLs.
	PublicURL string
}

// AvatarStore writes avatars to an S3-compatible bucket.
type AvatarStore struct {
	client    *minio.Client
	bucket    string
	publicURL string
	logger    *slog.Logger
}

func NewAvatarStore(ctx context.Context, cfg MinioConfig, logger *slog.Logger) (*AvatarStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
	}
	publicURL := strings.TrimRight(cfg.PublicURL, "/")
	if publicURL == "" {
		publicURL = client.EndpointURL().String()
	}
	return &AvatarStore{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: publicURL,
		logger:    logger,
	}, nil
}

func (s *AvatarStore) UploadAvatar(ctx context.Context, upload ports.AvatarUpload) (string, error) {
	objectName := objectKey(upload.StudentID, upload.FileName)
	_, err := s.client.PutObject(ctx, s.bucket, objectName, upload.Body, upload.Size, minio.PutObjectOptions{
		ContentType: upload.ContentType,
	})
	if err != nil {
		s.logger.Error("avatar upload failed",
			"event", "student_avatar_put_failed",
			"module", "identity-access/student-directory",
			"layer", "adapter",
			"student_id", upload.StudentID,
			"bucket", s.bucket,
			"error", err.Error(),
		)
		return "", pkgerrors.WithStack(err)
	}
	return fmt.Sprintf("%s/%s/%s", s.publicURL, s.bucket, objectName), nil
}

func objectKey(studentID string, fileName string) string {
	ext := strings.ToLower(path.Ext(strings.TrimSpace(fileName)))
	if len(ext) > 8 {
		ext = ""
	}
	return fmt.Sprintf("avatars/%s/%s%s", studentID, uuid.NewString(), ext)
}

var _ ports.AvatarStorage = (*AvatarStore)(nil)
