package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"ngdi-portal/internal/config"
)

const presignTTL = 15 * time.Minute

// Client hands out presigned S3 URLs for avatar and metadata attachment
// uploads. Works against AWS or any S3-compatible endpoint (MinIO).
type Client struct {
	cfg     *config.Config
	presign *s3.PresignClient
	logger  *zap.Logger
}

func NewClient(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Storage.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.Storage.AccessKey,
			cfg.Storage.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("failed to load storage config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Storage.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.BaseEndpoint)
		}
		o.UsePathStyle = cfg.Storage.BaseEndpoint != ""
	})

	return &Client{
		cfg:     cfg,
		presign: s3.NewPresignClient(client),
		logger:  logger,
	}, nil
}

// AvatarKey builds the storage key for a user avatar upload.
func AvatarKey(userID string) string {
	return fmt.Sprintf("avatars/%s/%s", userID, uuid.New())
}

// AttachmentKey builds the storage key for a metadata record attachment.
func AttachmentKey(recordID string) string {
	d := time.Now()
	return fmt.Sprintf("attachments/%s/%d/%d/%v", recordID, d.Year(), d.Month(), uuid.New())
}

// PresignPut returns a presigned upload URL for the given key.
func (c *Client) PresignPut(ctx context.Context, key string) (string, error) {
	req, err := c.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(c.cfg.Storage.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(presignTTL))
	if err != nil {
		c.logger.Error("Failed to presign upload", zap.String("key", key), zap.Error(err))
		return "", fmt.Errorf("failed to presign upload: %w", err)
	}
	return req.URL, nil
}

// PresignGet returns a presigned download URL for the given key.
func (c *Client) PresignGet(ctx context.Context, key string) (string, error) {
	req, err := c.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.cfg.Storage.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(presignTTL))
	if err != nil {
		c.logger.Error("Failed to presign download", zap.String("key", key), zap.Error(err))
		return "", fmt.Errorf("failed to presign download: %w", err)
	}
	return req.URL, nil
}
