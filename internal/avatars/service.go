package avatars

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/avolkov/cardbinder/internal/logging"
)

const presignLifetime = 15 * time.Minute

// objectPutter and objectPresigner are the two slices of the S3 API the
// service consumes; *s3.Client and *s3.PresignClient satisfy them.
type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type objectPresigner interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Config holds the object-storage connection settings.
type Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// Service uploads processed avatars and presigns download URLs.
type Service struct {
	bucket    string
	client    objectPutter
	presigner objectPresigner
	newKey    func() string
	log       logging.Logger
}

// NewService builds a service backed by an S3-compatible endpoint (MinIO in
// development, AWS in production).
func NewService(ctx context.Context, cfg Config, log logging.Logger) (*Service, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("avatar storage config error: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return &Service{
		bucket:    cfg.Bucket,
		client:    client,
		presigner: s3.NewPresignClient(client),
		newKey:    randomStorageKey,
		log:       log,
	}, nil
}

func randomStorageKey() string {
	return fmt.Sprintf("avatars/%s.jpg", uuid.New())
}

// Upload validates and normalizes an avatar image, stores it, and returns the
// storage key to persist on the profile.
func (s *Service) Upload(ctx context.Context, r io.Reader) (string, error) {
	data, err := processImage(r)
	if err != nil {
		return "", err
	}

	key := s.newKey()
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("image/jpeg"),
	})
	if err != nil {
		return "", fmt.Errorf("avatar upload error: %w", err)
	}

	s.log.Debug(ctx, "avatar stored", "key", key, "bytes", len(data))
	return key, nil
}

// URL presigns a short-lived GET for a stored avatar.
func (s *Service) URL(ctx context.Context, key string) (string, error) {
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(presignLifetime))
	if err != nil {
		return "", fmt.Errorf("avatar presign error: %w", err)
	}
	return req.URL, nil
}
