// Package media stores product images and videos in S3-compatible storage.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"time"

	"storefront/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrUnsupportedType is returned for uploads that are neither image nor video.
var ErrUnsupportedType = errors.New("only image and video uploads are accepted")

// Uploaded describes a stored object
type Uploaded struct {
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	Key          string `json:"key"`
	ContentType  string `json:"content_type"`
}

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Storage uploads media objects
type Storage struct {
	client          objectPutter
	s3              *s3.Client
	bucket          string
	publicBaseURL   string
	thumbnailPrefix string
	logger          *zap.Logger
	now             func() time.Time
}

// NewStorage creates an S3-backed media store
func NewStorage(cfg config.StorageConfig, logger *zap.Logger) (*Storage, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, errors.New("storage access key and secret key are required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	s := newStorage(client, cfg.Bucket, cfg.PublicBaseURL, cfg.ThumbnailPrefix, logger)
	s.s3 = client
	return s, nil
}

func newStorage(client objectPutter, bucket, publicBaseURL, thumbnailPrefix string, logger *zap.Logger) *Storage {
	return &Storage{
		client:          client,
		bucket:          bucket,
		publicBaseURL:   strings.TrimRight(publicBaseURL, "/"),
		thumbnailPrefix: strings.Trim(thumbnailPrefix, "/"),
		logger:          logger,
		now:             time.Now,
	}
}

// EnsureBucket creates the bucket if it doesn't exist
func (s *Storage) EnsureBucket(ctx context.Context) error {
	if s.s3 == nil {
		return nil
	}

	_, err := s.s3.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	s.logger.Info("Creating media bucket", zap.String("bucket", s.bucket))
	_, err = s.s3.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		var alreadyOwned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &alreadyOwned) {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// Upload stores body and returns its public URL. Images get a thumbnail URL
// when a transformation prefix is configured.
func (s *Storage) Upload(ctx context.Context, filename, contentType string, body io.Reader) (*Uploaded, error) {
	kind := mediaKind(contentType)
	if kind == "" {
		return nil, ErrUnsupportedType
	}

	key := s.objectKey(filename, contentType)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload object: %w", err)
	}

	out := &Uploaded{
		URL:         s.publicBaseURL + "/" + key,
		Key:         key,
		ContentType: contentType,
	}
	if kind == "image" && s.thumbnailPrefix != "" {
		out.ThumbnailURL = s.publicBaseURL + "/" + s.thumbnailPrefix + "/" + key
	}

	s.logger.Info("Media uploaded",
		zap.String("key", key),
		zap.String("content_type", contentType))
	return out, nil
}

func (s *Storage) objectKey(filename, contentType string) string {
	ext := strings.ToLower(path.Ext(filename))
	if ext == "" {
		if exts, _ := mime.ExtensionsByType(contentType); len(exts) > 0 {
			ext = exts[0]
		}
	}
	now := s.now().UTC()
	return fmt.Sprintf("products/%04d/%02d/%s%s", now.Year(), int(now.Month()), uuid.New().String(), ext)
}

func mediaKind(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	switch {
	case strings.HasPrefix(mt, "image/"):
		return "image"
	case strings.HasPrefix(mt, "video/"):
		return "video"
	}
	return ""
}
