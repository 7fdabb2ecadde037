package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"hlsfn/internal/ports"
)

type Config struct {
	Bucket          string
	Region          string
	Endpoint        string // optional, for R2/MinIO; enables path-style addressing
	AccessKeyID     string
	SecretAccessKey string
	KeyPrefix       string
	PublicBaseURL   string // optional CDN/base URL used by PublicURL
	PublicACL       bool   // send public-read ACL when PutObjectInput.Public is set
}

// API is the subset of *s3.Client the store calls.
type API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Store implements ports.ObjectStore on S3-compatible storage.
type Store struct {
	api API
	cfg Config
}

// New builds an S3 client from cfg. Static credentials are used when both
// keys are set, otherwise the default AWS credential chain applies.
func New(ctx context.Context, cfg Config) (*Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewWithAPI(client, cfg), nil
}

func NewWithAPI(api API, cfg Config) *Store {
	return &Store{api: api, cfg: cfg}
}

func (s *Store) Provider() string { return "s3" }

func (s *Store) PutObject(ctx context.Context, in ports.PutObjectInput) (ports.PutObjectOutput, error) {
	key := s.cfg.KeyPrefix + uuid.NewString() + path.Ext(in.Name)

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
		Body:   in.Reader,
	}
	if in.ContentType != "" {
		input.ContentType = aws.String(in.ContentType)
	}
	if in.Size > 0 {
		input.ContentLength = aws.Int64(in.Size)
	}
	if in.Name != "" {
		input.Metadata = map[string]string{"name": in.Name}
	}
	if in.Public && s.cfg.PublicACL {
		input.ACL = types.ObjectCannedACLPublicRead
	}

	if _, err := s.api.PutObject(ctx, input); err != nil {
		return ports.PutObjectOutput{}, fmt.Errorf("failed to upload %q: %w", key, err)
	}
	return ports.PutObjectOutput{ObjectID: key, Size: in.Size}, nil
}

func (s *Store) GetObject(ctx context.Context, objectID string) (rc io.ReadCloser, contentType string, size int64, err error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(objectID),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, "", 0, fmt.Errorf("s3 %s: %w", objectID, ports.ErrObjectNotFound)
		}
		return nil, "", 0, fmt.Errorf("failed to download %q: %w", objectID, err)
	}

	return out.Body, aws.ToString(out.ContentType), aws.ToInt64(out.ContentLength), nil
}

func (s *Store) DeleteObject(ctx context.Context, objectID string) error {
	_, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(objectID),
	})
	return err
}

func (s *Store) PublicURL(objectID string) string {
	switch {
	case s.cfg.PublicBaseURL != "":
		return strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/" + objectID
	case s.cfg.Endpoint != "":
		return strings.TrimRight(s.cfg.Endpoint, "/") + "/" + s.cfg.Bucket + "/" + objectID
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.Bucket, s.cfg.Region, objectID)
	}
}
