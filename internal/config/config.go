// Package config loads the process configuration once at start-up.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	apperrors "hlsfn/internal/pkg/errors"
)

// Storage providers.
const (
	ProviderAppwrite = "appwrite"
	ProviderS3       = "s3"
	ProviderGDrive   = "gdrive"
	ProviderLocalFS  = "localfs"
)

type Config struct {
	Storage   Storage
	Transcode Transcode

	ScratchRoot string `env:"SCRATCH_ROOT" validate:"required"`
	HTTPPort    string `env:"HTTP_PORT" validate:"required,numeric"`

	// Optional integrations. Empty disables them.
	DatabaseURL   string `env:"DATABASE_URL"`
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" validate:"gte=0"`

	JobQueueName string        `env:"JOB_QUEUE_NAME" validate:"required"`
	ResultTTL    time.Duration `env:"RESULT_TTL" validate:"gt=0"`
	LockTTL      time.Duration `env:"LOCK_TTL" validate:"gt=0"`

	SentryDSN         string `env:"SENTRY_DSN"`
	SentryEnvironment string `env:"SENTRY_ENVIRONMENT"`
}

type Storage struct {
	Provider string `env:"STORAGE_PROVIDER" validate:"required,oneof=appwrite s3 gdrive localfs"`

	// Only the block matching Provider is validated.
	Appwrite Appwrite `validate:"-"`
	S3       S3       `validate:"-"`
	GDrive   GDrive   `validate:"-"`
	LocalFS  LocalFS  `validate:"-"`
}

type Appwrite struct {
	Endpoint  string `env:"APPWRITE_ENDPOINT" validate:"required,url"`
	ProjectID string `env:"APPWRITE_PROJECT_ID" validate:"required"`
	APIKey    string `env:"APPWRITE_API_KEY" validate:"required"`
	BucketID  string `env:"STORAGE_BUCKET" validate:"required"`
	ChunkSize int64  `env:"APPWRITE_CHUNK_SIZE" validate:"gte=0"`
}

type S3 struct {
	Bucket          string `env:"STORAGE_BUCKET" validate:"required"`
	Region          string `env:"S3_REGION" validate:"required"`
	Endpoint        string `env:"S3_ENDPOINT" validate:"omitempty,url"`
	AccessKeyID     string `env:"S3_ACCESS_KEY_ID" validate:"required_with=SecretAccessKey"`
	SecretAccessKey string `env:"S3_SECRET_ACCESS_KEY" validate:"required_with=AccessKeyID"`
	KeyPrefix       string `env:"S3_KEY_PREFIX"`
	PublicBaseURL   string `env:"STORAGE_PUBLIC_BASE_URL" validate:"omitempty,url"`
	PublicACL       bool   `env:"S3_PUBLIC_ACL"`
}

type GDrive struct {
	ClientID     string `env:"GDRIVE_CLIENT_ID" validate:"required"`
	ClientSecret string `env:"GDRIVE_CLIENT_SECRET" validate:"required"`
	RefreshToken string `env:"GDRIVE_REFRESH_TOKEN" validate:"required"`
	FolderID     string `env:"GDRIVE_FOLDER_ID"`
}

type LocalFS struct {
	Root          string `env:"STORAGE_LOCAL_ROOT" validate:"required"`
	Bucket        string `env:"STORAGE_BUCKET" validate:"required"`
	PublicBaseURL string `env:"STORAGE_PUBLIC_BASE_URL" validate:"required,url"`
}

type Transcode struct {
	FFmpegPath  string `env:"FFMPEG_PATH" validate:"required"`
	FFprobePath string `env:"FFPROBE_PATH"`

	ProbeTimeout time.Duration `env:"PROBE_TIMEOUT" validate:"gt=0"`

	Timeout        time.Duration `env:"TRANSCODE_TIMEOUT" validate:"gt=0"`
	SegmentSeconds int           `env:"HLS_SEGMENT_SECONDS" validate:"min=1"`
	VideoCodec     string        `env:"VIDEO_CODEC" validate:"required"`
	AudioCodec     string        `env:"AUDIO_CODEC" validate:"required"`

	ThumbnailEnabled bool          `env:"THUMBNAIL_ENABLED"`
	ThumbnailOffset  time.Duration `env:"THUMBNAIL_OFFSET" validate:"gte=0"`

	RewritePlaylistURIs bool `env:"REWRITE_PLAYLIST_URIS"`
}

// Load reads files (default ".env") into the environment when they exist,
// then builds and validates the Config.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && len(files) > 0 {
		return nil, apperrors.WrapWithCode(err, apperrors.CodeConfiguration, "config.Load", "failed to read env file")
	}
	return FromEnv()
}

// FromEnv builds the Config from the process environment only.
func FromEnv() (*Config, error) {
	r := &envReader{}

	transcodeTimeout := r.duration("TRANSCODE_TIMEOUT", 10*time.Minute)
	publicBase := r.str("STORAGE_PUBLIC_BASE_URL", "")
	bucket := r.str("STORAGE_BUCKET", "")

	cfg := &Config{
		Storage: Storage{
			Provider: strings.ToLower(r.str("STORAGE_PROVIDER", ProviderAppwrite)),
			Appwrite: Appwrite{
				Endpoint:  r.str("APPWRITE_ENDPOINT", ""),
				ProjectID: r.str("APPWRITE_PROJECT_ID", ""),
				APIKey:    r.str("APPWRITE_API_KEY", ""),
				BucketID:  bucket,
				ChunkSize: int64(r.int("APPWRITE_CHUNK_SIZE", 0)),
			},
			S3: S3{
				Bucket:          bucket,
				Region:          r.str("S3_REGION", r.str("AWS_REGION", "us-east-1")),
				Endpoint:        r.str("S3_ENDPOINT", ""),
				AccessKeyID:     r.str("S3_ACCESS_KEY_ID", ""),
				SecretAccessKey: r.str("S3_SECRET_ACCESS_KEY", ""),
				KeyPrefix:       r.str("S3_KEY_PREFIX", ""),
				PublicBaseURL:   publicBase,
				PublicACL:       r.bool("S3_PUBLIC_ACL", false),
			},
			GDrive: GDrive{
				ClientID:     r.str("GDRIVE_CLIENT_ID", ""),
				ClientSecret: r.str("GDRIVE_CLIENT_SECRET", ""),
				RefreshToken: r.str("GDRIVE_REFRESH_TOKEN", ""),
				FolderID:     r.str("GDRIVE_FOLDER_ID", ""),
			},
			LocalFS: LocalFS{
				Root:          r.str("STORAGE_LOCAL_ROOT", ""),
				Bucket:        bucket,
				PublicBaseURL: r.str("STORAGE_PUBLIC_BASE_URL", "http://localhost:8080/files"),
			},
		},
		Transcode: Transcode{
			FFmpegPath:          r.str("FFMPEG_PATH", "ffmpeg"),
			FFprobePath:         r.str("FFPROBE_PATH", "ffprobe"),
			ProbeTimeout:        r.duration("PROBE_TIMEOUT", 30*time.Second),
			Timeout:             transcodeTimeout,
			SegmentSeconds:      r.int("HLS_SEGMENT_SECONDS", 10),
			VideoCodec:          r.str("VIDEO_CODEC", "libx264"),
			AudioCodec:          r.str("AUDIO_CODEC", "aac"),
			ThumbnailEnabled:    r.bool("THUMBNAIL_ENABLED", false),
			ThumbnailOffset:     r.duration("THUMBNAIL_OFFSET", time.Second),
			RewritePlaylistURIs: r.bool("REWRITE_PLAYLIST_URIS", true),
		},
		ScratchRoot:       r.str("SCRATCH_ROOT", "/tmp/hlsfn"),
		HTTPPort:          r.str("HTTP_PORT", "8080"),
		DatabaseURL:       r.str("DATABASE_URL", ""),
		RedisAddr:         r.str("REDIS_ADDR", ""),
		RedisPassword:     r.str("REDIS_PASSWORD", ""),
		RedisDB:           r.int("REDIS_DB", 0),
		JobQueueName:      r.str("JOB_QUEUE_NAME", "hls:jobs"),
		ResultTTL:         r.duration("RESULT_TTL", 24*time.Hour),
		LockTTL:           r.duration("LOCK_TTL", transcodeTimeout+5*time.Minute),
		SentryDSN:         r.str("SENTRY_DSN", ""),
		SentryEnvironment: r.str("SENTRY_ENVIRONMENT", "production"),
	}

	if err := cfg.validate(r.invalid); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate returns a CONFIGURATION_ERROR naming every missing or invalid
// env var. invalid holds keys that already failed to parse.
func (c *Config) validate(invalid []string) error {
	v := newValidator()

	keys := append([]string(nil), invalid...)
	collect := func(s any) error {
		err := v.Struct(s)
		if err == nil {
			return nil
		}
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			keys = append(keys, fe.Field())
		}
		return nil
	}

	targets := []any{c}
	switch c.Storage.Provider {
	case ProviderAppwrite:
		targets = append(targets, c.Storage.Appwrite)
	case ProviderS3:
		targets = append(targets, c.Storage.S3)
	case ProviderGDrive:
		targets = append(targets, c.Storage.GDrive)
	case ProviderLocalFS:
		targets = append(targets, c.Storage.LocalFS)
	}
	for _, t := range targets {
		if err := collect(t); err != nil {
			return apperrors.WrapWithCode(err, apperrors.CodeConfiguration, "config.validate", "validator failed")
		}
	}

	keys = dedupe(keys)
	if len(keys) == 0 {
		return nil
	}
	return apperrors.Configuration(
		fmt.Sprintf("missing or invalid configuration: %s", strings.Join(keys, ", ")),
		keys...,
	)
}

// newValidator reports fields by their env var name.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("env"); name != "" {
			return name
		}
		return f.Name
	})
	return v
}

func dedupe(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := keys[:0]
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// RedisEnabled reports whether REDIS_ADDR is set.
func (c *Config) RedisEnabled() bool { return c.RedisAddr != "" }

// DatabaseEnabled reports whether DATABASE_URL is set.
func (c *Config) DatabaseEnabled() bool { return c.DatabaseURL != "" }
