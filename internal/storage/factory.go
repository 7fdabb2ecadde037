package storage

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"hlsfn/internal/adapters/storage/appwrite"
	"hlsfn/internal/adapters/storage/gdrive"
	"hlsfn/internal/adapters/storage/localfs"
	"hlsfn/internal/adapters/storage/s3"
	"hlsfn/internal/config"
)

// NewStore builds the object store selected by cfg.Provider.
func NewStore(ctx context.Context, cfg config.Storage) (Store, error) {
	switch cfg.Provider {
	case config.ProviderAppwrite:
		return appwrite.New(appwrite.Config{
			Endpoint:  cfg.Appwrite.Endpoint,
			ProjectID: cfg.Appwrite.ProjectID,
			APIKey:    cfg.Appwrite.APIKey,
			BucketID:  cfg.Appwrite.BucketID,
			ChunkSize: cfg.Appwrite.ChunkSize,
		}, &http.Client{Timeout: 10 * time.Minute}), nil

	case config.ProviderS3:
		store, err := s3.New(ctx, s3.Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			KeyPrefix:       cfg.S3.KeyPrefix,
			PublicBaseURL:   cfg.S3.PublicBaseURL,
			PublicACL:       cfg.S3.PublicACL,
		})
		if err != nil {
			return nil, err
		}
		return store, nil

	case config.ProviderGDrive:
		return newGDriveStore(ctx, cfg.GDrive)

	case config.ProviderLocalFS:
		return localfs.New(cfg.LocalFS.Root, cfg.LocalFS.Bucket, cfg.LocalFS.PublicBaseURL), nil

	default:
		return nil, fmt.Errorf("unknown storage provider: %s", cfg.Provider)
	}
}

func newGDriveStore(ctx context.Context, cfg config.GDrive) (Store, error) {
	conf := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{drive.DriveFileScope},
	}

	tok := &oauth2.Token{RefreshToken: cfg.RefreshToken}
	httpClient := conf.Client(ctx, tok)

	srv, err := drive.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, err
	}

	return gdrive.NewClient(srv, cfg.FolderID), nil
}
