package storage

import (
	"context"
	"errors"
	"io"
	"testing"

	"hlsfn/internal/adapters/storage/localfs"
	"hlsfn/internal/config"
	"hlsfn/internal/ports"
)

var errBroken = errors.New("connection refused")

type brokenStore struct{ ports.ObjectStore }

func (brokenStore) GetObject(ctx context.Context, id string) (io.ReadCloser, string, int64, error) {
	return nil, "", 0, errBroken
}

func TestPingLocalFS(t *testing.T) {
	s := localfs.New(t.TempDir(), "videos", "http://localhost/files")
	if err := Ping(context.Background(), s); err != nil {
		t.Fatalf("expected healthy store, got %v", err)
	}
}

func TestNewStore(t *testing.T) {
	s, err := NewStore(context.Background(), config.Storage{
		Provider: config.ProviderLocalFS,
		LocalFS:  config.LocalFS{Root: t.TempDir(), Bucket: "videos", PublicBaseURL: "http://localhost/files"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Provider() != "localfs" {
		t.Errorf("expected localfs, got %s", s.Provider())
	}

	s, err = NewStore(context.Background(), config.Storage{
		Provider: config.ProviderAppwrite,
		Appwrite: config.Appwrite{Endpoint: "https://cloud.appwrite.io/v1", ProjectID: "p", APIKey: "k", BucketID: "b"},
	})
	if err != nil || s.Provider() != "appwrite" {
		t.Fatalf("expected appwrite store, got %v, %v", s, err)
	}

	if _, err := NewStore(context.Background(), config.Storage{Provider: "ftp"}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestPingPropagatesErrors(t *testing.T) {
	s := localfs.New(t.TempDir(), "videos", "")
	if err := Ping(context.Background(), brokenStore{s}); err == nil || !errors.Is(err, errBroken) {
		t.Fatalf("expected broken error, got %v", err)
	}
}
