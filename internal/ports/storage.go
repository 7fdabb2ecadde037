package ports

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is wrapped by every ObjectStore when the requested id does not exist.
var ErrObjectNotFound = errors.New("object not found")

type PutObjectInput struct {
	// Name is the display/file name of the object (e.g. "segment000.ts").
	// Stores that assign opaque ids keep it as metadata only.
	Name        string
	ContentType string
	Reader      io.Reader
	Size        int64
	// Public asks the store to grant anonymous read access.
	Public bool
}

type PutObjectOutput struct {
	// ObjectID is the id assigned by the store; PublicURL and GetObject take it.
	ObjectID string
	Size     int64
}

// ObjectStore is the storage collaborator of the pipeline. Implementations:
// appwrite, s3, gdrive, localfs.
type ObjectStore interface {
	Provider() string

	GetObject(ctx context.Context, objectID string) (rc io.ReadCloser, contentType string, size int64, err error)
	PutObject(ctx context.Context, in PutObjectInput) (PutObjectOutput, error)
	DeleteObject(ctx context.Context, objectID string) error

	// PublicURL derives the preview URL for objectID. It performs no I/O.
	PublicURL(objectID string) string
}
