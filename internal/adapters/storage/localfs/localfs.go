package localfs

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"hlsfn/internal/ports"
)

// LocalFS implements ports.ObjectStore on the local filesystem.
// Objects of a bucket live under {root}/{bucket}/{objectID}.
type LocalFS struct {
	root          string
	bucket        string
	publicBaseURL string
}

func New(root, bucket, publicBaseURL string) *LocalFS {
	return &LocalFS{
		root:          root,
		bucket:        bucket,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

func (l *LocalFS) Provider() string { return "localfs" }

func (l *LocalFS) PutObject(ctx context.Context, in ports.PutObjectInput) (ports.PutObjectOutput, error) {
	id := uuid.NewString() + filepath.Ext(in.Name)

	dst, err := l.path(id)
	if err != nil {
		return ports.PutObjectOutput{}, err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return ports.PutObjectOutput{}, err
	}

	outF, err := os.Create(dst)
	if err != nil {
		return ports.PutObjectOutput{}, err
	}

	n, err := io.Copy(outF, in.Reader)
	if err != nil {
		_ = outF.Close()
		_ = os.Remove(dst)
		return ports.PutObjectOutput{}, err
	}
	if err := outF.Close(); err != nil {
		_ = os.Remove(dst)
		return ports.PutObjectOutput{}, err
	}

	return ports.PutObjectOutput{ObjectID: id, Size: n}, nil
}

func (l *LocalFS) GetObject(ctx context.Context, objectID string) (rc io.ReadCloser, contentType string, size int64, err error) {
	p, err := l.path(objectID)
	if err != nil {
		return nil, "", 0, err
	}
	f, err := os.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", 0, fmt.Errorf("localfs %s: %w", objectID, ports.ErrObjectNotFound)
		}
		return nil, "", 0, err
	}

	if st, statErr := f.Stat(); statErr == nil {
		size = st.Size()
	}

	contentType = mime.TypeByExtension(filepath.Ext(p))
	if contentType == "" {
		buf := make([]byte, 512)
		n, _ := f.Read(buf)
		_, _ = f.Seek(0, io.SeekStart)
		contentType = http.DetectContentType(buf[:n])
	}

	return f, contentType, size, nil
}

func (l *LocalFS) DeleteObject(ctx context.Context, objectID string) error {
	p, err := l.path(objectID)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("localfs %s: %w", objectID, ports.ErrObjectNotFound)
		}
		return err
	}
	return nil
}

func (l *LocalFS) PublicURL(objectID string) string {
	return l.publicBaseURL + "/" + l.bucket + "/" + objectID
}

// path resolves objectID inside the bucket directory and rejects ids that
// would escape it.
func (l *LocalFS) path(objectID string) (string, error) {
	if objectID == "" || strings.ContainsAny(objectID, `/\`) || objectID == "." || objectID == ".." {
		return "", fmt.Errorf("localfs: invalid object id %q", objectID)
	}
	return filepath.Join(l.root, l.bucket, objectID), nil
}
