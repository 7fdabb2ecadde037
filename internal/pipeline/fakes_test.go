package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"hlsfn/internal/models"
	apperrors "hlsfn/internal/pkg/errors"
	"hlsfn/internal/ports"
	"hlsfn/internal/transcoder"
)

// memStore is an in-memory ports.ObjectStore.
type memStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	names     map[string]string
	gets      int
	puts      int
	failOnPut int // 1-based index of the upload that fails, 0 for none
	getErr    error
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}, names: map[string]string{}}
}

func (s *memStore) Provider() string { return "mem" }

func (s *memStore) GetObject(ctx context.Context, id string) (io.ReadCloser, string, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	if s.getErr != nil {
		return nil, "", 0, s.getErr
	}
	data, ok := s.objects[id]
	if !ok {
		return nil, "", 0, fmt.Errorf("mem %s: %w", id, ports.ErrObjectNotFound)
	}
	return io.NopCloser(bytes.NewReader(data)), "video/mp4", int64(len(data)), nil
}

func (s *memStore) PutObject(ctx context.Context, in ports.PutObjectInput) (ports.PutObjectOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts++
	if s.failOnPut == s.puts {
		return ports.PutObjectOutput{}, errors.New("storage returned 503")
	}
	data, err := io.ReadAll(in.Reader)
	if err != nil {
		return ports.PutObjectOutput{}, err
	}
	id := fmt.Sprintf("obj-%d", s.puts)
	s.objects[id] = data
	s.names[in.Name] = id
	return ports.PutObjectOutput{ObjectID: id, Size: int64(len(data))}, nil
}

func (s *memStore) DeleteObject(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, id)
	return nil
}

func (s *memStore) PublicURL(id string) string { return "https://cdn.test/" + id }

func (s *memStore) byName(name string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.objects[s.names[name]]
}

// fakeTranscoder writes an HLS rendition of durationSeconds into outputDir.
type fakeTranscoder struct {
	durationSeconds float64
	source          []byte
	err             error
	stderr          string
	panicMsg        string
	calls           int
	opts            transcoder.Options
}

func (f *fakeTranscoder) Run(ctx context.Context, input, outputDir string, opts transcoder.Options) (transcoder.Output, error) {
	f.calls++
	f.opts = opts
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if f.err != nil {
		return transcoder.Output{Stderr: f.stderr}, f.err
	}

	got, err := os.ReadFile(input)
	if err != nil {
		return transcoder.Output{}, err
	}
	if f.source != nil && !bytes.Equal(got, f.source) {
		return transcoder.Output{}, fmt.Errorf("source mismatch")
	}

	seg := opts.SegmentSeconds
	if seg <= 0 {
		seg = 10
	}
	n := transcoder.ExpectedSegments(f.durationSeconds, seg)

	var pl strings.Builder
	fmt.Fprintf(&pl, "#EXTM3U\n#EXT-X-VERSION:3\n#EXT-X-TARGETDURATION:%d\n#EXT-X-MEDIA-SEQUENCE:0\n#EXT-X-PLAYLIST-TYPE:VOD\n", seg)
	remaining := f.durationSeconds
	for i := 0; i < n; i++ {
		d := float64(seg)
		if remaining < d {
			d = remaining
		}
		remaining -= d
		name := fmt.Sprintf("segment%03d.ts", i)
		if err := os.WriteFile(filepath.Join(outputDir, name), []byte("ts-"+name), 0o644); err != nil {
			return transcoder.Output{}, err
		}
		fmt.Fprintf(&pl, "#EXTINF:%.6f,\n%s\n", d, name)
	}
	pl.WriteString("#EXT-X-ENDLIST\n")

	if err := os.WriteFile(filepath.Join(outputDir, "index.m3u8"), []byte(pl.String()), 0o644); err != nil {
		return transcoder.Output{}, err
	}
	out := transcoder.Output{PlaylistPath: filepath.Join(outputDir, "index.m3u8")}
	if opts.Thumbnail {
		out.ThumbnailPath = filepath.Join(outputDir, "thumbnail.jpg")
		if err := os.WriteFile(out.ThumbnailPath, []byte("\xff\xd8\xff\xe0jpeg"), 0o644); err != nil {
			return transcoder.Output{}, err
		}
	}
	return out, nil
}

type fakeLocker struct {
	err      error
	acquired []string
	released int
}

func (l *fakeLocker) Acquire(ctx context.Context, fileID string) (func(context.Context) error, error) {
	if l.err != nil {
		return nil, l.err
	}
	l.acquired = append(l.acquired, fileID)
	return func(context.Context) error {
		l.released++
		return nil
	}, nil
}

type fakeRecorder struct {
	started  []models.Run
	finished []models.Run
}

func (r *fakeRecorder) RunStarted(ctx context.Context, run models.Run) error {
	r.started = append(r.started, run)
	return nil
}

func (r *fakeRecorder) RunFinished(ctx context.Context, run models.Run) error {
	r.finished = append(r.finished, run)
	return nil
}

type fakeReporter struct {
	errs []error
}

func (r *fakeReporter) Report(ctx context.Context, err error, tags map[string]string) {
	r.errs = append(r.errs, err)
}

func transcodeFailure(stderr string) error {
	return apperrors.New(apperrors.CodeTranscodeFailed, "ffmpeg exited with code 1").
		WithField("stderr", stderr).
		WithField("stdout", "")
}
