package appwrite

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"hlsfn/internal/ports"
)

func newTestClient(t *testing.T, h http.HandlerFunc, chunk int64) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Config{
		Endpoint:  srv.URL + "/v1/",
		ProjectID: "proj",
		APIKey:    "secret",
		BucketID:  "videos",
		ChunkSize: chunk,
	}, srv.Client())
}

func TestGetObject(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Appwrite-Project") != "proj" || r.Header.Get("X-Appwrite-Key") != "secret" {
			t.Errorf("missing auth headers: %v", r.Header)
		}
		switch r.URL.Path {
		case "/v1/storage/buckets/videos/files/abc123/download":
			w.Header().Set("Content-Type", "video/mp4")
			_, _ = w.Write([]byte("movie-bytes"))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"File not found","code":404,"type":"storage_file_not_found"}`))
		}
	}, 0)

	t.Run("existing file", func(t *testing.T) {
		rc, ct, _, err := c.GetObject(context.Background(), "abc123")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer rc.Close()
		body, _ := io.ReadAll(rc)
		if string(body) != "movie-bytes" {
			t.Errorf("unexpected body %q", body)
		}
		if ct != "video/mp4" {
			t.Errorf("expected video/mp4, got %s", ct)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, _, _, err := c.GetObject(context.Background(), "nope")
		if !errors.Is(err, ports.ErrObjectNotFound) {
			t.Fatalf("expected ErrObjectNotFound, got %v", err)
		}
	})
}

func TestGetObjectServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Invalid API key","code":401,"type":"user_unauthorized"}`))
	}, 0)

	_, _, _, err := c.GetObject(context.Background(), "abc123")
	if err == nil || errors.Is(err, ports.ErrObjectNotFound) {
		t.Fatalf("expected non-notfound error, got %v", err)
	}
	if !strings.Contains(err.Error(), "Invalid API key") {
		t.Errorf("expected api message in error, got %v", err)
	}
}

func TestPutObjectSingleRequest(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/storage/buckets/videos/files" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			return
		}
		if got := r.FormValue("fileId"); got != "unique()" {
			t.Errorf("expected fileId=unique(), got %q", got)
		}
		if got := r.MultipartForm.Value["permissions[]"]; len(got) != 1 || got[0] != `read("any")` {
			t.Errorf("unexpected permissions %v", got)
		}
		if r.Header.Get("Content-Range") != "" {
			t.Errorf("single upload must not send Content-Range")
		}
		f, fh, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			return
		}
		defer f.Close()
		if fh.Filename != "index.m3u8" {
			t.Errorf("unexpected filename %q", fh.Filename)
		}
		if fh.Header.Get("Content-Type") != "application/vnd.apple.mpegurl" {
			t.Errorf("unexpected part content type %q", fh.Header.Get("Content-Type"))
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"$id":"file_1","sizeOriginal":7}`))
	}, 0)

	out, err := c.PutObject(context.Background(), ports.PutObjectInput{
		Name:        "index.m3u8",
		ContentType: "application/vnd.apple.mpegurl",
		Reader:      strings.NewReader("#EXTM3U"),
		Size:        7,
		Public:      true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.ObjectID != "file_1" || out.Size != 7 {
		t.Errorf("unexpected output %+v", out)
	}
}

func TestPutObjectChunked(t *testing.T) {
	var (
		mu     sync.Mutex
		ranges []string
		ids    []string
		data   strings.Builder
	)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			return
		}
		f, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			return
		}
		chunk, _ := io.ReadAll(f)
		f.Close()

		mu.Lock()
		ranges = append(ranges, r.Header.Get("Content-Range"))
		ids = append(ids, r.Header.Get("X-Appwrite-ID")+"|"+r.FormValue("fileId"))
		data.Write(chunk)
		mu.Unlock()

		_, _ = w.Write([]byte(`{"$id":"big_1"}`))
	}, 4)

	out, err := c.PutObject(context.Background(), ports.PutObjectInput{
		Name:   "segment000.ts",
		Reader: strings.NewReader("0123456789"),
		Size:   10,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.ObjectID != "big_1" || out.Size != 10 {
		t.Errorf("unexpected output %+v", out)
	}

	wantRanges := []string{"bytes 0-3/10", "bytes 4-7/10", "bytes 8-9/10"}
	if strings.Join(ranges, ",") != strings.Join(wantRanges, ",") {
		t.Errorf("expected ranges %v, got %v", wantRanges, ranges)
	}
	wantIDs := []string{"|unique()", "big_1|big_1", "big_1|big_1"}
	if strings.Join(ids, ",") != strings.Join(wantIDs, ",") {
		t.Errorf("expected ids %v, got %v", wantIDs, ids)
	}
	if data.String() != "0123456789" {
		t.Errorf("reassembled data mismatch: %q", data.String())
	}
}

func TestPublicURL(t *testing.T) {
	c := New(Config{Endpoint: "https://cloud.appwrite.io/v1/", ProjectID: "proj", BucketID: "videos"}, nil)

	want := "https://cloud.appwrite.io/v1/storage/buckets/videos/files/file_1/view?project=proj"
	if got := c.PublicURL("file_1"); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
	if c.PublicURL("file_1") != c.PublicURL("file_1") {
		t.Error("PublicURL must be deterministic")
	}
}
