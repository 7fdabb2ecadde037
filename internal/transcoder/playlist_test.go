package transcoder

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	apperrors "hlsfn/internal/pkg/errors"
)

const vodPlaylist = `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-TARGETDURATION:10
#EXT-X-MEDIA-SEQUENCE:0
#EXT-X-PLAYLIST-TYPE:VOD
#EXTINF:10.000000,
segment000.ts
#EXTINF:10.000000,
segment001.ts
#EXTINF:5.000000,
segment002.ts
#EXT-X-ENDLIST
`

func writeOutput(t *testing.T, segments ...string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.m3u8"), []byte(vodPlaylist), 0o644); err != nil {
		t.Fatal(err)
	}
	for _, s := range segments {
		if err := os.WriteFile(filepath.Join(dir, s), []byte("ts"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestVerifyPlaylist(t *testing.T) {
	dir := writeOutput(t, "segment000.ts", "segment001.ts", "segment002.ts")

	uris, err := VerifyPlaylist(dir, "index.m3u8")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "segment000.ts,segment001.ts,segment002.ts"
	if strings.Join(uris, ",") != want {
		t.Errorf("expected %s, got %v", want, uris)
	}
}

func TestVerifyPlaylistMissingSegment(t *testing.T) {
	dir := writeOutput(t, "segment000.ts", "segment002.ts")

	_, err := VerifyPlaylist(dir, "index.m3u8")
	if !apperrors.IsCode(err, apperrors.CodeTranscodeFailed) {
		t.Fatalf("expected TRANSCODE_FAILED, got %v", err)
	}
	missing, _ := apperrors.GetFields(err)["missing"].([]string)
	if len(missing) != 1 || missing[0] != "segment001.ts" {
		t.Errorf("expected segment001.ts missing, got %v", missing)
	}
}

func TestVerifyPlaylistNotProduced(t *testing.T) {
	_, err := VerifyPlaylist(t.TempDir(), "index.m3u8")
	if !apperrors.IsCode(err, apperrors.CodeTranscodeFailed) {
		t.Fatalf("expected TRANSCODE_FAILED, got %v", err)
	}
}

func TestRewriteSegmentURIs(t *testing.T) {
	urls := map[string]string{
		"segment000.ts": "https://cdn.example.com/a.ts",
		"segment001.ts": "https://cdn.example.com/b.ts",
		"segment002.ts": "https://cdn.example.com/c.ts",
	}

	out, err := RewriteSegmentURIs([]byte(vodPlaylist), urls)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p, err := ParseMediaPlaylist(out)
	if err != nil {
		t.Fatalf("rewritten playlist does not parse: %v", err)
	}
	got := SegmentURIs(p)
	want := []string{"https://cdn.example.com/a.ts", "https://cdn.example.com/b.ts", "https://cdn.example.com/c.ts"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("expected %v, got %v", want, got)
	}
	if !strings.Contains(string(out), "#EXT-X-ENDLIST") {
		t.Error("rewritten playlist lost its end marker")
	}
}

func TestRewriteSegmentURIsMissingURL(t *testing.T) {
	_, err := RewriteSegmentURIs([]byte(vodPlaylist), map[string]string{"segment000.ts": "x"})
	if err == nil {
		t.Fatal("expected error for segment without url")
	}
}
