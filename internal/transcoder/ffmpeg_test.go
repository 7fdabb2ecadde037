package transcoder

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	apperrors "hlsfn/internal/pkg/errors"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not supported on windows")
	}
	path := filepath.Join(t.TempDir(), "fake-ffmpeg")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestBuildArgs(t *testing.T) {
	args := BuildArgs("/scratch/source", "/scratch/output", Options{})

	want := []string{
		"-hide_banner", "-y",
		"-i", "/scratch/source",
		"-codec:v", "libx264",
		"-codec:a", "aac",
		"-hls_time", "10",
		"-hls_playlist_type", "vod",
		"-hls_segment_filename", "/scratch/output/segment%03d.ts",
		"-start_number", "0",
		"/scratch/output/index.m3u8",
	}
	if strings.Join(args, " ") != strings.Join(want, " ") {
		t.Errorf("unexpected args:\n got %v\nwant %v", args, want)
	}
}

func TestBuildArgsWithThumbnail(t *testing.T) {
	args := BuildArgs("in.mp4", "out", Options{
		SegmentSeconds:  6,
		Thumbnail:       true,
		ThumbnailOffset: 2500 * time.Millisecond,
	})

	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "-hls_time 6") {
		t.Errorf("expected segment length 6 in %q", joined)
	}
	if !strings.HasSuffix(joined, "out/index.m3u8 -ss 2.5 -frames:v 1 out/thumbnail.jpg") {
		t.Errorf("expected thumbnail as second output, got %q", joined)
	}
}

func TestBuildArgsKeepsPathsAsSingleArguments(t *testing.T) {
	args := BuildArgs("/tmp/my video; rm -rf.mp4", "/tmp/out dir", Options{})
	if args[3] != "/tmp/my video; rm -rf.mp4" {
		t.Errorf("input path must be one argument, got %q", args[3])
	}
}

func TestRunSuccess(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "args")
	t.Setenv("FAKE_FFMPEG_ARGS", argsFile)
	bin := writeScript(t, `printf '%s\n' "$@" > "$FAKE_FFMPEG_ARGS"
echo "progress=end"
echo "frame=  750 fps=250" >&2
exit 0
`)

	out, err := NewRunner(10*time.Second).Run(context.Background(), "/in/source", "/in/output", Options{Binary: bin, Thumbnail: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.Stdout, "progress=end") {
		t.Errorf("stdout not captured: %q", out.Stdout)
	}
	if !strings.Contains(out.Stderr, "frame=  750") {
		t.Errorf("stderr not captured separately: %q", out.Stderr)
	}
	if strings.Contains(out.Stdout, "frame=") {
		t.Errorf("stderr leaked into stdout: %q", out.Stdout)
	}
	if out.PlaylistPath != "/in/output/index.m3u8" || out.ThumbnailPath != "/in/output/thumbnail.jpg" {
		t.Errorf("unexpected output paths %+v", out)
	}

	recorded, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatalf("read args: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(recorded)), "\n")
	if lines[3] != "/in/source" || lines[len(lines)-1] != "/in/output/thumbnail.jpg" {
		t.Errorf("unexpected recorded args %v", lines)
	}
}

func TestRunNonZeroExit(t *testing.T) {
	bin := writeScript(t, `echo "Input #0" 
echo "/in/source: Invalid data found when processing input" >&2
exit 1
`)

	out, err := NewRunner(10*time.Second).Run(context.Background(), "/in/source", t.TempDir(), Options{Binary: bin})
	if err == nil {
		t.Fatal("expected error")
	}
	if !apperrors.IsCode(err, apperrors.CodeTranscodeFailed) {
		t.Fatalf("expected TRANSCODE_FAILED, got %v", err)
	}
	fields := apperrors.GetFields(err)
	if !strings.Contains(fields["stderr"].(string), "Invalid data found") {
		t.Errorf("expected stderr in error fields, got %v", fields["stderr"])
	}
	if fields["exit_code"] != 1 {
		t.Errorf("expected exit code 1, got %v", fields["exit_code"])
	}
	if !strings.Contains(out.Stderr, "Invalid data found") {
		t.Errorf("expected stderr in output, got %q", out.Stderr)
	}
}

func TestRunTimeout(t *testing.T) {
	bin := writeScript(t, "exec sleep 5\n")

	start := time.Now()
	_, err := NewRunner(200*time.Millisecond).Run(context.Background(), "in", t.TempDir(), Options{Binary: bin})
	if !apperrors.IsCode(err, apperrors.CodeTranscodeTimeout) {
		t.Fatalf("expected TRANSCODE_TIMEOUT, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 4*time.Second {
		t.Errorf("process was not killed at the deadline, took %s", elapsed)
	}
}

func TestRunMissingBinary(t *testing.T) {
	_, err := NewRunner(time.Second).Run(context.Background(), "in", t.TempDir(), Options{Binary: "hlsfn-no-such-ffmpeg"})
	if !apperrors.IsCode(err, apperrors.CodeTranscodeFailed) {
		t.Fatalf("expected TRANSCODE_FAILED, got %v", err)
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected not found message, got %v", err)
	}
}

func TestTail(t *testing.T) {
	if got := tail("short", 10); got != "short" {
		t.Errorf("unexpected %q", got)
	}
	if got := tail("0123456789", 4); got != "...6789" {
		t.Errorf("unexpected %q", got)
	}
}
