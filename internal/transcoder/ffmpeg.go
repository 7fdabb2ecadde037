// Package transcoder runs ffmpeg to turn a local source file into an HLS
// rendition (playlist plus MPEG-TS segments) and an optional thumbnail.
package transcoder

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	apperrors "hlsfn/internal/pkg/errors"
)

// Output file names produced inside the output directory.
const (
	DefaultPlaylistName   = "index.m3u8"
	DefaultSegmentPattern = "segment%03d.ts"
	DefaultThumbnailName  = "thumbnail.jpg"
)

// diagnosticsLimit caps how much process output is kept on an error.
const diagnosticsLimit = 8 << 10

type Options struct {
	Binary          string
	VideoCodec      string
	AudioCodec      string
	SegmentSeconds  int
	PlaylistName    string
	SegmentPattern  string
	Thumbnail       bool
	ThumbnailName   string
	ThumbnailOffset time.Duration
}

func DefaultOptions() Options {
	return Options{
		Binary:          "ffmpeg",
		VideoCodec:      "libx264",
		AudioCodec:      "aac",
		SegmentSeconds:  10,
		PlaylistName:    DefaultPlaylistName,
		SegmentPattern:  DefaultSegmentPattern,
		ThumbnailName:   DefaultThumbnailName,
		ThumbnailOffset: time.Second,
	}
}

// withDefaults fills every zero field from DefaultOptions.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Binary == "" {
		o.Binary = d.Binary
	}
	if o.VideoCodec == "" {
		o.VideoCodec = d.VideoCodec
	}
	if o.AudioCodec == "" {
		o.AudioCodec = d.AudioCodec
	}
	if o.SegmentSeconds <= 0 {
		o.SegmentSeconds = d.SegmentSeconds
	}
	if o.PlaylistName == "" {
		o.PlaylistName = d.PlaylistName
	}
	if o.SegmentPattern == "" {
		o.SegmentPattern = d.SegmentPattern
	}
	if o.ThumbnailName == "" {
		o.ThumbnailName = d.ThumbnailName
	}
	if o.ThumbnailOffset < 0 {
		o.ThumbnailOffset = 0
	}
	return o
}

// BuildArgs returns the ffmpeg argument list for one invocation. The
// thumbnail, when enabled, is a second output of the same invocation.
func BuildArgs(input, outputDir string, opts Options) []string {
	opts = opts.withDefaults()

	args := []string{
		"-hide_banner",
		"-y",
		"-i", input,
		"-codec:v", opts.VideoCodec,
		"-codec:a", opts.AudioCodec,
		"-hls_time", strconv.Itoa(opts.SegmentSeconds),
		"-hls_playlist_type", "vod",
		"-hls_segment_filename", filepath.Join(outputDir, opts.SegmentPattern),
		"-start_number", "0",
		filepath.Join(outputDir, opts.PlaylistName),
	}

	if opts.Thumbnail {
		args = append(args,
			"-ss", strconv.FormatFloat(opts.ThumbnailOffset.Seconds(), 'f', -1, 64),
			"-frames:v", "1",
			filepath.Join(outputDir, opts.ThumbnailName),
		)
	}
	return args
}

// Output is what a successful run leaves behind.
type Output struct {
	Stdout        string
	Stderr        string
	PlaylistPath  string
	ThumbnailPath string
}

// Runner executes ffmpeg under a deadline.
type Runner struct {
	Timeout time.Duration
}

func NewRunner(timeout time.Duration) *Runner {
	return &Runner{Timeout: timeout}
}

// Run transcodes input into outputDir. A non-zero exit is TRANSCODE_FAILED
// and a deadline hit is TRANSCODE_TIMEOUT; both carry the captured stdout
// and stderr in the error fields.
func (r *Runner) Run(ctx context.Context, input, outputDir string, opts Options) (Output, error) {
	const op = "transcoder.Run"
	opts = opts.withDefaults()

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	args := BuildArgs(input, outputDir, opts)
	cmd := exec.CommandContext(ctx, opts.Binary, args...)
	cmd.WaitDelay = 5 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := Output{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		var e *apperrors.Error
		var exitErr *exec.ExitError
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			e = apperrors.WrapWithCode(err, apperrors.CodeTranscodeTimeout, op,
				"ffmpeg did not finish within "+r.Timeout.String())
		case errors.As(err, &exitErr):
			e = apperrors.WrapWithCode(err, apperrors.CodeTranscodeFailed, op,
				"ffmpeg exited with code "+strconv.Itoa(exitErr.ExitCode()))
			e.WithField("exit_code", exitErr.ExitCode())
		case errors.Is(err, exec.ErrNotFound):
			e = apperrors.WrapWithCode(err, apperrors.CodeTranscodeFailed, op,
				"ffmpeg binary not found: "+opts.Binary)
		default:
			e = apperrors.WrapWithCode(err, apperrors.CodeTranscodeFailed, op, "ffmpeg could not run")
		}
		return out, e.
			WithField("stdout", tail(out.Stdout, diagnosticsLimit)).
			WithField("stderr", tail(out.Stderr, diagnosticsLimit)).
			WithField("args", args)
	}

	out.PlaylistPath = filepath.Join(outputDir, opts.PlaylistName)
	if opts.Thumbnail {
		out.ThumbnailPath = filepath.Join(outputDir, opts.ThumbnailName)
	}
	return out, nil
}

// tail keeps the last n bytes of s, where ffmpeg prints the actual error.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
