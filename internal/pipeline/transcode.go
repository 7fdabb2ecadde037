package pipeline

import (
	"context"
	"time"

	"hlsfn/internal/pkg/logger"
	"hlsfn/internal/transcoder"
)

// Transcoder turns a local source into an HLS rendition. *transcoder.Runner
// implements it.
type Transcoder interface {
	Run(ctx context.Context, input, outputDir string, opts transcoder.Options) (transcoder.Output, error)
}

// ProbeFunc returns the duration of the media at path in seconds.
type ProbeFunc func(ctx context.Context, path string) (float64, error)

// FFprobe returns a ProbeFunc backed by the ffprobe binary.
func FFprobe(binary string) ProbeFunc {
	return func(ctx context.Context, path string) (float64, error) {
		res, err := transcoder.Probe(ctx, binary, path)
		if err != nil {
			return 0, err
		}
		return res.DurationSeconds(), nil
	}
}

// DefaultProbeTimeout bounds ffprobe when no timeout is configured.
const DefaultProbeTimeout = 30 * time.Second

type transcodeStage struct {
	transcoder   Transcoder
	probe        ProbeFunc
	probeTimeout time.Duration
	options      transcoder.Options
}

type transcodeOutcome struct {
	output           transcoder.Output
	segments         []string
	durationSeconds  float64
	expectedSegments int
}

// optionsFor applies the per-job thumbnail override to the configured options.
func (s *transcodeStage) optionsFor(job Job) transcoder.Options {
	opts := s.options
	if job.Thumbnail != nil {
		opts.Thumbnail = *job.Thumbnail
	}
	if opts.PlaylistName == "" {
		opts.PlaylistName = transcoder.DefaultPlaylistName
	}
	return opts
}

// run probes the source (best effort), invokes the transcoder and verifies
// that the playlist references only segments that exist.
func (s *transcodeStage) run(ctx context.Context, log *logger.Logger, job Job, scratch *ScratchArea) (transcodeOutcome, error) {
	opts := s.optionsFor(job)
	var out transcodeOutcome

	if s.probe != nil {
		d, err := s.probeDuration(ctx, scratch.SourcePath)
		if err != nil {
			log.Warn("probe failed, continuing without duration", "error", err.Error())
		} else {
			out.durationSeconds = d
			out.expectedSegments = transcoder.ExpectedSegments(d, segmentSeconds(opts))
			log.Info("source probed",
				"duration_seconds", d,
				"expected_segments", out.expectedSegments,
			)
		}
	}

	res, err := s.transcoder.Run(ctx, scratch.SourcePath, scratch.OutputDir, opts)
	out.output = res
	if err != nil {
		return out, err
	}

	segments, err := transcoder.VerifyPlaylist(scratch.OutputDir, opts.PlaylistName)
	if err != nil {
		return out, err
	}
	out.segments = segments

	if out.expectedSegments > 0 && len(segments) != out.expectedSegments {
		log.Warn("segment count differs from probe estimate",
			"segments", len(segments),
			"expected_segments", out.expectedSegments,
		)
	}
	return out, nil
}

func segmentSeconds(opts transcoder.Options) int {
	if opts.SegmentSeconds > 0 {
		return opts.SegmentSeconds
	}
	return transcoder.DefaultOptions().SegmentSeconds
}

// probeDuration runs ffprobe under its own deadline. The caller's context
// may never be canceled, and a hung ffprobe must not hold the run.
func (s *transcodeStage) probeDuration(ctx context.Context, path string) (float64, error) {
	timeout := s.probeTimeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.probe(probeCtx, path)
}
