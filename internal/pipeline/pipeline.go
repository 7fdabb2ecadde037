// Package pipeline runs one transcode request end to end: decode the
// payload, download the source, transcode it to HLS, upload the artifacts
// and report their URLs.
package pipeline

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"hlsfn/internal/models"
	apperrors "hlsfn/internal/pkg/errors"
	"hlsfn/internal/pkg/logger"
	"hlsfn/internal/pkg/metrics"
	"hlsfn/internal/ports"
	"hlsfn/internal/transcoder"
)

// diagnosticsInMessage caps the ffmpeg output copied into Result.Message.
const diagnosticsInMessage = 4 << 10

// Locker serializes runs on the same source file.
type Locker interface {
	Acquire(ctx context.Context, fileID string) (release func(context.Context) error, err error)
}

// Recorder persists the run history.
type Recorder interface {
	RunStarted(ctx context.Context, run models.Run) error
	RunFinished(ctx context.Context, run models.Run) error
}

// Reporter receives failed runs.
type Reporter interface {
	Report(ctx context.Context, err error, tags map[string]string)
}

type Config struct {
	ScratchRoot         string
	Transcode           transcoder.Options
	RewritePlaylistURIs bool
	// ProbeTimeout bounds the ffprobe call. Zero means DefaultProbeTimeout.
	ProbeTimeout time.Duration
}

// Deps are the collaborators of a Pipeline. Store and Transcoder are
// required; the rest may be nil.
type Deps struct {
	Store      ports.ObjectStore
	Transcoder Transcoder
	Probe      ProbeFunc
	Locker     Locker
	Recorder   Recorder
	Reporter   Reporter
	Metrics    *metrics.Metrics
	Log        *logger.Logger
}

type Pipeline struct {
	cfg      Config
	store    ports.ObjectStore
	locker   Locker
	recorder Recorder
	reporter Reporter
	metrics  *metrics.Metrics
	log      *logger.Logger

	fetcher   *Fetcher
	transcode *transcodeStage
	publisher *Publisher
}

func New(cfg Config, d Deps) *Pipeline {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	log = log.WithComponent("pipeline")

	return &Pipeline{
		cfg:      cfg,
		store:    d.Store,
		locker:   d.Locker,
		recorder: d.Recorder,
		reporter: d.Reporter,
		metrics:  d.Metrics,
		log:      log,

		fetcher: NewFetcher(d.Store),
		transcode: &transcodeStage{
			transcoder:   d.Transcoder,
			probe:        d.Probe,
			probeTimeout: cfg.ProbeTimeout,
			options:      cfg.Transcode,
		},
		publisher: NewPublisher(d.Store, cfg.RewritePlaylistURIs, d.Metrics),
	}
}

// run is the state of one invocation.
type run struct {
	id       string
	job      Job
	result   Result
	trail    []string
	recorded bool
	log      *logger.Logger
}

func (r *run) note(format string, args ...any) {
	r.trail = append(r.trail, fmt.Sprintf(format, args...))
}

// Run executes the whole pipeline for payload. It never panics and every
// failure is reported in the returned Result.
func (p *Pipeline) Run(ctx context.Context, payload string) Result {
	r := &run{id: uuid.NewString()}
	r.result = Result{RunID: r.id, HLSURLs: []models.ArtifactURL{}}
	r.log = p.log.FromContext(ctx).WithRunID(r.id)

	start := time.Now()
	done := p.metrics.RunStarted()

	err := p.safeExecute(ctx, r, payload)
	if err != nil {
		p.fail(ctx, r, err)
	}
	r.result.Message = strings.Join(r.trail, "\n")

	if r.recorded {
		p.recordFinish(ctx, r)
	}
	done(r.result.ErrorCode)

	r.log.Info("run finished",
		"error_code", r.result.ErrorCode,
		"artifacts", len(r.result.HLSURLs),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return r.result
}

func (p *Pipeline) safeExecute(ctx context.Context, r *run, payload string) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("pipeline panicked", "panic", fmt.Sprint(rec), "stack", string(debug.Stack()))
			err = apperrors.Newf(apperrors.CodeInternal, "internal error: %v", rec)
		}
	}()
	return p.execute(ctx, r, payload)
}

func (p *Pipeline) execute(ctx context.Context, r *run, payload string) error {
	job, err := DecodeJob(payload)
	if err != nil {
		return err
	}
	r.job = job
	r.result.FileID = job.FileID
	ctx = logger.ContextWithRun(ctx, r.id, job.FileID)
	r.log = r.log.WithFileID(job.FileID)
	r.note("accepted job for file %s", job.FileID)

	if p.locker != nil {
		release, err := p.locker.Acquire(ctx, job.FileID)
		if err != nil {
			return err
		}
		defer func() {
			relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := release(relCtx); err != nil {
				r.log.Warn("failed to release file lock", "error", err.Error())
			}
		}()
	}

	if p.recorder != nil {
		err := p.recorder.RunStarted(ctx, models.Run{ID: r.id, FileID: job.FileID, Provider: p.store.Provider()})
		if err != nil {
			r.log.Warn("failed to record run start", "error", err.Error())
		} else {
			r.recorded = true
		}
	}

	scratch, err := NewScratchArea(p.cfg.ScratchRoot, job.FileID)
	if err != nil {
		return err
	}
	defer p.cleanup(r, scratch)

	stageStart := time.Now()
	n, err := p.fetcher.Fetch(ctx, job, scratch)
	p.metrics.ObserveStage("fetch", time.Since(stageStart))
	if err != nil {
		return err
	}
	r.log.Info("source downloaded", "bytes", n, "provider", p.store.Provider())
	r.note("downloaded source (%d bytes)", n)

	stageStart = time.Now()
	out, err := p.transcode.run(ctx, r.log, job, scratch)
	p.metrics.ObserveStage("transcode", time.Since(stageStart))
	if out.durationSeconds > 0 {
		r.note("source duration %.2fs, expecting %d segment(s)", out.durationSeconds, out.expectedSegments)
	}
	if err != nil {
		return err
	}
	r.log.Info("transcode finished", "segments", len(out.segments))
	r.note("transcoded into %d segment(s)", len(out.segments))

	stageStart = time.Now()
	artifacts, err := p.publisher.Publish(ctx, scratch.OutputDir)
	p.metrics.ObserveStage("publish", time.Since(stageStart))
	p.collect(r, artifacts)
	if err != nil {
		if len(artifacts) > 0 {
			r.note("uploaded %d artifact(s) before the failure", len(artifacts))
		}
		return err
	}
	r.log.Info("artifacts uploaded", "count", len(artifacts))
	r.note("uploaded %d artifact(s)", len(artifacts))
	return nil
}

// collect copies uploaded artifacts into the result.
func (p *Pipeline) collect(r *run, artifacts []Artifact) {
	for _, a := range artifacts {
		r.result.HLSURLs = append(r.result.HLSURLs, models.ArtifactURL{Name: a.Name, URL: a.URL})
		switch a.Kind {
		case KindPlaylist:
			if r.result.PlaylistURL == "" {
				r.result.PlaylistURL = a.URL
			}
		case KindThumbnail:
			r.result.ThumbnailURL = a.URL
		}
	}
}

// cleanup removes the scratch area. A failure is logged only.
func (p *Pipeline) cleanup(r *run, scratch *ScratchArea) {
	if err := scratch.Remove(); err != nil {
		p.metrics.CleanupFailed()
		r.log.Warn("scratch cleanup failed",
			"code", string(apperrors.CodeCleanupFailed),
			"path", scratch.Root,
			"error", err.Error(),
		)
	}
}

func (p *Pipeline) fail(ctx context.Context, r *run, err error) {
	code := apperrors.GetCode(err)
	r.result.Error = err.Error()
	r.result.ErrorCode = string(code)
	r.note("failed: %s", err.Error())

	fields := apperrors.GetFields(err)
	if stdout, _ := fields["stdout"].(string); strings.TrimSpace(stdout) != "" {
		r.note("ffmpeg stdout:\n%s", lastBytes(stdout, diagnosticsInMessage))
	}
	if stderr, _ := fields["stderr"].(string); strings.TrimSpace(stderr) != "" {
		r.note("ffmpeg stderr:\n%s", lastBytes(stderr, diagnosticsInMessage))
	}

	log := r.log
	var e *apperrors.Error
	if apperrors.As(err, &e) {
		log.Error("run failed",
			"code", string(e.Code),
			"op", e.Op,
			"message", e.Message,
			"error", err.Error(),
		)
	} else {
		log.Error("run failed", "error", err.Error())
	}

	if p.reporter != nil {
		p.reporter.Report(ctx, err, map[string]string{
			"run_id":  r.id,
			"file_id": r.job.FileID,
		})
	}
}

func (p *Pipeline) recordFinish(ctx context.Context, r *run) {
	status := models.RunStatusDone
	if r.result.Failed() {
		status = models.RunStatusFailed
	}

	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	err := p.recorder.RunFinished(recCtx, models.Run{
		ID:           r.id,
		FileID:       r.job.FileID,
		Provider:     p.store.Provider(),
		Status:       status,
		ErrorCode:    r.result.ErrorCode,
		ErrorText:    r.result.Error,
		Message:      r.result.Message,
		Artifacts:    r.result.HLSURLs,
		PlaylistURL:  r.result.PlaylistURL,
		ThumbnailURL: r.result.ThumbnailURL,
	})
	if err != nil {
		r.log.Warn("failed to record run result", "error", err.Error())
	}
}

func lastBytes(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
