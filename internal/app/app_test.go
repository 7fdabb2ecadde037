package app

import (
	"context"
	"testing"
	"time"

	"hlsfn/internal/config"
	"hlsfn/internal/pkg/logger"
	"hlsfn/internal/pkg/shutdown"
)

func localConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Storage: config.Storage{
			Provider: config.ProviderLocalFS,
			LocalFS: config.LocalFS{
				Root:          t.TempDir(),
				Bucket:        "videos",
				PublicBaseURL: "http://localhost:8080/files",
			},
		},
		Transcode: config.Transcode{
			FFmpegPath:          "/opt/ffmpeg/bin/ffmpeg",
			FFprobePath:         "",
			ProbeTimeout:        7 * time.Second,
			Timeout:             time.Minute,
			SegmentSeconds:      6,
			VideoCodec:          "libx265",
			AudioCodec:          "libopus",
			ThumbnailEnabled:    true,
			ThumbnailOffset:     3 * time.Second,
			RewritePlaylistURIs: true,
		},
		ScratchRoot:  t.TempDir(),
		HTTPPort:     "8080",
		JobQueueName: "hls:jobs",
		ResultTTL:    time.Hour,
		LockTTL:      time.Hour,
	}
}

func TestNewWithoutOptionalIntegrations(t *testing.T) {
	log := logger.Discard()
	sd := shutdown.NewManager(log, time.Second)
	t.Cleanup(sd.Shutdown)

	a, err := New(context.Background(), localConfig(t), log, sd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Pipeline == nil || a.Store == nil || a.Metrics == nil || a.Reporter == nil {
		t.Fatalf("incomplete app %+v", a)
	}
	if a.Store.Provider() != "localfs" {
		t.Errorf("expected localfs store, got %s", a.Store.Provider())
	}
	if a.Pool != nil || a.Runs != nil || a.RDB != nil {
		t.Error("database and redis must stay nil when not configured")
	}
	if a.Reporter.Enabled() {
		t.Error("reporter must be disabled without a DSN")
	}

	d := a.pipelineDeps()
	if d.Locker != nil || d.Recorder != nil {
		t.Error("locker and recorder must be nil interfaces when not configured")
	}
	if d.Probe != nil {
		t.Error("probe must be disabled when FFPROBE_PATH is empty")
	}
}

func TestPipelineConfig(t *testing.T) {
	cfg := localConfig(t)
	pc := pipelineConfig(cfg)

	if pc.ScratchRoot != cfg.ScratchRoot || !pc.RewritePlaylistURIs {
		t.Errorf("unexpected pipeline config %+v", pc)
	}
	o := pc.Transcode
	if o.Binary != "/opt/ffmpeg/bin/ffmpeg" || o.VideoCodec != "libx265" || o.AudioCodec != "libopus" {
		t.Errorf("codec settings not carried over: %+v", o)
	}
	if o.SegmentSeconds != 6 || !o.Thumbnail || o.ThumbnailOffset != 3*time.Second {
		t.Errorf("segment or thumbnail settings not carried over: %+v", o)
	}
	if pc.ProbeTimeout != 7*time.Second {
		t.Errorf("ffprobe timeout not carried over: %s", pc.ProbeTimeout)
	}
}
