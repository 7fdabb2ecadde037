// Package app wires the configured stores, integrations and pipeline shared
// by the HTTP host, the lambda entrypoint and the redis worker.
package app

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"hlsfn/internal/config"
	"hlsfn/internal/joblock"
	"hlsfn/internal/pipeline"
	apperrors "hlsfn/internal/pkg/errors"
	"hlsfn/internal/pkg/errreport"
	"hlsfn/internal/pkg/logger"
	"hlsfn/internal/pkg/metrics"
	"hlsfn/internal/pkg/shutdown"
	"hlsfn/internal/repositories"
	"hlsfn/internal/storage"
	"hlsfn/internal/transcoder"
)

// Version is reported by /health and tagged on Sentry events.
var Version = "0.1.0"

type App struct {
	Config   *config.Config
	Log      *logger.Logger
	Store    storage.Store
	Pipeline *pipeline.Pipeline
	Metrics  *metrics.Metrics
	Reporter *errreport.Reporter

	// Nil when DATABASE_URL / REDIS_ADDR are not set.
	Pool *pgxpool.Pool
	Runs *repositories.RunRepository
	RDB  redis.UniversalClient
}

// New connects every configured integration and builds the pipeline.
// Cleanup of what it opened is registered on sd.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger, sd *shutdown.Manager) (*App, error) {
	a := &App{Config: cfg, Log: log, Metrics: metrics.New()}

	reporter, err := errreport.Init(cfg.SentryDSN, cfg.SentryEnvironment, Version)
	if err != nil {
		return nil, apperrors.WrapWithCode(err, apperrors.CodeConfiguration, "app.New", "failed to initialize sentry")
	}
	a.Reporter = reporter
	sd.RegisterSimple("sentry", func() { reporter.Flush(2 * time.Second) })

	log.Info("initializing storage provider", "provider", cfg.Storage.Provider)
	a.Store, err = storage.NewStore(ctx, cfg.Storage)
	if err != nil {
		return nil, apperrors.WrapWithCode(err, apperrors.CodeConfiguration, "app.New", "failed to initialize storage provider")
	}

	if cfg.DatabaseEnabled() {
		if err := a.connectPostgres(ctx, sd); err != nil {
			return nil, err
		}
	}
	if cfg.RedisEnabled() {
		if err := a.connectRedis(ctx, sd); err != nil {
			return nil, err
		}
	}

	a.Pipeline = pipeline.New(pipelineConfig(cfg), a.pipelineDeps())
	return a, nil
}

func (a *App) connectPostgres(ctx context.Context, sd *shutdown.Manager) error {
	a.Log.Info("connecting to PostgreSQL")
	pool, err := pgxpool.New(ctx, a.Config.DatabaseURL)
	if err != nil {
		return apperrors.WrapWithCode(err, apperrors.CodeConfiguration, "app.connectPostgres", "failed to connect to PostgreSQL")
	}
	sd.RegisterSimple("postgres", pool.Close)

	if err := pool.Ping(ctx); err != nil {
		return apperrors.WrapWithCode(err, apperrors.CodeUnavailable, "app.connectPostgres", "failed to ping PostgreSQL")
	}

	runs := repositories.NewRunRepository(pool)
	if err := runs.EnsureSchema(ctx); err != nil {
		return apperrors.Wrap(err, "app.connectPostgres", "failed to create run history schema")
	}

	a.Pool, a.Runs = pool, runs
	a.Log.Info("PostgreSQL connected")
	return nil
}

func (a *App) connectRedis(ctx context.Context, sd *shutdown.Manager) error {
	a.Log.Info("connecting to Redis")
	rdb := redis.NewClient(&redis.Options{
		Addr:     a.Config.RedisAddr,
		Password: a.Config.RedisPassword,
		DB:       a.Config.RedisDB,
	})
	sd.Register("redis", func(ctx context.Context) error {
		return rdb.Close()
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		return apperrors.WrapWithCode(err, apperrors.CodeUnavailable, "app.connectRedis", "failed to ping Redis")
	}

	a.RDB = rdb
	a.Log.Info("Redis connected")
	return nil
}

// pipelineDeps leaves Locker and Recorder as nil interfaces when their
// backing store is not configured.
func (a *App) pipelineDeps() pipeline.Deps {
	d := pipeline.Deps{
		Store:      a.Store,
		Transcoder: transcoder.NewRunner(a.Config.Transcode.Timeout),
		Reporter:   a.Reporter,
		Metrics:    a.Metrics,
		Log:        a.Log,
	}
	if a.Config.Transcode.FFprobePath != "" {
		d.Probe = pipeline.FFprobe(a.Config.Transcode.FFprobePath)
	}
	if a.RDB != nil {
		d.Locker = joblock.New(a.RDB, a.Config.JobQueueName, a.Config.LockTTL)
	}
	if a.Runs != nil {
		d.Recorder = a.Runs
	}
	return d
}

func pipelineConfig(cfg *config.Config) pipeline.Config {
	t := cfg.Transcode
	return pipeline.Config{
		ScratchRoot: cfg.ScratchRoot,
		Transcode: transcoder.Options{
			Binary:          t.FFmpegPath,
			VideoCodec:      t.VideoCodec,
			AudioCodec:      t.AudioCodec,
			SegmentSeconds:  t.SegmentSeconds,
			Thumbnail:       t.ThumbnailEnabled,
			ThumbnailOffset: t.ThumbnailOffset,
		},
		RewritePlaylistURIs: t.RewritePlaylistURIs,
		ProbeTimeout:        t.ProbeTimeout,
	}
}
