package main

import (
	"context"
	"errors"
	"time"

	"hlsfn/internal/app"
	"hlsfn/internal/config"
	apperrors "hlsfn/internal/pkg/errors"
	"hlsfn/internal/pkg/logger"
	"hlsfn/internal/pkg/shutdown"
	"hlsfn/internal/worker"
	"hlsfn/internal/worker/queue"
)

func main() {
	lc := logger.DefaultConfig()
	lc.ServiceName = "hlsfn-worker"
	log := logger.New(lc)

	cfg, err := config.Load()
	if err != nil {
		log.LogFatal("invalid configuration", err)
	}
	if err := requireQueue(cfg); err != nil {
		log.LogFatal("invalid configuration", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	shutdownMgr := shutdown.NewManager(log, cfg.Transcode.Timeout+time.Minute)

	a, err := app.New(ctx, cfg, log, shutdownMgr)
	if err != nil {
		shutdownMgr.Shutdown()
		log.LogFatal("failed to initialize", err)
	}

	deps := worker.Deps{
		Queue:    queue.NewRedisQueue(a.RDB, cfg.JobQueueName, 5*time.Second),
		Results:  queue.NewResultStore(a.RDB, cfg.JobQueueName, cfg.ResultTTL),
		Pipeline: a.Pipeline,
		Log:      log,
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		log.Info("hlsfn worker started", "queue", cfg.JobQueueName, "provider", a.Store.Provider())
		if err := worker.Run(ctx, deps); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("worker stopped", "error", err.Error())
		}
	}()

	// The loop stops popping first; a run in progress finishes before the
	// clients it uses are closed.
	shutdownMgr.Register("worker", func(ctx context.Context) error {
		cancel()
		select {
		case <-stopped:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	done, stop := context.WithCancel(context.Background())
	go func() {
		<-stopped
		stop()
	}()
	shutdownMgr.WaitWithContext(done)
}

// requireQueue rejects a config the worker cannot consume jobs with.
func requireQueue(cfg *config.Config) error {
	if !cfg.RedisEnabled() {
		return apperrors.Configuration("REDIS_ADDR is required for the worker", "REDIS_ADDR")
	}
	return nil
}
