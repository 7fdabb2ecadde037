package worker

import (
	"context"
	"time"

	"hlsfn/internal/pkg/logger"
)

// Run pops payloads until ctx is canceled, runs each through the pipeline
// and stores the result. Runs are sequential.
func Run(ctx context.Context, d Deps) error {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	log = log.WithComponent("worker")

	retry := d.RetryDelay
	if retry <= 0 {
		retry = time.Second
	}

	for {
		select {
		case <-ctx.Done():
			log.Info("worker context canceled, stopping")
			return ctx.Err()
		default:
		}

		payload, err := d.Queue.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("worker stopping due to context cancellation")
				return ctx.Err()
			}

			log.Warn("queue pop error, retrying",
				"error", err.Error(),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retry):
			}
			continue
		}

		if payload == "" {
			continue
		}

		process(ctx, d, log, payload)
	}
}

func process(ctx context.Context, d Deps, log *logger.Logger, payload string) {
	startTime := time.Now()

	// a popped payload is finished even when shutdown starts mid-run
	res := d.Pipeline.Run(context.WithoutCancel(ctx), payload)

	jobLog := log.WithRunID(res.RunID)
	if res.FileID != "" {
		jobLog = jobLog.WithFileID(res.FileID)
	}

	if res.Failed() {
		jobLog.Error("job failed",
			"code", res.ErrorCode,
			"error", res.Error,
			"duration_ms", time.Since(startTime).Milliseconds(),
		)
	} else {
		jobLog.Info("job completed",
			"artifacts", len(res.HLSURLs),
			"duration_ms", time.Since(startTime).Milliseconds(),
		)
	}

	if res.FileID == "" {
		jobLog.Warn("payload without fileId, result not stored")
		return
	}

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := d.Results.Save(saveCtx, res.FileID, res); err != nil {
		jobLog.Error("failed to store result", "error", err.Error())
	}
}
