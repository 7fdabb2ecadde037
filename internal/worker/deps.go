package worker

import (
	"context"
	"time"

	"hlsfn/internal/pipeline"
	"hlsfn/internal/pkg/logger"
)

// Queue hands out raw payloads. An empty payload with a nil error means
// nothing arrived in time.
type Queue interface {
	Pop(ctx context.Context) (string, error)
}

// Results stores the outcome of a run for later lookup by file id.
type Results interface {
	Save(ctx context.Context, fileID string, v any) error
}

// Runner executes one payload. *pipeline.Pipeline implements it.
type Runner interface {
	Run(ctx context.Context, payload string) pipeline.Result
}

type Deps struct {
	Queue    Queue
	Results  Results
	Pipeline Runner
	Log      *logger.Logger

	// RetryDelay is the pause after a failed Pop.
	RetryDelay time.Duration
}
