package handlers

import (
	"context"

	"github.com/redis/go-redis/v9"

	"hlsfn/internal/models"
	"hlsfn/internal/pipeline"
	"hlsfn/internal/pkg/logger"
	"hlsfn/internal/ports"
)

// DefaultMaxPayloadBytes bounds the transcode request body.
const DefaultMaxPayloadBytes = 1 << 20

// Runner executes one transcode payload. *pipeline.Pipeline implements it.
type Runner interface {
	Run(ctx context.Context, payload string) pipeline.Result
}

// RunStore reads the run history. *repositories.RunRepository implements it.
type RunStore interface {
	Get(ctx context.Context, id string) (*models.Run, error)
	ListByFile(ctx context.Context, fileID string, limit int) ([]models.Run, error)
	Ping(ctx context.Context) error
}

// Deps wires the handlers. Runs and RDB are nil when Postgres or Redis are
// not configured.
type Deps struct {
	Pipeline   Runner
	Runs       RunStore
	RDB        redis.UniversalClient
	Store      ports.ObjectStore
	FFmpegPath string
	Log        *logger.Logger

	MaxPayloadBytes int64
	Version         string
}

type Handler struct {
	pipeline   Runner
	runs       RunStore
	rdb        redis.UniversalClient
	store      ports.ObjectStore
	ffmpegPath string
	log        *logger.Logger

	maxPayload int64
	version    string
}

func New(d Deps) *Handler {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	maxPayload := d.MaxPayloadBytes
	if maxPayload <= 0 {
		maxPayload = DefaultMaxPayloadBytes
	}
	version := d.Version
	if version == "" {
		version = "dev"
	}
	return &Handler{
		pipeline:   d.Pipeline,
		runs:       d.Runs,
		rdb:        d.RDB,
		store:      d.Store,
		ffmpegPath: d.FFmpegPath,
		log:        log.WithComponent("http"),
		maxPayload: maxPayload,
		version:    version,
	}
}
