package httpapi

import (
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"hlsfn/internal/httpapi/handlers"
	"hlsfn/internal/httpkit"
	"hlsfn/internal/pkg/logger"
	"hlsfn/internal/pkg/metrics"
	"hlsfn/internal/pkg/middleware"
	"hlsfn/internal/ports"
)

type Deps struct {
	Pipeline   handlers.Runner
	Runs       handlers.RunStore
	RDB        redis.UniversalClient
	Store      ports.ObjectStore
	FFmpegPath string
	Metrics    *metrics.Metrics
	Log        *logger.Logger
	Version    string

	// PanicHooks are told about panics recovered in handlers.
	PanicHooks []middleware.PanicHook

	// FilesDir, when set, is served read-only under /files/ so the localfs
	// store's public URLs resolve against this host.
	FilesDir string
}

func NewRouter(d Deps) http.Handler {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(log))
	r.Use(middleware.Recovery(log, d.PanicHooks...))
	r.Use(httpkit.CORS(httpkit.CORSOptions{
		AllowedOrigins: envCSV("CORS_ALLOWED_ORIGINS", []string{"*"}),
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
		MaxAgeSeconds:  600,
	}))

	h := handlers.New(handlers.Deps{
		Pipeline:   d.Pipeline,
		Runs:       d.Runs,
		RDB:        d.RDB,
		Store:      d.Store,
		FFmpegPath: d.FFmpegPath,
		Log:        log,
		Version:    d.Version,
	})

	// ---- FUNCTION ----
	r.Post("/", h.Transcode)
	r.Post("/v1/transcode", h.Transcode)

	// ---- RUN HISTORY ----
	r.Get("/runs", middleware.WrapHandler(log, h.ListRuns))
	r.Get("/runs/{runId}", middleware.WrapHandler(log, h.GetRun))

	// ---- OPS ----
	r.Get("/health", h.Health)
	r.Handle("/metrics", d.Metrics.Handler())

	if d.FilesDir != "" {
		r.Handle("/files/*", http.StripPrefix("/files/", http.FileServer(http.Dir(d.FilesDir))))
	}

	return r
}

func envCSV(key string, def []string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	out := httpkit.NormalizeList(strings.Split(raw, ","))
	if len(out) == 0 {
		return def
	}
	return out
}
