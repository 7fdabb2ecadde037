package main

import (
	"context"
	"net/http"
	"time"

	"hlsfn/internal/app"
	"hlsfn/internal/config"
	"hlsfn/internal/httpapi"
	"hlsfn/internal/pkg/logger"
	"hlsfn/internal/pkg/middleware"
	"hlsfn/internal/pkg/shutdown"
)

func main() {
	lc := logger.DefaultConfig()
	lc.ServiceName = "hlsfn-api"
	log := logger.New(lc)

	log.Info("starting hlsfn API", "version", app.Version)

	cfg, err := config.Load()
	if err != nil {
		log.LogFatal("invalid configuration", err)
	}

	ctx := context.Background()
	shutdownMgr := shutdown.NewManager(log, 30*time.Second)

	a, err := app.New(ctx, cfg, log, shutdownMgr)
	if err != nil {
		shutdownMgr.Shutdown()
		log.LogFatal("failed to initialize", err)
	}

	deps := httpapi.Deps{
		Pipeline:   a.Pipeline,
		Store:      a.Store,
		FFmpegPath: cfg.Transcode.FFmpegPath,
		Metrics:    a.Metrics,
		Log:        log,
		Version:    app.Version,
		PanicHooks: []middleware.PanicHook{
			func(r *http.Request, err error) {
				a.Reporter.Report(r.Context(), err, map[string]string{"op": "http", "path": r.URL.Path})
			},
		},
	}
	if a.Runs != nil {
		deps.Runs = a.Runs
	}
	if a.RDB != nil {
		deps.RDB = a.RDB
	}
	if cfg.Storage.Provider == config.ProviderLocalFS {
		deps.FilesDir = cfg.Storage.LocalFS.Root
	}

	// A run may take the whole transcode timeout plus download and upload.
	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.HTTPPort,
		Handler:      httpapi.NewRouter(deps),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.Transcode.Timeout + 5*time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	shutdownMgr.Register("http-server", func(ctx context.Context) error {
		log.Info("shutting down HTTP server")
		return server.Shutdown(ctx)
	})

	go func() {
		log.Info("HTTP server listening",
			"addr", server.Addr,
			"provider", a.Store.Provider(),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.LogFatal("HTTP server failed", err)
		}
	}()

	shutdownMgr.Wait()
}

