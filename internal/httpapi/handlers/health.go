package handlers

import (
	"context"
	"net/http"
	"os/exec"
	"time"

	"hlsfn/internal/httpkit"
	"hlsfn/internal/storage"
)

const healthCheckTimeout = 5 * time.Second

// Health performs a health check of the service.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := h.log.FromContext(ctx)

	health := map[string]any{
		"status":  "ok",
		"service": "hlsfn",
		"version": h.version,
	}

	if r.URL.Query().Get("deep") == "true" {
		checks := h.deepHealthCheck(ctx)
		health["checks"] = checks

		for _, check := range checks {
			if s := check["status"]; s != "ok" && s != "disabled" {
				health["status"] = "degraded"
				log.Warn("health check degraded", "checks", checks)
				break
			}
		}
	}

	httpkit.WriteJSON(w, http.StatusOK, health)
}

// deepHealthCheck performs detailed health checks on dependencies.
func (h *Handler) deepHealthCheck(ctx context.Context) map[string]map[string]any {
	return map[string]map[string]any{
		"postgres": h.checkPostgres(ctx),
		"redis":    h.checkRedis(ctx),
		"storage":  h.checkStorage(ctx),
		"ffmpeg":   h.checkFFmpeg(),
	}
}

func (h *Handler) checkPostgres(ctx context.Context) map[string]any {
	if h.runs == nil {
		return map[string]any{"status": "disabled"}
	}
	return timedCheck(ctx, h.runs.Ping)
}

func (h *Handler) checkRedis(ctx context.Context) map[string]any {
	if h.rdb == nil {
		return map[string]any{"status": "disabled"}
	}
	return timedCheck(ctx, func(ctx context.Context) error {
		return h.rdb.Ping(ctx).Err()
	})
}

func (h *Handler) checkStorage(ctx context.Context) map[string]any {
	result := timedCheck(ctx, func(ctx context.Context) error {
		return storage.Ping(ctx, h.store)
	})
	result["provider"] = h.store.Provider()
	return result
}

func (h *Handler) checkFFmpeg() map[string]any {
	path, err := exec.LookPath(h.ffmpegPath)
	if err != nil {
		return map[string]any{"status": "error", "error": err.Error()}
	}
	return map[string]any{"status": "ok", "path": path}
}

func timedCheck(ctx context.Context, check func(context.Context) error) map[string]any {
	start := time.Now()
	result := map[string]any{"status": "ok"}

	checkCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	if err := check(checkCtx); err != nil {
		result["status"] = "error"
		result["error"] = err.Error()
	}

	result["latency_ms"] = time.Since(start).Milliseconds()
	return result
}
