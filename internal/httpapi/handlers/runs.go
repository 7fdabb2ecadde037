package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"hlsfn/internal/httpkit"
	apperrors "hlsfn/internal/pkg/errors"
	"hlsfn/internal/repositories"
)

const defaultRunsLimit = 20

var errHistoryDisabled = apperrors.New(apperrors.CodeUnavailable, "run history is disabled (DATABASE_URL not set)")

// GetRun returns one run by id.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) error {
	if h.runs == nil {
		return errHistoryDisabled
	}

	runID := chi.URLParam(r, "runId")
	run, err := h.runs.Get(r.Context(), runID)
	if err != nil {
		if errors.Is(err, repositories.ErrRunNotFound) {
			return apperrors.NotFound("run", runID)
		}
		return apperrors.Wrap(err, "handlers.GetRun", "failed to load run")
	}

	httpkit.WriteJSON(w, http.StatusOK, run)
	return nil
}

// ListRuns returns the latest runs of ?fileId=, newest first.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) error {
	if h.runs == nil {
		return errHistoryDisabled
	}

	fileID := strings.TrimSpace(r.URL.Query().Get("fileId"))
	if fileID == "" {
		return apperrors.InvalidPayloadField("fileId", "query parameter fileId is required")
	}

	limit := defaultRunsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return apperrors.InvalidPayloadField("limit", "limit must be a positive integer")
		}
		limit = n
	}

	runs, err := h.runs.ListByFile(r.Context(), fileID, limit)
	if err != nil {
		return apperrors.Wrap(err, "handlers.ListRuns", "failed to list runs")
	}

	httpkit.WriteJSON(w, http.StatusOK, map[string]any{
		"fileId": fileID,
		"runs":   runs,
	})
	return nil
}
