package handlers

import (
	"context"
	"errors"
	"net/http"

	"hlsfn/internal/httpkit"
	apperrors "hlsfn/internal/pkg/errors"
	"hlsfn/internal/pkg/middleware"
)

// Transcode runs the pipeline on the raw request body and answers with the
// Result. The status follows the result's error code.
func (h *Handler) Transcode(w http.ResponseWriter, r *http.Request) {
	body, err := httpkit.ReadBody(w, r, h.maxPayload)
	if err != nil {
		if errors.Is(err, httpkit.ErrBodyTooLarge) {
			middleware.HandleError(w, r, h.log, apperrors.InvalidPayload("payload exceeds size limit"))
			return
		}
		middleware.HandleError(w, r, h.log, apperrors.Wrap(err, "handlers.Transcode", "failed to read request body"))
		return
	}

	// A client that hangs up must not leave a half-uploaded rendition or a
	// held lock behind.
	ctx := context.WithoutCancel(r.Context())

	res := h.pipeline.Run(ctx, string(body))
	httpkit.WriteJSON(w, res.HTTPStatus(), res)
}
