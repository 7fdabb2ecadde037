package pipeline

import (
	"hlsfn/internal/models"
	apperrors "hlsfn/internal/pkg/errors"
)

// Job is one decoded transcode request.
type Job struct {
	FileID string `json:"fileId" validate:"required,max=255"`
	// Thumbnail overrides the configured thumbnail policy when set.
	Thumbnail *bool `json:"thumbnail,omitempty"`
}

type ArtifactKind string

const (
	KindPlaylist  ArtifactKind = "playlist"
	KindSegment   ArtifactKind = "segment"
	KindThumbnail ArtifactKind = "thumbnail"
)

// Artifact is one file produced by the transcoder and, once uploaded, its
// remote id and public URL.
type Artifact struct {
	LocalPath   string
	Name        string
	Kind        ArtifactKind
	ContentType string
	Size        int64
	RemoteID    string
	URL         string
}

// Result is returned once per run, on success and on failure.
type Result struct {
	RunID        string               `json:"runId"`
	FileID       string               `json:"fileId,omitempty"`
	Message      string               `json:"message"`
	HLSURLs      []models.ArtifactURL `json:"hlsUrls"`
	PlaylistURL  string               `json:"playlistUrl,omitempty"`
	ThumbnailURL string               `json:"thumbnailUrl,omitempty"`
	Error        string               `json:"error,omitempty"`
	ErrorCode    string               `json:"errorCode,omitempty"`
}

func (r Result) Failed() bool { return r.ErrorCode != "" || r.Error != "" }

// HTTPStatus is 200 for a successful run, otherwise the status of ErrorCode.
func (r Result) HTTPStatus() int {
	if !r.Failed() {
		return 200
	}
	return apperrors.StatusForCode(apperrors.Code(r.ErrorCode))
}
