package models

import "time"

// Run statuses.
const (
	RunStatusRunning = "RUNNING"
	RunStatusDone    = "DONE"
	RunStatusFailed  = "FAILED"
)

// ArtifactURL is one uploaded artifact as returned to the caller.
type ArtifactURL struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Run is the history record of one pipeline invocation.
type Run struct {
	ID           string        `json:"id"`
	FileID       string        `json:"fileId"`
	Provider     string        `json:"provider"`
	Status       string        `json:"status"`
	ErrorCode    string        `json:"errorCode,omitempty"`
	ErrorText    string        `json:"error,omitempty"`
	Message      string        `json:"message,omitempty"`
	Artifacts    []ArtifactURL `json:"artifacts"`
	PlaylistURL  string        `json:"playlistUrl,omitempty"`
	ThumbnailURL string        `json:"thumbnailUrl,omitempty"`
	StartedAt    time.Time     `json:"startedAt"`
	FinishedAt   *time.Time    `json:"finishedAt,omitempty"`
}
