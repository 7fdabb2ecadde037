package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"hlsfn/internal/httpkit"
	"hlsfn/internal/models"
)

var (
	ErrRunNotFound = errors.New("run not found")
	ErrRunExists   = errors.New("run id already recorded")
)

const schema = `
CREATE TABLE IF NOT EXISTS job_runs (
	id             TEXT PRIMARY KEY,
	file_id        TEXT NOT NULL,
	provider       TEXT NOT NULL,
	status         TEXT NOT NULL,
	error_code     TEXT,
	error_text     TEXT,
	message        TEXT,
	artifacts_json JSONB NOT NULL DEFAULT '[]'::jsonb,
	playlist_url   TEXT,
	thumbnail_url  TEXT,
	started_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at    TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS job_runs_file_id_idx ON job_runs (file_id, started_at DESC);
`

const maxListLimit = 100

type RunRepository struct {
	db *pgxpool.Pool
}

func NewRunRepository(db *pgxpool.Pool) *RunRepository {
	return &RunRepository{db: db}
}

// EnsureSchema creates the job_runs table when it does not exist.
func (r *RunRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.Exec(ctx, schema)
	return err
}

func (r *RunRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

// RunStarted inserts run with status RUNNING.
func (r *RunRepository) RunStarted(ctx context.Context, run models.Run) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO job_runs (id, file_id, provider, status)
		VALUES ($1,$2,$3,$4)
		RETURNING started_at
	`, run.ID, run.FileID, run.Provider, models.RunStatusRunning).Scan(&run.StartedAt)

	if err != nil {
		if httpkit.IsUniqueViolation(err) {
			return ErrRunExists
		}
		return err
	}
	return nil
}

// RunFinished stores the outcome of run.
func (r *RunRepository) RunFinished(ctx context.Context, run models.Run) error {
	artifacts, err := json.Marshal(nonNil(run.Artifacts))
	if err != nil {
		return err
	}

	cmd, err := r.db.Exec(ctx, `
		UPDATE job_runs
		SET status=$2, error_code=$3, error_text=$4, message=$5,
		    artifacts_json=$6, playlist_url=$7, thumbnail_url=$8, finished_at=now()
		WHERE id=$1
	`,
		run.ID,
		run.Status,
		nullIfEmpty(run.ErrorCode),
		nullIfEmpty(truncate(run.ErrorText, 2000)),
		nullIfEmpty(run.Message),
		artifacts,
		nullIfEmpty(run.PlaylistURL),
		nullIfEmpty(run.ThumbnailURL),
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrRunNotFound
	}
	return nil
}

const selectRun = `
	SELECT id, file_id, provider, status, error_code, error_text, message,
	       artifacts_json, playlist_url, thumbnail_url, started_at, finished_at
	FROM job_runs
`

func (r *RunRepository) Get(ctx context.Context, id string) (*models.Run, error) {
	run, err := scanRun(r.db.QueryRow(ctx, selectRun+` WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	return run, nil
}

// ListByFile returns the most recent runs for fileID, newest first.
func (r *RunRepository) ListByFile(ctx context.Context, fileID string, limit int) ([]models.Run, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}

	rows, err := r.db.Query(ctx, selectRun+`
		WHERE file_id=$1
		ORDER BY started_at DESC
		LIMIT $2
	`, fileID, limit)
	if err != nil {
		// No history yet on a database EnsureSchema never ran against.
		if httpkit.IsUndefinedTable(err) {
			return []models.Run{}, nil
		}
		return nil, err
	}
	defer rows.Close()

	out := []models.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *run)
	}
	return out, rows.Err()
}

func scanRun(row pgx.Row) (*models.Run, error) {
	var (
		run                           models.Run
		errorCode, errorText, message *string
		playlistURL, thumbnailURL     *string
		artifacts                     []byte
	)
	err := row.Scan(
		&run.ID,
		&run.FileID,
		&run.Provider,
		&run.Status,
		&errorCode,
		&errorText,
		&message,
		&artifacts,
		&playlistURL,
		&thumbnailURL,
		&run.StartedAt,
		&run.FinishedAt,
	)
	if err != nil {
		return nil, err
	}

	run.ErrorCode = deref(errorCode)
	run.ErrorText = deref(errorText)
	run.Message = deref(message)
	run.PlaylistURL = deref(playlistURL)
	run.ThumbnailURL = deref(thumbnailURL)
	if len(artifacts) > 0 {
		if err := json.Unmarshal(artifacts, &run.Artifacts); err != nil {
			return nil, err
		}
	}
	run.Artifacts = nonNil(run.Artifacts)
	return &run, nil
}

// nullIfEmpty maps blank strings to SQL NULL.
func nullIfEmpty(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nonNil(a []models.ArtifactURL) []models.ArtifactURL {
	if a == nil {
		return []models.ArtifactURL{}
	}
	return a
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
