package pipeline

import (
	"context"
	"errors"
	"io"
	"os"

	apperrors "hlsfn/internal/pkg/errors"
	"hlsfn/internal/ports"
)

// Fetcher downloads the source video into the scratch area.
type Fetcher struct {
	store ports.ObjectStore
}

func NewFetcher(store ports.ObjectStore) *Fetcher {
	return &Fetcher{store: store}
}

// Fetch streams the object named by job.FileID to scratch.SourcePath and
// returns the number of bytes written. A missing object is NOT_FOUND, any
// other failure DOWNLOAD_FAILED.
func (f *Fetcher) Fetch(ctx context.Context, job Job, scratch *ScratchArea) (int64, error) {
	const op = "pipeline.fetch"

	if err := os.MkdirAll(scratch.OutputDir, 0o755); err != nil {
		return 0, apperrors.WrapWithCode(err, apperrors.CodeDownloadFailed, op, "failed to prepare output directory")
	}

	rc, _, _, err := f.store.GetObject(ctx, job.FileID)
	if err != nil {
		if errors.Is(err, ports.ErrObjectNotFound) {
			return 0, apperrors.WrapWithCode(err, apperrors.CodeNotFound, op, "source file not found: "+job.FileID).
				WithField("fileId", job.FileID)
		}
		return 0, apperrors.WrapWithCode(err, apperrors.CodeDownloadFailed, op, "failed to download source file").
			WithField("fileId", job.FileID)
	}
	defer rc.Close()

	out, err := os.Create(scratch.SourcePath)
	if err != nil {
		return 0, apperrors.WrapWithCode(err, apperrors.CodeDownloadFailed, op, "failed to create local source file")
	}
	defer out.Close()

	n, err := io.Copy(out, rc)
	if err != nil {
		return n, apperrors.WrapWithCode(err, apperrors.CodeDownloadFailed, op, "failed to write local source file").
			WithField("bytes", n)
	}
	if err := out.Close(); err != nil {
		return n, apperrors.WrapWithCode(err, apperrors.CodeDownloadFailed, op, "failed to flush local source file")
	}
	return n, nil
}
