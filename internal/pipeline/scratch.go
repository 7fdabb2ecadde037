package pipeline

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	apperrors "hlsfn/internal/pkg/errors"
)

const maxScratchNameLen = 64

// ScratchArea is the private working directory of one run.
type ScratchArea struct {
	Root       string
	SourcePath string
	OutputDir  string
}

// NewScratchArea creates {root}/{sanitized fileId}-{uuid}. The random suffix
// keeps concurrent runs on the same file apart.
func NewScratchArea(root, fileID string) (*ScratchArea, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, apperrors.Wrap(err, "pipeline.scratch", "failed to create scratch root")
	}

	dir := filepath.Join(root, SanitizeFileID(fileID)+"-"+uuid.NewString())
	if err := os.Mkdir(dir, 0o755); err != nil {
		return nil, apperrors.Wrap(err, "pipeline.scratch", "failed to create scratch directory")
	}

	return &ScratchArea{
		Root:       dir,
		SourcePath: filepath.Join(dir, "source"),
		OutputDir:  filepath.Join(dir, "output"),
	}, nil
}

// Remove deletes the whole scratch directory.
func (s *ScratchArea) Remove() error {
	if err := os.RemoveAll(s.Root); err != nil {
		return apperrors.WrapWithCode(err, apperrors.CodeCleanupFailed, "pipeline.scratch", "failed to remove scratch directory").
			WithField("path", s.Root)
	}
	return nil
}

// SanitizeFileID turns a storage id into a safe single path component.
func SanitizeFileID(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "..", "")

	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
		if b.Len() >= maxScratchNameLen {
			break
		}
	}

	out := strings.Trim(b.String(), ".")
	if out == "" {
		return "input"
	}
	return out
}
