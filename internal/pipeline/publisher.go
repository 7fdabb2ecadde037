package pipeline

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"

	apperrors "hlsfn/internal/pkg/errors"
	"hlsfn/internal/pkg/metrics"
	"hlsfn/internal/ports"
	"hlsfn/internal/transcoder"
)

// Publisher uploads the transcoder output and derives the public URLs.
type Publisher struct {
	store   ports.ObjectStore
	rewrite bool
	metrics *metrics.Metrics
}

// NewPublisher returns a Publisher. With rewrite set, playlists are uploaded
// with their segment URIs replaced by the public URLs of the segments.
func NewPublisher(store ports.ObjectStore, rewrite bool, m *metrics.Metrics) *Publisher {
	return &Publisher{store: store, rewrite: rewrite, metrics: m}
}

// Publish uploads every regular file of outputDir: media (segments,
// thumbnail) in name order, then playlists. It stops at the first failed
// upload and returns the artifacts uploaded before it together with an
// UPLOAD_FAILED error.
func (p *Publisher) Publish(ctx context.Context, outputDir string) ([]Artifact, error) {
	const op = "pipeline.publish"

	artifacts, err := listArtifacts(outputDir)
	if err != nil {
		return nil, apperrors.WrapWithCode(err, apperrors.CodeUploadFailed, op, "failed to list transcoder output")
	}
	if len(artifacts) == 0 {
		return nil, apperrors.New(apperrors.CodeTranscodeFailed, "transcoder produced no output")
	}

	var media, playlists []Artifact
	for _, a := range artifacts {
		if a.Kind == KindPlaylist {
			playlists = append(playlists, a)
		} else {
			media = append(media, a)
		}
	}

	uploaded := make([]Artifact, 0, len(artifacts))
	segmentURLs := make(map[string]string, len(media))

	for _, a := range media {
		if err := p.uploadFile(ctx, &a); err != nil {
			return uploaded, err
		}
		uploaded = append(uploaded, a)
		segmentURLs[a.Name] = a.URL
	}

	for _, a := range playlists {
		var err error
		if p.rewrite {
			err = p.uploadRewritten(ctx, &a, segmentURLs)
		} else {
			err = p.uploadFile(ctx, &a)
		}
		if err != nil {
			return uploaded, err
		}
		uploaded = append(uploaded, a)
	}

	return uploaded, nil
}

func (p *Publisher) uploadFile(ctx context.Context, a *Artifact) error {
	f, err := os.Open(a.LocalPath)
	if err != nil {
		return apperrors.WrapWithCode(err, apperrors.CodeUploadFailed, "pipeline.publish", "failed to open "+a.Name).
			WithField("artifact", a.Name)
	}
	defer f.Close()

	return p.put(ctx, a, f, a.Size)
}

func (p *Publisher) uploadRewritten(ctx context.Context, a *Artifact, segmentURLs map[string]string) error {
	data, err := os.ReadFile(a.LocalPath)
	if err != nil {
		return apperrors.WrapWithCode(err, apperrors.CodeUploadFailed, "pipeline.publish", "failed to read "+a.Name).
			WithField("artifact", a.Name)
	}

	rewritten, err := transcoder.RewriteSegmentURIs(data, segmentURLs)
	if err != nil {
		return apperrors.WrapWithCode(err, apperrors.CodeUploadFailed, "pipeline.publish", "failed to rewrite "+a.Name).
			WithField("artifact", a.Name)
	}

	a.Size = int64(len(rewritten))
	return p.put(ctx, a, bytes.NewReader(rewritten), a.Size)
}

func (p *Publisher) put(ctx context.Context, a *Artifact, r io.Reader, size int64) error {
	out, err := p.store.PutObject(ctx, ports.PutObjectInput{
		Name:        a.Name,
		ContentType: a.ContentType,
		Reader:      r,
		Size:        size,
		Public:      true,
	})
	if err != nil {
		return apperrors.WrapWithCode(err, apperrors.CodeUploadFailed, "pipeline.publish", "failed to upload "+a.Name).
			WithField("artifact", a.Name)
	}

	a.RemoteID = out.ObjectID
	a.URL = p.store.PublicURL(out.ObjectID)
	p.metrics.ArtifactUploaded(string(a.Kind), size)
	return nil
}

// listArtifacts returns the regular files of dir sorted by name.
func listArtifacts(dir string) ([]Artifact, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var out []Artifact
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, err
		}
		path := filepath.Join(dir, e.Name())
		ct := DetectContentType(path)
		out = append(out, Artifact{
			LocalPath:   path,
			Name:        e.Name(),
			Kind:        KindOf(e.Name(), ct),
			ContentType: ct,
			Size:        info.Size(),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
