package transcoder

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/grafov/m3u8"

	apperrors "hlsfn/internal/pkg/errors"
)

// ParseMediaPlaylist decodes data as an HLS media playlist.
func ParseMediaPlaylist(data []byte) (*m3u8.MediaPlaylist, error) {
	p, listType, err := m3u8.DecodeFrom(bytes.NewReader(data), false)
	if err != nil {
		return nil, fmt.Errorf("decode playlist: %w", err)
	}
	if listType != m3u8.MEDIA {
		return nil, fmt.Errorf("expected media playlist, got master playlist")
	}
	return p.(*m3u8.MediaPlaylist), nil
}

// SegmentURIs lists the segment URIs of p in playback order.
func SegmentURIs(p *m3u8.MediaPlaylist) []string {
	uris := make([]string, 0, p.Count())
	for _, seg := range p.Segments {
		if seg == nil {
			continue
		}
		uris = append(uris, seg.URI)
	}
	return uris
}

// VerifyPlaylist checks that the playlist in outputDir exists, references at
// least one segment and that every referenced segment was written. It
// returns the segment URIs in order.
func VerifyPlaylist(outputDir, playlistName string) ([]string, error) {
	const op = "transcoder.VerifyPlaylist"

	data, err := os.ReadFile(filepath.Join(outputDir, playlistName))
	if err != nil {
		return nil, apperrors.WrapWithCode(err, apperrors.CodeTranscodeFailed, op, "playlist was not produced")
	}

	p, err := ParseMediaPlaylist(data)
	if err != nil {
		return nil, apperrors.WrapWithCode(err, apperrors.CodeTranscodeFailed, op, "playlist is not valid HLS")
	}

	uris := SegmentURIs(p)
	if len(uris) == 0 {
		return nil, apperrors.New(apperrors.CodeTranscodeFailed, "playlist references no segments").
			WithField("playlist", playlistName)
	}

	var missing []string
	for _, uri := range uris {
		if _, err := os.Stat(filepath.Join(outputDir, filepath.Base(uri))); err != nil {
			missing = append(missing, uri)
		}
	}
	if len(missing) > 0 {
		return nil, apperrors.Newf(apperrors.CodeTranscodeFailed, "playlist references %d missing segment(s)", len(missing)).
			WithField("missing", missing)
	}
	return uris, nil
}

// RewriteSegmentURIs replaces every segment URI in the playlist with its
// entry in urls. Every segment must have a replacement.
func RewriteSegmentURIs(data []byte, urls map[string]string) ([]byte, error) {
	p, err := ParseMediaPlaylist(data)
	if err != nil {
		return nil, err
	}

	for _, seg := range p.Segments {
		if seg == nil {
			continue
		}
		u, ok := urls[seg.URI]
		if !ok {
			return nil, fmt.Errorf("no uploaded url for segment %q", seg.URI)
		}
		seg.URI = u
	}
	return p.Encode().Bytes(), nil
}
