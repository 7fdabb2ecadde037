package pipeline

import (
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

var contentTypes = map[string]string{
	".m3u8": "application/vnd.apple.mpegurl",
	".ts":   "video/mp2t",
	".m4s":  "video/iso.segment",
	".mp4":  "video/mp4",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".vtt":  "text/vtt",
}

// DetectContentType uses the extension of path, then sniffs the file.
func DetectContentType(path string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return ct
	}
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return "application/octet-stream"
	}
	return mt.String()
}

// KindOf classifies an output file by name and content type.
func KindOf(name, contentType string) ArtifactKind {
	switch {
	case strings.EqualFold(filepath.Ext(name), ".m3u8"):
		return KindPlaylist
	case strings.HasPrefix(contentType, "image/"):
		return KindThumbnail
	default:
		return KindSegment
	}
}
