package upload

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/wailsapp/mimetype"

	"vfi-client/internal/domain"
)

// ErrEmptyPayload is returned for zero-length uploads.
var ErrEmptyPayload = errors.New("upload payload is empty")

// NewPayload wraps file bytes with the format tag the server expects.
func NewPayload(name, mimeType string, data []byte) (*domain.UploadPayload, error) {
	if len(data) == 0 {
		return nil, ErrEmptyPayload
	}
	return &domain.UploadPayload{
		Name: name,
		Data: data,
		Extv: FormatTag(name, mimeType, data),
	}, nil
}

// FormatTag derives extv from the MIME subtype, then the file extension, then
// the content itself. QuickTime video is relabelled mp4.
func FormatTag(name, mimeType string, data []byte) string {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if mimeType == "" || mimeType == "application/octet-stream" {
		if ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), "."); ext != "" {
			return normalizeTag(ext)
		}
		if len(data) == 0 {
			return ""
		}
		mimeType = mimetype.Detect(data).String()
	}

	if idx := strings.IndexByte(mimeType, ';'); idx >= 0 {
		mimeType = mimeType[:idx]
	}
	_, sub, ok := strings.Cut(mimeType, "/")
	if !ok {
		return ""
	}
	return normalizeTag(sub)
}

func normalizeTag(tag string) string {
	switch tag {
	case "quicktime":
		return "mp4"
	default:
		return tag
	}
}
