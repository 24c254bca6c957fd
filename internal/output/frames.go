package output

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/wailsapp/mimetype"

	"vfi-client/internal/domain"
)

// FrameSaver writes decoded frames under one directory per job. Safe for
// concurrent use across jobs.
type FrameSaver struct {
	root    string
	saved   atomic.Uint64
	dropped atomic.Uint64
}

// NewFrameSaver creates a saver rooted at dir. Directories are created on first write.
func NewFrameSaver(dir string) *FrameSaver {
	return &FrameSaver{root: dir}
}

// Root returns the directory job folders are created in.
func (fs *FrameSaver) Root() string {
	return fs.root
}

// JobDir returns the folder frames of jobID are written to.
func (fs *FrameSaver) JobDir(jobID string) string {
	return filepath.Join(fs.root, jobID)
}

// Save writes frame as <root>/<jobID>/frame_NNNN.<ext> and returns the path.
func (fs *FrameSaver) Save(jobID string, frame domain.DecodedFrame) (string, error) {
	dir := fs.JobDir(jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		fs.dropped.Add(1)
		return "", fmt.Errorf("create frame dir: %w", err)
	}

	path := filepath.Join(dir, FrameFileName(frame.Position, frame.ContentType))
	if err := os.WriteFile(path, frame.Data, 0o644); err != nil {
		fs.dropped.Add(1)
		return "", fmt.Errorf("write frame %d: %w", frame.Position, err)
	}

	fs.saved.Add(1)
	return path, nil
}

// Stats returns current save statistics.
func (fs *FrameSaver) Stats() (saved, dropped uint64) {
	return fs.saved.Load(), fs.dropped.Load()
}

// FrameFileName names a saved frame by position and content type.
func FrameFileName(position int, contentType string) string {
	return fmt.Sprintf("frame_%04d%s", position, Extension(contentType))
}

// Extension returns the dotted file extension for a MIME type, or ".bin".
func Extension(contentType string) string {
	contentType, _, _ = strings.Cut(contentType, ";")
	if m := mimetype.Lookup(strings.TrimSpace(contentType)); m != nil && m.Extension() != "" {
		return m.Extension()
	}
	return ".bin"
}
