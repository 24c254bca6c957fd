package output

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ZipFileName is the archive name for a whole-job download.
const ZipFileName = "result_frames.zip"

// ExportFrameName names a single downloaded frame after its index and MIME subtype.
func ExportFrameName(index int, contentType string) string {
	return fmt.Sprintf("result_frame_%d.%s", index, subtype(contentType, "png"))
}

// ExportVideoName names a rendered video, e.g. result_video_23_976fps.mp4.
func ExportVideoName(fps float64, videoExt string) string {
	rate := strings.ReplaceAll(strconv.FormatFloat(fps, 'f', -1, 64), ".", "_")
	ext := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(videoExt)), ".")
	if ext == "" {
		ext = "mp4"
	}
	return fmt.Sprintf("result_video_%sfps.%s", rate, ext)
}

// WriteFile stores data as dir/name, creating dir when needed.
func WriteFile(dir, name string, data []byte) (string, error) {
	if strings.TrimSpace(dir) == "" {
		return "", fmt.Errorf("output directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	return path, nil
}

func subtype(contentType, fallback string) string {
	contentType, _, _ = strings.Cut(contentType, ";")
	_, sub, ok := strings.Cut(strings.TrimSpace(contentType), "/")
	if !ok || sub == "" {
		return fallback
	}
	return sub
}
