package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wailsapp/mimetype"

	"vfi-client/internal/api"
	"vfi-client/internal/client"
	"vfi-client/internal/domain"
	"vfi-client/internal/output"
	"vfi-client/internal/protocol"
	"vfi-client/internal/upload"
)

// ExtractFromFile uploads a local video over the extraction socket.
func (a *App) ExtractFromFile(ctx context.Context, videoPath string) (*client.Handle, error) {
	name, data, err := readInput(videoPath)
	if err != nil {
		return nil, err
	}
	payload, err := upload.NewPayload(name, mediaType(data), data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", videoPath, err)
	}

	return a.StartJob(ctx, domain.JobRequest{
		Kind:    domain.JobKindExtractFrames,
		Payload: payload,
	})
}

// GenerateFromFiles uploads a start and end image and generates number frames between them.
func (a *App) GenerateFromFiles(ctx context.Context, startPath, endPath string, number int) (*client.Handle, error) {
	if number < 0 {
		return nil, fmt.Errorf("%w: number must not be negative", protocol.ErrInvalidParams)
	}

	startName, startData, err := readInput(startPath)
	if err != nil {
		return nil, err
	}
	endName, endData, err := readInput(endPath)
	if err != nil {
		return nil, err
	}

	remotePath, err := a.API.UploadFrames(ctx, []api.File{
		{Name: "0_" + startName, Data: startData},
		{Name: "1_" + endName, Data: endData},
	}, upload.FormatTag(startName, mediaType(startData), startData))
	if err != nil {
		return nil, fmt.Errorf("upload key frames: %w", err)
	}

	// The socket job is tagged with the start file's extension.
	extv := strings.TrimPrefix(strings.ToLower(filepath.Ext(startName)), ".")
	if extv == "" {
		extv = upload.FormatTag(startName, "", startData)
	}

	return a.StartJob(ctx, domain.JobRequest{
		Kind: domain.JobKindGenerateMidFrames,
		Params: domain.JobParams{
			ImagePath: remotePath,
			Index:     []int{0, 1},
			Number:    number,
			Extv:      extv,
		},
	})
}

// EaseFromFiles uploads an ordered frame sequence and eases it with counts
// inserted frames per gap.
func (a *App) EaseFromFiles(ctx context.Context, framePaths []string, counts []int) (*client.Handle, error) {
	if len(framePaths) < 2 {
		return nil, fmt.Errorf("%w: easing needs at least two frames", protocol.ErrInvalidParams)
	}
	if err := checkCounts(counts); err != nil {
		return nil, err
	}

	files := make([]api.File, 0, len(framePaths))
	var extv string
	for i, path := range framePaths {
		name, data, err := readInput(path)
		if err != nil {
			return nil, err
		}
		tag := upload.FormatTag(name, mediaType(data), data)
		if i == 0 {
			extv = tag
		}
		files = append(files, api.File{Name: fmt.Sprintf("frame_%d.%s", i+1, tag), Data: data})
	}

	remotePath, err := a.API.UploadFrames(ctx, files, extv)
	if err != nil {
		return nil, fmt.Errorf("upload frames: %w", err)
	}

	return a.StartJob(ctx, domain.JobRequest{
		Kind: domain.JobKindEaseMotion,
		Params: domain.JobParams{
			ImagePath:  remotePath,
			NumberList: counts,
			PixFmt:     "",
			Extv:       extv,
		},
	})
}

// EaseFromExtraction eases frames the server already holds from an extraction job.
func (a *App) EaseFromExtraction(ctx context.Context, extracted domain.JobResult, counts []int) (*client.Handle, error) {
	if strings.TrimSpace(extracted.RemotePath) == "" {
		return nil, fmt.Errorf("%w: extraction result has no storage path", protocol.ErrInvalidParams)
	}
	if err := checkCounts(counts); err != nil {
		return nil, err
	}

	return a.StartJob(ctx, domain.JobRequest{
		Kind: domain.JobKindEaseMotion,
		Params: domain.JobParams{
			ImagePath:  extracted.RemotePath,
			NumberList: counts,
			PixFmt:     extracted.PixFmt,
			Extv:       "png",
		},
	})
}

// ExportFrame downloads one stored frame into the output directory.
func (a *App) ExportFrame(ctx context.Context, remotePath string, index int) (string, error) {
	dl, err := a.API.DownloadFrame(ctx, remotePath, index)
	if err != nil {
		return "", fmt.Errorf("download frame: %w", err)
	}
	return output.WriteFile(a.GetSettings().OutputDir, output.ExportFrameName(index, dl.ContentType), dl.Data)
}

// ExportZip downloads every stored frame as one archive.
func (a *App) ExportZip(ctx context.Context, remotePath string) (string, error) {
	dl, err := a.API.DownloadZip(ctx, remotePath)
	if err != nil {
		return "", fmt.Errorf("download zip: %w", err)
	}
	return output.WriteFile(a.GetSettings().OutputDir, output.ZipFileName, dl.Data)
}

// ExportVideo renders stored frames into a video at fps.
func (a *App) ExportVideo(ctx context.Context, remotePath string, fps float64, pixfmt, videoExt string) (string, error) {
	if fps <= 0 {
		return "", errors.New("fps must be positive")
	}
	dl, err := a.API.DownloadVideo(ctx, remotePath, fps, pixfmt, videoExt)
	if err != nil {
		return "", fmt.Errorf("download video: %w", err)
	}
	return output.WriteFile(a.GetSettings().OutputDir, output.ExportVideoName(fps, videoExt), dl.Data)
}

func readInput(path string) (string, []byte, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil, errors.New("input path is empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("read input: %w", err)
	}
	if len(data) == 0 {
		return "", nil, fmt.Errorf("%s: %w", path, upload.ErrEmptyPayload)
	}
	return filepath.Base(path), data, nil
}

// mediaType sniffs image and video content; anything else defers to the file extension.
func mediaType(data []byte) string {
	detected := mimetype.Detect(data).String()
	if strings.HasPrefix(detected, "image/") || strings.HasPrefix(detected, "video/") {
		return detected
	}
	return ""
}

// checkCounts rejects counts before anything is uploaded.
func checkCounts(counts []int) error {
	total := 0
	for i, n := range counts {
		if n < 0 {
			return fmt.Errorf("%w: count %d is negative", protocol.ErrInvalidParams, i)
		}
		total += n
	}
	if total == 0 {
		return fmt.Errorf("%w: counts must add at least one frame", protocol.ErrInvalidParams)
	}
	return nil
}
