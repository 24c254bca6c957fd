package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/valyala/bytebufferpool"
)

// DefaultTimeout bounds one HTTP round trip. Video exports can be slow.
const DefaultTimeout = 5 * time.Minute

// File is one named upload part.
type File struct {
	Name string
	Data []byte
}

// Download is a binary body returned by the server.
type Download struct {
	ContentType string
	Data        []byte
}

// StatusError reports a non-2xx response.
type StatusError struct {
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: http %d", e.Path, e.Status)
	}
	return fmt.Sprintf("%s: http %d: %s", e.Path, e.Status, e.Body)
}

// Client talks to the server's plain HTTP endpoints around the socket jobs.
type Client struct {
	baseURL string
	http    *http.Client
	logger  zerolog.Logger
}

// New builds a client for host. secure selects https over http.
func New(host string, secure bool, httpClient *http.Client, logger zerolog.Logger) *Client {
	scheme := "http"
	if secure {
		scheme = "https"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	base := url.URL{Scheme: scheme, Host: strings.TrimSpace(host)}
	return &Client{
		baseURL: base.String(),
		http:    httpClient,
		logger:  logger,
	}
}

// UploadFrames posts files as multipart "files" parts with the format tag and
// returns the server-side storage path.
func (c *Client) UploadFrames(ctx context.Context, files []File, extv string) (string, error) {
	if len(files) == 0 {
		return "", fmt.Errorf("upload frames: no files")
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	form := multipart.NewWriter(buf)
	for _, f := range files {
		part, err := form.CreateFormFile("files", f.Name)
		if err != nil {
			return "", fmt.Errorf("upload frames: %w", err)
		}
		if _, err := part.Write(f.Data); err != nil {
			return "", fmt.Errorf("upload frames: %w", err)
		}
	}
	if err := form.WriteField("extv", extv); err != nil {
		return "", fmt.Errorf("upload frames: %w", err)
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("upload frames: %w", err)
	}

	body, _, err := c.post(ctx, "/upload-frames", form.FormDataContentType(), bytes.NewReader(buf.B))
	if err != nil {
		return "", err
	}

	path := decodePath(body)
	if path == "" {
		return "", fmt.Errorf("upload frames: empty storage path")
	}
	c.logger.Info().Int("files", len(files)).Str("remote_path", path).Msg("api: frames uploaded")
	return path, nil
}

// DownloadFrame fetches one stored frame.
func (c *Client) DownloadFrame(ctx context.Context, imgPath string, index int) (Download, error) {
	return c.download(ctx, "/download-frame", map[string]any{
		"img_path": imgPath,
		"index":    fmt.Sprint(index),
	})
}

// DownloadZip fetches every stored frame of a job as one archive.
func (c *Client) DownloadZip(ctx context.Context, imgPath string) (Download, error) {
	return c.download(ctx, "/download-total", map[string]any{
		"img_path": imgPath,
	})
}

// DownloadVideo renders stored frames into a video container.
func (c *Client) DownloadVideo(ctx context.Context, imgPath string, fps float64, pixfmt, videoExt string) (Download, error) {
	return c.download(ctx, "/download-video", map[string]any{
		"img_path": imgPath,
		"fps":      fps,
		"pixfmt":   pixfmt,
		"videoext": videoExt,
	})
}

func (c *Client) download(ctx context.Context, path string, params map[string]any) (Download, error) {
	payload, err := json.Marshal(params)
	if err != nil {
		return Download{}, fmt.Errorf("%s: %w", path, err)
	}

	body, contentType, err := c.post(ctx, path, "application/json", bytes.NewReader(payload))
	if err != nil {
		return Download{}, err
	}
	c.logger.Debug().Str("path", path).Int("bytes", len(body)).Str("content_type", contentType).Msg("api: downloaded")
	return Download{ContentType: contentType, Data: body}, nil
}

func (c *Client) post(ctx context.Context, path, contentType string, body io.Reader) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", path, err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("%s: read body: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", &StatusError{Path: path, Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// decodePath accepts a JSON string body or plain text.
func decodePath(body []byte) string {
	var path string
	if err := json.Unmarshal(body, &path); err == nil {
		return strings.TrimSpace(path)
	}
	return strings.TrimSpace(string(body))
}
