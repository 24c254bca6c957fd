package bootstrap

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"vfi-client/internal/api"
	"vfi-client/internal/domain"
	"vfi-client/internal/jobs"
)

// fakeStore returns deterministic settings for App tests.
type fakeStore struct {
	mu       sync.Mutex
	settings domain.Settings
	saved    []domain.Settings
}

// Load returns preconfigured settings.
func (s *fakeStore) Load() (domain.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings, nil
}

// Save records saved settings.
func (s *fakeStore) Save(settings domain.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, settings)
	s.settings = settings
	return nil
}

// fakeAPI records uploads and serves canned downloads.
type fakeAPI struct {
	mu         sync.Mutex
	uploads    [][]api.File
	uploadExtv []string
	remotePath string
	download   api.Download
	videoArgs  []any
}

func (f *fakeAPI) UploadFrames(_ context.Context, files []api.File, extv string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, files)
	f.uploadExtv = append(f.uploadExtv, extv)
	return f.remotePath, nil
}

func (f *fakeAPI) DownloadFrame(context.Context, string, int) (api.Download, error) {
	return f.download, nil
}

func (f *fakeAPI) DownloadZip(context.Context, string) (api.Download, error) {
	return f.download, nil
}

func (f *fakeAPI) DownloadVideo(_ context.Context, imgPath string, fps float64, pixfmt, videoExt string) (api.Download, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.videoArgs = []any{imgPath, fps, pixfmt, videoExt}
	return f.download, nil
}

// jobServer answers every socket job with a script picked by endpoint path.
type jobServer struct {
	srv        *httptest.Server
	handshakes chan map[string]any
}

func newJobServer(t *testing.T, scripts map[string]func(ws *websocket.Conn)) *jobServer {
	t.Helper()
	js := &jobServer{handshakes: make(chan map[string]any, 8)}
	upgrader := websocket.Upgrader{}

	js.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer ws.Close()

		var handshake map[string]any
		for {
			kind, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			if kind != websocket.TextMessage {
				continue
			}
			if string(data) == "END" {
				break
			}
			if handshake == nil {
				_ = json.Unmarshal(data, &handshake)
			}
		}
		js.handshakes <- handshake

		if script, ok := scripts[r.URL.Path]; ok {
			script(ws)
		}
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(js.srv.Close)
	return js
}

func (js *jobServer) host() string {
	return strings.TrimPrefix(js.srv.URL, "http://")
}

func newTestApp(t *testing.T, host string) (*App, *fakeAPI) {
	t.Helper()
	store := &fakeStore{settings: domain.Settings{
		ServerHost: host,
		UserName:   "alice",
		OutputDir:  t.TempDir(),
		SaveFrames: true,
	}}
	app, err := NewWithStore(store, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewWithStore() error = %v", err)
	}
	t.Cleanup(app.Close)

	remote := &fakeAPI{remotePath: "/store/uploaded"}
	app.API = remote
	return app, remote
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func writeInput(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	return path
}

func waitJob(t *testing.T, app *App) domain.JobResult {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	result, err := app.ActiveJob().Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("job did not finish, state = %s", app.CurrentJob().State)
	}
	return result
}

// TestStartJobPublishesEventsAndSavesFrames checks the event flow and frame files.
func TestStartJobPublishesEventsAndSavesFrames(t *testing.T) {
	frame := pngBytes(t)
	js := newJobServer(t, map[string]func(*websocket.Conn){
		"/ws/extract-frames": func(ws *websocket.Conn) {
			_ = ws.WriteMessage(websocket.BinaryMessage, frame)
			_ = ws.WriteMessage(websocket.BinaryMessage, frame)
			_ = ws.WriteMessage(websocket.TextMessage, []byte(`{"status":"completed","img_path":"/jobs/42","fps":30,"pixfmt":"yuv420p"}`))
		},
	})
	app, _ := newTestApp(t, js.host())

	video := writeInput(t, "clip.mp4", []byte("not really a video"))
	h, err := app.ExtractFromFile(context.Background(), video)
	if err != nil {
		t.Fatalf("ExtractFromFile() error = %v", err)
	}
	result := waitJob(t, app)

	if hs := <-js.handshakes; hs["user_name"] != "alice" {
		t.Fatalf("handshake = %v", hs)
	}
	if result.RemotePath != "/jobs/42" || len(result.Frames) != 2 {
		t.Fatalf("result = %+v", result)
	}
	if app.CurrentJob().State != domain.JobStateCompleted {
		t.Fatalf("state = %s", app.CurrentJob().State)
	}

	events := app.JobEvents(0)
	assertEventTypeExists(t, events, jobs.EventTypeState)
	assertEventTypeExists(t, events, jobs.EventTypeFrame)
	assertEventTypeExists(t, events, jobs.EventTypeResult)

	for _, event := range events {
		if event.JobID != h.ID() {
			t.Fatalf("event job id = %q, want %q", event.JobID, h.ID())
		}
		if event.Type == jobs.EventTypeFrame && event.FramePath == "" {
			t.Fatalf("frame event without saved path: %+v", event)
		}
	}

	saved := filepath.Join(app.GetSettings().OutputDir, h.ID(), "frame_0001.png")
	if _, err := os.Stat(saved); err != nil {
		t.Fatalf("saved frame missing: %v", err)
	}
}

// TestCancelJobWithoutJob checks the idle guard.
func TestCancelJobWithoutJob(t *testing.T) {
	js := newJobServer(t, nil)
	app, _ := newTestApp(t, js.host())

	if err := app.CancelJob(); !errors.Is(err, jobs.ErrNoRunningJob) {
		t.Fatalf("CancelJob() error = %v, want %v", err, jobs.ErrNoRunningJob)
	}
	if app.CurrentJob().State != domain.JobStateIdle {
		t.Fatalf("state = %s, want idle", app.CurrentJob().State)
	}
}

// TestCancelJobPublishesCancelledState checks cancellation of a silent job.
func TestCancelJobPublishesCancelledState(t *testing.T) {
	js := newJobServer(t, nil)
	app, _ := newTestApp(t, js.host())

	if _, err := app.StartJob(context.Background(), domain.JobRequest{Kind: domain.JobKindExtractFrames}); err != nil {
		t.Fatalf("StartJob() error = %v", err)
	}
	<-js.handshakes

	if err := app.CancelJob(); err != nil {
		t.Fatalf("CancelJob() error = %v", err)
	}
	waitJob(t, app)

	if app.CurrentJob().State != domain.JobStateCancelled {
		t.Fatalf("state = %s, want cancelled", app.CurrentJob().State)
	}
	found := false
	for _, event := range app.JobEvents(0) {
		if event.Type == jobs.EventTypeState && event.State == domain.JobStateCancelled {
			found = true
		}
	}
	if !found {
		t.Fatal("cancelled state event not published")
	}
}

// TestGenerateFromFilesUploadsKeyFrames checks upload names and the generate handshake.
func TestGenerateFromFilesUploadsKeyFrames(t *testing.T) {
	js := newJobServer(t, map[string]func(*websocket.Conn){
		"/ws/vfi-service-index": func(ws *websocket.Conn) {
			_ = ws.WriteMessage(websocket.TextMessage, []byte(`{"status":"completed","img_path":"/jobs/gen"}`))
		},
	})
	app, remote := newTestApp(t, js.host())

	img := pngBytes(t)
	start := writeInput(t, "a.png", img)
	end := writeInput(t, "b.png", img)
	if _, err := app.GenerateFromFiles(context.Background(), start, end, 3); err != nil {
		t.Fatalf("GenerateFromFiles() error = %v", err)
	}
	waitJob(t, app)

	if len(remote.uploads) != 1 || remote.uploads[0][0].Name != "0_a.png" || remote.uploads[0][1].Name != "1_b.png" {
		t.Fatalf("uploads = %+v", remote.uploads)
	}
	if remote.uploadExtv[0] != "png" {
		t.Fatalf("upload extv = %q", remote.uploadExtv[0])
	}

	hs := <-js.handshakes
	if hs["img_path"] != "/store/uploaded" || hs["number"] != float64(3) || hs["extv"] != "png" {
		t.Fatalf("handshake = %v", hs)
	}
	index, _ := hs["index"].([]any)
	if len(index) != 2 || index[0] != float64(0) || index[1] != float64(1) {
		t.Fatalf("index = %v", hs["index"])
	}
}

// TestEaseFromFilesNamesFramesInOrder checks upload naming and the ease handshake.
func TestEaseFromFilesNamesFramesInOrder(t *testing.T) {
	js := newJobServer(t, map[string]func(*websocket.Conn){
		"/ws/vfi-service-lvl3": func(ws *websocket.Conn) {
			_ = ws.WriteMessage(websocket.TextMessage, []byte(`{"status":"completed","img_path":"/jobs/ease"}`))
		},
	})
	app, remote := newTestApp(t, js.host())

	img := pngBytes(t)
	paths := []string{writeInput(t, "x.png", img), writeInput(t, "y.png", img), writeInput(t, "z.png", img)}
	if _, err := app.EaseFromFiles(context.Background(), paths, []int{2, 0}); err != nil {
		t.Fatalf("EaseFromFiles() error = %v", err)
	}
	waitJob(t, app)

	names := []string{}
	for _, f := range remote.uploads[0] {
		names = append(names, f.Name)
	}
	if strings.Join(names, ",") != "frame_1.png,frame_2.png,frame_3.png" {
		t.Fatalf("names = %v", names)
	}

	hs := <-js.handshakes
	if hs["pixfmt"] != "" || hs["img_path"] != "/store/uploaded" || hs["extv"] != "png" {
		t.Fatalf("handshake = %v", hs)
	}
}

// TestEaseFromFilesRejectsBadInput checks validation happens before upload.
func TestEaseFromFilesRejectsBadInput(t *testing.T) {
	js := newJobServer(t, nil)
	app, remote := newTestApp(t, js.host())

	img := pngBytes(t)
	paths := []string{writeInput(t, "x.png", img), writeInput(t, "y.png", img)}
	if _, err := app.EaseFromFiles(context.Background(), paths, []int{0, 0}); err == nil {
		t.Fatal("expected error for zero counts")
	}
	if _, err := app.EaseFromFiles(context.Background(), paths[:1], []int{1}); err == nil {
		t.Fatal("expected error for a single frame")
	}
	if len(remote.uploads) != 0 {
		t.Fatalf("uploads = %d, want 0", len(remote.uploads))
	}
}

// TestEaseFromExtractionReusesRemoteFrames checks path and pixfmt carry over.
func TestEaseFromExtractionReusesRemoteFrames(t *testing.T) {
	js := newJobServer(t, map[string]func(*websocket.Conn){
		"/ws/vfi-service-lvl3": func(ws *websocket.Conn) {
			_ = ws.WriteMessage(websocket.TextMessage, []byte(`{"status":"completed","img_path":"/jobs/eased"}`))
		},
	})
	app, remote := newTestApp(t, js.host())

	extracted := domain.JobResult{RemotePath: "/jobs/42", PixFmt: "yuv420p", FPS: 24}
	if _, err := app.EaseFromExtraction(context.Background(), extracted, []int{1, 1}); err != nil {
		t.Fatalf("EaseFromExtraction() error = %v", err)
	}
	waitJob(t, app)

	hs := <-js.handshakes
	if hs["img_path"] != "/jobs/42" || hs["pixfmt"] != "yuv420p" || hs["extv"] != "png" {
		t.Fatalf("handshake = %v", hs)
	}
	if len(remote.uploads) != 0 {
		t.Fatal("extraction frames must not be uploaded again")
	}
}

// TestExportVideoWritesNamedFile checks download naming and arguments.
func TestExportVideoWritesNamedFile(t *testing.T) {
	js := newJobServer(t, nil)
	app, remote := newTestApp(t, js.host())
	remote.download = api.Download{ContentType: "video/mp4", Data: []byte("movie")}

	path, err := app.ExportVideo(context.Background(), "/jobs/42", 24, "yuv420p", "mp4")
	if err != nil {
		t.Fatalf("ExportVideo() error = %v", err)
	}
	if filepath.Base(path) != "result_video_24fps.mp4" {
		t.Fatalf("path = %q", path)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "movie" {
		t.Fatalf("read back = %q, %v", data, err)
	}
	if remote.videoArgs[0] != "/jobs/42" || remote.videoArgs[2] != "yuv420p" {
		t.Fatalf("video args = %v", remote.videoArgs)
	}

	if _, err := app.ExportVideo(context.Background(), "/jobs/42", 0, "", "mp4"); err == nil {
		t.Fatal("expected error for zero fps")
	}
}

// TestOpenOutputFolderUsesParentOfFile checks path resolution for the opener.
func TestOpenOutputFolderUsesParentOfFile(t *testing.T) {
	js := newJobServer(t, nil)
	app, _ := newTestApp(t, js.host())

	var opened string
	app.openPath = func(path string) error {
		opened = path
		return nil
	}

	file := writeInput(t, "frame.png", []byte("x"))
	if err := app.OpenOutputFolder(file); err != nil {
		t.Fatalf("OpenOutputFolder() error = %v", err)
	}
	if opened != filepath.Dir(file) {
		t.Fatalf("opened = %q, want %q", opened, filepath.Dir(file))
	}

	if err := app.OpenOutputFolder(""); err != nil {
		t.Fatalf("OpenOutputFolder(default) error = %v", err)
	}
	if opened != app.GetSettings().OutputDir {
		t.Fatalf("opened = %q, want output dir", opened)
	}
}

// TestSaveSettingsNormalizesAndPersists checks the save path.
func TestSaveSettingsNormalizesAndPersists(t *testing.T) {
	js := newJobServer(t, nil)
	app, _ := newTestApp(t, js.host())

	saved, err := app.SaveSettings(domain.Settings{
		ServerHost: " ws://" + js.host() + "/ ",
		OutputDir:  t.TempDir(),
	})
	if err != nil {
		t.Fatalf("SaveSettings() error = %v", err)
	}
	if saved.ServerHost != js.host() || saved.ChunkSize != 1<<20 || saved.UserName == "" {
		t.Fatalf("saved = %+v", saved)
	}
	if app.GetSettings() != saved {
		t.Fatal("app settings not updated")
	}
	if app.GetDiagnostics().HasFailures {
		t.Fatalf("diagnostics = %+v", app.GetDiagnostics().Items)
	}
}

// assertEventTypeExists verifies at least one event of given type exists.
func assertEventTypeExists(t *testing.T, events []jobs.Event, want jobs.EventType) {
	t.Helper()
	for _, event := range events {
		if event.Type == want {
			return
		}
	}
	t.Fatalf("event type %s not found", want)
}
