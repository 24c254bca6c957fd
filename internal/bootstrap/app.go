package bootstrap

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pkg/browser"
	"github.com/rs/zerolog"

	"vfi-client/internal/api"
	"vfi-client/internal/client"
	"vfi-client/internal/config"
	"vfi-client/internal/diagnostics"
	"vfi-client/internal/domain"
	"vfi-client/internal/jobs"
)

// remoteAPI isolates the server's plain HTTP endpoints behind an interface.
type remoteAPI interface {
	UploadFrames(ctx context.Context, files []api.File, extv string) (string, error)
	DownloadFrame(ctx context.Context, imgPath string, index int) (api.Download, error)
	DownloadZip(ctx context.Context, imgPath string) (api.Download, error)
	DownloadVideo(ctx context.Context, imgPath string, fps float64, pixfmt, videoExt string) (api.Download, error)
}

// App wires configuration, the job session, event history and output handling.
type App struct {
	Settings    domain.Settings
	Store       config.Store
	Diagnostics domain.DiagnosticReport
	API         remoteAPI
	checker     *diagnostics.Checker
	logger      zerolog.Logger
	openPath    func(string) error

	mu      sync.Mutex
	session *client.Session
	active  *client.Handle
	events  *jobs.EventBus
}

// New builds the application from .env files, the settings file in the user's
// home directory and VFI_* variables.
func New(logger zerolog.Logger) (*App, error) {
	config.LoadDotEnv()
	return NewWithStore(config.NewJSONStore(config.DefaultSettingsPath()), logger)
}

// NewWithStore builds the application with settings from store and runs startup diagnostics.
func NewWithStore(store config.Store, logger zerolog.Logger) (*App, error) {
	settings, err := loadSettings(store)
	if err != nil {
		return nil, err
	}

	a := &App{
		Store:    store,
		checker:  diagnostics.NewChecker(),
		logger:   logger,
		openPath: browser.OpenFile,
		events:   jobs.NewEventBus(1000),
	}
	a.configure(settings)
	a.Diagnostics = a.checker.Run(settings)
	if a.Diagnostics.HasFailures {
		logger.Warn().Msg("app: startup diagnostics reported failures")
	}
	return a, nil
}

// loadSettings applies environment overrides and defaults to stored settings.
func loadSettings(store config.Store) (domain.Settings, error) {
	settings, err := store.Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	settings, err = config.ApplyEnv(settings)
	if err != nil {
		return domain.Settings{}, fmt.Errorf("apply environment: %w", err)
	}
	return config.Normalize(settings), nil
}

// configure swaps in a session and API client for settings. Any running job
// on the previous session is cancelled.
func (a *App) configure(settings domain.Settings) {
	a.mu.Lock()
	prev := a.session
	a.Settings = settings
	a.session = client.NewSession(client.Options{
		Host:          settings.ServerHost,
		Secure:        settings.Secure,
		ChunkSize:     settings.ChunkSize,
		ProgressSteps: settings.ProgressSteps,
		IdleTimeout:   time.Duration(settings.IdleTimeoutSeconds) * time.Second,
		Logger:        a.logger,
	})
	a.API = api.New(settings.ServerHost, settings.Secure, nil, a.logger)
	a.mu.Unlock()

	if prev != nil {
		prev.Close()
	}
}

// GetDiagnostics returns the latest cached diagnostics report.
func (a *App) GetDiagnostics() domain.DiagnosticReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Diagnostics
}

// GetSettings returns the settings in effect.
func (a *App) GetSettings() domain.Settings {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Settings
}

// SaveSettings normalizes and persists settings, reconnects and refreshes diagnostics.
func (a *App) SaveSettings(settings domain.Settings) (domain.Settings, error) {
	normalized := config.Normalize(settings)
	if err := a.Store.Save(normalized); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	a.configure(normalized)
	report := a.checker.Run(normalized)

	a.mu.Lock()
	a.Diagnostics = report
	a.mu.Unlock()

	return normalized, nil
}

// RefreshDiagnostics reruns checks against the settings in effect.
func (a *App) RefreshDiagnostics() domain.DiagnosticReport {
	report := a.checker.Run(a.GetSettings())

	a.mu.Lock()
	a.Diagnostics = report
	a.mu.Unlock()
	return report
}

// StartJob runs req on the session, superseding any active job. Progress,
// frames and the outcome are published to the event history.
func (a *App) StartJob(ctx context.Context, req domain.JobRequest) (*client.Handle, error) {
	a.mu.Lock()
	session := a.session
	settings := a.Settings
	a.mu.Unlock()

	if strings.TrimSpace(req.User) == "" {
		req.User = settings.UserName
	}

	sink := newJobSink(a, settings)
	h, err := session.Start(ctx, req, sink)
	if err != nil {
		return nil, err
	}
	sink.bind(h.ID())

	a.mu.Lock()
	a.active = h
	a.mu.Unlock()

	a.logger.Info().Str("job_id", h.ID()).Str("kind", string(req.Kind)).Msg("app: job started")
	return h, nil
}

// CancelJob cancels the active job, if any.
func (a *App) CancelJob() error {
	a.mu.Lock()
	active := a.active
	a.mu.Unlock()

	if active == nil {
		return jobs.ErrNoRunningJob
	}
	return active.Cancel()
}

// ActiveJob returns the handle of the most recent job, or nil.
func (a *App) ActiveJob() *client.Handle {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active
}

// CurrentJob returns current job metadata and state.
func (a *App) CurrentJob() domain.Job {
	active := a.ActiveJob()
	if active == nil {
		return domain.Job{State: domain.JobStateIdle}
	}
	return active.Job()
}

// CurrentResult returns what the most recent job has received so far.
func (a *App) CurrentResult() (domain.JobResult, bool) {
	active := a.ActiveJob()
	if active == nil {
		return domain.JobResult{}, false
	}
	return active.Result(), true
}

// JobEvents returns all events with sequence greater than sinceSeq.
func (a *App) JobEvents(sinceSeq int64) []jobs.Event {
	return a.events.Since(sinceSeq)
}

// WaitJobEvents blocks until events newer than sinceSeq exist or ctx ends.
func (a *App) WaitJobEvents(ctx context.Context, sinceSeq int64) ([]jobs.Event, error) {
	return a.events.Wait(ctx, sinceSeq)
}

// OpenOutputFolder opens the given path (or configured output dir) in file manager.
func (a *App) OpenOutputFolder(path string) error {
	target := strings.TrimSpace(path)
	if target == "" {
		target = a.GetSettings().OutputDir
	}
	if target == "" {
		return fmt.Errorf("output path is empty")
	}

	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("resolve output path: %w", err)
	}

	openPath := target
	if !info.IsDir() {
		openPath = filepath.Dir(target)
	}

	if err := a.openPath(openPath); err != nil {
		return fmt.Errorf("launch file manager: %w", err)
	}
	return nil
}

// Close cancels the active job and releases the session.
func (a *App) Close() {
	a.mu.Lock()
	session := a.session
	a.mu.Unlock()
	if session != nil {
		session.Close()
	}
}

// publishEvent stores event history.
func (a *App) publishEvent(event jobs.Event) jobs.Event {
	return a.events.Publish(event)
}
