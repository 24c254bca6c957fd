package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"vfi-client/internal/bootstrap"
	"vfi-client/internal/client"
	"vfi-client/internal/domain"
	"vfi-client/internal/jobs"
	"vfi-client/internal/protocol"
	"vfi-client/internal/upload"
)

// maxEventWait caps how long an events request may be held open.
const maxEventWait = 30 * time.Second

// Handlers serves the job routes.
type Handlers struct {
	app    *bootstrap.App
	logger zerolog.Logger
}

type startJobRequest struct {
	Kind       domain.JobKind `json:"kind"`
	User       string         `json:"user"`
	VideoPath  string         `json:"videoPath"`
	ImagePath  string         `json:"imgPath"`
	Index      []int          `json:"index"`
	Number     int            `json:"number"`
	NumberList []int          `json:"numberList"`
	PixFmt     string         `json:"pixfmt"`
	Extv       string         `json:"extv"`
}

type jobView struct {
	Job        domain.Job          `json:"job"`
	Status     domain.ResultStatus `json:"status"`
	Progress   float64             `json:"progress"`
	Frames     int                 `json:"frames"`
	RemotePath string              `json:"remotePath,omitempty"`
	FPS        float64             `json:"fps,omitempty"`
	PixFmt     string              `json:"pixfmt,omitempty"`
	Error      string              `json:"error,omitempty"`
}

type errorBody struct {
	Error string `json:"error"`
}

func (h *Handlers) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// Health reports liveness.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	h.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Diagnostics returns the latest startup checks.
func (h *Handlers) Diagnostics(w http.ResponseWriter, _ *http.Request) {
	h.json(w, http.StatusOK, h.app.GetDiagnostics())
}

// CurrentJob returns the most recent job and a summary of its result.
func (h *Handlers) CurrentJob(w http.ResponseWriter, _ *http.Request) {
	h.json(w, http.StatusOK, viewOf(h.app.ActiveJob(), h.app.CurrentJob()))
}

// StartJob starts a job from a JSON body. Extraction reads the video from videoPath.
func (h *Handlers) StartJob(w http.ResponseWriter, r *http.Request) {
	var body startJobRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.json(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body"})
		return
	}

	// The job outlives the request.
	ctx := context.WithoutCancel(r.Context())

	var (
		handle *client.Handle
		err    error
	)
	if body.Kind == domain.JobKindExtractFrames {
		if body.VideoPath == "" {
			h.json(w, http.StatusBadRequest, errorBody{Error: "videoPath is required for extraction"})
			return
		}
		handle, err = h.app.ExtractFromFile(ctx, body.VideoPath)
	} else {
		handle, err = h.app.StartJob(ctx, domain.JobRequest{
			Kind: body.Kind,
			User: body.User,
			Params: domain.JobParams{
				ImagePath:  body.ImagePath,
				Index:      body.Index,
				Number:     body.Number,
				NumberList: body.NumberList,
				PixFmt:     body.PixFmt,
				Extv:       body.Extv,
			},
		})
	}
	if err != nil {
		h.json(w, statusFor(err), errorBody{Error: err.Error()})
		return
	}

	h.json(w, http.StatusAccepted, viewOf(handle, handle.Job()))
}

// CancelJob cancels the active job.
func (h *Handlers) CancelJob(w http.ResponseWriter, _ *http.Request) {
	if err := h.app.CancelJob(); err != nil {
		h.json(w, statusFor(err), errorBody{Error: err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// JobEvents returns events after ?since=N. With ?wait=D (a Go duration, at
// most maxEventWait) the request holds until an event arrives or D passes.
func (h *Handlers) JobEvents(w http.ResponseWriter, r *http.Request) {
	var since int64
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			h.json(w, http.StatusBadRequest, errorBody{Error: "since must be a non-negative integer"})
			return
		}
		since = parsed
	}

	events := h.app.JobEvents(since)
	if raw := r.URL.Query().Get("wait"); raw != "" && len(events) == 0 {
		wait, err := time.ParseDuration(raw)
		if err != nil || wait < 0 {
			h.json(w, http.StatusBadRequest, errorBody{Error: "wait must be a duration such as 10s"})
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), min(wait, maxEventWait))
		events, _ = h.app.WaitJobEvents(ctx, since)
		cancel()
	}
	if events == nil {
		events = []jobs.Event{}
	}
	h.json(w, http.StatusOK, events)
}

// Frame serves the bytes of one received frame of the most recent job.
func (h *Handlers) Frame(w http.ResponseWriter, r *http.Request) {
	position, err := strconv.Atoi(chi.URLParam(r, "position"))
	if err != nil || position < 0 {
		h.json(w, http.StatusBadRequest, errorBody{Error: "invalid frame position"})
		return
	}

	result, ok := h.app.CurrentResult()
	if !ok || position >= len(result.Frames) {
		h.json(w, http.StatusNotFound, errorBody{Error: "frame not found"})
		return
	}

	frame := result.Frames[position]
	w.Header().Set("Content-Type", frame.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(frame.Data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(frame.Data); err != nil {
		h.logger.Debug().Err(err).Int("position", position).Msg("http: frame write")
	}
}

func viewOf(handle *client.Handle, job domain.Job) jobView {
	view := jobView{Job: job}
	if handle == nil {
		return view
	}
	result := handle.Result()
	view.Status = result.Status
	view.Progress = result.Progress
	view.Frames = len(result.Frames)
	view.RemotePath = result.RemotePath
	view.FPS = result.FPS
	view.PixFmt = result.PixFmt
	if err := handle.Err(); err != nil {
		view.Error = err.Error()
	}
	return view
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, protocol.ErrUnknownKind),
		errors.Is(err, protocol.ErrInvalidParams),
		errors.Is(err, upload.ErrEmptyPayload),
		errors.Is(err, fs.ErrNotExist):
		return http.StatusBadRequest
	case errors.Is(err, jobs.ErrNoRunningJob):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
