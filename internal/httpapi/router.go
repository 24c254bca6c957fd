package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"vfi-client/internal/bootstrap"
)

// NewRouter exposes the app's job controls over local HTTP.
func NewRouter(app *bootstrap.App, logger zerolog.Logger) http.Handler {
	h := &Handlers{app: app, logger: logger}

	r := chi.NewRouter()
	r.Use(RequestID, middleware.RealIP, middleware.Recoverer, Logger(logger))

	r.Get("/healthz", h.Health)
	r.Get("/diagnostics", h.Diagnostics)

	r.Route("/job", func(r chi.Router) {
		r.Get("/", h.CurrentJob)
		r.Post("/", h.StartJob)
		r.Post("/cancel", h.CancelJob)
		r.Get("/events", h.JobEvents)
		r.Get("/frames/{position}", h.Frame)
	})

	return r
}
