// Package httpapi assembles the service router.
package httpapi

import (
	"net/http"

	"mediagen/internal/http/handlers"
	mw "mediagen/internal/middleware"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Options carries the router's middleware configuration.
type Options struct {
	AllowedOrigins  []string
	DefaultLocale   string
	CountryLookup   mw.CountryLookup
	RateLimitPerSec float64
	RateLimitBurst  int
	StaticDir       string
	Logger          func(http.Handler) http.Handler
}

// NewRouter wires middleware and routes around the handler container.
func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		mw.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		mw.CORS(opts.AllowedOrigins),
		mw.I18N(opts.DefaultLocale, opts.CountryLookup),
	)
	if opts.Logger != nil {
		r.Use(opts.Logger)
	}
	if opts.RateLimitPerSec > 0 {
		r.Use(mw.RateLimit(opts.RateLimitPerSec, opts.RateLimitBurst))
	}

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/generate", func(r chi.Router) {
		r.Post("/video", app.VideoGenerate)
		r.Post("/avatar", app.AvatarGenerate)
		r.Post("/speech", app.SpeechGenerate)
	})
	r.Post("/v1/transcriptions", app.TranscriptionCreate)
	r.Get("/v1/generations", app.GenerationsList)

	// Materialized artifacts are served straight from the storage root so
	// their public URLs resolve without extra auth.
	if opts.StaticDir != "" {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.Dir(opts.StaticDir)))
		r.Get("/static/*", fileServer.ServeHTTP)
	}

	return r
}
