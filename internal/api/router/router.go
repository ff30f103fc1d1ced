// Package router assembles the chi route tree for the scheduling API.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cvcwebsolutions/scheduling-api/internal/appointments"
	httpmiddleware "github.com/cvcwebsolutions/scheduling-api/internal/http/middleware"
	"github.com/cvcwebsolutions/scheduling-api/internal/zoom"
	"github.com/cvcwebsolutions/scheduling-api/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger *logging.Logger

	Appointments *appointments.Handler
	Manage       *appointments.ManageHandler
	Admin        *appointments.AdminHandler
	ZoomWebhook  *zoom.WebhookHandler

	MetricsHandler http.Handler

	AdminAuthSecret    string
	CORSAllowedOrigins []string

	// Booking rate limit, requests per second per client IP. Zero disables.
	BookingRateLimit float64
	BookingRateBurst int
}

// New creates a new chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/api", func(api chi.Router) {
		api.Route("/appointments", func(appts chi.Router) {
			appts.Get("/", cfg.Appointments.Availability)
			if cfg.BookingRateLimit > 0 {
				appts.With(httpmiddleware.RateLimit(cfg.BookingRateLimit, cfg.BookingRateBurst)).Post("/", cfg.Appointments.Create)
			} else {
				appts.Post("/", cfg.Appointments.Create)
			}
			appts.Route("/manage/{token}", func(m chi.Router) {
				m.Get("/", cfg.Manage.Get)
				m.Patch("/", cfg.Manage.Act)
			})
		})

		if cfg.ZoomWebhook != nil {
			api.Route("/webhooks/zoom", func(wh chi.Router) {
				wh.Get("/", cfg.ZoomWebhook.HandleValidation)
				wh.Post("/", cfg.ZoomWebhook.HandleEvent)
			})
		}
	})

	if cfg.Admin != nil && cfg.AdminAuthSecret != "" {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			admin.Get("/appointments", cfg.Admin.List)
			admin.Post("/appointments", cfg.Admin.Act)
			admin.Delete("/appointments", cfg.Admin.Delete)
		})
	}

	return r
}
