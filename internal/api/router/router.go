package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/brightslot/ghl-importer/internal/credentials"
	httpmiddleware "github.com/brightslot/ghl-importer/internal/http/middleware"
	"github.com/brightslot/ghl-importer/internal/importer"
	"github.com/brightslot/ghl-importer/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger             *logging.Logger
	ImportHandler      *importer.Handler
	OAuthHandler       *credentials.OAuthHandler
	MetricsHandler     http.Handler
	AdminAuthSecret    string
	CORSAllowedOrigins []string
}

// New creates a new Chi router with all routes configured.
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

	r.Get("/health", handleHealth)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	// OAuth connect and callback are public: the callback is hit by the
	// remote authorization server, not by an authenticated operator.
	if cfg.OAuthHandler != nil {
		r.Mount("/oauth", cfg.OAuthHandler.Routes())
	}

	if cfg.ImportHandler != nil {
		r.Group(func(api chi.Router) {
			api.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			api.Mount("/api", cfg.ImportHandler.Routes())
		})
	}

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
