package server

import (
	"log/slog"
	"net/http"
)

// Route prefixes.
const (
	apiPrefix      = "/api/v1/generate"
	downloadPrefix = apiPrefix + "/download/"
)

// Config contains server configuration options.
type Config struct {
	// AllowedOrigins is the list of allowed CORS origins.
	AllowedOrigins []string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		AllowedOrigins: []string{"*"},
	}
}

// NewRouter creates a new HTTP router with all routes configured.
func NewRouter(h *Handlers, logger *slog.Logger, cfg Config) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("POST "+apiPrefix+"/video/start", h.StartVideo)
	mux.HandleFunc("GET "+apiPrefix+"/video/status/{task_id}", h.VideoStatus)
	mux.HandleFunc("GET "+downloadPrefix+"{filename}", h.Download)

	chain := ChainMiddleware(
		RecoveryMiddleware(logger),
		LoggingMiddleware(logger),
		CORSMiddleware(cfg.AllowedOrigins),
	)

	return chain(mux)
}
