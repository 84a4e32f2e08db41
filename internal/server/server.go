// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/secureai-tui/internal/config"
	"github.com/jeranaias/secureai-tui/internal/settings"
)

// maxSettingsBody bounds a POSTed settings record.
const maxSettingsBody = 64 << 10

// ============================================================================
// CONFIGURATION
// ============================================================================

// Config holds server options.
type Config struct {
	// Addr is the listen address (default: 127.0.0.1:3000).
	Addr string

	// RateLimit is the sustained requests per second allowed per client.
	// Zero or less disables rate limiting.
	RateLimit float64

	// RateBurst is how many requests a client may make at once.
	RateBurst int

	// CORS configures cross-origin access. Nil uses DefaultCORSConfig.
	CORS *CORSConfig

	// Cached answers GET from the gate's in-memory record instead of
	// reading the store on every request. Only set it when something
	// reloads the gate on outside edits, e.g. a settings.Watcher.
	Cached bool

	// Logger receives request and lifecycle events. Nil uses the standard logger.
	Logger *log.Logger
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Addr:      "127.0.0.1:3000",
		RateLimit: 5,
		RateBurst: 10,
	}
}

// ConfigFrom builds a Config from the [server] section.
func ConfigFrom(c config.ServerConfig) *Config {
	cfg := DefaultConfig()
	if c.Addr != "" {
		cfg.Addr = c.Addr
	}
	if c.RateLimit != 0 {
		cfg.RateLimit = c.RateLimit
	}
	if c.RateBurst != 0 {
		cfg.RateBurst = c.RateBurst
	}
	return cfg
}

// ============================================================================
// SERVER
// ============================================================================

// Server serves the settings record held by a settings.Gate.
type Server struct {
	config  *Config
	gate    *settings.Gate
	router  *http.ServeMux
	limiter *RateLimiter
	logger  *log.Logger
	started time.Time

	mu     sync.Mutex
	server *http.Server
}

// NewServer creates a server over gate. A nil cfg uses DefaultConfig.
func NewServer(gate *settings.Gate, cfg *Config) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultConfig().Addr
	}
	if cfg.CORS == nil {
		cfg.CORS = DefaultCORSConfig()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	s := &Server{
		config:  cfg,
		gate:    gate,
		router:  http.NewServeMux(),
		limiter: NewRateLimiter(cfg.RateLimit, cfg.RateBurst),
		logger:  logger,
		started: time.Now(),
	}
	s.setupRoutes()
	return s
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.config.Addr
}

// Limiter returns the per-client rate limiter.
func (s *Server) Limiter() *RateLimiter {
	return s.limiter
}

// ============================================================================
// ROUTING
// ============================================================================

func (s *Server) setupRoutes() {
	s.router.HandleFunc("GET "+settings.APIPath, s.handleGetSettings)
	s.router.HandleFunc("POST "+settings.APIPath, s.handlePostSettings)
	s.router.HandleFunc("GET /health", s.handleHealth)
}

// Handler returns the router wrapped in the full middleware chain.
func (s *Server) Handler() http.Handler {
	return Chain(
		RecoveryMiddleware(s.logger),
		SecurityHeadersMiddleware(),
		LoggingMiddleware(s.logger),
		CORSMiddleware(s.config.CORS),
		RateLimitMiddleware(s.limiter, s.logger),
	)(s.router)
}

// ============================================================================
// SETTINGS HANDLERS
// ============================================================================

// handleGetSettings returns the record. It never fails: an unreadable store
// yields the fallback record, with no ETag since it was never stored.
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	var current settings.Settings
	if s.config.Cached {
		current = s.gate.Current()
	} else {
		current = s.gate.Load(r.Context())
	}
	setETag(w, current.Version)
	s.writeJSON(w, http.StatusOK, current)
}

func (s *Server) handlePostSettings(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSettingsBody)

	var incoming settings.Settings
	if err := json.NewDecoder(r.Body).Decode(&incoming); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeStatus(w, http.StatusRequestEntityTooLarge, "settings body too large")
			return
		}
		s.writeStatus(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	incoming.Version = ifMatch(r)

	stored, err := s.gate.Save(r.Context(), incoming)
	switch {
	case err == nil:
	case settings.IsConflict(err):
		s.writeStatus(w, http.StatusConflict, err.Error())
		return
	case settings.IsValidation(err):
		s.writeStatus(w, http.StatusBadRequest, err.Error())
		return
	default:
		s.writeStatus(w, http.StatusInternalServerError, err.Error())
		return
	}

	setETag(w, stored.Version)
	s.writeJSON(w, http.StatusOK, settings.StatusResponse{Status: "ok"})
}

// ifMatch returns the version the client expects, or "" for an
// unconditional write.
func ifMatch(r *http.Request) string {
	v := strings.TrimSpace(r.Header.Get("If-Match"))
	if v == "*" {
		return ""
	}
	v = strings.TrimPrefix(v, "W/")
	return strings.Trim(v, `"`)
}

func setETag(w http.ResponseWriter, version string) {
	if version != "" {
		w.Header().Set("ETag", `"`+version+`"`)
	}
}

// ============================================================================
// HEALTH
// ============================================================================

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Clients       int    `json:"clients"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
		Clients:       s.limiter.Clients(),
	})
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	l, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	return s.Serve(l)
}

// Serve accepts connections on l until Shutdown.
func (s *Server) Serve(l net.Listener) error {
	srv := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.mu.Lock()
	s.server = srv
	s.mu.Unlock()

	s.logger.Printf("SERVER_START | addr=%s rate_limit=%g burst=%d", l.Addr(), s.config.RateLimit, s.config.RateBurst)
	return srv.Serve(l)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	s.logger.Printf("SERVER_SHUTDOWN | clients=%d", s.limiter.Clients())
	return srv.Shutdown(ctx)
}

// ============================================================================
// HELPERS
// ============================================================================

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Printf("RESPONSE_WRITE_FAILED | error=%v", err)
	}
}

// writeStatus writes a {"status":"error","message":...} response.
func (s *Server) writeStatus(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, settings.StatusResponse{Status: "error", Message: message})
}
