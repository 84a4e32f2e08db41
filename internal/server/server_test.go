// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/secureai-tui/internal/config"
	"github.com/jeranaias/secureai-tui/internal/settings"
)

// =============================================================================
// HELPERS
// =============================================================================

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func newTestServer(store settings.Store) *Server {
	gate := settings.NewGate(store, quietLogger())
	return NewServer(gate, &Config{Logger: quietLogger()})
}

func do(t *testing.T, h http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeStatus(t *testing.T, rec *httptest.ResponseRecorder) settings.StatusResponse {
	t.Helper()
	var status settings.StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	return status
}

type failingStore struct{ settings.MemoryStore }

func (f *failingStore) Write(ctx context.Context, s settings.Settings) (settings.Settings, error) {
	return settings.Settings{}, errors.New("disk full")
}

// =============================================================================
// CONFIG TESTS
// =============================================================================

func TestConfigFrom(t *testing.T) {
	cfg := ConfigFrom(config.ServerConfig{Addr: ":9999"})
	assert.Equal(t, ":9999", cfg.Addr)
	assert.Equal(t, 5.0, cfg.RateLimit)
	assert.Equal(t, 10, cfg.RateBurst)

	cfg = ConfigFrom(config.ServerConfig{RateLimit: 2, RateBurst: 3})
	assert.Equal(t, "127.0.0.1:3000", cfg.Addr)
	assert.Equal(t, 2.0, cfg.RateLimit)
	assert.Equal(t, 3, cfg.RateBurst)
}

func TestNewServer_NilConfig(t *testing.T) {
	s := NewServer(settings.NewGate(settings.NewMemoryStore(), quietLogger()), nil)
	assert.Equal(t, "127.0.0.1:3000", s.Addr())
	assert.True(t, s.Limiter().Enabled())
}

// =============================================================================
// GET /api/settings
// =============================================================================

func TestGetSettings_EmptyStoreReturnsFallback(t *testing.T) {
	s := newTestServer(settings.NewMemoryStore())

	rec := do(t, s.Handler(), http.MethodGet, settings.APIPath, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("ETag"))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got settings.Settings
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.True(t, settings.Fallback().Equal(got))
}

func TestGetSettings_UnreadableStoreReturnsFallback(t *testing.T) {
	store := settings.NewMemoryStore()
	_, err := store.Write(context.Background(), settings.Settings{DefaultTextModel: "x", DefaultImageModel: "y"})
	require.NoError(t, err)
	store.FailReads = true

	rec := do(t, newTestServer(store).Handler(), http.MethodGet, settings.APIPath, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got settings.Settings
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "llama", got.DefaultTextModel)
	assert.Equal(t, "bakllava", got.DefaultImageModel)
}

func TestGetSettings_ETag(t *testing.T) {
	store := settings.NewMemoryStore()
	_, err := store.Write(context.Background(), settings.Fallback())
	require.NoError(t, err)

	rec := do(t, newTestServer(store).Handler(), http.MethodGet, settings.APIPath, "", nil)
	assert.Equal(t, `"1"`, rec.Header().Get("ETag"))
}

func TestGetSettings_CachedServesGateUntilReload(t *testing.T) {
	store := settings.NewMemoryStore()
	gate := settings.NewGate(store, quietLogger())
	_, err := gate.Save(context.Background(), settings.Settings{DefaultTextModel: "a", DefaultImageModel: "b"})
	require.NoError(t, err)
	h := NewServer(gate, &Config{Logger: quietLogger(), Cached: true}).Handler()

	// An outside write is invisible until the gate reloads.
	_, err = store.Write(context.Background(), settings.Settings{DefaultTextModel: "c", DefaultImageModel: "d"})
	require.NoError(t, err)

	var got settings.Settings
	rec := do(t, h, http.MethodGet, settings.APIPath, "", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "a", got.DefaultTextModel)
	assert.Equal(t, `"1"`, rec.Header().Get("ETag"))

	gate.Reload(context.Background())
	rec = do(t, h, http.MethodGet, settings.APIPath, "", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "c", got.DefaultTextModel)
	assert.Equal(t, `"2"`, rec.Header().Get("ETag"))

	// Its own saves are visible immediately.
	rec = do(t, h, http.MethodPost, settings.APIPath, `{"default_text_model":"e","default_image_model":"f"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, h, http.MethodGet, settings.APIPath, "", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "e", got.DefaultTextModel)
}

// =============================================================================
// POST /api/settings
// =============================================================================

func TestPostSettings_FillsDefaults(t *testing.T) {
	store := settings.NewMemoryStore()
	h := newTestServer(store).Handler()

	rec := do(t, h, http.MethodPost, settings.APIPath, `{}`, map[string]string{"Content-Type": "application/json"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeStatus(t, rec).Status)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, `"1"`, rec.Header().Get("ETag"))

	stored, err := store.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{}, stored.AllowedTextModels)
	assert.Equal(t, []string{}, stored.AllowedImageModels)
	assert.Equal(t, "llama", stored.DefaultTextModel)
	assert.Equal(t, "bakllava", stored.DefaultImageModel)
}

func TestPostSettings_OverwritesWholeRecord(t *testing.T) {
	store := settings.NewMemoryStore()
	h := newTestServer(store).Handler()

	do(t, h, http.MethodPost, settings.APIPath, `{"allowed_text_models":["a","b"],"default_text_model":"b"}`, nil)
	rec := do(t, h, http.MethodPost, settings.APIPath, `{"allowed_image_models":["v"],"default_image_model":"v"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, settings.APIPath, "", nil)
	var got settings.Settings
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Empty(t, got.AllowedTextModels)
	assert.Equal(t, "llama", got.DefaultTextModel)
	assert.Equal(t, []string{"v"}, got.AllowedImageModels)
}

func TestPostSettings_IfMatch(t *testing.T) {
	h := newTestServer(settings.NewMemoryStore()).Handler()

	rec := do(t, h, http.MethodPost, settings.APIPath, `{}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	first := rec.Header().Get("ETag")

	rec = do(t, h, http.MethodPost, settings.APIPath, `{}`, map[string]string{"If-Match": first})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEqual(t, first, rec.Header().Get("ETag"))

	// The first version is now stale.
	rec = do(t, h, http.MethodPost, settings.APIPath, `{}`, map[string]string{"If-Match": first})
	assert.Equal(t, http.StatusConflict, rec.Code)
	status := decodeStatus(t, rec)
	assert.Equal(t, "error", status.Status)
	assert.NotEmpty(t, status.Message)

	// "*" is unconditional.
	rec = do(t, h, http.MethodPost, settings.APIPath, `{}`, map[string]string{"If-Match": "*"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPostSettings_Errors(t *testing.T) {
	tests := []struct {
		name   string
		store  settings.Store
		body   string
		status int
		msg    string
	}{
		{"invalid json", settings.NewMemoryStore(), `{"allowed_text_models":`, http.StatusBadRequest, "invalid JSON"},
		{"wrong type", settings.NewMemoryStore(), `{"allowed_text_models":"llama"}`, http.StatusBadRequest, "invalid JSON"},
		{"default not allowed", settings.NewMemoryStore(), `{"allowed_text_models":["a"],"default_text_model":"b"}`, http.StatusBadRequest, "default_text_model"},
		{"store failure", &failingStore{}, `{}`, http.StatusInternalServerError, "disk full"},
		{"too large", settings.NewMemoryStore(), `{"allowed_text_models":["` + strings.Repeat("m", maxSettingsBody) + `"]}`, http.StatusRequestEntityTooLarge, "too large"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, newTestServer(tt.store).Handler(), http.MethodPost, settings.APIPath, tt.body, nil)
			assert.Equal(t, tt.status, rec.Code)
			status := decodeStatus(t, rec)
			assert.Equal(t, "error", status.Status)
			assert.Contains(t, status.Message, tt.msg)
		})
	}
}

func TestIfMatch(t *testing.T) {
	tests := map[string]string{
		"":        "",
		"*":       "",
		`"abc"`:   "abc",
		`W/"abc"`: "abc",
		"abc":     "abc",
		` "12" `:  "12",
	}
	for header, want := range tests {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("If-Match", header)
		assert.Equal(t, want, ifMatch(req), "If-Match %q", header)
	}
}

func TestUnknownMethod(t *testing.T) {
	rec := do(t, newTestServer(settings.NewMemoryStore()).Handler(), http.MethodDelete, settings.APIPath, "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

// =============================================================================
// REMOTE STORE ROUND TRIP
// =============================================================================

func TestRemoteStoreAgainstServer(t *testing.T) {
	dir := t.TempDir()
	srv := newTestServer(settings.NewFileStore(dir + "/settings.json"))
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	remote := settings.NewRemoteStore(ts.URL, time.Second)
	ctx := context.Background()

	_, err := remote.Read(ctx)
	require.NoError(t, err, "fallback is served even before the first save")

	saved, err := remote.Write(ctx, settings.Settings{
		AllowedTextModels: []string{"llama", "mistral"},
		DefaultTextModel:  "mistral",
	})
	require.NoError(t, err)
	require.NotEmpty(t, saved.Version)

	got, err := remote.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, saved.Version, got.Version)
	assert.Equal(t, "mistral", got.DefaultTextModel)
	assert.Equal(t, "bakllava", got.DefaultImageModel)

	// Another writer saves; our copy is stale.
	other := got.Clone()
	other.AllowedImageModels = []string{"bakllava"}
	_, err = remote.Write(ctx, other)
	require.NoError(t, err)
	got.DefaultTextModel = "llama"
	_, err = remote.Write(ctx, got)
	assert.True(t, settings.IsConflict(err))

	got.Version = ""
	got.DefaultTextModel = "phi"
	_, err = remote.Write(ctx, got)
	assert.True(t, settings.IsValidation(err))
}

// =============================================================================
// HEALTH AND LIFECYCLE
// =============================================================================

func TestHealth(t *testing.T) {
	rec := do(t, newTestServer(settings.NewMemoryStore()).Handler(), http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var health HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.GreaterOrEqual(t, health.UptimeSeconds, int64(0))
}

func TestServeAndShutdown(t *testing.T) {
	s := newTestServer(settings.NewMemoryStore())
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- s.Serve(l) }()

	url := "http://" + l.Addr().String() + "/health"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
	assert.ErrorIs(t, <-done, http.ErrServerClosed)
}

func TestShutdownBeforeStart(t *testing.T) {
	assert.NoError(t, newTestServer(settings.NewMemoryStore()).Shutdown(context.Background()))
}

// =============================================================================
// MIDDLEWARE TESTS
// =============================================================================

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := NewRateLimiter(0.001, 2)
	h := RateLimitMiddleware(limiter, quietLogger())(okHandler())

	rec := do(t, h, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Remaining"))

	rec = do(t, h, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = do(t, h, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1000", rec.Header().Get("Retry-After"))
	assert.Equal(t, 1, limiter.Clients())
}

func TestRateLimiter_PerClient(t *testing.T) {
	limiter := NewRateLimiter(0.001, 1)
	assert.True(t, limiter.Allow("10.0.0.1"))
	assert.False(t, limiter.Allow("10.0.0.1"))
	assert.True(t, limiter.Allow("10.0.0.2"))
	assert.Equal(t, 2, limiter.Clients())
}

func TestRateLimiter_Refills(t *testing.T) {
	limiter := NewRateLimiter(1, 1)
	now := time.Now()
	limiter.now = func() time.Time { return now }

	assert.True(t, limiter.Allow("ip"))
	assert.False(t, limiter.Allow("ip"))

	now = now.Add(1100 * time.Millisecond)
	assert.True(t, limiter.Allow("ip"))
}

func TestRateLimiter_DropsIdleClients(t *testing.T) {
	limiter := NewRateLimiter(1, 1)
	now := time.Now()
	limiter.now = func() time.Time { return now }

	limiter.Allow("a")
	limiter.Allow("b")
	assert.Equal(t, 2, limiter.Clients())

	now = now.Add(2 * clientIdleTTL)
	limiter.Allow("c")
	assert.Equal(t, 1, limiter.Clients())
}

func TestRateLimiter_Disabled(t *testing.T) {
	limiter := NewRateLimiter(0, 0)
	assert.False(t, limiter.Enabled())
	assert.Equal(t, "unlimited", limiter.String())

	h := RateLimitMiddleware(limiter, quietLogger())(okHandler())
	for i := 0; i < 50; i++ {
		assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/", "", nil).Code)
	}
	assert.Empty(t, do(t, h, http.MethodGet, "/", "", nil).Header().Get("X-RateLimit-Limit"))
}

func TestRecoveryMiddleware(t *testing.T) {
	var buf bytes.Buffer
	h := RecoveryMiddleware(log.New(&buf, "", 0))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := do(t, h, http.MethodGet, "/x", "", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, buf.String(), "PANIC_RECOVERED | method=GET path=/x error=boom")
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	h := LoggingMiddleware(log.New(&buf, "", 0))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	do(t, h, http.MethodPost, "/api/settings", "", nil)
	assert.Contains(t, buf.String(), "| POST /api/settings | 418 |")
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	rec := do(t, SecurityHeadersMiddleware()(okHandler()), http.MethodGet, "/", "", nil)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestCORSMiddleware(t *testing.T) {
	cfg := &CORSConfig{
		AllowedOrigins: []string{"http://localhost:3000", "*.example.com"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         60,
	}
	h := CORSMiddleware(cfg)(okHandler())

	rec := do(t, h, http.MethodOptions, "/", "", map[string]string{"Origin": "http://localhost:3000"})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, POST", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "ETag", rec.Header().Get("Access-Control-Expose-Headers"))

	rec = do(t, h, http.MethodGet, "/", "", map[string]string{"Origin": "https://app.example.com"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = do(t, h, http.MethodGet, "/", "", map[string]string{"Origin": "http://evil.test"})
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	wild := CORSMiddleware(&CORSConfig{AllowedOrigins: []string{"*"}})(okHandler())
	rec = do(t, wild, http.MethodGet, "/", "", map[string]string{"Origin": "http://any.test"})
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	do(t, Chain(mark("a"), mark("b"), mark("c"))(okHandler()), http.MethodGet, "/", "", nil)
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xri        string
		want       string
	}{
		{"direct", "203.0.113.5:1234", "", "", "203.0.113.5"},
		{"untrusted proxy header ignored", "203.0.113.5:1234", "1.2.3.4", "", "203.0.113.5"},
		{"trusted proxy xff", "127.0.0.1:1234", "1.2.3.4, 10.0.0.1", "", "1.2.3.4"},
		{"trusted proxy x-real-ip", "10.1.2.3:80", "", "5.6.7.8", "5.6.7.8"},
		{"trusted proxy bad header", "192.168.1.1:80", "not-an-ip", "", "192.168.1.1"},
		{"no port", "203.0.113.9", "", "", "203.0.113.9"},
		{"ipv6 loopback", "[::1]:80", "2001:db8::1", "", "2001:db8::1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				req.Header.Set("X-Real-IP", tt.xri)
			}
			assert.Equal(t, tt.want, GetClientIP(req))
		})
	}
}
