// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package backend provides the HTTP client for the SecureAI document and
// language-model backend.
//
// Every path is joined onto a single base URL. Generation endpoints return
// the raw *http.Response for the stream package to consume; listing and
// CRUD endpoints decode JSON and are cached briefly.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jeranaias/secureai-tui/internal/config"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ClientError represents an error from the backend client.
type ClientError struct {
	Type       ErrorType
	Message    string
	StatusCode int
	Cause      error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// Is matches by type, so errors.Is(err, ErrNotFound) holds for any
// not-found response regardless of message.
func (e *ClientError) Is(target error) bool {
	t, ok := target.(*ClientError)
	return ok && t.Type != ErrTypeUnknown && t.Type == e.Type
}

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeConnection
	ErrTypeTimeout
	ErrTypeNotFound
	ErrTypeBadRequest
	ErrTypeServer
	ErrTypeInvalidResponse
)

// Sentinel errors for easy checking.
var (
	ErrUnreachable = &ClientError{Type: ErrTypeConnection, Message: "backend is not reachable"}
	ErrTimeout     = &ClientError{Type: ErrTypeTimeout, Message: "request timed out"}
	ErrNotFound    = &ClientError{Type: ErrTypeNotFound, Message: "not found"}
	ErrBadRequest  = &ClientError{Type: ErrTypeBadRequest, Message: "bad request"}
)

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsUnreachable reports whether the backend could not be contacted.
func IsUnreachable(err error) bool {
	return errors.Is(err, ErrUnreachable) || errors.Is(err, ErrTimeout)
}

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds configuration options for the backend client.
type ClientConfig struct {
	// BaseURL is the backend base URL (default: http://localhost:5050).
	BaseURL string

	// Timeout for non-streaming requests (default: 30s).
	Timeout time.Duration

	// StreamTimeout bounds a whole generation request. Zero means no limit;
	// streams are normally ended by cancellation instead.
	StreamTimeout time.Duration

	// CacheSize is the number of listing responses kept (default: 256).
	// A negative value disables the cache.
	CacheSize int

	// CacheTTL is how long a cached listing stays fresh (default: 30s).
	CacheTTL time.Duration

	// Logger receives request events. Nil uses the standard logger.
	Logger *log.Logger
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:   config.DefaultBackendURL,
		Timeout:   30 * time.Second,
		CacheSize: 256,
		CacheTTL:  30 * time.Second,
	}
}

// ConfigFrom builds a ClientConfig from the loaded client configuration.
func ConfigFrom(c *config.Config) *ClientConfig {
	return &ClientConfig{
		BaseURL:       config.ResolveBackendURL(c),
		Timeout:       c.Timeout(),
		StreamTimeout: c.StreamTimeout(),
		CacheSize:     c.Cache.ListingSize,
		CacheTTL:      c.ListingTTL(),
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client handles communication with the backend.
//
// The Client is safe for concurrent use.
type Client struct {
	config       *ClientConfig
	httpClient   *http.Client
	streamClient *http.Client
	cache        *ListingCache
	logger       *log.Logger
}

// NewClient creates a new client with default configuration.
func NewClient() *Client {
	return NewClientWithConfig(DefaultConfig())
}

// NewClientWithConfig creates a new client with custom configuration.
func NewClientWithConfig(cfg *ClientConfig) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = config.DefaultBackendURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.CacheSize == 0 {
		cfg.CacheSize = 256
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	var cache *ListingCache
	if cfg.CacheSize > 0 {
		cache = NewListingCache(cfg.CacheSize, cfg.CacheTTL)
	}

	return &Client{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		// Generation responses are read for as long as the model talks;
		// cancellation comes from the caller's context.
		streamClient: &http.Client{Timeout: cfg.StreamTimeout},
		cache:        cache,
		logger:       logger,
	}
}

// BaseURL returns the resolved base URL.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// Cache returns the listing cache, or nil when disabled.
func (c *Client) Cache() *ListingCache {
	return c.cache
}

// URL joins path onto the base URL.
func (c *Client) URL(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.config.BaseURL + path
}

// =============================================================================
// REQUEST HELPERS
// =============================================================================

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.URL(path), body)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req, nil
}

// send performs req and maps transport failures to ClientErrors.
func (c *Client) send(hc *http.Client, req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		c.logger.Printf("BACKEND_UNREACHABLE | method=%s path=%s error=%v", req.Method, req.URL.Path, err)
		return nil, transportError(req.Context(), err)
	}
	c.logger.Printf("BACKEND_REQUEST | method=%s path=%s status=%d duration_ms=%d",
		req.Method, req.URL.Path, resp.StatusCode, time.Since(start).Milliseconds())
	return resp, nil
}

func transportError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return &ClientError{Type: ErrTypeTimeout, Message: ErrTimeout.Message, Cause: ctx.Err()}
		}
		return &ClientError{Type: ErrTypeConnection, Message: "request cancelled", Cause: ctx.Err()}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &ClientError{Type: ErrTypeTimeout, Message: ErrTimeout.Message, Cause: err}
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}
	return &ClientError{Type: ErrTypeConnection, Message: ErrUnreachable.Message, Cause: err}
}

// statusError builds the error for a non-2xx response, preferring the
// message the backend put in its body.
func statusError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	msg := backendMessage(data)
	if msg == "" {
		msg = resp.Status
	}

	typ := ErrTypeServer
	switch {
	case resp.StatusCode == http.StatusNotFound:
		typ = ErrTypeNotFound
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		typ = ErrTypeBadRequest
	}
	return &ClientError{Type: typ, Message: msg, StatusCode: resp.StatusCode}
}

// backendMessage pulls a human message out of an error body. The backend
// uses {"error": ...}, {"message": ...} or plain text.
func backendMessage(data []byte) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &body) == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Message != "" {
			return body.Message
		}
	}
	s := strings.TrimSpace(string(data))
	if strings.HasPrefix(s, "{") || strings.HasPrefix(s, "<") {
		return ""
	}
	return s
}

// getJSON fetches path and decodes the body into out.
func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return err
	}
	return c.doJSON(req, out)
}

// postJSON sends in as JSON and decodes the response into out (if non-nil).
func (c *Client) postJSON(ctx context.Context, path string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to marshal request", Cause: err}
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(body), "application/json")
	if err != nil {
		return err
	}
	return c.doJSON(req, out)
}

func (c *Client) doJSON(req *http.Request, out interface{}) error {
	resp, err := c.send(c.httpClient, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			// Empty body on success.
			return nil
		}
		return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode response", Cause: err}
	}
	return nil
}

// cached returns the cached value for key or calls load and caches it.
func cached[T any](c *Client, key string, load func() (T, error)) (T, error) {
	if c.cache != nil {
		if v, ok := c.cache.Get(key); ok {
			if t, ok := v.(T); ok {
				return t, nil
			}
		}
	}
	v, err := load()
	if err != nil {
		return v, err
	}
	if c.cache != nil {
		c.cache.Add(key, v)
	}
	return v, nil
}

func escapeSegment(s string) string {
	return url.PathEscape(s)
}

func pathf(format string, segments ...string) string {
	args := make([]interface{}, len(segments))
	for i, s := range segments {
		args[i] = escapeSegment(s)
	}
	return fmt.Sprintf(format, args...)
}
