// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package settings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// =============================================================================
// REMOTE STORE
// =============================================================================

// APIPath is where the settings record is served.
const APIPath = "/api/settings"

// StatusResponse is the body of a POST to APIPath.
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// RemoteStore reads and writes the record through the settings endpoint of a
// running `secureai serve` (or the web frontend). The version token travels in
// the ETag / If-Match headers.
type RemoteStore struct {
	baseURL    string
	httpClient *http.Client
}

// NewRemoteStore returns a store talking to baseURL + APIPath.
func NewRemoteStore(baseURL string, timeout time.Duration) *RemoteStore {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RemoteStore{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Read implements Store.
func (r *RemoteStore) Read(ctx context.Context) (Settings, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+APIPath, nil)
	if err != nil {
		return Settings{}, err
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return Settings{}, fmt.Errorf("fetch settings: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Settings{}, fmt.Errorf("fetch settings: HTTP %d", resp.StatusCode)
	}

	var s Settings
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	s.Version = strings.Trim(resp.Header.Get("ETag"), `"`)
	return s, nil
}

// Write implements Store.
func (r *RemoteStore) Write(ctx context.Context, s Settings) (Settings, error) {
	body, err := json.Marshal(s)
	if err != nil {
		return Settings{}, fmt.Errorf("encode settings: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+APIPath, bytes.NewReader(body))
	if err != nil {
		return Settings{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.Version != "" {
		req.Header.Set("If-Match", `"`+s.Version+`"`)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return Settings{}, fmt.Errorf("save settings: %w", err)
	}
	defer resp.Body.Close()

	var status StatusResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	_ = json.Unmarshal(raw, &status)

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusConflict, http.StatusPreconditionFailed:
		return Settings{}, ErrVersionConflict
	case http.StatusBadRequest:
		return Settings{}, ValidationErrors{{Field: "settings", Message: status.Message}}
	default:
		if status.Message != "" {
			return Settings{}, fmt.Errorf("save settings: %s", status.Message)
		}
		return Settings{}, fmt.Errorf("save settings: HTTP %d", resp.StatusCode)
	}

	out := s.Clone()
	out.Version = strings.Trim(resp.Header.Get("ETag"), `"`)
	return out, nil
}
