// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points ConfigDir at a temp dir and clears every override variable.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("SECUREAI_HOME", dir)
	for _, k := range []string{
		"SECUREAI_BACKEND_URL", "NEXT_PUBLIC_BACKEND_URL", "SECUREAI_SETTINGS_STORE",
		"SECUREAI_SETTINGS_PATH", "SECUREAI_SERVER_ADDR", "SECUREAI_TIMEOUT",
	} {
		t.Setenv(k, "")
	}
	return dir
}

func TestLoad_DefaultsWhenNoFile(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultBackendURL, cfg.Backend.URL)
	assert.Equal(t, StoreFile, cfg.Settings.Store)
	assert.Equal(t, 30, cfg.Backend.TimeoutSecs)
}

func TestLoad_TOML(t *testing.T) {
	dir := isolate(t)
	content := `
[backend]
url = "http://backend.internal:5050/"
timeout_secs = 10

[settings]
store = "sqlite"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://backend.internal:5050/", cfg.Backend.URL)
	assert.Equal(t, 10, cfg.Backend.TimeoutSecs)
	assert.Equal(t, StoreSQLite, cfg.Settings.Store)
	assert.Equal(t, "http://backend.internal:5050", ResolveBackendURL(cfg))

	// Untouched sections keep defaults.
	assert.Equal(t, "auto", cfg.UI.Theme)
}

func TestLoad_JSONFallback(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"),
		[]byte(`{"backend":{"url":"https://ai.example.com"}}`), 0600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://ai.example.com", cfg.Backend.URL)
}

func TestLoad_BrokenTOMLReturnsDefaultsWithError(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte("[backend\nurl="), 0600))

	cfg, err := Load()
	require.Error(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, DefaultBackendURL, cfg.Backend.URL)
}

func TestApplyEnvOverrides(t *testing.T) {
	isolate(t)

	t.Run("legacy backend variable", func(t *testing.T) {
		t.Setenv("NEXT_PUBLIC_BACKEND_URL", "http://legacy:5050")
		cfg := Default()
		cfg.ApplyEnvOverrides()
		assert.Equal(t, "http://legacy:5050", cfg.Backend.URL)
	})

	t.Run("new variable wins over legacy", func(t *testing.T) {
		t.Setenv("NEXT_PUBLIC_BACKEND_URL", "http://legacy:5050")
		t.Setenv("SECUREAI_BACKEND_URL", "http://primary:5050")
		cfg := Default()
		cfg.ApplyEnvOverrides()
		assert.Equal(t, "http://primary:5050", cfg.Backend.URL)
	})

	t.Run("store and timeout", func(t *testing.T) {
		t.Setenv("SECUREAI_SETTINGS_STORE", "SQLITE")
		t.Setenv("SECUREAI_TIMEOUT", "5")
		cfg := Default()
		cfg.ApplyEnvOverrides()
		assert.Equal(t, StoreSQLite, cfg.Settings.Store)
		assert.Equal(t, 5, cfg.Backend.TimeoutSecs)
	})
}

func TestLoadDotEnv(t *testing.T) {
	isolate(t)
	// godotenv never overrides a variable that exists, even when empty.
	os.Unsetenv("SECUREAI_SERVER_ADDR")
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("SECUREAI_SERVER_ADDR=0.0.0.0:9999\n"), 0600))

	// Missing files are ignored.
	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))

	require.NoError(t, LoadDotEnv(envFile))

	cfg := Default()
	cfg.ApplyEnvOverrides()
	assert.Equal(t, "0.0.0.0:9999", cfg.Server.Addr)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"bad url", func(c *Config) { c.Backend.URL = "localhost:5050" }, "backend.url"},
		{"bad store", func(c *Config) { c.Settings.Store = "redis" }, "settings.store"},
		{"bad theme", func(c *Config) { c.UI.Theme = "neon" }, "ui.theme"},
		{"negative timeout", func(c *Config) { c.Backend.TimeoutSecs = -1 }, "backend.timeout_secs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var verrs ValidateErrors
			require.ErrorAs(t, err, &verrs)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestResolveBackendURL(t *testing.T) {
	assert.Equal(t, DefaultBackendURL, ResolveBackendURL(nil))
	assert.Equal(t, DefaultBackendURL, ResolveBackendURL(&Config{}))
	assert.Equal(t, "http://x:1", ResolveBackendURL(&Config{Backend: BackendConfig{URL: "http://x:1///"}}))
}

func TestGetSet(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Set("backend.url", "http://other:5050"))
	require.NoError(t, cfg.Set("backend.timeout_secs", "12"))
	require.NoError(t, cfg.Set("ui.markdown", "false"))
	require.NoError(t, cfg.Set("server.rate_limit", "2.5"))

	v, err := cfg.Get("backend.url")
	require.NoError(t, err)
	assert.Equal(t, "http://other:5050", v)
	assert.Equal(t, 12, cfg.Backend.TimeoutSecs)
	assert.False(t, cfg.UI.Markdown)
	assert.Equal(t, 2.5, cfg.Server.RateLimit)

	assert.Error(t, cfg.Set("backend.timeout_secs", "soon"))
	assert.Error(t, cfg.Set("backend", "x"))
	_, err = cfg.Get("backend.nope")
	assert.Error(t, err)
}

func TestGetAllKeys(t *testing.T) {
	keys := GetAllKeys()
	assert.Contains(t, keys, "backend.url")
	assert.Contains(t, keys, "settings.store")
	assert.Contains(t, keys, "cache.listing_ttl_secs")
	assert.NotContains(t, keys, "backend")
}

func TestSaveTOMLRoundTrip(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := Default()
	cfg.Backend.URL = "http://saved:5050"
	require.NoError(t, SaveTOML(cfg, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# secureai client configuration")

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "http://saved:5050", loaded.Backend.URL)
}

func TestSettingsPath(t *testing.T) {
	dir := isolate(t)

	cfg := Default()
	p, err := cfg.SettingsPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "settings.json"), p)

	cfg.Settings.Store = StoreSQLite
	p, _ = cfg.SettingsPath()
	assert.Equal(t, filepath.Join(dir, "settings.db"), p)

	cfg.Settings.Path = "/tmp/custom.json"
	p, _ = cfg.SettingsPath()
	assert.Equal(t, "/tmp/custom.json", p)
}
