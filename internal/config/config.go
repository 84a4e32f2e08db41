// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/jeranaias/secureai-tui/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete client configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	Backend  BackendConfig  `toml:"backend" json:"backend"`
	Settings SettingsConfig `toml:"settings" json:"settings"`
	Server   ServerConfig   `toml:"server" json:"server"`
	UI       UIConfig       `toml:"ui" json:"ui"`
	Cache    CacheConfig    `toml:"cache" json:"cache"`
}

// BackendConfig locates the document/LLM backend.
type BackendConfig struct {
	// URL is the backend base URL. All endpoint paths are joined onto it.
	URL string `toml:"url" json:"url"`

	// TimeoutSecs bounds non-streaming requests (listings, deletes, uploads).
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`

	// StreamTimeoutSecs bounds a whole streamed answer. 0 means no limit.
	StreamTimeoutSecs int `toml:"stream_timeout_secs" json:"stream_timeout_secs"`
}

// SettingsConfig selects where the shared model settings record lives.
type SettingsConfig struct {
	// Store is one of "file", "sqlite" or "remote".
	Store string `toml:"store" json:"store"`

	// Path is the settings.json file or the sqlite database path.
	// Ignored for the remote store.
	Path string `toml:"path" json:"path"`

	// Watch reloads the settings when the file changes on disk.
	Watch bool `toml:"watch" json:"watch"`
}

// ServerConfig configures `secureai serve`.
type ServerConfig struct {
	Addr      string  `toml:"addr" json:"addr"`
	RateLimit float64 `toml:"rate_limit" json:"rate_limit"` // requests per second per client
	RateBurst int     `toml:"rate_burst" json:"rate_burst"`
}

// UIConfig contains terminal rendering preferences.
type UIConfig struct {
	Theme    string `toml:"theme" json:"theme"` // "dark", "light" or "auto"
	Markdown bool   `toml:"markdown" json:"markdown"`
	Compact  bool   `toml:"compact" json:"compact"`
}

// CacheConfig tunes the client-side listing cache.
type CacheConfig struct {
	ListingSize    int `toml:"listing_size" json:"listing_size"`
	ListingTTLSecs int `toml:"listing_ttl_secs" json:"listing_ttl_secs"`
}

// Settings store kinds.
const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"
	StoreRemote = "remote"
)

// DefaultBackendURL is used when neither the config file nor the environment
// names a backend.
const DefaultBackendURL = "http://localhost:5050"

// Default returns a Config populated with default values.
func Default() *Config {
	return &Config{
		Version: "1",
		Backend: BackendConfig{
			URL:               DefaultBackendURL,
			TimeoutSecs:       30,
			StreamTimeoutSecs: 0,
		},
		Settings: SettingsConfig{
			Store: StoreFile,
			Path:  "",
			Watch: true,
		},
		Server: ServerConfig{
			Addr:      "127.0.0.1:3000",
			RateLimit: 5,
			RateBurst: 10,
		},
		UI: UIConfig{
			Theme:    "auto",
			Markdown: true,
			Compact:  false,
		},
		Cache: CacheConfig{
			ListingSize:    256,
			ListingTTLSecs: 30,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the configuration directory. SECUREAI_HOME overrides the
// default of ~/.secureai.
func ConfigDir() (string, error) {
	if dir := os.Getenv("SECUREAI_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".secureai"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// SettingsPath returns the settings record location for the configured store.
// An explicit settings.path wins; otherwise the file lives in ConfigDir.
func (c *Config) SettingsPath() (string, error) {
	if c.Settings.Path != "" {
		return c.Settings.Path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	if c.Settings.Store == StoreSQLite {
		return filepath.Join(dir, "settings.db"), nil
	}
	return filepath.Join(dir, "settings.json"), nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// LoadDotEnv loads .env from the working directory into the process
// environment. Variables that are already set are left alone. A missing
// file is not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// Load loads configuration from the config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last. A decode failure of an existing
// file is returned alongside the default config so callers can warn.
func Load() (*Config, error) {
	cfg := Default()
	var loadErr error

	if tomlPath, err := ConfigPathTOML(); err == nil {
		if _, statErr := os.Stat(tomlPath); statErr == nil {
			if err := LoadTOML(cfg, tomlPath); err != nil {
				loadErr = fmt.Errorf("failed to load TOML config: %w", err)
			} else {
				return finish(cfg)
			}
		}
	}

	if jsonPath, err := ConfigPathJSON(); err == nil {
		if _, statErr := os.Stat(jsonPath); statErr == nil {
			cfg = Default()
			if err := LoadJSON(cfg, jsonPath); err != nil {
				loadErr = errors.Join(loadErr, fmt.Errorf("failed to load JSON config: %w", err))
			} else {
				return finish(cfg)
			}
		}
	}

	cfg = Default()
	out, err := finish(cfg)
	if err != nil {
		return nil, err
	}
	return out, loadErr
}

// finish applies env overrides, defaults and validation.
func finish(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML loads configuration from a TOML file.
func LoadTOML(cfg *Config, path string) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON loads configuration from a JSON file.
func LoadJSON(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// LoadFromPath loads configuration from a specific file path with full validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	return finish(cfg)
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML saves the configuration to a TOML file with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var b strings.Builder
	b.WriteString("# secureai client configuration\n")
	b.WriteString("# Generated by secureai - edit with care\n")
	b.WriteString("\n")

	if err := toml.NewEncoder(&b).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFile(path, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON saves the configuration to a JSON file with 0600 permissions.
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if c.Backend.URL != "" {
		u, err := url.Parse(c.Backend.URL)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			errs = append(errs, ValidationError{
				Field:   "backend.url",
				Message: fmt.Sprintf("must be an http(s) URL, got %q", c.Backend.URL),
			})
		}
	}
	if c.Backend.TimeoutSecs < 0 {
		errs = append(errs, ValidationError{Field: "backend.timeout_secs", Message: "must not be negative"})
	}
	if c.Backend.StreamTimeoutSecs < 0 {
		errs = append(errs, ValidationError{Field: "backend.stream_timeout_secs", Message: "must not be negative"})
	}

	switch c.Settings.Store {
	case StoreFile, StoreSQLite, StoreRemote:
	default:
		errs = append(errs, ValidationError{
			Field:   "settings.store",
			Message: fmt.Sprintf("must be one of file, sqlite, remote; got %q", c.Settings.Store),
		})
	}

	if c.Server.RateLimit < 0 {
		errs = append(errs, ValidationError{Field: "server.rate_limit", Message: "must not be negative"})
	}
	if c.Server.RateBurst < 0 {
		errs = append(errs, ValidationError{Field: "server.rate_burst", Message: "must not be negative"})
	}

	switch c.UI.Theme {
	case "dark", "light", "auto":
	default:
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("must be dark, light or auto; got %q", c.UI.Theme),
		})
	}

	if c.Cache.ListingSize < 0 {
		errs = append(errs, ValidationError{Field: "cache.listing_size", Message: "must not be negative"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults fills zero values that have a meaningful default.
func (c *Config) SetDefaults() {
	d := Default()
	if c.Version == "" {
		c.Version = d.Version
	}
	if c.Backend.URL == "" {
		c.Backend.URL = d.Backend.URL
	}
	if c.Backend.TimeoutSecs == 0 {
		c.Backend.TimeoutSecs = d.Backend.TimeoutSecs
	}
	if c.Settings.Store == "" {
		c.Settings.Store = d.Settings.Store
	}
	if c.Server.Addr == "" {
		c.Server.Addr = d.Server.Addr
	}
	if c.Server.RateLimit == 0 {
		c.Server.RateLimit = d.Server.RateLimit
	}
	if c.Server.RateBurst == 0 {
		c.Server.RateBurst = d.Server.RateBurst
	}
	if c.UI.Theme == "" {
		c.UI.Theme = d.UI.Theme
	}
	if c.Cache.ListingSize == 0 {
		c.Cache.ListingSize = d.Cache.ListingSize
	}
	if c.Cache.ListingTTLSecs == 0 {
		c.Cache.ListingTTLSecs = d.Cache.ListingTTLSecs
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides:
//   - SECUREAI_BACKEND_URL: overrides backend.url
//   - NEXT_PUBLIC_BACKEND_URL: legacy name, used when SECUREAI_BACKEND_URL is unset
//   - SECUREAI_SETTINGS_STORE: overrides settings.store
//   - SECUREAI_SETTINGS_PATH: overrides settings.path
//   - SECUREAI_SERVER_ADDR: overrides server.addr
//   - SECUREAI_TIMEOUT: overrides backend.timeout_secs
func (c *Config) ApplyEnvOverrides() {
	if u := os.Getenv("SECUREAI_BACKEND_URL"); u != "" {
		c.Backend.URL = u
	} else if u := os.Getenv("NEXT_PUBLIC_BACKEND_URL"); u != "" {
		c.Backend.URL = u
	}

	if store := os.Getenv("SECUREAI_SETTINGS_STORE"); store != "" {
		c.Settings.Store = strings.ToLower(store)
	}
	if p := os.Getenv("SECUREAI_SETTINGS_PATH"); p != "" {
		c.Settings.Path = p
	}
	if addr := os.Getenv("SECUREAI_SERVER_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if t := os.Getenv("SECUREAI_TIMEOUT"); t != "" {
		if secs, err := strconv.Atoi(t); err == nil && secs >= 0 {
			c.Backend.TimeoutSecs = secs
		}
	}
}

// =============================================================================
// BACKEND URL RESOLUTION
// =============================================================================

// ResolveBackendURL returns the one base URL every endpoint is joined onto.
// It never returns a trailing slash.
func ResolveBackendURL(c *Config) string {
	base := DefaultBackendURL
	if c != nil && c.Backend.URL != "" {
		base = c.Backend.URL
	}
	return strings.TrimRight(base, "/")
}

// Timeout returns backend.timeout_secs as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Backend.TimeoutSecs) * time.Second
}

// StreamTimeout returns backend.stream_timeout_secs as a duration (0 = none).
func (c *Config) StreamTimeout() time.Duration {
	return time.Duration(c.Backend.StreamTimeoutSecs) * time.Second
}

// ListingTTL returns cache.listing_ttl_secs as a duration.
func (c *Config) ListingTTL() time.Duration {
	return time.Duration(c.Cache.ListingTTLSecs) * time.Second
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value by its dotted TOML key (e.g. "backend.url").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value by its dotted TOML key. String values are
// converted to the field's kind.
func (c *Config) Set(key string, value string) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s: expected integer, got %q", key, value)
		}
		field.SetInt(int64(n))
	case reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%s: expected number, got %q", key, value)
		}
		field.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s: expected true/false, got %q", key, value)
		}
		field.SetBool(b)
	default:
		return fmt.Errorf("%s is a section, not a value", key)
	}
	return nil
}

// lookup walks the struct by toml tag names.
func (c *Config) lookup(key string) (reflect.Value, error) {
	parts := strings.Split(key, ".")
	if key == "" || len(parts) == 0 {
		return reflect.Value{}, errors.New("empty key")
	}

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		if v.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a section", strings.Join(parts[:i], "."))
		}
		found := false
		for j := 0; j < v.NumField(); j++ {
			if tomlName(v.Type().Field(j)) == strings.ToLower(part) {
				v = v.Field(j)
				found = true
				break
			}
		}
		if !found {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
	}
	return v, nil
}

func tomlName(f reflect.StructField) string {
	tag := f.Tag.Get("toml")
	if tag == "" {
		return strings.ToLower(f.Name)
	}
	return strings.Split(tag, ",")[0]
}

// GetAllKeys returns every settable dotted key.
func GetAllKeys() []string {
	var keys []string
	var walk func(t reflect.Type, prefix string)
	walk = func(t reflect.Type, prefix string) {
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			name := prefix + tomlName(f)
			if f.Type.Kind() == reflect.Struct {
				walk(f.Type, name+".")
				continue
			}
			keys = append(keys, name)
		}
	}
	walk(reflect.TypeOf(Config{}), "")
	return keys
}

// String returns the config as indented JSON.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}
