// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for the
// secureai client.
//
// # Key Types
//
//   - Config: top-level configuration
//   - BackendConfig: backend base URL and timeouts
//   - SettingsConfig: which store holds the shared model settings record
//   - ServerConfig: address and rate limits for `secureai serve`
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (SECUREAI_*, or NEXT_PUBLIC_BACKEND_URL)
//   - .env in the working directory (never overrides a set variable)
//   - ~/.secureai/config.toml
//   - ~/.secureai/config.json
//   - Built-in defaults
//
// # Usage
//
//	_ = config.LoadDotEnv()
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Printf("CONFIG_WARNING | error=%v", err)
//	}
//	base := config.ResolveBackendURL(cfg)
package config
