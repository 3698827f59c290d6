// Package config handles loading and parsing the regard configuration file.
//
// # Overview
//
// regard reads a small TOML file to discover the backend base URL and where
// local state and logs live. Everything is optional; a missing file yields
// defaults so the client works out of the box against a development backend.
//
// # Configuration Discovery
//
// The Load function follows this resolution order:
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/regard/config.toml (default)
//  3. If the config file doesn't exist, fall back to hardcoded defaults
//  4. If the file exists but fields are missing/empty, use defaults
//  5. REGARD_API_URL, when set, overrides api_url
//
// # Default Values
//
//   - Config file: ~/.config/regard/config.toml
//   - Backend: http://localhost:8000
//   - Data directory: ~/.local/share/regard
//   - Local storage: <data_dir>/regard.db
//   - Log file: <data_dir>/regard.log
//   - Poll interval: 30 seconds
//
// # TOML Format
//
//	api_url = "http://localhost:8000"
//	data_dir = "~/.local/share/regard"
//	log_level = "info"
//	poll_seconds = 30
//	gaze_source = "/run/tracker/gaze.ndjson"   # "-" reads stdin
//
// # Error Handling
//
// Load returns errors for path expansion failures, read errors other than
// os.ErrNotExist, and TOML parse errors. A missing file is not an error.
package config
