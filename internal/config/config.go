package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config captures the settings regard needs to reach the backend and keep
// local state.
type Config struct {
	APIURL     string
	DataDir    string
	LogLevel   string
	PollEvery  time.Duration
	GazeSource string
}

const (
	defaultConfigPath = "~/.config/regard/config.toml"
	defaultDataDir    = "~/.local/share/regard"
	defaultAPIURL     = "http://localhost:8000"
	defaultLogLevel   = "info"
	defaultPoll       = 30 * time.Second

	apiURLEnv = "REGARD_API_URL"
)

// Load locates and parses the regard config, falling back to defaults when missing.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		APIURL:    defaultAPIURL,
		DataDir:   mustExpand(defaultDataDir),
		LogLevel:  defaultLogLevel,
		PollEvery: defaultPoll,
	}

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			applyEnv(&cfg)
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw struct {
		APIURL      string `toml:"api_url"`
		DataDir     string `toml:"data_dir"`
		LogLevel    string `toml:"log_level"`
		PollSeconds int    `toml:"poll_seconds"`
		GazeSource  string `toml:"gaze_source"`
	}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if v := strings.TrimSpace(raw.APIURL); v != "" {
		cfg.APIURL = v
	}
	if v := strings.TrimSpace(raw.DataDir); v != "" {
		cfg.DataDir = mustExpand(v)
	}
	if v := strings.ToLower(strings.TrimSpace(raw.LogLevel)); v != "" {
		cfg.LogLevel = v
	}
	if raw.PollSeconds > 0 {
		cfg.PollEvery = time.Duration(raw.PollSeconds) * time.Second
	}
	if v := strings.TrimSpace(raw.GazeSource); v != "" {
		if v == "-" {
			cfg.GazeSource = v
		} else {
			cfg.GazeSource = mustExpand(v)
		}
	}
	applyEnv(&cfg)

	return cfg, nil
}

// StoragePath returns the SQLite file backing the local key-value storage.
func (c Config) StoragePath() string {
	return filepath.Join(c.dataDir(), "regard.db")
}

// LogPath returns the path of the structured log file.
func (c Config) LogPath() string {
	return filepath.Join(c.dataDir(), "regard.log")
}

func (c Config) dataDir() string {
	if strings.TrimSpace(c.DataDir) == "" {
		return mustExpand(defaultDataDir)
	}
	return c.DataDir
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(apiURLEnv)); v != "" {
		cfg.APIURL = v
	}
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
