// Package config resolves the service configuration from an optional ini
// file in the application directory and environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/ini.v1"
)

// AppName is the application name used for directories and identification.
const AppName = "gitkeeper"

// Config holds everything the serve command needs.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string

	// DBPath is the SQLite database file.
	DBPath string

	// RepoRoot is the directory all clones live under.
	RepoRoot string

	// SessionTTL bounds session lifetime; zero means revocation-only.
	SessionTTL time.Duration

	// SyncHour is the local hour (0-23) of the nightly sweep.
	SyncHour int

	// SyncTimeout bounds each network operation against a remote.
	SyncTimeout time.Duration
}

// AppDir returns the gitkeeper configuration directory, creating nothing.
func AppDir() (string, error) {
	baseDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get config directory: %w", err)
	}

	return filepath.Join(baseDir, AppName), nil
}

// Default returns the built-in configuration rooted at the app directory.
func Default() (Config, error) {
	appDir, err := AppDir()
	if err != nil {
		return Config{}, err
	}

	return Config{
		Addr:        ":3030",
		DBPath:      filepath.Join(appDir, "gitkeeper.db"),
		RepoRoot:    filepath.Join(appDir, "repos"),
		SessionTTL:  0,
		SyncHour:    2,
		SyncTimeout: 5 * time.Minute,
	}, nil
}

// Load builds the effective configuration: defaults, then the ini file at
// <appdir>/gitkeeper.ini when present, then environment overrides.
func Load() (Config, error) {
	cfg, err := Default()
	if err != nil {
		return Config{}, err
	}

	appDir, _ := AppDir()

	if err := cfg.applyFile(filepath.Join(appDir, "gitkeeper.ini")); err != nil {
		return Config{}, err
	}

	cfg.applyEnv()

	if cfg.SyncHour < 0 || cfg.SyncHour > 23 {
		return Config{}, fmt.Errorf("sync hour %d out of range 0-23", cfg.SyncHour)
	}

	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	file, err := ini.Load(path)
	if err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}

	server := file.Section("server")
	if v := server.Key("addr").String(); v != "" {
		c.Addr = v
	}

	storage := file.Section("storage")
	if v := storage.Key("database").String(); v != "" {
		c.DBPath = v
	}
	if v := storage.Key("repo_root").String(); v != "" {
		c.RepoRoot = v
	}

	syncSec := file.Section("sync")
	if v, err := syncSec.Key("hour").Int(); err == nil && syncSec.HasKey("hour") {
		c.SyncHour = v
	}
	if v, err := syncSec.Key("timeout").Duration(); err == nil && syncSec.HasKey("timeout") {
		c.SyncTimeout = v
	}

	sess := file.Section("session")
	if v, err := sess.Key("ttl").Duration(); err == nil && sess.HasKey("ttl") {
		c.SessionTTL = v
	}

	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("GITKEEPER_ADDR"); v != "" {
		c.Addr = v
	}
	if v := os.Getenv("GITKEEPER_DB"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("GITKEEPER_REPO_ROOT"); v != "" {
		c.RepoRoot = v
	}
	if v := os.Getenv("GITKEEPER_SYNC_HOUR"); v != "" {
		if hour, err := strconv.Atoi(v); err == nil {
			c.SyncHour = hour
		}
	}
	if v := os.Getenv("GITKEEPER_SYNC_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.SyncTimeout = d
		}
	}
	if v := os.Getenv("GITKEEPER_SESSION_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.SessionTTL = d
		}
	}
}
