package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}

	if cfg.Addr != ":3030" {
		t.Errorf("Addr = %q, want %q", cfg.Addr, ":3030")
	}
	if cfg.SyncHour != 2 {
		t.Errorf("SyncHour = %d, want 2", cfg.SyncHour)
	}
	if cfg.SessionTTL != 0 {
		t.Errorf("SessionTTL = %v, want 0", cfg.SessionTTL)
	}
	if cfg.SyncTimeout != 5*time.Minute {
		t.Errorf("SyncTimeout = %v, want 5m", cfg.SyncTimeout)
	}
	if filepath.Base(cfg.DBPath) != "gitkeeper.db" {
		t.Errorf("DBPath = %q, want a gitkeeper.db file", cfg.DBPath)
	}
}

func TestApplyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gitkeeper.ini")

	content := `[server]
addr = :9999

[storage]
database = /data/gk.db
repo_root = /data/repos

[sync]
hour = 4
timeout = 1m

[session]
ttl = 12h
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing ini: %v", err)
	}

	cfg, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}

	if err := cfg.applyFile(path); err != nil {
		t.Fatalf("applyFile: %v", err)
	}

	if cfg.Addr != ":9999" {
		t.Errorf("Addr = %q, want %q", cfg.Addr, ":9999")
	}
	if cfg.DBPath != "/data/gk.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "/data/gk.db")
	}
	if cfg.RepoRoot != "/data/repos" {
		t.Errorf("RepoRoot = %q, want %q", cfg.RepoRoot, "/data/repos")
	}
	if cfg.SyncHour != 4 {
		t.Errorf("SyncHour = %d, want 4", cfg.SyncHour)
	}
	if cfg.SyncTimeout != time.Minute {
		t.Errorf("SyncTimeout = %v, want 1m", cfg.SyncTimeout)
	}
	if cfg.SessionTTL != 12*time.Hour {
		t.Errorf("SessionTTL = %v, want 12h", cfg.SessionTTL)
	}
}

func TestApplyFileMissingIsNoop(t *testing.T) {
	cfg, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}

	before := cfg

	if err := cfg.applyFile(filepath.Join(t.TempDir(), "absent.ini")); err != nil {
		t.Fatalf("applyFile: %v", err)
	}

	if cfg != before {
		t.Error("missing config file changed the configuration")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("GITKEEPER_ADDR", ":8000")
	t.Setenv("GITKEEPER_DB", "/env/gk.db")
	t.Setenv("GITKEEPER_REPO_ROOT", "/env/repos")
	t.Setenv("GITKEEPER_SYNC_HOUR", "5")
	t.Setenv("GITKEEPER_SYNC_TIMEOUT", "90s")
	t.Setenv("GITKEEPER_SESSION_TTL", "24h")

	cfg, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}

	cfg.applyEnv()

	if cfg.Addr != ":8000" {
		t.Errorf("Addr = %q, want %q", cfg.Addr, ":8000")
	}
	if cfg.DBPath != "/env/gk.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "/env/gk.db")
	}
	if cfg.RepoRoot != "/env/repos" {
		t.Errorf("RepoRoot = %q, want %q", cfg.RepoRoot, "/env/repos")
	}
	if cfg.SyncHour != 5 {
		t.Errorf("SyncHour = %d, want 5", cfg.SyncHour)
	}
	if cfg.SyncTimeout != 90*time.Second {
		t.Errorf("SyncTimeout = %v, want 90s", cfg.SyncTimeout)
	}
	if cfg.SessionTTL != 24*time.Hour {
		t.Errorf("SessionTTL = %v, want 24h", cfg.SessionTTL)
	}
}
