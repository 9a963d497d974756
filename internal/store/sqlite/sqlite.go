// Package sqlite provides SQLite-backed storage for gitkeeper.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/inovacc/gitkeeper/internal/model"
	"github.com/inovacc/gitkeeper/internal/store"
)

// Store implements the store.Store interface using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ store.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path and applies
// all pending migrations.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite doesn't handle multiple writers well
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	migrator := NewMigrator(db)
	if err := migrator.MigrateUp(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks if the database is accessible.
func (s *Store) Ping() error {
	return s.db.Ping()
}

func translateErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return store.ErrDuplicate
	}
	return err
}

// ============================================================================
// Repository operations
// ============================================================================

const repoColumns = `id, uid, url, name, local_path, status, last_synced, created_at`

func scanRepo(row interface{ Scan(...any) error }) (*model.Repository, error) {
	var (
		rec        model.Repository
		lastSynced sql.NullTime
	)

	err := row.Scan(&rec.ID, &rec.UID, &rec.URL, &rec.Name, &rec.LocalPath,
		&rec.Status, &lastSynced, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}

	if lastSynced.Valid {
		t := lastSynced.Time
		rec.LastSynced = &t
	}

	return &rec, nil
}

func (s *Store) InsertRepo(url, name, localPath string) (*model.Repository, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := &model.Repository{
		UID:       uuid.New().String(),
		URL:       url,
		Name:      name,
		LocalPath: localPath,
		Status:    model.StatusPending,
		CreatedAt: time.Now().UTC(),
	}

	res, err := s.db.Exec(`
		INSERT INTO repositories (uid, url, name, local_path, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.UID, rec.URL, rec.Name, rec.LocalPath, string(rec.Status), rec.CreatedAt,
	)
	if err != nil {
		return nil, translateErr(err)
	}

	rec.ID, err = res.LastInsertId()
	if err != nil {
		return nil, err
	}

	return rec, nil
}

func (s *Store) ListRepos() ([]model.Repository, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT ` + repoColumns + ` FROM repositories
		ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectRepos(rows)
}

func (s *Store) ListReposPage(offset, limit int) ([]model.Repository, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT `+repoColumns+` FROM repositories
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectRepos(rows)
}

func collectRepos(rows *sql.Rows) ([]model.Repository, error) {
	repos := make([]model.Repository, 0)

	for rows.Next() {
		rec, err := scanRepo(rows)
		if err != nil {
			return nil, err
		}
		repos = append(repos, *rec)
	}

	return repos, rows.Err()
}

func (s *Store) CountRepos() (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	err := s.db.QueryRow(`SELECT COUNT(*) FROM repositories`).Scan(&count)

	return count, err
}

func (s *Store) GetRepoByURL(url string) (*model.Repository, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, err := scanRepo(s.db.QueryRow(`
		SELECT `+repoColumns+` FROM repositories WHERE url = ?`, url))
	if err != nil {
		return nil, translateErr(err)
	}

	return rec, nil
}

func (s *Store) DeleteRepoByURL(url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM repositories WHERE url = ?`, url)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}

	return nil
}

func (s *Store) SetRepoStatus(url string, status model.Status) error {
	// Pending is set once at registration; a record never returns to it.
	if !status.Valid() || status == model.StatusPending {
		return store.ErrInvalidStatus
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`UPDATE repositories SET status = ? WHERE url = ?`,
		string(status), url)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}

	return nil
}

func (s *Store) TouchLastSynced(url string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`UPDATE repositories SET last_synced = ? WHERE url = ?`,
		at.UTC(), url)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}

	return nil
}

// ============================================================================
// User operations
// ============================================================================

func (s *Store) GetUser(username string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var u model.User

	err := s.db.QueryRow(`
		SELECT id, username, password_hash, created_at
		FROM users WHERE username = ?`, username).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		return nil, translateErr(err)
	}

	return &u, nil
}

// UpsertUser creates the user or replaces its password hash.
func (s *Store) UpsertUser(username, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO users (username, password_hash, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (username) DO UPDATE SET password_hash = excluded.password_hash`,
		username, passwordHash, time.Now().UTC(),
	)

	return err
}

func (s *Store) UpdateUserPassword(username, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`UPDATE users SET password_hash = ? WHERE username = ?`,
		passwordHash, username)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}

	return nil
}

func (s *Store) DeleteUser(username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM users WHERE username = ?`, username)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}

	return nil
}

func (s *Store) ListUsers() ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, username, password_hash, created_at
		FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]model.User, 0)

	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}

	return users, rows.Err()
}
