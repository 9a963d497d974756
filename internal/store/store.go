// Package store defines the persistence contract for repository and user
// records.
package store

import (
	"errors"
	"time"

	"github.com/inovacc/gitkeeper/internal/model"
)

var (
	// ErrNotFound is returned when the addressed record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate is returned when an insert collides with a unique
	// column (repository url, local path or username).
	ErrDuplicate = errors.New("record already exists")

	// ErrInvalidStatus is returned for a status value outside the enum.
	ErrInvalidStatus = errors.New("invalid repository status")
)

// Store is the source of truth for repository and user records. All status
// mutations go through it; nothing is cached across requests.
type Store interface {
	// Repositories
	InsertRepo(url, name, localPath string) (*model.Repository, error)
	ListRepos() ([]model.Repository, error)
	ListReposPage(offset, limit int) ([]model.Repository, error)
	CountRepos() (int64, error)
	GetRepoByURL(url string) (*model.Repository, error)
	DeleteRepoByURL(url string) error
	// SetRepoStatus records a sync outcome. Pending is not a valid
	// argument: it is set once at registration and never restored.
	SetRepoStatus(url string, status model.Status) error
	TouchLastSynced(url string, at time.Time) error

	// Users
	GetUser(username string) (*model.User, error)
	UpsertUser(username, passwordHash string) error
	UpdateUserPassword(username, passwordHash string) error
	DeleteUser(username string) error
	ListUsers() ([]model.User, error)

	Ping() error
	Close() error
}
