package model

import "time"

// Status is the sync state persisted for a repository record.
type Status string

const (
	// StatusPending is set once at registration, before the first sync attempt.
	StatusPending Status = "pending"

	// StatusSynced means the last sync attempt completed without a provider error.
	StatusSynced Status = "synced"

	// StatusError means the last sync attempt failed.
	StatusError Status = "error"
)

// Valid reports whether s is one of the known status values.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusSynced, StatusError:
		return true
	}
	return false
}

// Repository is one registered remote repository and its local clone.
type Repository struct {
	// ID is the primary key
	ID int64 `json:"id"`

	// UID is the unique identifier for the repository
	UID string `json:"uid"`

	// URL is the remote repository URL as supplied by the operator
	URL string `json:"url"`

	// Name is the canonical host/org/repo identifier, also the directory
	// name of the clone under the repository root
	Name string `json:"name"`

	// LocalPath is the local path where the repository was cloned
	LocalPath string `json:"local_path"`

	// Status is the outcome of the last sync attempt
	Status Status `json:"status"`

	// LastSynced is the time of the last successful sync, nil until the first one
	LastSynced *time.Time `json:"last_synced,omitempty"`

	// CreatedAt is set once at registration
	CreatedAt time.Time `json:"created_at"`
}

// User is an operator account allowed to authenticate against the API.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
