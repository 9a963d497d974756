package gitsync

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the engine. All of them can be checked with
// errors.Is after wrapping.

// ErrExists is returned by Clone when the target path already exists.
// The engine never overwrites an existing directory.
var ErrExists = errors.New("repository already exists")

// ErrPathMissing is returned by Sync when the record's local path is gone.
var ErrPathMissing = errors.New("repository path does not exist")

// ErrOpen is returned when the local path is not a usable clone.
var ErrOpen = errors.New("cannot open repository")

// ErrNoOrigin is returned when no remote named origin is configured.
var ErrNoOrigin = errors.New("no origin remote configured")

// wrapError adds context while preserving errors.Is checks.
func wrapError(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
