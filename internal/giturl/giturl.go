// Package giturl derives stable local identifiers from remote git URLs.
package giturl

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidURL means the URL had a recognized scheme but not enough
	// path segments to name host, org and repo.
	ErrInvalidURL = errors.New("invalid repository URL format")

	// ErrInvalidSSH means an scp-like URL did not split into exactly
	// user@host:path.
	ErrInvalidSSH = errors.New("invalid SSH URL format")

	// ErrInvalidPath means an scp-like path had more than two segments.
	ErrInvalidPath = errors.New("invalid repository path format")

	// ErrUnsupported means the URL is neither HTTP(S) nor scp-like.
	ErrUnsupported = errors.New("unsupported URL format")

	// ErrEmptyName means no identifier could be extracted at all.
	ErrEmptyName = errors.New("could not extract repository name from URL")
)

// CanonicalName derives the host/org/repo identifier used as both display
// name and directory name for a remote URL. The result is stable for a
// given URL and safe to use as a path under the repository root.
//
//	https://example.com/acme/widgets.git -> example.com/acme/widgets
//	git@example.com:acme/widgets.git     -> example.com/acme/widgets
//	git@example.com:widgets.git          -> example.com/widgets
func CanonicalName(rawURL string) (string, error) {
	rawURL = strings.TrimRight(rawURL, "/")

	var name string

	switch {
	case strings.HasPrefix(rawURL, "http://"), strings.HasPrefix(rawURL, "https://"):
		_, rest, ok := strings.Cut(rawURL, "://")
		if !ok || rest == "" {
			return "", ErrInvalidURL
		}

		parts := strings.Split(rest, "/")
		if len(parts) < 3 {
			return "", ErrInvalidURL
		}

		host, org, repo := parts[0], parts[1], strings.TrimSuffix(parts[2], ".git")
		name = fmt.Sprintf("%s/%s/%s", host, org, repo)

	case strings.Contains(rawURL, "@"):
		// scp-like syntax: user@host:org/repo.git or user@host:repo.git
		atParts := strings.Split(rawURL, "@")
		if len(atParts) != 2 {
			return "", ErrInvalidSSH
		}

		colonParts := strings.Split(atParts[1], ":")
		if len(colonParts) != 2 {
			return "", ErrInvalidSSH
		}

		host := colonParts[0]
		pathParts := strings.Split(colonParts[1], "/")

		switch len(pathParts) {
		case 2:
			repo := strings.TrimSuffix(pathParts[1], ".git")
			name = fmt.Sprintf("%s/%s/%s", host, pathParts[0], repo)
		case 1:
			repo := strings.TrimSuffix(pathParts[0], ".git")
			name = fmt.Sprintf("%s/%s", host, repo)
		default:
			return "", ErrInvalidPath
		}

	default:
		return "", ErrUnsupported
	}

	if name == "" {
		return "", ErrEmptyName
	}

	// The identifier becomes a path under the repository root; no segment
	// may escape it or collapse to the root itself.
	for _, seg := range strings.Split(name, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return "", ErrInvalidPath
		}
	}

	// Defend against characters that are unsafe as path components.
	name = strings.ReplaceAll(name, ":", "_")
	name = strings.ReplaceAll(name, "@", "_")

	return name, nil
}
