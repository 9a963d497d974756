// Package gitsync owns all interaction with remote git repositories: the
// initial clone and the conservative fetch/fast-forward sync that never
// discards local history.
package gitsync

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/inovacc/gitkeeper/internal/giturl"
	"github.com/inovacc/gitkeeper/internal/model"
)

// DefaultRemoteName is the only remote the engine reconciles against.
const DefaultRemoteName = "origin"

// fetchRefSpec mirrors every remote branch into its remote-tracking
// reference without touching worktree content.
var fetchRefSpec = config.RefSpec("refs/heads/*:refs/remotes/origin/*")

// Engine clones remote repositories under a root directory and keeps the
// clones synchronized. It owns the root exclusively once clones exist.
type Engine struct {
	root    string
	timeout time.Duration
	logger  *slog.Logger
}

// NewEngine creates an engine rooted at root, creating the directory if
// needed. A timeout of zero leaves network operations unbounded.
func NewEngine(root string, timeout time.Duration) (*Engine, error) {
	if err := os.MkdirAll(root, 0750); err != nil {
		return nil, wrapError(err, "creating repository root %s", root)
	}

	return &Engine{
		root:    root,
		timeout: timeout,
		logger:  slog.Default(),
	}, nil
}

// WithLogger sets the logger for the engine.
func (e *Engine) WithLogger(logger *slog.Logger) *Engine {
	e.logger = logger
	return e
}

// Root returns the repository root directory.
func (e *Engine) Root() string { return e.root }

// LocalPath computes the clone location for a remote URL without touching
// the filesystem. The error is a giturl validation error.
func (e *Engine) LocalPath(url string) (string, error) {
	name, err := giturl.CanonicalName(url)
	if err != nil {
		return "", err
	}

	return e.pathFor(name), nil
}

func (e *Engine) pathFor(name string) string {
	return filepath.Join(e.root, filepath.FromSlash(name))
}

func (e *Engine) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, e.timeout)
}

// Clone performs a full clone of url into root/<canonical name> and
// returns the canonical name together with the local path, the single
// derivation of the pair a repository record persists. It fails with
// ErrExists when the path is already occupied; it never overwrites. The
// caller is responsible for persisting the repository record immediately
// afterwards.
func (e *Engine) Clone(ctx context.Context, url string) (name, localPath string, err error) {
	name, err = giturl.CanonicalName(url)
	if err != nil {
		return "", "", err
	}

	localPath = e.pathFor(name)

	if _, err := os.Stat(localPath); err == nil {
		return "", "", wrapError(ErrExists, "%s", localPath)
	}

	e.logger.Info("cloning repository", "url", url, "path", localPath)

	if err := e.cloneInto(ctx, url, localPath); err != nil {
		return "", "", err
	}

	return name, localPath, nil
}

func (e *Engine) cloneInto(ctx context.Context, url, localPath string) error {
	ctx, cancel := e.opCtx(ctx)
	defer cancel()

	_, err := git.PlainCloneContext(ctx, localPath, false, &git.CloneOptions{
		URL:        url,
		RemoteName: DefaultRemoteName,
	})
	if err != nil {
		// A repository already at the path was not created by this clone
		// and must survive; a concurrent clone of the same URL can lose
		// the race between the Stat check and PlainCloneContext.
		if errors.Is(err, git.ErrRepositoryAlreadyExists) {
			return wrapError(ErrExists, "%s", localPath)
		}

		// A failed clone must not occupy the target path.
		_ = os.RemoveAll(localPath)
		return wrapError(err, "cloning %s", url)
	}

	return nil
}

// Sync reconciles one local clone with its origin remote. It fetches all
// branches into their remote-tracking references and then either
// fast-forwards a clean current branch, reports that nothing was needed,
// or skips: uncommitted local modifications and diverged histories are
// left exactly as found.
func (e *Engine) Sync(ctx context.Context, rec *model.Repository) (Outcome, error) {
	if _, err := os.Stat(rec.LocalPath); err != nil {
		return Outcome{}, wrapError(ErrPathMissing, "%s", rec.LocalPath)
	}

	repo, err := git.PlainOpen(rec.LocalPath)
	if err != nil {
		return Outcome{}, wrapError(ErrOpen, "%s: %v", rec.LocalPath, err)
	}

	remote, err := repo.Remote(DefaultRemoteName)
	if err != nil {
		if errors.Is(err, git.ErrRemoteNotFound) {
			return Outcome{}, wrapError(ErrNoOrigin, "%s", rec.URL)
		}
		return Outcome{}, wrapError(err, "resolving remote for %s", rec.URL)
	}

	e.logger.Info("syncing repository", "url", rec.URL, "path", rec.LocalPath)

	fetchCtx, cancel := e.opCtx(ctx)
	defer cancel()

	err = remote.FetchContext(fetchCtx, &git.FetchOptions{
		RemoteName: DefaultRemoteName,
		RefSpecs:   []config.RefSpec{fetchRefSpec},
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return Outcome{}, wrapError(err, "fetching %s", rec.URL)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return Outcome{}, wrapError(ErrOpen, "%s: %v", rec.LocalPath, err)
	}

	status, err := wt.Status()
	if err != nil {
		return Outcome{}, wrapError(err, "reading worktree status of %s", rec.URL)
	}

	if !status.IsClean() {
		e.logger.Warn("repository has local changes, skipping to preserve local history",
			"url", rec.URL)
		return Outcome{Kind: LocalChangesSkipped}, nil
	}

	head, err := repo.Head()
	if err != nil {
		return Outcome{}, wrapError(err, "reading head of %s", rec.URL)
	}

	// Detached head: no branch to reconcile.
	if !head.Name().IsBranch() {
		return Outcome{Kind: UpToDate}, nil
	}

	branch := head.Name().Short()

	remoteRef, err := repo.Reference(
		plumbing.NewRemoteReferenceName(DefaultRemoteName, branch), true)
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			// No remote counterpart for this branch.
			return Outcome{Kind: UpToDate}, nil
		}
		return Outcome{}, wrapError(err, "resolving origin/%s for %s", branch, rec.URL)
	}

	localHash, remoteHash := head.Hash(), remoteRef.Hash()
	if localHash == remoteHash {
		return Outcome{Kind: UpToDate}, nil
	}

	ahead, behind, err := aheadBehind(repo, localHash, remoteHash)
	if err != nil {
		return Outcome{}, wrapError(err, "comparing %s with origin/%s", rec.URL, branch)
	}

	switch {
	case ahead == 0 && behind > 0:
		e.logger.Info("fast-forwarding repository", "url", rec.URL,
			"branch", branch, "commits", behind)

		if err := repo.Storer.SetReference(
			plumbing.NewHashReference(head.Name(), remoteHash)); err != nil {
			return Outcome{}, wrapError(err, "moving %s to origin/%s", branch, branch)
		}

		if err := wt.Checkout(&git.CheckoutOptions{
			Branch: head.Name(),
			Force:  true,
		}); err != nil {
			return Outcome{}, wrapError(err, "checking out %s of %s", branch, rec.URL)
		}

		return Outcome{Kind: FastForwarded, Count: behind}, nil

	case ahead > 0 && behind > 0:
		e.logger.Warn("repository has diverged from remote, skipping to preserve local history",
			"url", rec.URL, "branch", branch, "ahead", ahead, "behind", behind)
		return Outcome{Kind: DivergedSkipped}, nil

	default:
		return Outcome{Kind: UpToDate}, nil
	}
}

// aheadBehind counts the commits reachable from exactly one of the two
// tips, the go-git rendering of git's rev-list --left-right --count.
func aheadBehind(repo *git.Repository, local, remote plumbing.Hash) (ahead, behind int, err error) {
	localCommit, err := repo.CommitObject(local)
	if err != nil {
		return 0, 0, err
	}

	remoteCommit, err := repo.CommitObject(remote)
	if err != nil {
		return 0, 0, err
	}

	bases, err := localCommit.MergeBase(remoteCommit)
	if err != nil {
		return 0, 0, err
	}

	ignore := make([]plumbing.Hash, 0, len(bases))
	for _, base := range bases {
		ignore = append(ignore, base.Hash)
	}

	ahead, err = countExclusive(localCommit, ignore)
	if err != nil {
		return 0, 0, err
	}

	behind, err = countExclusive(remoteCommit, ignore)
	if err != nil {
		return 0, 0, err
	}

	return ahead, behind, nil
}

// countExclusive counts commits reachable from tip but not from any of the
// ignored hashes.
func countExclusive(tip *object.Commit, ignore []plumbing.Hash) (int, error) {
	count := 0

	iter := object.NewCommitPreorderIter(tip, nil, ignore)
	err := iter.ForEach(func(*object.Commit) error {
		count++
		return nil
	})

	return count, err
}
