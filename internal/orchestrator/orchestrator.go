// Package orchestrator drives sync attempts across the repository
// registry, for a single record on demand or for the nightly sweep.
package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/inovacc/gitkeeper/internal/gitsync"
	"github.com/inovacc/gitkeeper/internal/model"
	"github.com/inovacc/gitkeeper/internal/store"
)

// Syncer is the version-control side of a sync attempt; satisfied by
// *gitsync.Engine.
type Syncer interface {
	Sync(ctx context.Context, rec *model.Repository) (gitsync.Outcome, error)
}

// Orchestrator serializes sync attempts per repository and reconciles the
// persisted status with each outcome. A failure on one repository never
// stops a sweep over the rest.
type Orchestrator struct {
	store  store.Store
	syncer Syncer
	logger *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates an orchestrator over the given registry and sync engine.
func New(st store.Store, syncer Syncer) *Orchestrator {
	return &Orchestrator{
		store:  st,
		syncer: syncer,
		logger: slog.Default(),
		locks:  make(map[string]*sync.Mutex),
	}
}

// WithLogger sets the logger for the orchestrator.
func (o *Orchestrator) WithLogger(logger *slog.Logger) *Orchestrator {
	o.logger = logger
	return o
}

// repoLock returns the mutex guarding the repository with the given
// canonical name, creating it on first use. Two concurrent syncs of the
// same repository are never allowed to run.
func (o *Orchestrator) repoLock(name string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()

	l, ok := o.locks[name]
	if !ok {
		l = &sync.Mutex{}
		o.locks[name] = l
	}

	return l
}

// SyncOne looks up the record for url and runs a single sync attempt,
// persisting the outcome. Returns store.ErrNotFound for an unknown url.
func (o *Orchestrator) SyncOne(ctx context.Context, url string) (gitsync.Outcome, error) {
	rec, err := o.store.GetRepoByURL(url)
	if err != nil {
		return gitsync.Outcome{}, err
	}

	return o.syncRecord(ctx, rec)
}

// SyncAll sweeps every registered repository. Each failure is recorded on
// its own record and counted; the sweep always completes. The returned
// error reports only a failure to read the registry itself.
func (o *Orchestrator) SyncAll(ctx context.Context) (failed int, err error) {
	repos, err := o.store.ListRepos()
	if err != nil {
		return 0, err
	}

	o.logger.Info("starting repository sweep", "repositories", len(repos))

	for i := range repos {
		if _, err := o.syncRecord(ctx, &repos[i]); err != nil {
			o.logger.Error("failed to sync repository", "url", repos[i].URL, "error", err)
			failed++
		}
	}

	o.logger.Info("repository sweep finished", "repositories", len(repos), "failed", failed)

	return failed, nil
}

// syncRecord runs one attempt under the repository's lock and writes the
// resulting status and timestamp back to the registry.
func (o *Orchestrator) syncRecord(ctx context.Context, rec *model.Repository) (gitsync.Outcome, error) {
	lock := o.repoLock(rec.Name)
	lock.Lock()
	defer lock.Unlock()

	outcome, err := o.syncer.Sync(ctx, rec)
	if err != nil {
		if statusErr := o.store.SetRepoStatus(rec.URL, model.StatusError); statusErr != nil {
			o.logger.Error("failed to record error status", "url", rec.URL, "error", statusErr)
		}
		return gitsync.Outcome{}, err
	}

	// Safety holds are successful outcomes: nothing was safe to do, and
	// nothing broke.
	switch outcome.Kind {
	case gitsync.DivergedSkipped, gitsync.LocalChangesSkipped:
		o.logger.Warn("sync skipped", "url", rec.URL, "outcome", outcome.String())
	default:
		o.logger.Info("sync completed", "url", rec.URL, "outcome", outcome.String())
	}

	if err := o.store.SetRepoStatus(rec.URL, model.StatusSynced); err != nil {
		return outcome, err
	}

	if err := o.store.TouchLastSynced(rec.URL, time.Now()); err != nil {
		return outcome, err
	}

	return outcome, nil
}
