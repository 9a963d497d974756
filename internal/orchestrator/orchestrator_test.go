package orchestrator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/inovacc/gitkeeper/internal/gitsync"
	"github.com/inovacc/gitkeeper/internal/model"
	"github.com/inovacc/gitkeeper/internal/store"
)

// fakeStore is an in-memory store.Store for orchestrator tests.
type fakeStore struct {
	mu    sync.Mutex
	repos map[string]*model.Repository
	order []string
}

func newFakeStore(repos ...*model.Repository) *fakeStore {
	f := &fakeStore{repos: make(map[string]*model.Repository)}
	for _, r := range repos {
		f.repos[r.URL] = r
		f.order = append(f.order, r.URL)
	}
	return f
}

func (f *fakeStore) InsertRepo(url, name, localPath string) (*model.Repository, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rec := &model.Repository{URL: url, Name: name, LocalPath: localPath, Status: model.StatusPending}
	f.repos[url] = rec
	f.order = append(f.order, url)
	return rec, nil
}

func (f *fakeStore) ListRepos() ([]model.Repository, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]model.Repository, 0, len(f.order))
	for _, url := range f.order {
		out = append(out, *f.repos[url])
	}
	return out, nil
}

func (f *fakeStore) ListReposPage(offset, limit int) ([]model.Repository, error) {
	return f.ListRepos()
}

func (f *fakeStore) CountRepos() (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.repos)), nil
}

func (f *fakeStore) GetRepoByURL(url string) (*model.Repository, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rec, ok := f.repos[url]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeStore) DeleteRepoByURL(url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.repos[url]; !ok {
		return store.ErrNotFound
	}
	delete(f.repos, url)
	return nil
}

func (f *fakeStore) SetRepoStatus(url string, status model.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	rec, ok := f.repos[url]
	if !ok {
		return store.ErrNotFound
	}
	rec.Status = status
	return nil
}

func (f *fakeStore) TouchLastSynced(url string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	rec, ok := f.repos[url]
	if !ok {
		return store.ErrNotFound
	}
	rec.LastSynced = &at
	return nil
}

func (f *fakeStore) GetUser(string) (*model.User, error)       { return nil, store.ErrNotFound }
func (f *fakeStore) UpsertUser(string, string) error           { return nil }
func (f *fakeStore) UpdateUserPassword(string, string) error   { return nil }
func (f *fakeStore) DeleteUser(string) error                   { return nil }
func (f *fakeStore) ListUsers() ([]model.User, error)          { return nil, nil }
func (f *fakeStore) Ping() error                               { return nil }
func (f *fakeStore) Close() error                              { return nil }

func (f *fakeStore) status(t *testing.T, url string) model.Status {
	t.Helper()

	rec, err := f.GetRepoByURL(url)
	if err != nil {
		t.Fatalf("status of %s: %v", url, err)
	}
	return rec.Status
}

// fakeSyncer scripts per-URL outcomes and tracks concurrent entries.
type fakeSyncer struct {
	outcomes map[string]gitsync.Outcome
	errs     map[string]error
	delay    time.Duration

	inFlight atomic.Int32
	maxSeen  atomic.Int32
	calls    atomic.Int32
}

func (s *fakeSyncer) Sync(_ context.Context, rec *model.Repository) (gitsync.Outcome, error) {
	s.calls.Add(1)

	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)

	for {
		seen := s.maxSeen.Load()
		if n <= seen || s.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}

	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	if err, ok := s.errs[rec.URL]; ok {
		return gitsync.Outcome{}, err
	}
	return s.outcomes[rec.URL], nil
}

func repo(url string) *model.Repository {
	return &model.Repository{URL: url, Name: "example.com/acme/" + url, Status: model.StatusPending}
}

func TestSyncOnePersistsOutcome(t *testing.T) {
	st := newFakeStore(repo("one"))
	syncer := &fakeSyncer{outcomes: map[string]gitsync.Outcome{
		"one": {Kind: gitsync.FastForwarded, Count: 3},
	}}

	o := New(st, syncer)

	outcome, err := o.SyncOne(context.Background(), "one")
	if err != nil {
		t.Fatalf("SyncOne: %v", err)
	}
	if outcome.Kind != gitsync.FastForwarded || outcome.Count != 3 {
		t.Errorf("outcome = %+v, want FastForwarded count 3", outcome)
	}

	rec, err := st.GetRepoByURL("one")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Status != model.StatusSynced {
		t.Errorf("status = %s, want synced", rec.Status)
	}
	if rec.LastSynced == nil {
		t.Error("last_synced not set after successful sync")
	}
}

func TestSyncOneUnknownRepository(t *testing.T) {
	o := New(newFakeStore(), &fakeSyncer{})

	_, err := o.SyncOne(context.Background(), "missing")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("SyncOne error = %v, want ErrNotFound", err)
	}
}

func TestSyncOneRecordsError(t *testing.T) {
	st := newFakeStore(repo("broken"))
	syncer := &fakeSyncer{errs: map[string]error{"broken": gitsync.ErrPathMissing}}

	o := New(st, syncer)

	_, err := o.SyncOne(context.Background(), "broken")
	if !errors.Is(err, gitsync.ErrPathMissing) {
		t.Fatalf("SyncOne error = %v, want ErrPathMissing", err)
	}

	if got := st.status(t, "broken"); got != model.StatusError {
		t.Errorf("status = %s, want error", got)
	}
}

func TestSyncAllSurvivesFailures(t *testing.T) {
	st := newFakeStore(repo("a"), repo("b"), repo("c"))
	syncer := &fakeSyncer{
		outcomes: map[string]gitsync.Outcome{
			"a": {Kind: gitsync.UpToDate},
			"c": {Kind: gitsync.FastForwarded, Count: 1},
		},
		errs: map[string]error{"b": gitsync.ErrPathMissing},
	}

	o := New(st, syncer)

	failed, err := o.SyncAll(context.Background())
	if err != nil {
		t.Fatalf("SyncAll: %v", err)
	}
	if failed != 1 {
		t.Errorf("failed = %d, want 1", failed)
	}
	if calls := syncer.calls.Load(); calls != 3 {
		t.Errorf("sync calls = %d, want 3 (sweep must not abort)", calls)
	}

	if got := st.status(t, "a"); got != model.StatusSynced {
		t.Errorf("a status = %s, want synced", got)
	}
	if got := st.status(t, "b"); got != model.StatusError {
		t.Errorf("b status = %s, want error", got)
	}
	if got := st.status(t, "c"); got != model.StatusSynced {
		t.Errorf("c status = %s, want synced", got)
	}
}

func TestSafetyHoldCountsAsSuccess(t *testing.T) {
	st := newFakeStore(repo("dirty"))
	syncer := &fakeSyncer{outcomes: map[string]gitsync.Outcome{
		"dirty": {Kind: gitsync.LocalChangesSkipped},
	}}

	o := New(st, syncer)

	outcome, err := o.SyncOne(context.Background(), "dirty")
	if err != nil {
		t.Fatalf("SyncOne: %v", err)
	}
	if outcome.Kind != gitsync.LocalChangesSkipped {
		t.Fatalf("outcome = %v, want LocalChangesSkipped", outcome)
	}

	if got := st.status(t, "dirty"); got != model.StatusSynced {
		t.Errorf("status = %s, want synced (a safety hold is not an error)", got)
	}
}

func TestSameRepositoryNeverSyncsConcurrently(t *testing.T) {
	st := newFakeStore(repo("hot"))
	syncer := &fakeSyncer{
		outcomes: map[string]gitsync.Outcome{"hot": {Kind: gitsync.UpToDate}},
		delay:    10 * time.Millisecond,
	}

	o := New(st, syncer)

	var wg sync.WaitGroup
	for j := 0; j < 4; j++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := o.SyncOne(context.Background(), "hot"); err != nil {
				t.Errorf("SyncOne: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := syncer.maxSeen.Load(); got != 1 {
		t.Errorf("max concurrent syncs of one repository = %d, want 1", got)
	}
}
