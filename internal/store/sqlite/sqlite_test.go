package sqlite

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inovacc/gitkeeper/internal/model"
	"github.com/inovacc/gitkeeper/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := New(filepath.Join(t.TempDir(), "gitkeeper.db"))
	require.NoError(t, err)

	t.Cleanup(func() { _ = s.Close() })

	return s
}

func TestInsertAndGetRepo(t *testing.T) {
	s := newTestStore(t)

	rec, err := s.InsertRepo("https://example.com/acme/widgets.git",
		"example.com/acme/widgets", "/repos/example.com/acme/widgets")
	require.NoError(t, err)

	assert.NotZero(t, rec.ID)
	assert.NotEmpty(t, rec.UID)
	assert.Equal(t, model.StatusPending, rec.Status)
	assert.Nil(t, rec.LastSynced)

	got, err := s.GetRepoByURL("https://example.com/acme/widgets.git")
	require.NoError(t, err)

	assert.Equal(t, rec.UID, got.UID)
	assert.Equal(t, "example.com/acme/widgets", got.Name)
	assert.Equal(t, model.StatusPending, got.Status)
}

func TestInsertRepoDuplicateURL(t *testing.T) {
	s := newTestStore(t)

	_, err := s.InsertRepo("https://example.com/acme/widgets.git",
		"example.com/acme/widgets", "/repos/a")
	require.NoError(t, err)

	_, err = s.InsertRepo("https://example.com/acme/widgets.git",
		"example.com/acme/widgets", "/repos/b")
	assert.ErrorIs(t, err, store.ErrDuplicate)
}

func TestInsertRepoDuplicatePath(t *testing.T) {
	s := newTestStore(t)

	_, err := s.InsertRepo("https://example.com/acme/widgets.git",
		"example.com/acme/widgets", "/repos/same")
	require.NoError(t, err)

	_, err = s.InsertRepo("https://example.com/acme/gadgets.git",
		"example.com/acme/gadgets", "/repos/same")
	assert.ErrorIs(t, err, store.ErrDuplicate)
}

func TestListReposNewestFirst(t *testing.T) {
	s := newTestStore(t)

	for _, name := range []string{"first", "second", "third"} {
		_, err := s.InsertRepo("https://example.com/acme/"+name,
			"example.com/acme/"+name, "/repos/"+name)
		require.NoError(t, err)
	}

	repos, err := s.ListRepos()
	require.NoError(t, err)
	require.Len(t, repos, 3)

	assert.Equal(t, "example.com/acme/third", repos[0].Name)
	assert.Equal(t, "example.com/acme/first", repos[2].Name)
}

func TestListReposPage(t *testing.T) {
	s := newTestStore(t)

	for _, name := range []string{"a", "b", "c", "d", "e"} {
		_, err := s.InsertRepo("https://example.com/acme/"+name,
			"example.com/acme/"+name, "/repos/"+name)
		require.NoError(t, err)
	}

	total, err := s.CountRepos()
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)

	page, err := s.ListReposPage(2, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)

	// Newest first: e d | c b | a
	assert.Equal(t, "example.com/acme/c", page[0].Name)
	assert.Equal(t, "example.com/acme/b", page[1].Name)
}

func TestSetRepoStatus(t *testing.T) {
	s := newTestStore(t)

	_, err := s.InsertRepo("https://example.com/acme/widgets.git",
		"example.com/acme/widgets", "/repos/w")
	require.NoError(t, err)

	require.NoError(t, s.SetRepoStatus("https://example.com/acme/widgets.git", model.StatusSynced))

	got, err := s.GetRepoByURL("https://example.com/acme/widgets.git")
	require.NoError(t, err)
	assert.Equal(t, model.StatusSynced, got.Status)

	err = s.SetRepoStatus("https://example.com/acme/widgets.git", model.Status("bogus"))
	assert.ErrorIs(t, err, store.ErrInvalidStatus)

	// A record never transitions back to pending after registration.
	err = s.SetRepoStatus("https://example.com/acme/widgets.git", model.StatusPending)
	assert.ErrorIs(t, err, store.ErrInvalidStatus)

	got, err = s.GetRepoByURL("https://example.com/acme/widgets.git")
	require.NoError(t, err)
	assert.Equal(t, model.StatusSynced, got.Status)

	err = s.SetRepoStatus("https://example.com/unknown", model.StatusError)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestTouchLastSynced(t *testing.T) {
	s := newTestStore(t)

	_, err := s.InsertRepo("https://example.com/acme/widgets.git",
		"example.com/acme/widgets", "/repos/w")
	require.NoError(t, err)

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, s.TouchLastSynced("https://example.com/acme/widgets.git", now))

	got, err := s.GetRepoByURL("https://example.com/acme/widgets.git")
	require.NoError(t, err)
	require.NotNil(t, got.LastSynced)
	assert.WithinDuration(t, now, *got.LastSynced, time.Second)
}

func TestDeleteRepoByURL(t *testing.T) {
	s := newTestStore(t)

	_, err := s.InsertRepo("https://example.com/acme/widgets.git",
		"example.com/acme/widgets", "/repos/w")
	require.NoError(t, err)

	require.NoError(t, s.DeleteRepoByURL("https://example.com/acme/widgets.git"))

	_, err = s.GetRepoByURL("https://example.com/acme/widgets.git")
	assert.ErrorIs(t, err, store.ErrNotFound)

	err = s.DeleteRepoByURL("https://example.com/acme/widgets.git")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUserLifecycle(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetUser("admin")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.UpsertUser("admin", "hash-one"))

	u, err := s.GetUser("admin")
	require.NoError(t, err)
	assert.Equal(t, "hash-one", u.PasswordHash)

	// Upsert replaces the hash without erroring on the existing row.
	require.NoError(t, s.UpsertUser("admin", "hash-two"))

	u, err = s.GetUser("admin")
	require.NoError(t, err)
	assert.Equal(t, "hash-two", u.PasswordHash)

	require.NoError(t, s.UpdateUserPassword("admin", "hash-three"))

	err = s.UpdateUserPassword("ghost", "x")
	assert.ErrorIs(t, err, store.ErrNotFound)

	users, err := s.ListUsers()
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "admin", users[0].Username)

	require.NoError(t, s.DeleteUser("admin"))

	err = s.DeleteUser("admin")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestMigrateDown(t *testing.T) {
	s := newTestStore(t)

	m := NewMigrator(s.db)

	version, err := m.CurrentVersion()
	require.NoError(t, err)
	assert.Equal(t, 1, version)

	require.NoError(t, m.MigrateDown())

	version, err = m.CurrentVersion()
	require.NoError(t, err)
	assert.Equal(t, 0, version)

	// Rolling back past version 0 must fail.
	assert.Error(t, m.MigrateDown())
}
