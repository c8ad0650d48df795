package userdb

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTempDB(t *testing.T) (*DB, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "users.json")
	return Open(path), path
}

func TestAddUserValidation(t *testing.T) {
	t.Parallel()

	db, _ := openTempDB(t)
	require.NoError(t, db.AddUser("alice", "secret"))

	require.Error(t, db.AddUser("alice", "other"), "duplicate username")
	require.Error(t, db.AddUser("", "secret"), "empty username")
	require.Error(t, db.AddUser("bob", "abc"), "short password")
}

func TestAuthenticate(t *testing.T) {
	t.Parallel()

	db, _ := openTempDB(t)
	require.NoError(t, db.AddUser("alice", "secret"))

	require.True(t, db.Authenticate("alice", "secret"))
	require.False(t, db.Authenticate("alice", "wrong"))
	require.False(t, db.Authenticate("nobody", "secret"))

	users := db.ListUsers()
	require.Len(t, users, 1)
	require.NotNil(t, users[0].LastLogin, "successful login is recorded")
}

func TestDisabledUserCannotAuthenticate(t *testing.T) {
	t.Parallel()

	db, _ := openTempDB(t)
	require.NoError(t, db.AddUser("alice", "secret"))

	require.NoError(t, db.SetEnabled("alice", false))
	require.False(t, db.Authenticate("alice", "secret"))

	require.NoError(t, db.SetEnabled("alice", true))
	require.True(t, db.Authenticate("alice", "secret"))

	require.Error(t, db.SetEnabled("nobody", false))
}

func TestRemoveUser(t *testing.T) {
	t.Parallel()

	db, _ := openTempDB(t)
	require.NoError(t, db.AddUser("alice", "secret"))
	require.NoError(t, db.RemoveUser("alice"))
	require.False(t, db.Authenticate("alice", "secret"))
	require.Error(t, db.RemoveUser("alice"))
}

func TestPersistence(t *testing.T) {
	t.Parallel()

	db, path := openTempDB(t)
	require.NoError(t, db.AddUser("alice", "secret"))
	require.NoError(t, db.AddUser("bob", "hunter2"))
	require.NoError(t, db.SetEnabled("bob", false))

	reopened := Open(path)
	require.True(t, reopened.Authenticate("alice", "secret"))
	require.False(t, reopened.Authenticate("bob", "hunter2"))

	users := reopened.ListUsers()
	require.Len(t, users, 2)
	require.Equal(t, "alice", users[0].Username)
	require.Equal(t, "bob", users[1].Username)
}

func TestAuthenticatorAdapter(t *testing.T) {
	t.Parallel()

	db, _ := openTempDB(t)
	require.NoError(t, db.AddUser("alice", "secret"))

	auth := db.Authenticator()
	result := make(chan bool, 1)
	auth("alice", "secret", func(ok bool) { result <- ok })
	require.True(t, <-result)
	auth("alice", "wrong", func(ok bool) { result <- ok })
	require.False(t, <-result)
}
