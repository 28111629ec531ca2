package storage

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageSaveOpenDelete(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	name, err := store.Save("roster_C1.csv", []byte("Student ID,Name\nS1,Ada\n"))
	require.NoError(t, err)
	assert.Equal(t, "roster_C1.csv", name)

	file, err := store.Open("roster_C1.csv")
	require.NoError(t, err)
	require.NoError(t, file.Close())

	require.NoError(t, store.Delete("roster_C1.csv"))
	_, err = store.Open("roster_C1.csv")
	require.Error(t, err)

	// Deleting a missing file is not an error.
	require.NoError(t, store.Delete("roster_C1.csv"))
}

func TestLocalStorageCleanupOlderThan(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(dir)
	require.NoError(t, err)

	_, err = store.Save("old.csv", []byte("stale"))
	require.NoError(t, err)
	_, err = store.Save("new.csv", []byte("fresh"))
	require.NoError(t, err)

	stale := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(store.Path("old.csv"), stale, stale))

	deleted, err := store.CleanupOlderThan(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{"old.csv"}, deleted)

	_, err = store.Open("new.csv")
	require.NoError(t, err)
}
