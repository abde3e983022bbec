package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSQLiteStorageIsScopedBySession(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.db")

	first, err := OpenSQLite(ctx, path, "session-a")
	require.NoError(t, err)
	t.Cleanup(func() { _ = first.Close() })

	require.NoError(t, first.Set(ctx, "k", "v1"))
	require.NoError(t, first.Set(ctx, "k", "v2"))

	got, ok, err := first.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v2", got)

	second, err := OpenSQLite(ctx, path, "session-b")
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Close() })

	_, ok, err = second.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok, "values must not leak across sessions")

	reopened, err := OpenSQLite(ctx, path, "session-a")
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	got, ok, err = reopened.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v2", got)

	require.NoError(t, reopened.Remove(ctx, "k"))
	_, ok, err = reopened.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSQLiteStoragePurge(t *testing.T) {
	ctx := context.Background()
	store, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "session.db"), "s")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Set(ctx, "a", "1"))
	require.NoError(t, store.Set(ctx, "b", "2"))
	require.NoError(t, store.Purge(ctx))

	_, ok, err := store.Get(ctx, "a")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Set(ctx, "c", "3"))
	removed, err := store.PurgeOlderThan(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)
}

func TestOpenSQLiteRequiresSessionID(t *testing.T) {
	_, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "x.db"), "")
	require.Error(t, err)
}
