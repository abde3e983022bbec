package suppression

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"

	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/session"
)

func quiet() Option {
	return WithLogger(log.New(io.Discard))
}

func TestSuppressSurvivesRemount(t *testing.T) {
	ctx := context.Background()
	storage := session.NewMemoryStorage()

	first := New(storage, quiet())
	require.Empty(t, first.Load(ctx))
	first.Suppress(ctx, "2026-10-16")
	first.Suppress(ctx, "2026-10-15")
	require.True(t, first.Has("2026-10-16"))

	raw, ok, err := storage.Get(ctx, StorageKey)
	require.NoError(t, err)
	require.True(t, ok)
	require.JSONEq(t, `["2026-10-15","2026-10-16"]`, raw)

	second := New(storage, quiet())
	require.Equal(t, []string{"2026-10-15", "2026-10-16"}, second.Load(ctx))

	second.Clear(ctx, "2026-10-15")
	second.Clear(ctx, "2026-10-16")
	_, ok, err = storage.Get(ctx, StorageKey)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLoadToleratesCorruptData(t *testing.T) {
	ctx := context.Background()
	storage := session.NewMemoryStorage()
	require.NoError(t, storage.Set(ctx, StorageKey, "{not json"))

	set := New(storage, quiet())
	require.Empty(t, set.Load(ctx))
	require.False(t, set.Has("2026-10-16"))
}

func TestLoadToleratesStorageFailure(t *testing.T) {
	set := New(failingStorage{}, quiet())
	require.NotPanics(t, func() {
		require.Empty(t, set.Load(context.Background()))
		set.Suppress(context.Background(), "2026-10-16")
	})
	require.True(t, set.Has("2026-10-16"))
}

type failingStorage struct{}

func (failingStorage) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("storage offline")
}

func (failingStorage) Set(context.Context, string, string) error {
	return errors.New("storage offline")
}

func (failingStorage) Remove(context.Context, string) error {
	return errors.New("storage offline")
}
