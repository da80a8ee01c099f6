package sharedmutex

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGuardsReleaseOnce(t *testing.T) {
	rwm := New()

	g := rwm.AcquireShared()
	require.Equal(t, 1, rwm.Stats().ActiveReaders)
	g.Release()
	require.PanicsWithValue(t, "sharedmutex: SharedGuard released twice", g.Release)
	require.Zero(t, rwm.Stats().ActiveReaders)

	x := rwm.AcquireExclusive()
	require.True(t, rwm.Stats().WriterActive)
	x.Release()
	require.PanicsWithValue(t, "sharedmutex: ExclusiveGuard released twice", x.Release)
	require.False(t, rwm.Stats().WriterActive)
}

func TestTryAcquireGuards(t *testing.T) {
	rwm := New()

	g1, ok := rwm.TryAcquireShared()
	require.True(t, ok)
	g2, ok := rwm.TryAcquireShared()
	require.True(t, ok)

	_, ok = rwm.TryAcquireExclusive()
	require.False(t, ok)

	g1.Release()
	g2.Release()

	x, ok := rwm.TryAcquireExclusive()
	require.True(t, ok)
	_, ok = rwm.TryAcquireShared()
	require.False(t, ok)
	x.Release()
}

func TestWithReleasesOnEveryExitPath(t *testing.T) {
	rwm := New()
	errBoom := errors.New("boom")

	require.NoError(t, rwm.WithShared(func() error {
		require.Equal(t, 1, rwm.Stats().ActiveReaders)
		return nil
	}))
	require.ErrorIs(t, rwm.WithExclusive(func() error {
		require.True(t, rwm.Stats().WriterActive)
		return errBoom
	}), errBoom)

	require.Panics(t, func() {
		_ = rwm.WithShared(func() error { panic("reader failed") })
	})
	require.Panics(t, func() {
		_ = rwm.WithExclusive(func() error { panic("writer failed") })
	})

	s := rwm.Stats()
	require.Zero(t, s.ActiveReaders)
	require.False(t, s.WriterActive)
	require.Equal(t, uint64(2), s.SharedAcquired)
	require.Equal(t, uint64(2), s.ExclusiveAcquired)

	// Still usable after the panics.
	require.True(t, rwm.TryLock())
	rwm.Unlock()
}
