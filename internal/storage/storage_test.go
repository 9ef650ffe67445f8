package storage

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/leolhan1425/bc-tracker/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorage_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Store(ctx, "snapshots/b.json", []byte("b")))
	require.NoError(t, s.Store(ctx, "snapshots/a.json", []byte("a")))
	require.NoError(t, s.Store(ctx, "other.json", []byte("x")))

	data, err := s.Retrieve(ctx, "snapshots/a.json")
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), data)

	names, err := s.List(ctx, "snapshots/")
	require.NoError(t, err)
	assert.Equal(t, []string{"snapshots/a.json", "snapshots/b.json"}, names)

	require.NoError(t, s.Delete(ctx, "snapshots/a.json"))
	_, err = s.Retrieve(ctx, "snapshots/a.json")
	assert.Error(t, err)

	assert.Error(t, s.Delete(ctx, "missing.json"))
}

func TestNewLocalStorage_EmptyDir(t *testing.T) {
	_, err := NewLocalStorage("")
	assert.Error(t, err)
}

func TestBackup_SaveAndPrune(t *testing.T) {
	ctx := context.Background()
	local, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 1, 23, 0, 0, 0, time.UTC))
	b := NewBackup(local, 3, clock)

	for i := 0; i < 5; i++ {
		snap := &models.Snapshot{Stats: &models.Stats{TotalPosts: i}}
		_, err := b.Save(ctx, snap)
		require.NoError(t, err)
		clock.Advance(24 * time.Hour)
	}

	names, err := local.List(ctx, snapshotPrefix)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"snapshots/tracker-2025-03-03.json",
		"snapshots/tracker-2025-03-04.json",
		"snapshots/tracker-2025-03-05.json",
	}, names)

	latest, err := b.Latest(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest.Stats)
	assert.Equal(t, 4, latest.Stats.TotalPosts)
}

func TestBackup_SameDayReplaces(t *testing.T) {
	ctx := context.Background()
	local, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC))
	b := NewBackup(local, 0, clock)

	first, err := b.Save(ctx, &models.Snapshot{})
	require.NoError(t, err)
	clock.Advance(time.Hour)
	second, err := b.Save(ctx, &models.Snapshot{})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	names, err := local.List(ctx, snapshotPrefix)
	require.NoError(t, err)
	assert.Len(t, names, 1)
}

func TestBackup_LatestEmpty(t *testing.T) {
	local, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = NewBackup(local, 7, nil).Latest(context.Background())
	assert.Error(t, err)
}
