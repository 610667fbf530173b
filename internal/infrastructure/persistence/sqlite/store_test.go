package sqlite

import (
	"context"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/career-roadmap/roadmap-hub/internal/domain/progression"
	"github.com/career-roadmap/roadmap-hub/internal/domain/shared"
)

const (
	alice = "5f0c3a52-9d7e-4c1b-8a3f-2b6e1d4c7a90"
	bob   = "0b7f0e2c-3a41-4d5e-9f60-7a8b9c0d1e2f"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "data", "progress.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seed(t *testing.T, s *Store, id string) {
	t.Helper()
	rec, err := progression.NewRecord(id)
	require.NoError(t, err)
	require.NoError(t, s.Create(context.Background(), rec))
}

func TestStore_CreateAndGet(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	seed(t, s, alice)

	rec, err := s.Get(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, alice, rec.UserID)
	assert.Equal(t, 0, rec.XP)
	assert.Equal(t, 1, rec.Level)
	assert.Nil(t, rec.LastActiveAt)

	rec2, _ := progression.NewRecord(alice)
	assert.ErrorIs(t, s.Create(ctx, rec2), shared.ErrProfileAlreadyExists)

	_, err = s.Get(ctx, bob)
	assert.ErrorIs(t, err, shared.ErrProfileNotFound)
}

func TestStore_IncrementXP(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	seed(t, s, alice)

	res, err := s.IncrementXP(ctx, alice, 90, nil)
	require.NoError(t, err)
	assert.Equal(t, 90, res.Record.XP)
	assert.Equal(t, 1, res.Record.Level)
	assert.False(t, res.LeveledUp)

	res, err = s.IncrementXP(ctx, alice, 10, nil)
	require.NoError(t, err)
	assert.Equal(t, 100, res.Record.XP)
	assert.Equal(t, 2, res.Record.Level)
	assert.Equal(t, 1, res.OldLevel)
	assert.True(t, res.LeveledUp)

	stored, err := s.Get(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Level)

	_, err = s.IncrementXP(ctx, alice, -5, nil)
	assert.ErrorIs(t, err, shared.ErrNegativeXPGain)

	_, err = s.IncrementXP(ctx, bob, 10, nil)
	assert.ErrorIs(t, err, shared.ErrProfileNotFound)
}

func TestStore_IncrementXP_RefusesOverflow(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	seed(t, s, alice)

	near := math.MaxInt64 - 5
	_, err := s.db.ExecContext(ctx, "UPDATE profiles SET xp = ? WHERE id = ?", near, alice)
	require.NoError(t, err)

	_, err = s.IncrementXP(ctx, alice, 10, nil)
	assert.ErrorIs(t, err, shared.ErrXPOverflow)
	assert.True(t, shared.IsValidation(err))

	rec, err := s.Get(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, near, rec.XP)

	res, err := s.IncrementXP(ctx, alice, 5, nil)
	require.NoError(t, err)
	assert.Equal(t, math.MaxInt64, res.Record.XP)
}

func TestStore_IncrementXP_Concurrent(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	seed(t, s, alice)

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.IncrementXP(ctx, alice, progression.XPPerMessage, nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	rec, err := s.Get(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 250, rec.XP)
	assert.Equal(t, progression.LevelFromXP(250), rec.Level)
}

func TestStore_UpdateStreak(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	seed(t, s, alice)

	at := time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC)
	require.NoError(t, s.UpdateStreak(ctx, alice, 3, at))

	rec, err := s.Get(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 3, rec.StreakDays)
	require.NotNil(t, rec.LastActiveAt)
	assert.True(t, at.Equal(*rec.LastActiveAt))

	require.NoError(t, s.UpdateStreakDays(ctx, alice, 4))
	rec, _ = s.Get(ctx, alice)
	assert.Equal(t, 4, rec.StreakDays)
	assert.True(t, at.Equal(*rec.LastActiveAt))

	assert.ErrorIs(t, s.UpdateStreak(ctx, bob, 1, at), shared.ErrProfileNotFound)
	assert.ErrorIs(t, s.UpdateStreakDays(ctx, bob, 1), shared.ErrProfileNotFound)
}

func TestStore_MissingActivityColumn(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	seed(t, s, alice)

	_, err := s.db.ExecContext(ctx, "ALTER TABLE profiles DROP COLUMN last_active_at")
	require.NoError(t, err)

	rec, err := s.Get(ctx, alice)
	require.NoError(t, err)
	assert.Nil(t, rec.LastActiveAt)

	err = s.UpdateStreak(ctx, alice, 2, time.Now())
	assert.True(t, shared.IsMissingColumn(err))
	assert.NoError(t, s.UpdateStreakDays(ctx, alice, 2))
}

func TestStore_TopByXP(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	seed(t, s, alice)
	seed(t, s, bob)

	_, err := s.IncrementXP(ctx, bob, 300, nil)
	require.NoError(t, err)
	_, err = s.IncrementXP(ctx, alice, 50, nil)
	require.NoError(t, err)

	top, err := s.TopByXP(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, bob, top[0].UserID)
	assert.Equal(t, 1, top[0].Rank)
	assert.Equal(t, 3, top[0].Level)
	assert.Equal(t, 2, top[1].Rank)

	top, err = s.TopByXP(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, top, 1)
}

func TestStore_Check(t *testing.T) {
	s := openStore(t)
	assert.Equal(t, "sqlite", s.Name())
	assert.NoError(t, s.Check(context.Background()))
}
