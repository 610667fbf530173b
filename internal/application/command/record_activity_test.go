package command

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/career-roadmap/roadmap-hub/config"
	"github.com/career-roadmap/roadmap-hub/internal/domain/progression"
	"github.com/career-roadmap/roadmap-hub/internal/domain/shared"
)

func activeRecord(userID string, streak int, last time.Time) progression.Record {
	rec := freshRecord(userID)
	rec.StreakDays = streak
	rec.LastActiveAt = &last
	return rec
}

func TestRecordActivity_Transitions(t *testing.T) {
	last := time.Date(2024, 3, 10, 22, 0, 0, 0, time.UTC)

	cases := []struct {
		name       string
		rec        progression.Record
		now        time.Time
		wantStreak int
		wantTrans  progression.StreakTransition
		wantEvent  shared.EventType
	}{
		{"fresh", freshRecord(alice), last, 1, progression.StreakStarted, shared.EventDailyStreakUpdated},
		{"next day", activeRecord(alice, 2, last), last.Add(13 * time.Hour), 3, progression.StreakContinued, shared.EventDailyStreakUpdated},
		{"same day", activeRecord(alice, 2, last), last.Add(time.Hour), 2, progression.StreakUnchanged, ""},
		{"gap of a day and a half", activeRecord(alice, 2, last), last.Add(36 * time.Hour), 2, progression.StreakUnchanged, ""},
		{"two days", activeRecord(alice, 7, last), last.Add(48 * time.Hour), 1, progression.StreakReset, shared.EventDailyStreakBroken},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := newFakeRepo(tc.rec)
			pub := &recordingPublisher{}
			h := NewRecordActivityHandler(Deps{Repo: repo, Publisher: pub}, nil)

			res, err := h.Handle(context.Background(), RecordActivityCommand{UserID: alice, Timestamp: tc.now})
			require.NoError(t, err)
			assert.Equal(t, tc.wantTrans, res.Transition)
			assert.Equal(t, tc.wantStreak, res.Record.StreakDays)
			assert.False(t, res.Degraded)

			stored, err := repo.Get(context.Background(), alice)
			require.NoError(t, err)
			assert.Equal(t, tc.wantStreak, stored.StreakDays)
			require.NotNil(t, stored.LastActiveAt)
			assert.True(t, stored.LastActiveAt.Equal(tc.now))

			if tc.wantEvent == "" {
				assert.Empty(t, pub.types())
			} else {
				assert.Equal(t, []shared.EventType{tc.wantEvent}, pub.types())
			}
		})
	}
}

func TestRecordActivity_CalendarDayInLocation(t *testing.T) {
	almaty := time.FixedZone("ALMT", 5*60*60)
	// 18:00 and 20:00 UTC are 23:00 and 01:00 next day in UTC+5.
	last := time.Date(2024, 3, 10, 18, 0, 0, 0, time.UTC)
	now := last.Add(2 * time.Hour)

	repo := newFakeRepo(activeRecord(alice, 4, last))
	h := NewRecordActivityHandler(Deps{Repo: repo}, almaty)
	res, err := h.Handle(context.Background(), RecordActivityCommand{UserID: alice, Timestamp: now})
	require.NoError(t, err)
	assert.Equal(t, progression.StreakContinued, res.Transition)

	repo = newFakeRepo(activeRecord(alice, 4, last))
	h = NewRecordActivityHandler(Deps{Repo: repo}, time.UTC)
	res, err = h.Handle(context.Background(), RecordActivityCommand{UserID: alice, Timestamp: now})
	require.NoError(t, err)
	assert.Equal(t, progression.StreakUnchanged, res.Transition)
}

func TestRecordActivity_DegradedWrite(t *testing.T) {
	repo := newFakeRepo(freshRecord(alice))
	repo.updateStreakErr = shared.ErrMissingColumn
	m := &countingMetrics{}
	h := NewRecordActivityHandler(Deps{Repo: repo, Metrics: m}, nil)

	res, err := h.Handle(context.Background(), RecordActivityCommand{UserID: alice})
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.Equal(t, 1, repo.updateStreakCalls)
	assert.Equal(t, 1, repo.updateStreakDaysCalls)
	assert.Equal(t, 1, m.degraded)

	stored, err := repo.Get(context.Background(), alice)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.StreakDays)
	assert.Nil(t, stored.LastActiveAt)
}

func TestRecordActivity_OnlyRetryErrorSurfaces(t *testing.T) {
	retryErr := errors.New("retry failed")
	repo := newFakeRepo(freshRecord(alice))
	repo.updateStreakErr = errors.New("first write failed")
	repo.updateStreakDaysErr = retryErr
	h := NewRecordActivityHandler(Deps{Repo: repo}, nil)

	_, err := h.Handle(context.Background(), RecordActivityCommand{UserID: alice})
	require.ErrorIs(t, err, retryErr)
	assert.NotContains(t, err.Error(), "first write failed")
	assert.Equal(t, 1, repo.updateStreakDaysCalls)
}

func TestRecordActivity_DegradedWriteCannotBeSwitchedOff(t *testing.T) {
	repo := newFakeRepo(freshRecord(alice))
	repo.updateStreakErr = errors.New("write failed")
	h := NewRecordActivityHandler(Deps{
		Repo:     repo,
		Features: flags{"progression.streak_degraded_write": false},
	}, nil)

	res, err := h.Handle(context.Background(), RecordActivityCommand{UserID: alice})
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.Equal(t, 1, repo.updateStreakDaysCalls)
}

func TestRecordActivity_Errors(t *testing.T) {
	h := NewRecordActivityHandler(Deps{Repo: newFakeRepo()}, nil)

	_, err := h.Handle(context.Background(), RecordActivityCommand{UserID: bob})
	assert.True(t, shared.IsNotFound(err))

	_, err = h.Handle(context.Background(), RecordActivityCommand{UserID: "x"})
	assert.True(t, shared.IsValidation(err))

	h = NewRecordActivityHandler(Deps{Repo: newFakeRepo(freshRecord(alice)), Features: flags{config.FeatureStreaks: false}}, nil)
	_, err = h.Handle(context.Background(), RecordActivityCommand{UserID: alice})
	assert.ErrorIs(t, err, shared.ErrFeatureDisabled)
}
