package eventhandler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/career-roadmap/roadmap-hub/internal/domain/progression"
	"github.com/career-roadmap/roadmap-hub/internal/domain/shared"
)

type remoteLike struct {
	shared.BaseEvent
	payload map[string]interface{}
}

func (e remoteLike) Payload() map[string]interface{} { return e.payload }

func TestOnLevelUp_MilestonesAcrossSeveralLevels(t *testing.T) {
	var got []int
	h := NewOnLevelUpHandler(nil, func(_ string, level int) { got = append(got, level) })

	require.NoError(t, h.Handle(shared.NewLevelUpEvent("u1", 4, 11, 1500)))
	assert.Equal(t, []int{5, 10}, got)

	got = nil
	require.NoError(t, h.Handle(shared.NewLevelUpEvent("u1", 5, 6, 700)))
	assert.Empty(t, got)
}

func TestOnLevelUp_DecodedPayload(t *testing.T) {
	var got []int
	h := NewOnLevelUpHandler(nil, func(_ string, level int) { got = append(got, level) })

	ev := remoteLike{
		BaseEvent: shared.NewBaseEvent(shared.EventLevelUp, "u1"),
		payload:   map[string]interface{}{"old_level": float64(9), "new_level": float64(10)},
	}
	require.NoError(t, h.Handle(ev))
	assert.Equal(t, []int{10}, got)
}

func TestOnStreak_Milestones(t *testing.T) {
	var got []int
	h := NewOnStreakHandler(nil, func(_ string, days int) { got = append(got, days) })

	require.NoError(t, h.Handle(shared.NewDailyStreakUpdatedEvent("u1", 6, 7)))
	require.NoError(t, h.Handle(shared.NewDailyStreakUpdatedEvent("u1", 7, 8)))
	require.NoError(t, h.Handle(shared.NewDailyStreakBrokenEvent("u1", 8, 50*time.Hour)))
	assert.Equal(t, []int{7}, got)
}

type lbSpy struct {
	progression.LeaderboardCache
	entries []progression.LeaderboardEntry
	ranked  map[string]int
}

func (l *lbSpy) GetRank(_ context.Context, userID string) (int, error) {
	return l.ranked[userID], nil
}

func (l *lbSpy) UpdateEntry(_ context.Context, e progression.LeaderboardEntry) error {
	l.entries = append(l.entries, e)
	return nil
}

type subscriberSpy struct {
	types []shared.EventType
}

func (s *subscriberSpy) Subscribe(t shared.EventType, _ shared.EventHandler) error {
	s.types = append(s.types, t)
	return nil
}

func (s *subscriberSpy) SubscribeAll(shared.EventHandler) error { return nil }

func TestOnProfileCreated_AddsToLeaderboard(t *testing.T) {
	lb := &lbSpy{}
	h := NewOnProfileCreatedHandler(lb, nil)

	require.NoError(t, h.Handle(shared.NewProfileCreatedEvent("u1", "a@example.com")))
	require.Len(t, lb.entries, 1)
	assert.Equal(t, "u1", lb.entries[0].UserID)
	assert.Equal(t, 0, lb.entries[0].XP)

	lb = &lbSpy{ranked: map[string]int{"u3": 2}}
	require.NoError(t, NewOnProfileCreatedHandler(lb, nil).Handle(shared.NewProfileCreatedEvent("u3", "")))
	assert.Empty(t, lb.entries)

	assert.NoError(t, NewOnProfileCreatedHandler(nil, nil).Handle(shared.NewProfileCreatedEvent("u2", "")))
}

func TestRegister(t *testing.T) {
	spy := &subscriberSpy{}
	err := Register(spy, NewOnLevelUpHandler(nil, nil), NewOnStreakHandler(nil, nil), NewOnProfileCreatedHandler(nil, nil))
	require.NoError(t, err)
	assert.ElementsMatch(t, []shared.EventType{
		shared.EventLevelUp, shared.EventDailyStreakUpdated, shared.EventDailyStreakBroken, shared.EventProfileCreated,
	}, spy.types)
}
