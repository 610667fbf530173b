package command

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/career-roadmap/roadmap-hub/internal/domain/progression"
	"github.com/career-roadmap/roadmap-hub/internal/domain/shared"
)

const (
	alice = "7b1e4f0a-2c3d-4e5f-8a9b-0c1d2e3f4a5b"
	bob   = "9d2f5a1b-3e4c-4f6a-9b8c-1d2e3f4a5b6c"
)

type fakeRepo struct {
	mu      sync.Mutex
	records map[string]progression.Record

	createErr           error
	updateStreakErr     error
	updateStreakDaysErr error

	updateStreakCalls     int
	updateStreakDaysCalls int
}

func newFakeRepo(recs ...progression.Record) *fakeRepo {
	r := &fakeRepo{records: make(map[string]progression.Record)}
	for _, rec := range recs {
		r.records[rec.UserID] = rec
	}
	return r
}

func (r *fakeRepo) Get(_ context.Context, userID string) (*progression.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[userID]
	if !ok {
		return nil, shared.ErrProfileNotFound
	}
	return &rec, nil
}

func (r *fakeRepo) TopByXP(_ context.Context, limit int) ([]progression.LeaderboardEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []progression.LeaderboardEntry
	for _, rec := range r.records {
		out = append(out, progression.LeaderboardEntry{UserID: rec.UserID, XP: rec.XP, Level: rec.Level})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].XP > out[j].XP })
	if len(out) > limit {
		out = out[:limit]
	}
	for i := range out {
		out[i].Rank = i + 1
	}
	return out, nil
}

func (r *fakeRepo) Create(_ context.Context, rec *progression.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	if _, ok := r.records[rec.UserID]; ok {
		return shared.ErrProfileAlreadyExists
	}
	r.records[rec.UserID] = *rec
	return nil
}

func (r *fakeRepo) IncrementXP(_ context.Context, userID string, gain int, curve *progression.Curve) (progression.XPGainResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[userID]
	if !ok {
		return progression.XPGainResult{}, shared.ErrProfileNotFound
	}
	res, err := curve.ApplyXPGain(rec, gain)
	if err != nil {
		return progression.XPGainResult{}, err
	}
	r.records[userID] = res.Record
	return res, nil
}

func (r *fakeRepo) UpdateStreak(_ context.Context, userID string, days int, lastActiveAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updateStreakCalls++
	if r.updateStreakErr != nil {
		return r.updateStreakErr
	}
	rec, ok := r.records[userID]
	if !ok {
		return shared.ErrProfileNotFound
	}
	rec.StreakDays = days
	rec.LastActiveAt = &lastActiveAt
	r.records[userID] = rec
	return nil
}

func (r *fakeRepo) UpdateStreakDays(_ context.Context, userID string, days int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updateStreakDaysCalls++
	if r.updateStreakDaysErr != nil {
		return r.updateStreakDaysErr
	}
	rec, ok := r.records[userID]
	if !ok {
		return shared.ErrProfileNotFound
	}
	rec.StreakDays = days
	r.records[userID] = rec
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func (p *recordingPublisher) Publish(e shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []shared.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]shared.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

type fakeLeaderboard struct {
	nopLeaderboard
	err     error
	entries []progression.LeaderboardEntry
}

func (l *fakeLeaderboard) UpdateEntry(_ context.Context, e progression.LeaderboardEntry) error {
	if l.err != nil {
		return l.err
	}
	l.entries = append(l.entries, e)
	return nil
}

type fakeProfiles struct {
	nopRecordCache
	invalidated []string
}

func (p *fakeProfiles) Invalidate(_ context.Context, userID string) error {
	p.invalidated = append(p.invalidated, userID)
	return nil
}

type flags map[string]bool

func (f flags) IsEnabled(feature, _ string) bool {
	on, ok := f[feature]
	return !ok || on
}

type countingMetrics struct {
	xp       int
	levelUps int
	degraded int
	streaks  []string
}

func (m *countingMetrics) XPAwarded(_ string, amount int, leveledUp bool) {
	m.xp += amount
	if leveledUp {
		m.levelUps++
	}
}

func (m *countingMetrics) StreakUpdated(transition string, degraded bool) {
	m.streaks = append(m.streaks, transition)
	if degraded {
		m.degraded++
	}
}

func freshRecord(userID string) progression.Record {
	rec, err := progression.NewRecord(userID)
	if err != nil {
		panic(err)
	}
	return *rec
}
