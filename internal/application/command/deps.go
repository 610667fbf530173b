// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"

	"github.com/career-roadmap/roadmap-hub/internal/domain/progression"
	"github.com/career-roadmap/roadmap-hub/internal/domain/shared"
	"github.com/career-roadmap/roadmap-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// COLLABORATORS
// Optional dependencies of the handlers. A nil collaborator is replaced
// with a no-op so handlers never check for nil at call sites.
// ══════════════════════════════════════════════════════════════════════════════

// FeatureGate reports whether a feature is on for a user.
// Implemented by config.FeatureFlags.
type FeatureGate interface {
	IsEnabled(feature, userID string) bool
}

// Metrics receives counters from the write path.
// Implemented by metrics.Metrics.
type Metrics interface {
	XPAwarded(source string, amount int, leveledUp bool)
	StreakUpdated(transition string, degraded bool)
}

type allFeatures struct{}

func (allFeatures) IsEnabled(string, string) bool { return true }

type nopMetrics struct{}

func (nopMetrics) XPAwarded(string, int, bool)  {}
func (nopMetrics) StreakUpdated(string, bool)    {}

type nopPublisher struct{}

func (nopPublisher) Publish(shared.Event) error { return nil }

type nopRecordCache struct{}

func (nopRecordCache) Get(context.Context, string) (*progression.Record, error) {
	return nil, shared.ErrNotFound
}
func (nopRecordCache) Set(context.Context, *progression.Record) error { return nil }
func (nopRecordCache) Invalidate(context.Context, string) error       { return nil }

type nopLeaderboard struct{}

func (nopLeaderboard) UpdateEntry(context.Context, progression.LeaderboardEntry) error { return nil }
func (nopLeaderboard) GetTop(context.Context, int) ([]progression.LeaderboardEntry, error) {
	return nil, shared.ErrNotFound
}
func (nopLeaderboard) GetRank(context.Context, string) (int, error)                   { return 0, nil }
func (nopLeaderboard) Rebuild(context.Context, []progression.LeaderboardEntry) error { return nil }

// Deps groups the collaborators shared by all command handlers.
type Deps struct {
	Repo        progression.Repository
	Curve       *progression.Curve
	Publisher   shared.EventPublisher
	Profiles    progression.RecordCache
	Leaderboard progression.LeaderboardCache
	Features    FeatureGate
	Metrics     Metrics
	Log         *logger.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Curve == nil {
		d.Curve = progression.DefaultCurve
	}
	if d.Publisher == nil {
		d.Publisher = nopPublisher{}
	}
	if d.Profiles == nil {
		d.Profiles = nopRecordCache{}
	}
	if d.Leaderboard == nil {
		d.Leaderboard = nopLeaderboard{}
	}
	if d.Features == nil {
		d.Features = allFeatures{}
	}
	if d.Metrics == nil {
		d.Metrics = nopMetrics{}
	}
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	return d
}

// publishAll publishes events in order. Publishing never fails the command.
func publishAll(p shared.EventPublisher, events []shared.Event) int {
	failed := 0
	for _, e := range events {
		if err := p.Publish(e); err != nil {
			failed++
		}
	}
	return failed
}

// normalizeUserID returns the canonical form of an already validated ID.
func normalizeUserID(id string) string {
	uid, err := shared.NewUserID(id)
	if err != nil {
		return id
	}
	return uid.String()
}
