// Package query contains read operations following CQRS pattern.
// Queries never modify the store. They may fill caches.
package query

import (
	"github.com/career-roadmap/roadmap-hub/internal/domain/progression"
	"github.com/career-roadmap/roadmap-hub/pkg/logger"
)

// FeatureGate reports whether a feature is on for a user.
type FeatureGate interface {
	IsEnabled(feature, userID string) bool
}

// CacheMetrics counts cache hits and misses.
type CacheMetrics interface {
	CacheLookup(cache string, hit bool)
}

type allFeatures struct{}

func (allFeatures) IsEnabled(string, string) bool { return true }

type nopCacheMetrics struct{}

func (nopCacheMetrics) CacheLookup(string, bool) {}

// Deps groups the collaborators of the query handlers. Profiles and
// Leaderboard are optional; without them every read goes to Repo.
type Deps struct {
	Repo        progression.Repository
	Curve       *progression.Curve
	Profiles    progression.RecordCache
	Leaderboard progression.LeaderboardCache
	Features    FeatureGate
	Metrics     CacheMetrics
	Log         *logger.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Curve == nil {
		d.Curve = progression.DefaultCurve
	}
	if d.Features == nil {
		d.Features = allFeatures{}
	}
	if d.Metrics == nil {
		d.Metrics = nopCacheMetrics{}
	}
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	return d
}
