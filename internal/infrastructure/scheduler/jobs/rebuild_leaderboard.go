// Package jobs contains implementations of scheduled jobs.
package jobs

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/career-roadmap/roadmap-hub/internal/domain/progression"
	"github.com/career-roadmap/roadmap-hub/internal/domain/shared"
	"github.com/career-roadmap/roadmap-hub/pkg/logger"
	"github.com/career-roadmap/roadmap-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// REBUILD LEADERBOARD JOB
// ══════════════════════════════════════════════════════════════════════════════

// RankingSource reads the authoritative ranking.
type RankingSource interface {
	TopByXP(ctx context.Context, limit int) ([]progression.LeaderboardEntry, error)
}

// RankingSink replaces the cached ranking.
type RankingSink interface {
	Rebuild(ctx context.Context, entries []progression.LeaderboardEntry) error
}

// RebuildLeaderboardJob reloads the cached XP ranking from the store so
// drift from failed best-effort updates does not accumulate.
type RebuildLeaderboardJob struct {
	source    RankingSource
	sink      RankingSink
	publisher shared.EventPublisher
	log       *logger.Logger
	size      int
	retrier   *retry.Retrier

	lastStats atomic.Pointer[RebuildStats]
}

// RebuildStats describes the last successful run.
type RebuildStats struct {
	CompletedAt time.Time
	Duration    time.Duration
	Entries     int
}

// RebuildLeaderboardConfig contains configuration for the rebuild job.
type RebuildLeaderboardConfig struct {
	// Size - сколько позиций хранить в кэше.
	Size int

	// Retrier for the store read; nil retries every error with
	// retry.JobRetrier.
	Retrier *retry.Retrier
}

// NewRebuildLeaderboardJob creates a new rebuild leaderboard job.
// publisher may be nil.
func NewRebuildLeaderboardJob(
	source RankingSource,
	sink RankingSink,
	publisher shared.EventPublisher,
	log *logger.Logger,
	cfg RebuildLeaderboardConfig,
) *RebuildLeaderboardJob {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.Size <= 0 {
		cfg.Size = 100
	}
	if cfg.Retrier == nil {
		cfg.Retrier = retry.JobRetrier(nil)
	}
	return &RebuildLeaderboardJob{
		source:    source,
		sink:      sink,
		publisher: publisher,
		log:       log.With(logger.Component("rebuild_leaderboard")),
		size:      cfg.Size,
		retrier:   cfg.Retrier,
	}
}

// Name returns the job name.
func (j *RebuildLeaderboardJob) Name() string {
	return "rebuild_leaderboard"
}

// Description returns a human-readable description.
func (j *RebuildLeaderboardJob) Description() string {
	return "Reloads the cached XP leaderboard from the profile store"
}

// Run executes the rebuild job.
func (j *RebuildLeaderboardJob) Run(ctx context.Context) error {
	started := time.Now()

	var entries []progression.LeaderboardEntry
	err := j.retrier.Do(ctx, func(ctx context.Context) error {
		var err error
		entries, err = j.source.TopByXP(ctx, j.size)
		return err
	})
	if err != nil {
		return fmt.Errorf("rebuild_leaderboard: load ranking: %w", err)
	}

	if err := j.sink.Rebuild(ctx, entries); err != nil {
		return fmt.Errorf("rebuild_leaderboard: write cache: %w", err)
	}

	stats := &RebuildStats{
		CompletedAt: time.Now(),
		Duration:    time.Since(started),
		Entries:     len(entries),
	}
	j.lastStats.Store(stats)

	j.log.Info("leaderboard rebuilt", logger.Int("entries", stats.Entries), logger.Latency(stats.Duration))
	if j.publisher != nil {
		if err := j.publisher.Publish(shared.NewLeaderboardRebuiltEvent(stats.Entries, stats.Duration)); err != nil {
			j.log.Warn("leaderboard rebuilt event not published", logger.Err(err))
		}
	}
	return nil
}

// LastStats returns the stats of the last successful run, or nil.
func (j *RebuildLeaderboardJob) LastStats() *RebuildStats {
	return j.lastStats.Load()
}
