package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/career-roadmap/roadmap-hub/internal/domain/progression"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD CACHE
// ══════════════════════════════════════════════════════════════════════════════

const (
	keyLeaderboardXP      = PrefixLeaderboard + "xp"
	keyLeaderboardEntries = PrefixLeaderboard + "entries"
	keyLeaderboardMeta    = PrefixLeaderboard + "meta"
)

// ErrUserIDEmpty is returned for entries without a user ID.
var ErrUserIDEmpty = errors.New("leaderboard: user id is empty")

// LeaderboardMeta describes the last full rebuild.
type LeaderboardMeta struct {
	RebuiltAt time.Time `json:"rebuilt_at"`
	Entries   int       `json:"entries"`
	TotalXP   int64     `json:"total_xp"`
}

// LeaderboardCache keeps the XP ranking in a sorted set (score = XP) and the
// display fields of each entry in a hash.
type LeaderboardCache struct {
	cache *Cache
}

// NewLeaderboardCache creates a new LeaderboardCache.
func NewLeaderboardCache(cache *Cache) *LeaderboardCache {
	return &LeaderboardCache{cache: cache}
}

// maxWatchRetries bounds optimistic retries of UpdateEntry under contention.
const maxWatchRetries = 5

// UpdateEntry upserts one entry unless the stored score is higher. Awards
// for one user may reach Redis out of order; the score never goes down.
// Rebuild is the only way to lower it.
func (l *LeaderboardCache) UpdateEntry(ctx context.Context, e progression.LeaderboardEntry) error {
	if e.UserID == "" {
		return ErrUserIDEmpty
	}
	e.Rank = 0
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}
	score := float64(e.XP)

	return l.cache.do(ctx, func(ctx context.Context) error {
		update := func(tx *redis.Tx) error {
			current, err := tx.ZScore(ctx, keyLeaderboardXP, e.UserID).Result()
			switch {
			case errors.Is(err, redis.Nil):
			case err != nil:
				return err
			case current > score:
				return nil
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.ZAdd(ctx, keyLeaderboardXP, redis.Z{Score: score, Member: e.UserID})
				pipe.HSet(ctx, keyLeaderboardEntries, e.UserID, data)
				return nil
			})
			return err
		}
		for i := 0; i < maxWatchRetries; i++ {
			err := l.cache.client.Watch(ctx, update, keyLeaderboardXP)
			if !errors.Is(err, redis.TxFailedErr) {
				return err
			}
		}
		return redis.TxFailedErr
	})
}

// Rebuild replaces the whole leaderboard with entries in one transaction.
func (l *LeaderboardCache) Rebuild(ctx context.Context, entries []progression.LeaderboardEntry) error {
	members := make([]redis.Z, 0, len(entries))
	details := make(map[string]any, len(entries))
	var total int64
	for _, e := range entries {
		if e.UserID == "" {
			continue
		}
		e.Rank = 0
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
		}
		members = append(members, redis.Z{Score: float64(e.XP), Member: e.UserID})
		details[e.UserID] = data
		total += int64(e.XP)
	}

	meta, err := json.Marshal(LeaderboardMeta{RebuiltAt: time.Now().UTC(), Entries: len(members), TotalXP: total})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}

	return l.cache.do(ctx, func(ctx context.Context) error {
		pipe := l.cache.client.TxPipeline()
		pipe.Del(ctx, keyLeaderboardXP, keyLeaderboardEntries)
		if len(members) > 0 {
			pipe.ZAdd(ctx, keyLeaderboardXP, members...)
			pipe.HSet(ctx, keyLeaderboardEntries, details)
		}
		pipe.Set(ctx, keyLeaderboardMeta, meta, 0)
		_, err := pipe.Exec(ctx)
		return err
	})
}

// GetTop returns the top n entries ranked by XP. Redis orders equal scores
// by descending member, so ties may differ from the database order.
func (l *LeaderboardCache) GetTop(ctx context.Context, n int) ([]progression.LeaderboardEntry, error) {
	if n <= 0 {
		return nil, nil
	}

	var ids []string
	var raw []any
	err := l.cache.do(ctx, func(ctx context.Context) error {
		var err error
		ids, err = l.cache.client.ZRevRange(ctx, keyLeaderboardXP, 0, int64(n-1)).Result()
		if err != nil || len(ids) == 0 {
			return err
		}
		raw, err = l.cache.client.HMGet(ctx, keyLeaderboardEntries, ids...).Result()
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, ErrCacheMiss
	}

	entries := make([]progression.LeaderboardEntry, 0, len(ids))
	for i, id := range ids {
		e := progression.LeaderboardEntry{UserID: id}
		if s, ok := raw[i].(string); ok {
			if err := json.Unmarshal([]byte(s), &e); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrCacheSerialization, err)
			}
		}
		e.Rank = i + 1
		entries = append(entries, e)
	}
	return entries, nil
}

// GetRank returns the 1-based rank of userID, or 0 when it is not ranked.
func (l *LeaderboardCache) GetRank(ctx context.Context, userID string) (int, error) {
	var rank int64 = -1
	err := l.cache.do(ctx, func(ctx context.Context) error {
		r, err := l.cache.client.ZRevRank(ctx, keyLeaderboardXP, userID).Result()
		if err == nil {
			rank = r
		}
		return err
	})
	if err != nil {
		return 0, err
	}
	return int(rank + 1), nil
}

// Count returns the number of ranked users.
func (l *LeaderboardCache) Count(ctx context.Context) (int64, error) {
	var n int64
	err := l.cache.do(ctx, func(ctx context.Context) error {
		var err error
		n, err = l.cache.client.ZCard(ctx, keyLeaderboardXP).Result()
		return err
	})
	return n, err
}

// Meta returns the metadata of the last rebuild or ErrCacheMiss.
func (l *LeaderboardCache) Meta(ctx context.Context) (*LeaderboardMeta, error) {
	var m LeaderboardMeta
	if err := l.cache.Get(ctx, keyLeaderboardMeta, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
