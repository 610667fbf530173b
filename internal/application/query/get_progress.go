package query

import (
	"context"
	"fmt"
	"time"

	"github.com/career-roadmap/roadmap-hub/internal/domain/progression"
	"github.com/career-roadmap/roadmap-hub/internal/domain/shared"
	"github.com/career-roadmap/roadmap-hub/pkg/logger"
	"github.com/career-roadmap/roadmap-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PROGRESS QUERY
// Возвращает запись прогрессии пользователя и прогресс внутри уровня.
// Чтение через кэш профиля (cache-aside).
// ══════════════════════════════════════════════════════════════════════════════

// GetProgressQuery - параметры запроса.
type GetProgressQuery struct {
	UserID string
}

// ProgressDTO - прогресс пользователя для API.
type ProgressDTO struct {
	UserID       string                    `json:"user_id"`
	DisplayName  string                    `json:"display_name,omitempty"`
	XP           int                       `json:"xp"`
	Level        int                       `json:"level"`
	StreakDays   int                       `json:"streak_days"`
	LastActiveAt *string                   `json:"last_active_at,omitempty"`
	LastActive   string                    `json:"last_active,omitempty"`
	Progress     progression.LevelProgress `json:"progress"`

	// Rank - позиция в рейтинге; 0, если рейтинг недоступен.
	Rank int `json:"rank,omitempty"`

	// FromCache - запись прочитана из кэша.
	FromCache bool `json:"-"`
}

// GetProgressHandler handles GetProgressQuery.
type GetProgressHandler struct {
	deps Deps
	now  func() time.Time
}

// NewGetProgressHandler creates a new GetProgressHandler.
func NewGetProgressHandler(deps Deps) *GetProgressHandler {
	return &GetProgressHandler{deps: deps.withDefaults(), now: time.Now}
}

// Handle executes the query.
func (h *GetProgressHandler) Handle(ctx context.Context, q GetProgressQuery) (*ProgressDTO, error) {
	uid, err := shared.NewUserID(q.UserID)
	if err != nil {
		return nil, fmt.Errorf("get_progress: %w", err)
	}
	userID := uid.String()
	log := h.deps.Log.With(logger.UserID(userID))

	rec, fromCache := h.cached(ctx, userID)
	if rec == nil {
		rec, err = h.deps.Repo.Get(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("get_progress: %w", err)
		}
		if h.deps.Profiles != nil {
			if err := h.deps.Profiles.Set(ctx, rec); err != nil {
				log.Debug("profile cache fill failed", logger.Err(err))
			}
		}
	}

	dto := &ProgressDTO{
		UserID:      rec.UserID,
		DisplayName: rec.DisplayName,
		XP:          rec.XP,
		Level:       rec.Level,
		StreakDays:  rec.StreakDays,
		Progress:    h.deps.Curve.Progress(rec.Level, rec.XP),
		FromCache:   fromCache,
	}
	if rec.LastActiveAt != nil {
		s := rec.LastActiveAt.UTC().Format(time.RFC3339)
		dto.LastActiveAt = &s
		dto.LastActive = timeutil.FormatRelative(*rec.LastActiveAt, h.now())
	}

	if h.deps.Leaderboard != nil {
		rank, err := h.deps.Leaderboard.GetRank(ctx, userID)
		if err != nil {
			log.Debug("rank lookup failed", logger.Err(err))
		}
		dto.Rank = rank
	}
	return dto, nil
}

func (h *GetProgressHandler) cached(ctx context.Context, userID string) (*progression.Record, bool) {
	if h.deps.Profiles == nil {
		return nil, false
	}
	rec, err := h.deps.Profiles.Get(ctx, userID)
	hit := err == nil && rec != nil
	h.deps.Metrics.CacheLookup("profile", hit)
	if !hit {
		return nil, false
	}
	return rec, true
}
