package query

import (
	"context"
	"fmt"
	"time"

	"github.com/career-roadmap/roadmap-hub/config"
	"github.com/career-roadmap/roadmap-hub/internal/domain/progression"
	"github.com/career-roadmap/roadmap-hub/internal/domain/shared"
	"github.com/career-roadmap/roadmap-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEADERBOARD QUERY
// Получает топ-N пользователей по XP. Сначала Redis, при промахе - хранилище.
// ══════════════════════════════════════════════════════════════════════════════

const (
	DefaultLeaderboardLimit = shared.DefaultPageSize
	MaxLeaderboardLimit     = shared.MaxPageSize
)

// GetLeaderboardQuery содержит параметры запроса лидерборда.
type GetLeaderboardQuery struct {
	// Limit - количество записей (по умолчанию 20, максимум 100).
	Limit int
}

// Validate проверяет корректность параметров запроса.
func (q *GetLeaderboardQuery) Validate() error {
	if q.Limit < 0 {
		return shared.NewDomainError("leaderboard", "Validate", shared.ErrNegativeValue, "limit cannot be negative")
	}
	q.Limit = shared.Pagination{PageSize: q.Limit}.Limit()
	return nil
}

// LeaderboardResult - ответ на запрос лидерборда.
type LeaderboardResult struct {
	Entries     []progression.LeaderboardEntry `json:"entries"`
	Source      string                         `json:"source"`
	GeneratedAt time.Time                      `json:"generated_at"`
}

// GetLeaderboardHandler обрабатывает запрос лидерборда.
type GetLeaderboardHandler struct {
	deps Deps
}

// NewGetLeaderboardHandler создаёт новый обработчик.
func NewGetLeaderboardHandler(deps Deps) *GetLeaderboardHandler {
	return &GetLeaderboardHandler{deps: deps.withDefaults()}
}

// Handle выполняет запрос.
func (h *GetLeaderboardHandler) Handle(ctx context.Context, q GetLeaderboardQuery) (*LeaderboardResult, error) {
	if !h.deps.Features.IsEnabled(config.FeatureLeaderboard, "") {
		return nil, fmt.Errorf("get_leaderboard: %w", shared.ErrFeatureDisabled)
	}
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_leaderboard: %w", err)
	}

	if h.deps.Leaderboard != nil {
		entries, err := h.deps.Leaderboard.GetTop(ctx, q.Limit)
		h.deps.Metrics.CacheLookup("leaderboard", err == nil)
		if err == nil {
			return &LeaderboardResult{Entries: entries, Source: "cache", GeneratedAt: time.Now().UTC()}, nil
		}
		h.deps.Log.Debug("leaderboard cache miss", logger.Err(err))
	}

	entries, err := h.deps.Repo.TopByXP(ctx, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("get_leaderboard: %w", err)
	}
	if entries == nil {
		entries = []progression.LeaderboardEntry{}
	}
	return &LeaderboardResult{Entries: entries, Source: "store", GeneratedAt: time.Now().UTC()}, nil
}
