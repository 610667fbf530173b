package eventhandler

import (
	"context"
	"time"

	"github.com/career-roadmap/roadmap-hub/internal/domain/progression"
	"github.com/career-roadmap/roadmap-hub/internal/domain/shared"
	"github.com/career-roadmap/roadmap-hub/pkg/logger"
)

// OnProfileCreatedHandler добавляет нового пользователя в рейтинг с нулевым XP,
// чтобы у него сразу была позиция.
type OnProfileCreatedHandler struct {
	leaderboard progression.LeaderboardCache
	log         *logger.Logger
	timeout     time.Duration
}

// NewOnProfileCreatedHandler создаёт обработчик. leaderboard может быть nil.
func NewOnProfileCreatedHandler(leaderboard progression.LeaderboardCache, log *logger.Logger) *OnProfileCreatedHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &OnProfileCreatedHandler{
		leaderboard: leaderboard,
		log:         log.With(logger.Component("on_profile_created")),
		timeout:     2 * time.Second,
	}
}

// Handle implements shared.EventHandler.
func (h *OnProfileCreatedHandler) Handle(event shared.Event) error {
	userID := event.AggregateID()
	h.log.Info("profile created", logger.UserID(userID))
	if h.leaderboard == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	// Начисление могло опередить событие. UpdateEntry и так не понизит XP,
	// проверка лишь экономит запись.
	if rank, err := h.leaderboard.GetRank(ctx, userID); err == nil && !shared.Rank(rank).IsUnranked() {
		return nil
	}
	return h.leaderboard.UpdateEntry(ctx, progression.LeaderboardEntry{UserID: userID, Level: 1})
}
