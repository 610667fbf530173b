package eventhandler

import (
	"github.com/career-roadmap/roadmap-hub/internal/domain/shared"
	"github.com/career-roadmap/roadmap-hub/pkg/logger"
)

// StreakMilestones - длины серий, которые отмечаются отдельно.
var StreakMilestones = []int{7, 30, 100, 365}

// OnStreakHandler логирует продолжение и сброс серий.
type OnStreakHandler struct {
	log         *logger.Logger
	onMilestone func(userID string, days int)
}

// NewOnStreakHandler создаёт обработчик. onMilestone может быть nil.
func NewOnStreakHandler(log *logger.Logger, onMilestone func(userID string, days int)) *OnStreakHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &OnStreakHandler{
		log:         log.With(logger.Component("on_streak")),
		onMilestone: onMilestone,
	}
}

// Handle implements shared.EventHandler.
func (h *OnStreakHandler) Handle(event shared.Event) error {
	p := event.Payload()
	userID := event.AggregateID()

	switch event.EventType() {
	case shared.EventDailyStreakUpdated:
		days := payloadInt(p, "current_streak")
		h.log.Debug("streak updated", logger.UserID(userID), logger.StreakDays(days))
		for _, m := range StreakMilestones {
			if days == m {
				h.log.Info("streak milestone reached", logger.UserID(userID), logger.StreakDays(days))
				if h.onMilestone != nil {
					h.onMilestone(userID, days)
				}
			}
		}
	case shared.EventDailyStreakBroken:
		h.log.Info("streak broken",
			logger.UserID(userID),
			logger.Int("previous_streak", payloadInt(p, "previous_streak")),
			logger.String("inactive", payloadString(p, "inactive")),
		)
	}
	return nil
}
