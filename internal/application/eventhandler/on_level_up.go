package eventhandler

import (
	"github.com/career-roadmap/roadmap-hub/internal/domain/shared"
	"github.com/career-roadmap/roadmap-hub/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON LEVEL UP HANDLER
// ═══════════════════════════════════════════════════════════════════════════

// DefaultLevelMilestoneEvery - каждый какой уровень считается вехой.
const DefaultLevelMilestoneEvery = 5

// OnLevelUpHandler логирует повышения уровня и отмечает вехи.
type OnLevelUpHandler struct {
	log            *logger.Logger
	milestoneEvery int
	onMilestone    func(userID string, level int)
}

// NewOnLevelUpHandler создаёт обработчик. onMilestone может быть nil.
func NewOnLevelUpHandler(log *logger.Logger, onMilestone func(userID string, level int)) *OnLevelUpHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &OnLevelUpHandler{
		log:            log.With(logger.Component("on_level_up")),
		milestoneEvery: DefaultLevelMilestoneEvery,
		onMilestone:    onMilestone,
	}
}

// Handle implements shared.EventHandler.
func (h *OnLevelUpHandler) Handle(event shared.Event) error {
	if event.EventType() != shared.EventLevelUp {
		return nil
	}
	p := event.Payload()
	userID := event.AggregateID()
	oldLevel, newLevel := payloadInt(p, "old_level"), payloadInt(p, "new_level")

	h.log.Info("user leveled up",
		logger.UserID(userID),
		logger.Int("old_level", oldLevel),
		logger.UserLevel(newLevel),
		logger.XPAmount(payloadInt(p, "total_xp")),
	)

	// Одно начисление может пройти несколько уровней сразу.
	for l := oldLevel + 1; l <= newLevel; l++ {
		if l%h.milestoneEvery != 0 {
			continue
		}
		h.log.Info("level milestone reached", logger.UserID(userID), logger.UserLevel(l))
		if h.onMilestone != nil {
			h.onMilestone(userID, l)
		}
	}
	return nil
}
