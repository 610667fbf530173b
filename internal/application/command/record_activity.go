package command

import (
	"context"
	"fmt"
	"time"

	"github.com/career-roadmap/roadmap-hub/config"
	"github.com/career-roadmap/roadmap-hub/internal/domain/progression"
	"github.com/career-roadmap/roadmap-hub/internal/domain/shared"
	"github.com/career-roadmap/roadmap-hub/pkg/logger"
	"github.com/career-roadmap/roadmap-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD ACTIVITY COMMAND
// Фиксирует активность пользователя и обновляет серию дней (daily streak).
// ══════════════════════════════════════════════════════════════════════════════

// RecordActivityCommand - отметка активности.
type RecordActivityCommand struct {
	// UserID - идентификатор пользователя (UUID).
	UserID string

	// Timestamp - момент активности (по умолчанию сейчас).
	Timestamp time.Time
}

// Validate проверяет команду.
func (c RecordActivityCommand) Validate() error {
	_, err := shared.NewUserID(c.UserID)
	return err
}

// RecordActivityResult - результат обновления серии.
type RecordActivityResult struct {
	progression.StreakResult

	// Degraded - полная запись не удалась, сохранена только длина серии.
	Degraded bool `json:"degraded"`
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// RecordActivityHandler handles RecordActivityCommand.
type RecordActivityHandler struct {
	deps Deps
	loc  *time.Location
	now  func() time.Time
}

// NewRecordActivityHandler creates a new RecordActivityHandler.
// Calendar days are compared in loc; nil means UTC.
func NewRecordActivityHandler(deps Deps, loc *time.Location) *RecordActivityHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &RecordActivityHandler{
		deps: deps.withDefaults(),
		loc:  loc,
		now:  time.Now,
	}
}

// Handle читает запись, применяет правило серии и сохраняет результат.
// Если запись серии и времени не удалась, всегда выполняется ровно одна
// повторная запись только streak_days; наружу возвращается лишь ошибка повтора.
func (h *RecordActivityHandler) Handle(ctx context.Context, cmd RecordActivityCommand) (*RecordActivityResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("record_activity: %w", err)
	}
	cmd.UserID = normalizeUserID(cmd.UserID)
	if !h.deps.Features.IsEnabled(config.FeatureStreaks, cmd.UserID) {
		return nil, fmt.Errorf("record_activity: %s: %w", config.FeatureStreaks, shared.ErrFeatureDisabled)
	}

	now := cmd.Timestamp
	if now.IsZero() {
		now = h.now()
	}
	now = now.UTC()

	rec, err := h.deps.Repo.Get(ctx, cmd.UserID)
	if err != nil {
		return nil, fmt.Errorf("record_activity: get: %w", err)
	}

	res := progression.ApplyStreakUpdate(*rec, now, h.loc)
	log := h.deps.Log.With(logger.UserID(cmd.UserID), logger.String("transition", string(res.Transition)))
	if rec.LastActiveAt != nil {
		log = log.With(logger.Int("gap_days", timeutil.DaysBetween(*rec.LastActiveAt, now, h.loc)))
	}

	degraded := false
	if err := h.deps.Repo.UpdateStreak(ctx, cmd.UserID, res.Record.StreakDays, now); err != nil {
		log.Warn("streak write failed, retrying without timestamp", logger.Err(err))
		if err := h.deps.Repo.UpdateStreakDays(ctx, cmd.UserID, res.Record.StreakDays); err != nil {
			return nil, fmt.Errorf("record_activity: update streak days: %w", err)
		}
		degraded = true
	}

	if err := h.deps.Profiles.Invalidate(ctx, cmd.UserID); err != nil {
		log.Warn("profile cache invalidate failed", logger.Err(err))
	}
	h.deps.Metrics.StreakUpdated(string(res.Transition), degraded)

	if failed := publishAll(h.deps.Publisher, res.Events()); failed > 0 {
		log.Warn("some streak events were not published", logger.Int("failed", failed))
	}
	log.Debug("activity recorded", logger.StreakDays(res.Record.StreakDays), logger.Bool("degraded", degraded))

	return &RecordActivityResult{StreakResult: res, Degraded: degraded}, nil
}
