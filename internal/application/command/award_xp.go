package command

import (
	"context"
	"fmt"

	"github.com/career-roadmap/roadmap-hub/config"
	"github.com/career-roadmap/roadmap-hub/internal/domain/progression"
	"github.com/career-roadmap/roadmap-hub/internal/domain/shared"
	"github.com/career-roadmap/roadmap-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// AWARD XP COMMAND
// Начисляет XP за сообщение в чате, квиз или вручную.
// Прибавление выполняется атомарно в хранилище, кэши обновляются best-effort.
// ══════════════════════════════════════════════════════════════════════════════

// AwardXPCommand - запрос на начисление XP.
type AwardXPCommand struct {
	// UserID - идентификатор пользователя (UUID).
	UserID string

	// Source - message, quiz или manual.
	Source progression.Source

	// Correct - число верных ответов (для quiz).
	Correct int

	// Amount - явное количество XP (для manual).
	Amount int
}

// Validate проверяет команду.
func (c AwardXPCommand) Validate() error {
	if _, err := shared.NewUserID(c.UserID); err != nil {
		return err
	}
	if !c.Source.IsValid() {
		return shared.ErrUnknownXPSource
	}
	if c.Correct < 0 {
		return shared.ErrNegativeCorrect
	}
	if c.Correct > progression.MaxQuizCorrect {
		return shared.ErrTooManyCorrect
	}
	if c.Amount < 0 {
		return shared.ErrNegativeXPGain
	}
	if c.Amount > progression.MaxManualAward {
		return shared.ErrXPGainTooLarge
	}
	return nil
}

func (c AwardXPCommand) award() progression.Award {
	return progression.Award{Source: c.Source, Correct: c.Correct, Amount: c.Amount}
}

// AwardXPResult - результат начисления.
type AwardXPResult struct {
	progression.XPGainResult

	// Progress - прогресс внутри нового уровня.
	Progress progression.LevelProgress `json:"progress"`
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// AwardXPHandler handles AwardXPCommand.
type AwardXPHandler struct {
	deps Deps
}

// NewAwardXPHandler creates a new AwardXPHandler.
func NewAwardXPHandler(deps Deps) *AwardXPHandler {
	return &AwardXPHandler{deps: deps.withDefaults()}
}

// Handle начисляет XP. Ошибки валидации и отключённой функции возвращаются
// до обращения к хранилищу.
func (h *AwardXPHandler) Handle(ctx context.Context, cmd AwardXPCommand) (*AwardXPResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("award_xp: %w", err)
	}
	cmd.UserID = normalizeUserID(cmd.UserID)
	if err := h.checkFeature(cmd); err != nil {
		return nil, fmt.Errorf("award_xp: %w", err)
	}

	gain, err := cmd.award().XP()
	if err != nil {
		return nil, fmt.Errorf("award_xp: %w", err)
	}

	res, err := h.deps.Repo.IncrementXP(ctx, cmd.UserID, gain, h.deps.Curve)
	if err != nil {
		return nil, fmt.Errorf("award_xp: increment: %w", err)
	}

	log := h.deps.Log.With(logger.UserID(cmd.UserID), logger.Source(string(cmd.Source)))
	h.refreshCaches(ctx, log, res.Record)
	h.deps.Metrics.XPAwarded(string(cmd.Source), gain, res.LeveledUp)

	if failed := publishAll(h.deps.Publisher, res.Events(cmd.Source)); failed > 0 {
		log.Warn("some xp events were not published", logger.Int("failed", failed))
	}
	if res.LeveledUp {
		log.Info("level up",
			logger.Int("old_level", res.OldLevel),
			logger.UserLevel(res.Record.Level),
			logger.XPAmount(res.Record.XP),
		)
	}

	return &AwardXPResult{
		XPGainResult: res,
		Progress:     h.deps.Curve.Progress(res.Record.Level, res.Record.XP),
	}, nil
}

func (h *AwardXPHandler) checkFeature(cmd AwardXPCommand) error {
	var feature string
	switch cmd.Source {
	case progression.SourceQuiz:
		feature = config.FeatureQuizAwards
	case progression.SourceManual:
		feature = config.FeatureManualAwards
	default:
		return nil
	}
	if !h.deps.Features.IsEnabled(feature, cmd.UserID) {
		return shared.WrapError("progression", "Award", shared.ErrForbidden, feature+" is disabled", shared.ErrFeatureDisabled)
	}
	return nil
}

// refreshCaches обновляет рейтинг и сбрасывает кэш профиля.
// Ошибки кэша только логируются: источник истины - хранилище.
func (h *AwardXPHandler) refreshCaches(ctx context.Context, log *logger.Logger, rec progression.Record) {
	if err := h.deps.Profiles.Invalidate(ctx, rec.UserID); err != nil {
		log.Warn("profile cache invalidate failed", logger.Err(err))
	}
	if !h.deps.Features.IsEnabled(config.FeatureLeaderboard, rec.UserID) {
		return
	}
	entry := progression.LeaderboardEntry{
		UserID:      rec.UserID,
		DisplayName: rec.DisplayName,
		XP:          rec.XP,
		Level:       rec.Level,
		StreakDays:  rec.StreakDays,
	}
	if err := h.deps.Leaderboard.UpdateEntry(ctx, entry); err != nil {
		log.Warn("leaderboard update failed", logger.Err(err))
	}
}
