package command

import (
	"context"
	"fmt"

	"github.com/career-roadmap/roadmap-hub/internal/domain/progression"
	"github.com/career-roadmap/roadmap-hub/internal/domain/shared"
	"github.com/career-roadmap/roadmap-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENSURE PROFILE COMMAND
// Создаёт запись прогрессии при первой аутентификации. Идемпотентна.
// ══════════════════════════════════════════════════════════════════════════════

// EnsureProfileCommand - данные аутентифицированного пользователя.
type EnsureProfileCommand struct {
	UserID      string
	Email       string
	DisplayName string
}

// EnsureProfileResult - запись и признак её создания.
type EnsureProfileResult struct {
	Record  *progression.Record
	Created bool
}

// EnsureProfileHandler handles EnsureProfileCommand.
type EnsureProfileHandler struct {
	deps Deps
}

// NewEnsureProfileHandler creates a new EnsureProfileHandler.
func NewEnsureProfileHandler(deps Deps) *EnsureProfileHandler {
	return &EnsureProfileHandler{deps: deps.withDefaults()}
}

// Handle возвращает существующую запись или создаёт новую.
// Гонка двух первых запросов разрешается хранилищем: проигравший получает
// ErrProfileAlreadyExists и перечитывает запись.
func (h *EnsureProfileHandler) Handle(ctx context.Context, cmd EnsureProfileCommand) (*EnsureProfileResult, error) {
	uid, err := shared.NewUserID(cmd.UserID)
	if err != nil {
		return nil, fmt.Errorf("ensure_profile: %w", err)
	}
	cmd.UserID = uid.String()

	rec, err := h.deps.Repo.Get(ctx, cmd.UserID)
	if err == nil {
		return &EnsureProfileResult{Record: rec}, nil
	}
	if !shared.IsNotFound(err) {
		return nil, fmt.Errorf("ensure_profile: get: %w", err)
	}

	rec, err = progression.NewRecord(cmd.UserID)
	if err != nil {
		return nil, fmt.Errorf("ensure_profile: %w", err)
	}
	rec.DisplayName = cmd.DisplayName

	if err := h.deps.Repo.Create(ctx, rec); err != nil {
		if !shared.IsAlreadyExists(err) {
			return nil, fmt.Errorf("ensure_profile: create: %w", err)
		}
		existing, err := h.deps.Repo.Get(ctx, cmd.UserID)
		if err != nil {
			return nil, fmt.Errorf("ensure_profile: get: %w", err)
		}
		return &EnsureProfileResult{Record: existing}, nil
	}

	h.deps.Log.Info("profile created", logger.UserID(rec.UserID))
	if err := h.deps.Publisher.Publish(shared.NewProfileCreatedEvent(rec.UserID, cmd.Email)); err != nil {
		h.deps.Log.Warn("profile created event not published", logger.Err(err))
	}
	return &EnsureProfileResult{Record: rec, Created: true}, nil
}
