package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/career-roadmap/roadmap-hub/internal/application/command"
	"github.com/career-roadmap/roadmap-hub/internal/application/query"
	"github.com/career-roadmap/roadmap-hub/internal/domain/progression"
	"github.com/career-roadmap/roadmap-hub/internal/domain/shared"
	"github.com/career-roadmap/roadmap-hub/internal/infrastructure/auth"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

// Narrow views of the application handlers.
type (
	ProgressReader interface {
		Handle(ctx context.Context, q query.GetProgressQuery) (*query.ProgressDTO, error)
	}
	XPAwarder interface {
		Handle(ctx context.Context, cmd command.AwardXPCommand) (*command.AwardXPResult, error)
	}
	ActivityRecorder interface {
		Handle(ctx context.Context, cmd command.RecordActivityCommand) (*command.RecordActivityResult, error)
	}
)

// ProgressHandler serves the caller's progression record. With a
// ProfileEnsurer set, a caller without a record gets one on first use.
type ProgressHandler struct {
	reader   ProgressReader
	awarder  XPAwarder
	activity ActivityRecorder
	profiles ProfileEnsurer
}

// NewProgressHandler creates a ProgressHandler. profiles may be nil.
func NewProgressHandler(reader ProgressReader, awarder XPAwarder, activity ActivityRecorder, profiles ProfileEnsurer) *ProgressHandler {
	return &ProgressHandler{reader: reader, awarder: awarder, activity: activity, profiles: profiles}
}

// AwardXPRequest is the body of POST /progress/me/xp.
type AwardXPRequest struct {
	Source  string `json:"source" binding:"required,oneof=message quiz manual"`
	Correct int    `json:"correct" binding:"gte=0,max=1000"`
	Amount  int    `json:"amount" binding:"gte=0,max=1000000"`
}

// AwardXPResponse is the reply of POST /progress/me/xp.
type AwardXPResponse struct {
	XPGain    int                       `json:"xp_gain"`
	XP        int                       `json:"xp"`
	Level     int                       `json:"level"`
	OldLevel  int                       `json:"old_level"`
	LeveledUp bool                      `json:"leveled_up"`
	Progress  progression.LevelProgress `json:"progress"`
}

// ActivityResponse is the reply of POST /progress/me/activity.
type ActivityResponse struct {
	StreakDays     int    `json:"streak_days"`
	PreviousStreak int    `json:"previous_streak"`
	Transition     string `json:"transition"`
	LastActiveAt   string `json:"last_active_at"`
	Degraded       bool   `json:"degraded,omitempty"`
}

// Get handles GET /progress/me.
func (h *ProgressHandler) Get(c *gin.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}
	dto, err := withProfile(c, h.profiles, id, func(ctx context.Context) (*query.ProgressDTO, error) {
		return h.reader.Handle(ctx, query.GetProgressQuery{UserID: id.UserID})
	})
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto)
}

// AwardXP handles POST /progress/me/xp.
func (h *ProgressHandler) AwardXP(c *gin.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}
	var req AwardXPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err)
		return
	}

	cmd := command.AwardXPCommand{
		UserID:  id.UserID,
		Source:  progression.Source(req.Source),
		Correct: req.Correct,
		Amount:  req.Amount,
	}
	res, err := withProfile(c, h.profiles, id, func(ctx context.Context) (*command.AwardXPResult, error) {
		return h.awarder.Handle(ctx, cmd)
	})
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, AwardXPResponse{
		XPGain:    res.XPGain,
		XP:        res.Record.XP,
		Level:     res.Record.Level,
		OldLevel:  res.OldLevel,
		LeveledUp: res.LeveledUp,
		Progress:  res.Progress,
	})
}

// RecordActivity handles POST /progress/me/activity.
func (h *ProgressHandler) RecordActivity(c *gin.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}
	res, err := withProfile(c, h.profiles, id, func(ctx context.Context) (*command.RecordActivityResult, error) {
		return h.activity.Handle(ctx, command.RecordActivityCommand{UserID: id.UserID})
	})
	if err != nil {
		Fail(c, err)
		return
	}

	resp := ActivityResponse{
		StreakDays:     res.Record.StreakDays,
		PreviousStreak: res.PreviousStreak,
		Transition:     string(res.Transition),
		Degraded:       res.Degraded,
	}
	if res.Record.LastActiveAt != nil {
		resp.LastActiveAt = res.Record.LastActiveAt.UTC().Format(time.RFC3339)
	}
	c.JSON(http.StatusOK, resp)
}

// withProfile runs fn and, if the caller has no record yet, creates it and
// runs fn once more.
func withProfile[T any](c *gin.Context, profiles ProfileEnsurer, id auth.Identity, fn func(context.Context) (T, error)) (T, error) {
	ctx := c.Request.Context()
	res, err := fn(ctx)
	if err == nil || profiles == nil || !shared.IsNotFound(err) {
		return res, err
	}
	if _, err := profiles.Handle(ctx, command.EnsureProfileCommand{UserID: id.UserID, Email: id.Email}); err != nil {
		return res, err
	}
	return fn(ctx)
}

func requireIdentity(c *gin.Context) (auth.Identity, bool) {
	id, ok := IdentityFrom(c)
	if !ok {
		Fail(c, shared.ErrMissingToken)
	}
	return id, ok
}
