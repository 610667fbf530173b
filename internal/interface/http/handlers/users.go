package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/career-roadmap/roadmap-hub/internal/application/command"
)

// ProfileEnsurer creates the progression record on first sight of a user.
type ProfileEnsurer interface {
	Handle(ctx context.Context, cmd command.EnsureProfileCommand) (*command.EnsureProfileResult, error)
}

// UsersHandler serves the authenticated identity.
type UsersHandler struct {
	profiles ProfileEnsurer
}

// NewUsersHandler creates a UsersHandler.
func NewUsersHandler(profiles ProfileEnsurer) *UsersHandler {
	return &UsersHandler{profiles: profiles}
}

// MeResponse is the reply of GET /users/me.
type MeResponse struct {
	ID      string `json:"id"`
	Email   string `json:"email,omitempty"`
	XP      int    `json:"xp"`
	Level   int    `json:"level"`
	Created bool   `json:"created"`
}

// Me handles GET /users/me.
func (h *UsersHandler) Me(c *gin.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}
	res, err := h.profiles.Handle(c.Request.Context(), command.EnsureProfileCommand{
		UserID: id.UserID,
		Email:  id.Email,
	})
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, MeResponse{
		ID:      res.Record.UserID,
		Email:   id.Email,
		XP:      res.Record.XP,
		Level:   res.Record.Level,
		Created: res.Created,
	})
}

// Check handles GET /users/check. Works with or without a token.
func (h *UsersHandler) Check(c *gin.Context) {
	id, ok := IdentityFrom(c)
	resp := gin.H{"authenticated": ok}
	if ok {
		resp["user_id"] = id.UserID
	}
	c.JSON(http.StatusOK, resp)
}
