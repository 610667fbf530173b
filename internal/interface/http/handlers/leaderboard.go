package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/career-roadmap/roadmap-hub/internal/application/query"
	"github.com/career-roadmap/roadmap-hub/internal/domain/progression"
	"github.com/career-roadmap/roadmap-hub/internal/domain/shared"
)

// LeaderboardReader returns the top of the ranking.
type LeaderboardReader interface {
	Handle(ctx context.Context, q query.GetLeaderboardQuery) (*query.LeaderboardResult, error)
}

// LeaderboardHandler serves the ranking and the level table.
type LeaderboardHandler struct {
	reader LeaderboardReader
	curve  *progression.Curve
}

// NewLeaderboardHandler creates a LeaderboardHandler. A nil curve means
// progression.DefaultCurve.
func NewLeaderboardHandler(reader LeaderboardReader, curve *progression.Curve) *LeaderboardHandler {
	return &LeaderboardHandler{reader: reader, curve: curve}
}

// Top handles GET /leaderboard?limit=.
func (h *LeaderboardHandler) Top(c *gin.Context) {
	limit, err := intParam(c, "limit")
	if err != nil {
		Fail(c, err)
		return
	}
	res, err := h.reader.Handle(c.Request.Context(), query.GetLeaderboardQuery{Limit: limit})
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Levels handles GET /levels?max=.
func (h *LeaderboardHandler) Levels(c *gin.Context) {
	maxLevel, err := intParam(c, "max")
	if err != nil {
		Fail(c, err)
		return
	}
	table, err := query.LevelTable(h.curve, query.LevelTableQuery{MaxLevel: maxLevel})
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"levels": table})
}

// intParam reads an optional integer query parameter; absent means 0.
func intParam(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, shared.WrapError("http", "Query", shared.ErrInvalidInput, name+" must be an integer", err)
	}
	return n, nil
}
