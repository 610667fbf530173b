package app

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/career-roadmap/roadmap-hub/internal/infrastructure/persistence/redis"
)

func TestHandlesEvents(t *testing.T) {
	local := &App{}
	assert.True(t, local.HandlesEvents(RoleAPI), "in-memory bus: api reacts to its own events")
	assert.True(t, local.HandlesEvents(RoleWorker))

	shared := &App{Cache: &redis.Cache{}}
	assert.False(t, shared.HandlesEvents(RoleAPI), "redis bus: api instances leave reactions to the worker")
	assert.True(t, shared.HandlesEvents(RoleWorker))
}
