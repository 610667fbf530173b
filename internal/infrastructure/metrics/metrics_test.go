package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.XPAwarded("message", 10, false)
	m.XPAwarded("quiz", 150, true)
	m.StreakUpdated("continued", false)
	m.StreakUpdated("reset", true)
	m.CacheLookup("profile", true)
	m.CacheLookup("profile", false)
	m.JobCompleted("rebuild_leaderboard", time.Second, errors.New("db down"))

	assert.Equal(t, 10.0, testutil.ToFloat64(m.xpAwarded.WithLabelValues("message")))
	assert.Equal(t, 150.0, testutil.ToFloat64(m.xpAwarded.WithLabelValues("quiz")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.levelUps))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.degradedWrites))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.streakTransitions.WithLabelValues("reset")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("profile", "miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobRuns.WithLabelValues("rebuild_leaderboard", "error")))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.HTTPRequest(http.MethodGet, "/progress/me", 200, 15*time.Millisecond)
	m.EventPublished("progress.level_up")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `roadmap_http_requests_total{method="GET",route="/progress/me",status="200"} 1`)
	assert.Contains(t, body, "roadmap_events_published_total")
	assert.Contains(t, body, "go_goroutines")
}
