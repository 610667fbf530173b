package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/career-roadmap/roadmap-hub/internal/application/command"
	"github.com/career-roadmap/roadmap-hub/internal/application/query"
	"github.com/career-roadmap/roadmap-hub/internal/domain/progression"
	"github.com/career-roadmap/roadmap-hub/internal/infrastructure/auth"
	"github.com/career-roadmap/roadmap-hub/internal/infrastructure/metrics"
	"github.com/career-roadmap/roadmap-hub/internal/infrastructure/persistence/sqlite"
	"github.com/career-roadmap/roadmap-hub/internal/interface/http/handlers"
)

const (
	testSecret = "test-secret"
	testUser   = "3c9a7e21-4b5d-4f6e-9a8b-7c6d5e4f3a2b"
)

type testEnv struct {
	srv      *Server
	verifier *auth.Verifier
	metrics  *metrics.Metrics
	token    string
}

func newTestEnv(t *testing.T, mutate func(*Config, *Dependencies)) *testEnv {
	t.Helper()
	ctx := context.Background()

	store, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "progress.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	m := metrics.New()
	verifier := auth.NewVerifier(testSecret, "authenticated", "")
	cmdDeps := command.Deps{Repo: store, Metrics: m}
	qDeps := query.Deps{Repo: store, Metrics: m}

	health := handlers.NewHealthChecker("test")
	health.Add(store, true)

	cfg := Config{AppName: "roadmap-hub", Version: "test", MetricsPath: "/metrics"}
	deps := Dependencies{
		Progress:       query.NewGetProgressHandler(qDeps),
		AwardXP:        command.NewAwardXPHandler(cmdDeps),
		Activity:       command.NewRecordActivityHandler(cmdDeps, time.UTC),
		Profiles:       command.NewEnsureProfileHandler(cmdDeps),
		Leaderboard:    query.NewGetLeaderboardHandler(qDeps),
		Verifier:       verifier,
		Health:         health,
		Metrics:        m,
		MetricsHandler: m.Handler(),
	}
	if mutate != nil {
		mutate(&cfg, &deps)
	}

	token, err := verifier.Issue(testUser, "dev@example.com", time.Hour)
	require.NoError(t, err)
	return &testEnv{srv: NewServer(cfg, deps), verifier: verifier, metrics: m, token: token}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rec, req)

	var out map[string]any
	if rec.Header().Get("Content-Type") != "" && bytes.HasPrefix(rec.Body.Bytes(), []byte("{")) {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestServer_Health(t *testing.T) {
	env := newTestEnv(t, nil)

	rec, body := env.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "roadmap-hub", body["app_name"])
	assert.Equal(t, "test", body["version"])
	assert.NotEmpty(t, body["timestamp"])
	assert.NotEmpty(t, rec.Header().Get(HeaderRequestID))

	rec, body = env.do(t, http.MethodGet, "/health/detailed", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	checks := body["checks"].(map[string]any)
	assert.Contains(t, checks, "sqlite")
}

type failingCheck struct{ name string }

func (f failingCheck) Name() string                { return f.name }
func (f failingCheck) Check(context.Context) error { return errors.New("connection refused") }

func TestServer_HealthDetailed_CriticalVsOptional(t *testing.T) {
	env := newTestEnv(t, func(_ *Config, d *Dependencies) {
		d.Health.Add(failingCheck{name: "redis"}, false)
	})
	rec, body := env.do(t, http.MethodGet, "/health/detailed", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "degraded", body["status"])

	env = newTestEnv(t, func(_ *Config, d *Dependencies) {
		d.Health.Add(failingCheck{name: "database"}, true)
	})
	rec, body = env.do(t, http.MethodGet, "/health/detailed", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "down", body["status"])
	assert.Equal(t, "database", rec.Header().Get("X-Failing-Checks"))
}

func TestServer_RequiresAuth(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, path := range []string{"/users/me", "/progress/me"} {
		rec, body := env.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		assert.Equal(t, "unauthorized", body["code"])
	}
	rec, _ := env.do(t, http.MethodPost, "/progress/me/xp", "garbage.token.value", map[string]any{"source": "message"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServer_UsersCheck(t *testing.T) {
	env := newTestEnv(t, nil)

	_, body := env.do(t, http.MethodGet, "/users/check", "", nil)
	assert.Equal(t, false, body["authenticated"])

	_, body = env.do(t, http.MethodGet, "/users/check", "bad", nil)
	assert.Equal(t, false, body["authenticated"])

	_, body = env.do(t, http.MethodGet, "/users/check", env.token, nil)
	assert.Equal(t, true, body["authenticated"])
	assert.Equal(t, testUser, body["user_id"])
}

func TestServer_ProgressFlow(t *testing.T) {
	env := newTestEnv(t, nil)

	rec, body := env.do(t, http.MethodGet, "/users/me", env.token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, testUser, body["id"])
	assert.Equal(t, "dev@example.com", body["email"])
	assert.Equal(t, true, body["created"])

	_, body = env.do(t, http.MethodGet, "/users/me", env.token, nil)
	assert.Equal(t, false, body["created"])

	rec, body = env.do(t, http.MethodPost, "/progress/me/xp", env.token, map[string]any{"source": "quiz", "correct": 5})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 250, body["xp_gain"])
	assert.EqualValues(t, 250, body["xp"])
	assert.EqualValues(t, 3, body["level"])
	assert.EqualValues(t, 1, body["old_level"])
	assert.Equal(t, true, body["leveled_up"])

	rec, body = env.do(t, http.MethodPost, "/progress/me/xp", env.token, map[string]any{"source": "message"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 260, body["xp"])

	rec, body = env.do(t, http.MethodPost, "/progress/me/activity", env.token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 1, body["streak_days"])
	assert.Equal(t, string(progression.StreakStarted), body["transition"])
	assert.NotEmpty(t, body["last_active_at"])

	rec, body = env.do(t, http.MethodGet, "/progress/me", env.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 260, body["xp"])
	assert.EqualValues(t, 3, body["level"])
	assert.EqualValues(t, 1, body["streak_days"])
	progress := body["progress"].(map[string]any)
	assert.EqualValues(t, 210, progress["level_start_xp"])
	assert.EqualValues(t, 331, progress["next_level_xp"])

	rec, body = env.do(t, http.MethodGet, "/leaderboard?limit=5", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "store", body["source"])
	entries := body["entries"].([]any)
	require.Len(t, entries, 1)
	assert.Equal(t, testUser, entries[0].(map[string]any)["user_id"])
}

func TestServer_AwardXP_Validation(t *testing.T) {
	env := newTestEnv(t, nil)
	_, _ = env.do(t, http.MethodGet, "/users/me", env.token, nil)

	for name, body := range map[string]any{
		"missing source":   map[string]any{"correct": 1},
		"unknown source":   map[string]any{"source": "bonus"},
		"negative correct": map[string]any{"source": "quiz", "correct": -1},
		"negative amount":  map[string]any{"source": "manual", "amount": -5},
		"too many correct": map[string]any{"source": "quiz", "correct": 1001},
		"wrapping correct": map[string]any{"source": "quiz", "correct": int64(5534023222112865485)},
		"beyond int64":     map[string]any{"source": "quiz", "correct": 1e20},
		"amount over cap":  map[string]any{"source": "manual", "amount": 1000001},
	} {
		t.Run(name, func(t *testing.T) {
			rec, out := env.do(t, http.MethodPost, "/progress/me/xp", env.token, body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "invalid_argument", out["code"])
			assert.NotEmpty(t, out["request_id"])
		})
	}

	_, body := env.do(t, http.MethodGet, "/progress/me", env.token, nil)
	assert.EqualValues(t, 0, body["xp"])
}

func TestServer_ProfileCreatedOnFirstUse(t *testing.T) {
	env := newTestEnv(t, nil)

	rec, body := env.do(t, http.MethodPost, "/progress/me/xp", env.token, map[string]any{"source": "message"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 10, body["xp"])
	assert.EqualValues(t, 1, body["level"])

	_, body = env.do(t, http.MethodGet, "/users/me", env.token, nil)
	assert.Equal(t, false, body["created"])
	assert.EqualValues(t, 10, body["xp"])

	other, err := env.verifier.Issue("0b7f0e2c-3a41-4d5e-9f60-7a8b9c0d1e2f", "", time.Hour)
	require.NoError(t, err)
	rec, body = env.do(t, http.MethodPost, "/progress/me/activity", other, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 1, body["streak_days"])

	third, err := env.verifier.Issue("9a1b2c3d-4e5f-4a6b-8c7d-0e1f2a3b4c5d", "", time.Hour)
	require.NoError(t, err)
	rec, body = env.do(t, http.MethodGet, "/progress/me", third, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 0, body["xp"])
	assert.EqualValues(t, 1, body["level"])
}

func TestServer_UnknownProfileWithoutEnsurer(t *testing.T) {
	env := newTestEnv(t, func(_ *Config, d *Dependencies) {
		d.Profiles = nil
	})

	rec, body := env.do(t, http.MethodGet, "/progress/me", env.token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", body["code"])

	rec, _ = env.do(t, http.MethodPost, "/progress/me/xp", env.token, map[string]any{"source": "message"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Levels(t *testing.T) {
	env := newTestEnv(t, nil)

	rec, body := env.do(t, http.MethodGet, "/levels?max=4", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	levels := body["levels"].([]any)
	require.Len(t, levels, 4)
	var xp []float64
	for _, l := range levels {
		xp = append(xp, l.(map[string]any)["xp_required"].(float64))
	}
	assert.Equal(t, []float64{0, 100, 210, 331}, xp)

	rec, body = env.do(t, http.MethodGet, "/levels", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["levels"].([]any), query.DefaultLevelTableSize)

	for _, q := range []string{"abc", "-1", "100000"} {
		rec, _ = env.do(t, http.MethodGet, "/levels?max="+q, "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestServer_LeaderboardLimit(t *testing.T) {
	env := newTestEnv(t, nil)

	rec, body := env.do(t, http.MethodGet, "/leaderboard", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, body["entries"])

	rec, _ = env.do(t, http.MethodGet, "/leaderboard?limit=-3", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_RateLimitOnWrites(t *testing.T) {
	env := newTestEnv(t, func(c *Config, _ *Dependencies) {
		c.RateLimitRPS = 0.001
		c.RateLimitBurst = 1
	})
	_, _ = env.do(t, http.MethodGet, "/users/me", env.token, nil)

	rec, _ := env.do(t, http.MethodPost, "/progress/me/xp", env.token, map[string]any{"source": "message"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body := env.do(t, http.MethodPost, "/progress/me/activity", env.token, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate_limited", body["code"])
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	rec, _ = env.do(t, http.MethodGet, "/progress/me", env.token, nil)
	assert.Equal(t, http.StatusOK, rec.Code, "reads are not limited")
}

func TestServer_Metrics(t *testing.T) {
	env := newTestEnv(t, nil)
	_, _ = env.do(t, http.MethodGet, "/levels?max=2", "", nil)

	rec := httptest.NewRecorder()
	env.srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `roadmap_http_requests_total{method="GET",route="/levels",status="200"} 1`)
}

func TestServer_RequestIDPropagates(t *testing.T) {
	env := newTestEnv(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(HeaderRequestID, "req-42")
	rec := httptest.NewRecorder()
	env.srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "req-42", rec.Header().Get(HeaderRequestID))
}

func TestLocalLimiter(t *testing.T) {
	l := NewLocalLimiter(0.001, 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, "a")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, _ := l.Allow(ctx, "a")
	assert.False(t, ok)
	ok, _ = l.Allow(ctx, "b")
	assert.True(t, ok)
	assert.Equal(t, 2, l.Len())
}
