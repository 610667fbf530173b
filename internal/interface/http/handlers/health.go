// Package handlers contains the gin handlers of the HTTP API.
package handlers

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH CHECKS
// ══════════════════════════════════════════════════════════════════════════════

// Checker is a dependency that can report its health. Implemented by the
// postgres connection, the sqlite store and the redis cache.
type Checker interface {
	Name() string
	Check(ctx context.Context) error
}

// Health status values.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusDown     = "down"
)

// HealthStatus represents the overall health status of the service.
type HealthStatus struct {
	Status    string                 `json:"status"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
	Uptime    string                 `json:"uptime"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version,omitempty"`
}

// CheckResult represents the result of a single health check.
type CheckResult struct {
	Healthy  bool   `json:"healthy"`
	Critical bool   `json:"critical"`
	Message  string `json:"message,omitempty"`
	Duration string `json:"duration"`
}

type registeredCheck struct {
	checker  Checker
	critical bool
}

// HealthChecker aggregates dependency checks. A failed critical check
// makes the service down; a failed optional one only degrades it.
type HealthChecker struct {
	mu        sync.RWMutex
	checks    []registeredCheck
	startTime time.Time
	version   string
	timeout   time.Duration
}

// NewHealthChecker creates a new health checker.
func NewHealthChecker(version string) *HealthChecker {
	return &HealthChecker{
		startTime: time.Now(),
		version:   version,
		timeout:   3 * time.Second,
	}
}

// SetTimeout sets the timeout for individual health checks.
func (h *HealthChecker) SetTimeout(timeout time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.timeout = timeout
}

// Add registers a dependency. Nil checkers are ignored.
func (h *HealthChecker) Add(c Checker, critical bool) {
	if c == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, registeredCheck{checker: c, critical: critical})
}

// Check runs all checks concurrently and returns the aggregated status.
func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	h.mu.RLock()
	checks := append([]registeredCheck(nil), h.checks...)
	timeout := h.timeout
	h.mu.RUnlock()

	status := HealthStatus{
		Status:    StatusOK,
		Checks:    make(map[string]CheckResult, len(checks)),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Timestamp: time.Now().UTC(),
		Version:   h.version,
	}

	results := make([]CheckResult, len(checks))
	var g errgroup.Group
	for i, rc := range checks {
		i, rc := i, rc
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			start := time.Now()
			err := rc.checker.Check(cctx)
			res := CheckResult{
				Healthy:  err == nil,
				Critical: rc.critical,
				Message:  "OK",
				Duration: time.Since(start).Round(time.Millisecond).String(),
			}
			if err != nil {
				res.Message = err.Error()
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	for i, rc := range checks {
		res := results[i]
		status.Checks[rc.checker.Name()] = res
		switch {
		case res.Healthy:
		case res.Critical:
			status.Status = StatusDown
		case status.Status == StatusOK:
			status.Status = StatusDegraded
		}
	}
	return status
}

// Failing returns the names of failed checks, sorted.
func (s HealthStatus) Failing() []string {
	var names []string
	for name, r := range s.Checks {
		if !r.Healthy {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// HealthHandler serves liveness and dependency status.
type HealthHandler struct {
	checker *HealthChecker
	appName string
	version string
}

// NewHealthHandler creates a HealthHandler. checker may be nil.
func NewHealthHandler(checker *HealthChecker, appName, version string) *HealthHandler {
	if checker == nil {
		checker = NewHealthChecker(version)
	}
	return &HealthHandler{checker: checker, appName: appName, version: version}
}

// Liveness handles GET /health. It never touches dependencies.
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    StatusOK,
		"timestamp": time.Now().UTC(),
		"version":   h.version,
		"app_name":  h.appName,
	})
}

// Detailed handles GET /health/detailed. Responds 503 only when a
// critical dependency is down.
func (h *HealthHandler) Detailed(c *gin.Context) {
	status := h.checker.Check(c.Request.Context())
	code := http.StatusOK
	if status.Status == StatusDown {
		code = http.StatusServiceUnavailable
		c.Header("X-Failing-Checks", strings.Join(status.Failing(), ","))
	}
	c.JSON(code, status)
}
