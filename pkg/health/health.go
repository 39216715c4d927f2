// Package health backs the /healthz endpoint: a registry of named checks
// run concurrently with a shared timeout, rolled up into one status.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"time"
)

// Checker is the interface for health checks.
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

// CheckFunc is a function type that implements Checker.
type CheckFunc func(ctx context.Context) CheckResult

func (f CheckFunc) Name() string                          { return "" }
func (f CheckFunc) Check(ctx context.Context) CheckResult { return f(ctx) }

// Status represents the health status.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
	StatusUnknown   Status = "unknown"
)

// CheckResult holds the result of one health check.
type CheckResult struct {
	Status    Status         `json:"status"`
	Message   string         `json:"message,omitempty"`
	Duration  time.Duration  `json:"duration_ms"`
	Timestamp time.Time      `json:"timestamp"`
	Error     string         `json:"error,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Response is the full health report.
type Response struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
	Version   string                 `json:"version,omitempty"`
	Uptime    time.Duration          `json:"uptime_seconds,omitempty"`
}

// Handler runs registered checks and serves the report over HTTP.
type Handler struct {
	mu     sync.RWMutex
	checks map[string]Checker

	version   string
	startTime time.Time
	timeout   time.Duration
}

// HandlerOption configures the health handler.
type HandlerOption func(*Handler)

// WithVersion sets the application version included in reports.
func WithVersion(version string) HandlerOption {
	return func(h *Handler) {
		h.version = version
	}
}

// WithTimeout sets the per-report check timeout.
func WithTimeout(timeout time.Duration) HandlerOption {
	return func(h *Handler) {
		h.timeout = timeout
	}
}

// NewHandler creates a health handler.
func NewHandler(opts ...HandlerOption) *Handler {
	h := &Handler{
		checks:    make(map[string]Checker),
		startTime: time.Now(),
		timeout:   5 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register adds a health check under a name.
func (h *Handler) Register(name string, checker Checker) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = checker
}

// RegisterFunc adds a health check function.
func (h *Handler) RegisterFunc(name string, fn func(ctx context.Context) CheckResult) {
	h.Register(name, CheckFunc(fn))
}

// Check runs all registered checks concurrently and rolls up the status:
// any unhealthy check makes the report unhealthy, any degraded check makes
// an otherwise healthy report degraded.
func (h *Handler) Check(ctx context.Context) Response {
	h.mu.RLock()
	checks := make(map[string]Checker, len(h.checks))
	for name, checker := range h.checks {
		checks[name] = checker
	}
	h.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	results := make(map[string]CheckResult)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for name, checker := range checks {
		wg.Add(1)
		go func(name string, checker Checker) {
			defer wg.Done()

			start := time.Now()
			result := checker.Check(ctx)
			result.Duration = time.Since(start)
			result.Timestamp = time.Now()

			mu.Lock()
			results[name] = result
			mu.Unlock()
		}(name, checker)
	}
	wg.Wait()

	overall := StatusHealthy
	for _, result := range results {
		switch result.Status {
		case StatusUnhealthy:
			overall = StatusUnhealthy
		case StatusDegraded:
			if overall != StatusUnhealthy {
				overall = StatusDegraded
			}
		}
	}

	return Response{
		Status:    overall,
		Timestamp: time.Now(),
		Checks:    results,
		Version:   h.version,
		Uptime:    time.Since(h.startTime),
	}
}

// HTTPHandler serves the health report as JSON. Unhealthy reports get a
// 503 so load balancers can act on them; degraded still serves traffic.
func (h *Handler) HTTPHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		response := h.Check(r.Context())
		if response.Status == StatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		_ = json.NewEncoder(w).Encode(response)
	})
}

// =============================================================================
// Built-in checks
// =============================================================================

// LogSourceCheck verifies the configured log spec still resolves to files.
type LogSourceCheck struct {
	// Resolve maps the spec to a file list; injected to avoid a package
	// cycle with the ingestion layer.
	Resolve func(spec string) []string
	Spec    string
}

func (c *LogSourceCheck) Name() string { return "log_source" }

func (c *LogSourceCheck) Check(ctx context.Context) CheckResult {
	result := CheckResult{Timestamp: time.Now(), Metadata: map[string]any{"spec": c.Spec}}

	if c.Resolve == nil {
		result.Status = StatusUnknown
		result.Message = "no resolver configured"
		return result
	}

	files := c.Resolve(c.Spec)
	result.Metadata["files"] = len(files)
	if len(files) == 0 {
		result.Status = StatusDegraded
		result.Message = "log spec matches no files"
		return result
	}

	result.Status = StatusHealthy
	result.Message = fmt.Sprintf("%d log files available", len(files))
	return result
}

// DatabaseCheck pings the enrichment cache database.
type DatabaseCheck struct {
	PingFunc func(ctx context.Context) error
}

func (c *DatabaseCheck) Name() string { return "database" }

func (c *DatabaseCheck) Check(ctx context.Context) CheckResult {
	result := CheckResult{Timestamp: time.Now()}

	if c.PingFunc == nil {
		result.Status = StatusUnknown
		result.Message = "no ping function configured"
		return result
	}

	start := time.Now()
	err := c.PingFunc(ctx)
	result.Duration = time.Since(start)

	if err != nil {
		result.Status = StatusUnhealthy
		result.Error = err.Error()
		return result
	}
	result.Status = StatusHealthy
	result.Message = "connected"
	return result
}

// RuntimeCheck reports Go runtime memory and goroutine counts, flagging
// the process when the heap crosses a threshold.
type RuntimeCheck struct {
	MaxHeapBytes uint64
}

func (c *RuntimeCheck) Name() string { return "runtime" }

func (c *RuntimeCheck) Check(ctx context.Context) CheckResult {
	result := CheckResult{Timestamp: time.Now(), Metadata: map[string]any{}}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	result.Metadata["heap_alloc_bytes"] = m.HeapAlloc
	result.Metadata["heap_sys_bytes"] = m.HeapSys
	result.Metadata["num_gc"] = m.NumGC
	result.Metadata["goroutines"] = runtime.NumGoroutine()

	if c.MaxHeapBytes > 0 && m.HeapAlloc > c.MaxHeapBytes {
		result.Status = StatusUnhealthy
		result.Error = fmt.Sprintf("heap usage %d bytes exceeds threshold %d bytes", m.HeapAlloc, c.MaxHeapBytes)
		return result
	}

	result.Status = StatusHealthy
	result.Message = fmt.Sprintf("heap: %d MB, goroutines: %d", m.HeapAlloc/1024/1024, runtime.NumGoroutine())
	return result
}

// SystemMemoryCheck lives in sysinfo_linux.go and sysinfo_other.go.

var (
	_ Checker = (*LogSourceCheck)(nil)
	_ Checker = (*DatabaseCheck)(nil)
	_ Checker = (*RuntimeCheck)(nil)
	_ Checker = (*SystemMemoryCheck)(nil)
	_ Checker = CheckFunc(nil)
)
