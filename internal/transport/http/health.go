package http

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"
)

// HealthStatus represents the health check response
type HealthStatus struct {
	Status    string           `json:"status"`
	Timestamp string           `json:"timestamp"`
	Version   string           `json:"version,omitempty"`
	Checks    map[string]Check `json:"checks,omitempty"`
	System    *SystemInfo      `json:"system,omitempty"`
}

// Check represents a single health check result
type Check struct {
	Status   string `json:"status"`
	Message  string `json:"message,omitempty"`
	Duration string `json:"duration,omitempty"`
}

// SystemInfo contains system information
type SystemInfo struct {
	GoVersion    string `json:"go_version"`
	NumGoroutine int    `json:"num_goroutine"`
	NumCPU       int    `json:"num_cpu"`
	MemAlloc     uint64 `json:"mem_alloc_mb"`
}

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
	StatusDegraded  = "degraded"
)

// Health returns basic health status (for load balancer)
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{
		Status:    StatusHealthy,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	writeJSON(w, http.StatusOK, status)
}

// Ready checks every backing store plus trip data readiness and queue backlog.
func (h *Handlers) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]Check)
	overallStatus := StatusHealthy

	for name, p := range h.Checks {
		c := checkPing(ctx, p)
		checks[name] = c
		if c.Status != StatusHealthy {
			overallStatus = StatusUnhealthy
		}
	}

	tripsCheck := h.checkTrips(ctx)
	checks["trips"] = tripsCheck
	if tripsCheck.Status != StatusHealthy && overallStatus == StatusHealthy {
		overallStatus = StatusDegraded
	}

	queueCheck := h.checkQueue(ctx)
	checks["queue"] = queueCheck
	if queueCheck.Status != StatusHealthy && overallStatus == StatusHealthy {
		overallStatus = StatusDegraded
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	sysInfo := &SystemInfo{
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		NumCPU:       runtime.NumCPU(),
		MemAlloc:     memStats.Alloc / 1024 / 1024, // Convert to MB
	}

	status := HealthStatus{
		Status:    overallStatus,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
		System:    sysInfo,
	}

	code := http.StatusOK
	if overallStatus == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

func checkPing(ctx context.Context, p Pinger) Check {
	start := time.Now()
	err := p.Ping(ctx)
	duration := time.Since(start)

	if err != nil {
		return Check{
			Status:   StatusUnhealthy,
			Message:  err.Error(),
			Duration: duration.String(),
		}
	}
	return Check{
		Status:   StatusHealthy,
		Message:  "connection successful",
		Duration: duration.String(),
	}
}

// checkTrips reports whether a bulk load or Redis dataset load is running
func (h *Handlers) checkTrips(ctx context.Context) Check {
	ready, err := h.Trips.Ready(ctx)
	if err != nil {
		return Check{Status: StatusUnhealthy, Message: err.Error()}
	}
	if !ready {
		return Check{Status: StatusDegraded, Message: "trip data is loading"}
	}
	return Check{Status: StatusHealthy, Message: "trip data ready"}
}

// checkQueue returns queue status
func (h *Handlers) checkQueue(ctx context.Context) Check {
	if h.Queue == nil {
		return Check{Status: StatusHealthy, Message: "no queue configured"}
	}
	queueLen, err := h.Queue.Len(ctx)
	if err != nil {
		return Check{Status: StatusUnhealthy, Message: err.Error()}
	}

	status := StatusHealthy
	message := "queue operational"

	// Warn if queue is getting full (arbitrary threshold)
	if queueLen > 500 {
		status = StatusDegraded
		message = "queue backlog detected"
	}
	message = fmt.Sprintf("%s (pending: %d)", message, queueLen)

	if dl, ok := h.Queue.(DeadLetterCounter); ok {
		dead, err := dl.DeadLetterCount(ctx)
		if err != nil {
			return Check{Status: StatusUnhealthy, Message: err.Error()}
		}
		if dead > 0 {
			status = StatusDegraded
			message = fmt.Sprintf("%s, dead-lettered: %d", message, dead)
		}
	}

	return Check{Status: status, Message: message}
}
