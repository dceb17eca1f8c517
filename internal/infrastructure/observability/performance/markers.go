// Package performance provides performance monitoring data structures and
// utilities for tracking operation timings across the fmath session service.
package performance

import (
	"runtime"
	"time"
)

// Marker represents a single performance measurement for an operation
type Marker struct {
	Operation   string         `json:"operation"`       // e.g., "session:record_transition", "metrics:flush"
	UserID      string         `json:"userId"`          // Actor the operation ran for
	StartTime   time.Time      `json:"startTime"`       // When the operation started
	EndTime     time.Time      `json:"endTime"`         // When the operation completed
	Duration    time.Duration  `json:"duration"`        // Total operation duration
	Success     bool           `json:"success"`         // Whether the operation completed successfully
	Error       string         `json:"error,omitempty"` // Error message if operation failed
	Metadata    map[string]any `json:"metadata"`        // Additional operation-specific data
	MemoryUsage int64          `json:"memoryUsage"`     // Memory allocated at completion (bytes)
	Retries     int            `json:"retries"`         // Conflict/backoff retries consumed
	Completed   bool           `json:"completed"`       // Whether Complete() has been called
}

// Complete marks the operation as finished and calculates final metrics
func (m *Marker) Complete() {
	if m.Completed {
		return // Prevent double completion
	}

	m.EndTime = time.Now()
	m.Duration = m.EndTime.Sub(m.StartTime)
	m.Completed = true

	// Capture memory usage at completion
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	m.MemoryUsage = int64(memStats.Alloc)
}

// SetSuccess marks the operation as successful or failed
func (m *Marker) SetSuccess(success bool) {
	m.Success = success
}

// SetError sets an error message and marks the operation as failed
func (m *Marker) SetError(err error) {
	if err != nil {
		m.Error = err.Error()
		m.Success = false
	}
}

// AddMetadata adds key-value metadata to the marker
func (m *Marker) AddMetadata(key string, value any) {
	if m.Metadata == nil {
		m.Metadata = make(map[string]any)
	}
	m.Metadata[key] = value
}

// AddRetry increments the retry counter
func (m *Marker) AddRetry() {
	m.Retries++
}

// HealthStatus represents the overall health of a system component
type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"   // All operations performing within normal parameters
	HealthDegraded  HealthStatus = "degraded"  // Some operations showing performance issues
	HealthUnhealthy HealthStatus = "unhealthy" // Significant performance problems detected
	HealthUnknown   HealthStatus = "unknown"   // Unable to determine health status
)

// PerformanceAlert represents a performance threshold violation
type PerformanceAlert struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	UserID    string        `json:"userId"`
	Severity  AlertSeverity `json:"severity"`
	Operation string        `json:"operation"`
	Actual    time.Duration `json:"actual"`
	Message   string        `json:"message"`
}

// AlertSeverity represents the severity level of a performance alert
type AlertSeverity string

const (
	AlertInfo     AlertSeverity = "info"     // Informational alert
	AlertWarning  AlertSeverity = "warning"  // Performance degradation detected
	AlertCritical AlertSeverity = "critical" // Serious performance issue
)
