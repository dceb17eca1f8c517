// Package performance provides performance tracking and monitoring
// capabilities for fmath session operations with real-time metrics.
package performance

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Tracker manages performance markers and provides metrics aggregation
type Tracker struct {
	markers    map[string]*Marker  // Active and completed markers by unique ID
	alerts     []*PerformanceAlert // Active performance alerts
	thresholds *AlertThresholds    // Configurable alert thresholds
	mu         sync.RWMutex        // Protects concurrent access
	started    time.Time           // When tracking started
	config     *TrackerConfig      // Tracker configuration
}

// TrackerConfig contains configuration options for the performance tracker
type TrackerConfig struct {
	MaxMarkers      int           `json:"maxMarkers"`      // Maximum number of markers to retain
	MaxAlerts       int           `json:"maxAlerts"`       // Maximum number of alerts to retain
	CleanupInterval time.Duration `json:"cleanupInterval"` // How often to clean up old data
	EnableAlerts    bool          `json:"enableAlerts"`    // Whether to generate performance alerts
}

// DefaultTrackerConfig returns a sensible default configuration
func DefaultTrackerConfig() *TrackerConfig {
	return &TrackerConfig{
		MaxMarkers:      10000,
		MaxAlerts:       500,
		CleanupInterval: time.Minute * 10,
		EnableAlerts:    true,
	}
}

// AlertThresholds defines performance thresholds for generating alerts
type AlertThresholds struct {
	// Response time thresholds
	SlowResponseThreshold     time.Duration `json:"slowResponseThreshold"`     // 500ms
	CriticalResponseThreshold time.Duration `json:"criticalResponseThreshold"` // 5s

	// Operation-specific thresholds
	SessionOperationThreshold time.Duration `json:"sessionOperationThreshold"` // 250ms
	FlushOperationThreshold   time.Duration `json:"flushOperationThreshold"`   // 500ms
	CollectorPostThreshold    time.Duration `json:"collectorPostThreshold"`    // 2s
}

// DefaultAlertThresholds returns sensible default alert thresholds
func DefaultAlertThresholds() *AlertThresholds {
	return &AlertThresholds{
		SlowResponseThreshold:     time.Millisecond * 500,
		CriticalResponseThreshold: time.Second * 5,
		SessionOperationThreshold: time.Millisecond * 250,
		FlushOperationThreshold:   time.Millisecond * 500,
		CollectorPostThreshold:    time.Second * 2,
	}
}

// NewTracker creates a new performance tracker with the given configuration
func NewTracker(config *TrackerConfig) *Tracker {
	if config == nil {
		config = DefaultTrackerConfig()
	}

	return &Tracker{
		markers:    make(map[string]*Marker),
		alerts:     make([]*PerformanceAlert, 0),
		thresholds: DefaultAlertThresholds(),
		started:    time.Now(),
		config:     config,
	}
}

// StartOperation creates and tracks a new performance marker for an operation
func (t *Tracker) StartOperation(operation, userID string) *Marker {
	marker := &Marker{
		Operation: operation,
		UserID:    userID,
		StartTime: time.Now(),
		Metadata:  make(map[string]any),
		Success:   true, // Assume success until proven otherwise
	}

	// Generate unique ID for this marker
	markerID := fmt.Sprintf("%s_%s_%d", userID, operation, time.Now().UnixNano())

	t.mu.Lock()
	t.markers[markerID] = marker
	if len(t.markers) > t.config.MaxMarkers {
		t.evictOldestLocked()
	}
	t.mu.Unlock()

	return marker
}

// CompleteOperation manually completes an operation and checks for alerts
func (t *Tracker) CompleteOperation(marker *Marker) {
	if marker == nil || marker.Completed {
		return
	}

	marker.Complete()

	if t.config.EnableAlerts {
		t.checkForAlerts(marker)
	}
}

// checkForAlerts evaluates a completed marker against alert thresholds
func (t *Tracker) checkForAlerts(marker *Marker) {
	if marker == nil || !marker.Completed {
		return
	}

	alerts := t.evaluateThresholds(marker)

	t.mu.Lock()
	for _, alert := range alerts {
		t.alerts = append(t.alerts, alert)

		// Maintain max alerts limit
		if len(t.alerts) > t.config.MaxAlerts {
			t.alerts = t.alerts[len(t.alerts)-t.config.MaxAlerts:]
		}
	}
	t.mu.Unlock()
}

// evaluateThresholds checks a marker against all relevant thresholds
func (t *Tracker) evaluateThresholds(marker *Marker) []*PerformanceAlert {
	var alerts []*PerformanceAlert

	if marker.Duration > t.thresholds.CriticalResponseThreshold {
		alerts = append(alerts, t.createAlert(marker, AlertCritical,
			"Operation exceeded critical response time threshold"))
	} else if marker.Duration > t.thresholds.SlowResponseThreshold {
		alerts = append(alerts, t.createAlert(marker, AlertWarning,
			"Operation exceeded slow response time threshold"))
	}

	switch {
	case strings.Contains(marker.Operation, "session"):
		if marker.Duration > t.thresholds.SessionOperationThreshold {
			alerts = append(alerts, t.createAlert(marker, AlertWarning,
				"Session operation exceeded threshold"))
		}
	case strings.Contains(marker.Operation, "flush"):
		if marker.Duration > t.thresholds.FlushOperationThreshold {
			alerts = append(alerts, t.createAlert(marker, AlertWarning,
				"Flush operation exceeded threshold"))
		}
	case strings.Contains(marker.Operation, "collector"):
		if marker.Duration > t.thresholds.CollectorPostThreshold {
			alerts = append(alerts, t.createAlert(marker, AlertWarning,
				"Collector post exceeded threshold"))
		}
	}

	return alerts
}

// createAlert creates a new performance alert
func (t *Tracker) createAlert(marker *Marker, severity AlertSeverity, message string) *PerformanceAlert {
	return &PerformanceAlert{
		ID:        fmt.Sprintf("alert_%d", time.Now().UnixNano()),
		Timestamp: time.Now(),
		UserID:    marker.UserID,
		Severity:  severity,
		Operation: marker.Operation,
		Actual:    marker.Duration,
		Message:   message,
	}
}

// GetRecentAlerts returns up to limit most recent alerts
func (t *Tracker) GetRecentAlerts(limit int) []*PerformanceAlert {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if limit <= 0 || limit > len(t.alerts) {
		limit = len(t.alerts)
	}

	out := make([]*PerformanceAlert, limit)
	copy(out, t.alerts[len(t.alerts)-limit:])
	return out
}

// Summary aggregates completed-operation statistics for reporting
type Summary struct {
	Uptime              time.Duration `json:"uptime"`
	ActiveOperations    int           `json:"activeOperations"`
	CompletedOperations int           `json:"completedOperations"`
	FailedOperations    int           `json:"failedOperations"`
	Health              HealthStatus  `json:"health"`
}

// GetSummary returns a point-in-time view of operation statistics
func (t *Tracker) GetSummary() Summary {
	t.mu.RLock()
	defer t.mu.RUnlock()

	summary := Summary{Uptime: time.Since(t.started)}
	for _, marker := range t.markers {
		if !marker.Completed {
			summary.ActiveOperations++
			continue
		}
		summary.CompletedOperations++
		if !marker.Success {
			summary.FailedOperations++
		}
	}

	switch {
	case summary.CompletedOperations == 0:
		summary.Health = HealthUnknown
	case summary.FailedOperations*10 > summary.CompletedOperations:
		summary.Health = HealthUnhealthy
	case summary.FailedOperations > 0:
		summary.Health = HealthDegraded
	default:
		summary.Health = HealthHealthy
	}

	return summary
}

// evictOldestLocked drops the oldest completed markers; caller holds the lock.
func (t *Tracker) evictOldestLocked() {
	var oldestID string
	var oldest time.Time
	for id, marker := range t.markers {
		if !marker.Completed {
			continue
		}
		if oldestID == "" || marker.StartTime.Before(oldest) {
			oldestID = id
			oldest = marker.StartTime
		}
	}
	if oldestID != "" {
		delete(t.markers, oldestID)
	}
}
