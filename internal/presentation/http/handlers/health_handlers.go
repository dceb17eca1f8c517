package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hutchutchutch/fmath-sub002/internal/infrastructure/observability/performance"
	"github.com/hutchutchutch/fmath-sub002/internal/infrastructure/persistence/database"
)

// HealthHandlers contains the liveness and readiness HTTP handlers
type HealthHandlers struct {
	db          *database.DB
	perfTracker *performance.Tracker
	started     time.Time
}

// NewHealthHandlers creates health handlers with injected dependencies
func NewHealthHandlers(db *database.DB, perfTracker *performance.Tracker) *HealthHandlers {
	return &HealthHandlers{
		db:          db,
		perfTracker: perfTracker,
		started:     time.Now(),
	}
}

// GetHealth handles GET /api/v1/health
func (h *HealthHandlers) GetHealth(c *gin.Context) {
	if err := h.db.Ping(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  "database unreachable",
		})
		return
	}

	summary := h.perfTracker.GetSummary()
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"uptime":  time.Since(h.started).String(),
		"health":  summary.Health,
		"pending": summary.ActiveOperations,
	})
}
