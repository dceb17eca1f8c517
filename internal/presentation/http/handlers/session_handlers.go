// Package handlers provides HTTP request handlers for the presentation layer.
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hutchutchutch/fmath-sub002/internal/application/services"
	"github.com/hutchutchutch/fmath-sub002/internal/domain/session"
	"github.com/hutchutchutch/fmath-sub002/internal/infrastructure/observability/logging"
	"github.com/hutchutchutch/fmath-sub002/internal/infrastructure/observability/performance"
	"github.com/hutchutchutch/fmath-sub002/internal/presentation/http/middleware"
)

// SessionHandlers contains the session tracking HTTP handlers
type SessionHandlers struct {
	sessionService *services.SessionService
	logger         *logging.ChanneledLogger
	perfTracker    *performance.Tracker
}

// NewSessionHandlers creates session handlers with injected dependencies
func NewSessionHandlers(sessionService *services.SessionService, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *SessionHandlers {
	return &SessionHandlers{
		sessionService: sessionService,
		logger:         logger,
		perfTracker:    perfTracker,
	}
}

type transitionPayload struct {
	TrackID      string                     `json:"trackId"`
	Page         string                     `json:"page"`
	FactsByStage map[session.Stage][]string `json:"factsByStage"`
}

// PostTransition handles POST /api/v1/session/transition
func (h *SessionHandlers) PostTransition(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "not authenticated"})
		return
	}

	start := time.Now()

	var payload transitionPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "malformed beacon body"})
		return
	}

	result, err := h.sessionService.RecordTransition(services.TransitionRequest{
		UserID:       userID,
		TrackID:      payload.TrackID,
		Page:         payload.Page,
		FactsByStage: payload.FactsByStage,
	})
	if err != nil {
		if errors.Is(err, services.ErrInvalidBeacon) {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
			return
		}
		h.logger.Session().Error("Transition request failed", "error", err.Error(), "userId", userID)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "failed to record transition"})
		return
	}

	h.logger.Perf().Debug("Performance for PostTransition request", "duration", time.Since(start), "userId", userID)
	c.JSON(http.StatusOK, result)
}

// GetSession handles GET /api/v1/session
func (h *SessionHandlers) GetSession(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "not authenticated"})
		return
	}

	sess, err := h.sessionService.GetCurrentSession(userID)
	if err != nil {
		h.logger.Session().Error("Session read failed", "error", err.Error(), "userId", userID)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "failed to load session"})
		return
	}
	if sess == nil {
		c.JSON(http.StatusOK, gin.H{"active": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"active":       true,
		"sessionId":    sess.SessionID,
		"trackId":      sess.TrackID,
		"startTime":    sess.StartTime,
		"endTime":      sess.EndTime,
		"activityTime": sess.ActivityTime,
		"totalTime":    sess.TotalTime,
		"activeTime":   sess.ActiveSeconds,
		"wasteTime":    sess.WasteSeconds,
		"xpEarned":     sess.XPEarned,
		"transitions":  len(sess.Transitions),
	})
}
