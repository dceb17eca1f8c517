// Package services provides application-level orchestration for the
// session tracking engine.
package services

import (
	"github.com/hutchutchutch/fmath-sub002/internal/domain/learner"
	"github.com/hutchutchutch/fmath-sub002/internal/domain/metrics"
	"github.com/hutchutchutch/fmath-sub002/internal/domain/session"
	"github.com/hutchutchutch/fmath-sub002/internal/infrastructure/observability/logging"
	"github.com/hutchutchutch/fmath-sub002/internal/infrastructure/observability/performance"
)

// AnalyticsEmitter builds and posts metric records to the collector.
// Every path is best-effort: failures are logged and swallowed so an
// analytics outage never blocks progress recording.
type AnalyticsEmitter struct {
	sink        metrics.RecordSink
	identity    learner.IdentityLookup
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
}

// NewAnalyticsEmitter creates a new analytics emitter.
func NewAnalyticsEmitter(sink metrics.RecordSink, identity learner.IdentityLookup, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *AnalyticsEmitter {
	return &AnalyticsEmitter{
		sink:        sink,
		identity:    identity,
		logger:      logger,
		perfTracker: perfTracker,
	}
}

// SendMetrics reports earned XP and question counters for one flushed
// activity segment. No-op when the flush carried nothing reportable.
func (e *AnalyticsEmitter) SendMetrics(userID, sessionID string, activity session.ActivityType, result *metrics.FlushResult) {
	if result == nil {
		return
	}

	var items []metrics.Item
	if result.XPEarned > 0 {
		items = append(items, metrics.Item{Type: metrics.ItemXPEarned, Value: result.XPEarned})
	}
	if result.TotalQuestions != nil {
		items = append(items, metrics.Item{Type: metrics.ItemTotalQuestions, Value: *result.TotalQuestions})
	}
	if result.CorrectQuestions != nil {
		items = append(items, metrics.Item{Type: metrics.ItemCorrectQuestions, Value: *result.CorrectQuestions})
	}
	if result.MasteredUnits != nil {
		items = append(items, metrics.Item{Type: metrics.ItemMasteredUnits, Value: *result.MasteredUnits})
	}
	if len(items) == 0 {
		return
	}

	e.post(userID, sessionID, activity, items)
}

// SendActivityTime reports the active/waste time split for one flushed
// activity segment. No-op when no active time was recorded.
func (e *AnalyticsEmitter) SendActivityTime(userID, sessionID string, activity session.ActivityType, result *metrics.FlushResult) {
	if result == nil || result.ActiveTime <= 0 {
		return
	}

	items := []metrics.Item{
		{Type: metrics.ItemActiveTime, Value: result.ActiveTime},
	}
	if result.WasteTime > 0 {
		items = append(items, metrics.Item{Type: metrics.ItemWasteTime, Value: result.WasteTime})
	}

	e.post(userID, sessionID, activity, items)
}

// SendSessionCompletedEvent reports the close of a session, attributed
// to its last distinct activity only.
func (e *AnalyticsEmitter) SendSessionCompletedEvent(sess *session.Session) {
	if sess == nil || len(sess.Transitions) == 0 {
		return
	}

	items := []metrics.Item{{Type: metrics.ItemSessionCompleted, Value: 1}}
	e.post(sess.UserID, sess.SessionID, sess.LastActivity(), items)
}

// post resolves the actor's display identity and delivers one record.
func (e *AnalyticsEmitter) post(userID, sessionID string, activity session.ActivityType, items []metrics.Item) {
	marker := e.perfTracker.StartOperation("collector_post", userID)
	defer e.perfTracker.CompleteOperation(marker)

	rec := &metrics.Record{
		ActorID:   userID,
		SessionID: sessionID,
		Activity:  string(activity),
		Items:     items,
	}

	profile, err := e.identity.ProfileByID(userID)
	if err != nil {
		e.logger.Analytics().Warn("Display identity unavailable, posting without name", "error", err.Error(), "userId", userID)
	} else if profile != nil {
		rec.ActorName = profile.DisplayName
	}

	if err := e.sink.Post(rec); err != nil {
		marker.SetError(err)
		e.logger.Analytics().Warn("Metric record delivery failed", "error", err.Error(), "userId", userID, "sessionId", sessionID, "activity", string(activity))
	}
}
