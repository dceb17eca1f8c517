package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/hutchutchutch/fmath-sub002/internal/domain/learner"
	"github.com/hutchutchutch/fmath-sub002/internal/domain/metrics"
	"github.com/hutchutchutch/fmath-sub002/internal/domain/session"
	"github.com/hutchutchutch/fmath-sub002/internal/infrastructure/observability/logging"
	"github.com/hutchutchutch/fmath-sub002/internal/infrastructure/observability/performance"
	"github.com/hutchutchutch/fmath-sub002/internal/infrastructure/security"
	"github.com/hutchutchutch/fmath-sub002/pkg/config"
)

// ErrInvalidBeacon marks a malformed transition beacon, rejected before
// any mutation.
var ErrInvalidBeacon = errors.New("invalid transition beacon")

// TransitionRequest is one page-transition beacon from a client.
type TransitionRequest struct {
	UserID       string
	TrackID      string
	Page         string
	FactsByStage map[session.Stage][]string
}

// TransitionResult holds the result of recording one transition.
type TransitionResult struct {
	Success   bool   `json:"success"`
	SessionID string `json:"sessionId,omitempty"`
	Message   string `json:"message,omitempty"`
}

// SessionService drives the session state machine: beacon ingestion,
// merge-or-append, time breakdown recomputes, activity completion, and
// expiry finalization.
type SessionService struct {
	sessions    session.Store
	deltas      *DeltaService
	emitter     *AnalyticsEmitter
	progress    learner.StatusLookup
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker

	now   func() time.Time
	sleep func(time.Duration)
}

// NewSessionService creates a new session service.
func NewSessionService(sessions session.Store, deltas *DeltaService, emitter *AnalyticsEmitter, progress learner.StatusLookup, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *SessionService {
	return &SessionService{
		sessions:    sessions,
		deltas:      deltas,
		emitter:     emitter,
		progress:    progress,
		logger:      logger,
		perfTracker: perfTracker,
		now:         time.Now,
		sleep:       time.Sleep,
	}
}

// RecordTransition ingests one beacon. Version conflicts retry the
// whole operation against the freshly loaded session; the activity
// completion side effects run at most once per beacon across retries.
func (s *SessionService) RecordTransition(req TransitionRequest) (*TransitionResult, error) {
	if req.UserID == "" {
		return nil, fmt.Errorf("%w: missing user id", ErrInvalidBeacon)
	}
	if req.TrackID == "" {
		return nil, fmt.Errorf("%w: missing track id", ErrInvalidBeacon)
	}
	page, err := session.ParsePage(req.Page)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBeacon, err)
	}

	marker := s.perfTracker.StartOperation("session_transition", req.UserID)
	defer s.perfTracker.CompleteOperation(marker)

	var completionHandled bool
	var lastErr error
	for attempt := 0; attempt < config.ConflictRetryLimit; attempt++ {
		if attempt > 0 {
			marker.AddRetry()
			s.sleep(config.ConflictRetryDelay * time.Duration(attempt))
		}

		result, err := s.recordOnce(req, page, &completionHandled)
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, session.ErrVersionConflict) {
			marker.SetError(err)
			return nil, err
		}
		lastErr = err
		s.logger.Session().Debug("Transition hit version conflict, retrying", "userId", req.UserID, "attempt", attempt+1)
	}

	marker.SetError(lastErr)
	s.logger.Session().Error("Transition abandoned after retry limit", "userId", req.UserID, "retries", config.ConflictRetryLimit)
	return nil, fmt.Errorf("session update contention persisted: %w", lastErr)
}

// recordOnce runs one optimistic attempt against the freshest session
// state. A conflict from the conditional update bubbles up for retry.
func (s *SessionService) recordOnce(req TransitionRequest, page session.Page, completionHandled *bool) (*TransitionResult, error) {
	now := s.now()

	sess, err := s.sessions.GetLatestByUserID(req.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	if sess == nil || sess.Expired(now, config.SessionInactivityTimeout) {
		if sess != nil {
			s.finalizeExpired(sess)
		}
		return s.startSession(req, page, now)
	}

	appended := false
	last := sess.LastTransition()
	if last != nil && last.Page == page && last.TrackID == req.TrackID && now.Sub(last.Timestamp) < config.TransitionMergeWindow {
		// Duplicate beacon inside the merge window: union facts into
		// the existing transition, timestamp untouched.
		if !last.MergeFacts(req.FactsByStage) {
			s.logger.Session().Debug("Duplicate beacon absorbed as no-op", "userId", req.UserID, "sessionId", sess.SessionID, "page", string(page))
			return &TransitionResult{Success: true, SessionID: sess.SessionID}, nil
		}
	} else {
		sess.Transitions = append(sess.Transitions, session.Transition{
			Timestamp:    now,
			Page:         page,
			TrackID:      req.TrackID,
			FactsByStage: req.FactsByStage,
		})
		appended = true
	}

	mut := session.Mutation{Transitions: sess.Transitions, EndTime: now}
	if len(sess.Transitions) >= 2 {
		breakdown := session.ComputeTimeBreakdown(sess.Transitions, config.MaxSegmentSeconds)
		s.mergeFactCoverage(sess)

		mut.Recomputed = true
		mut.ActivityTime = breakdown.PerActivity
		mut.TotalTime = breakdown.Total
		mut.FactsCovered = sess.FactsCovered
	}

	if appended && !*completionHandled {
		prev := sess.PreviousTransition()
		if prev != nil && prev.Page != page {
			if elapsed := now.Sub(prev.Timestamp).Seconds(); elapsed > 0 {
				s.completeActivity(sess, prev, elapsed)
				*completionHandled = true
			}
		}
	}

	if err := s.sessions.ConditionalUpdate(sess.SessionID, sess.Version, mut); err != nil {
		return nil, err
	}

	s.logger.Session().Info("Transition recorded", "userId", req.UserID, "sessionId", sess.SessionID, "page", string(page), "transitions", len(sess.Transitions))
	return &TransitionResult{Success: true, SessionID: sess.SessionID}, nil
}

// startSession creates a fresh session seeded with the incoming
// transition. Residual delta counters from a prior session whose flush
// failed are discarded first.
func (s *SessionService) startSession(req TransitionRequest, page session.Page, now time.Time) (*TransitionResult, error) {
	fresh := session.New(security.GenerateULID(), req.UserID, req.TrackID, now)
	fresh.Transitions = append(fresh.Transitions, session.Transition{
		Timestamp:    now,
		Page:         page,
		TrackID:      req.TrackID,
		FactsByStage: req.FactsByStage,
	})

	s.deltas.ClearDeltas(req.UserID)

	if err := s.sessions.Create(fresh); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.logger.Session().Info("Session started", "userId", req.UserID, "sessionId", fresh.SessionID, "trackId", req.TrackID, "page", string(page))
	return &TransitionResult{Success: true, SessionID: fresh.SessionID}, nil
}

// mergeFactCoverage folds live mastery statuses for the facts on the
// two most recent transitions into the session's coverage records.
// Lookup failures degrade every candidate to status "unknown".
func (s *SessionService) mergeFactCoverage(sess *session.Session) {
	candidates := session.CoverageCandidates(sess.LastTransition(), sess.PreviousTransition())
	if len(candidates) == 0 {
		return
	}

	var factIDs []string
	seen := make(map[string]bool)
	for _, ids := range candidates {
		for _, id := range ids {
			if !seen[id] {
				factIDs = append(factIDs, id)
				seen[id] = true
			}
		}
	}

	statuses, err := s.progress.FactStatuses(sess.UserID, sess.TrackID, factIDs)
	if err != nil {
		s.logger.Session().Warn("Fact status lookup failed, degrading to unknown", "error", err.Error(), "userId", sess.UserID)
		statuses = make(map[string]string, len(factIDs))
	}
	for _, id := range factIDs {
		if statuses[id] == "" {
			statuses[id] = learner.StatusUnknown
		}
	}

	sess.ApplyFactStatuses(candidates, statuses)
}

// completeActivity reports the just-finished segment: raw elapsed time
// plus engagement-capped active time into the delta counters, then an
// immediate flush whose result lands on the session via atomic adds.
func (s *SessionService) completeActivity(sess *session.Session, prev *session.Transition, elapsed float64) {
	active := elapsed
	if active > config.ActiveSegmentCapSeconds {
		active = config.ActiveSegmentCapSeconds
	}

	if err := s.deltas.AddDelta(sess.UserID, metrics.DeltaFields{TimeSpent: elapsed, ActiveTime: active}); err != nil {
		s.logger.Metrics().Warn("Failed to accumulate activity deltas", "error", err.Error(), "userId", sess.UserID, "sessionId", sess.SessionID)
		return
	}

	result, err := s.deltas.Flush(sess.UserID, sess.SessionID, prev.Activity())
	if err != nil || result == nil {
		return
	}

	s.applyFlushTotals(sess.SessionID, result)
}

// applyFlushTotals adds a flush result onto the session's accumulated
// totals. Pure monotonic adds, so no version bump is needed.
func (s *SessionService) applyFlushTotals(sessionID string, result *metrics.FlushResult) {
	totals := session.Totals{
		ActiveSeconds: result.ActiveTime,
		WasteSeconds:  result.WasteTime,
		XPEarned:      result.XPEarned,
	}
	if result.TotalQuestions != nil {
		totals.TotalQuestions = int64(*result.TotalQuestions)
	}
	if result.CorrectQuestions != nil {
		totals.CorrectQuestions = int64(*result.CorrectQuestions)
	}

	if err := s.sessions.IncrementTotals(sessionID, totals); err != nil {
		s.logger.Session().Warn("Failed to add flushed totals onto session", "error", err.Error(), "sessionId", sessionID)
	}
}

// finalizeExpired closes out an aged-out session. This is the last
// chance to report its earned XP and time, so the flush retries with
// backoff. Ends with a single session-completed event for the last
// distinct activity only.
func (s *SessionService) finalizeExpired(sess *session.Session) {
	marker := s.perfTracker.StartOperation("session_finalize", sess.UserID)
	defer s.perfTracker.CompleteOperation(marker)

	s.logger.Session().Info("Finalizing expired session", "userId", sess.UserID, "sessionId", sess.SessionID)

	activity := sess.LastActivity()
	backoff := config.FinalFlushBackoffBase
	for attempt := 0; attempt <= config.FinalFlushRetryLimit; attempt++ {
		if attempt > 0 {
			marker.AddRetry()
			s.sleep(backoff)
			backoff *= 2
			if backoff > config.FinalFlushBackoffCap {
				backoff = config.FinalFlushBackoffCap
			}
		}

		result, err := s.deltas.Flush(sess.UserID, sess.SessionID, activity)
		if err == nil {
			if result != nil {
				s.applyFlushTotals(sess.SessionID, result)
			}
			break
		}
		s.logger.Session().Warn("Final flush attempt failed", "error", err.Error(), "sessionId", sess.SessionID, "attempt", attempt+1)
	}

	s.emitter.SendSessionCompletedEvent(sess)
}

// GetCurrentSession returns the user's active session, or nil when none
// exists. Reading an aged-out session triggers its finalization.
func (s *SessionService) GetCurrentSession(userID string) (*session.Session, error) {
	sess, err := s.sessions.GetLatestByUserID(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if sess == nil {
		return nil, nil
	}
	if sess.Expired(s.now(), config.SessionInactivityTimeout) {
		s.finalizeExpired(sess)
		return nil, nil
	}
	return sess, nil
}
