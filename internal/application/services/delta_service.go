package services

import (
	"sync"
	"time"

	"github.com/hutchutchutch/fmath-sub002/internal/domain/metrics"
	"github.com/hutchutchutch/fmath-sub002/internal/domain/session"
	"github.com/hutchutchutch/fmath-sub002/internal/infrastructure/observability/logging"
	"github.com/hutchutchutch/fmath-sub002/internal/infrastructure/observability/performance"
	"github.com/hutchutchutch/fmath-sub002/pkg/config"
)

// DeltaService accumulates rolling per-(user, day) metric deltas and
// flushes them to the analytics pipeline. Increments are atomic and
// commute; the flush guard is a de-duplication optimization, not a
// correctness requirement.
type DeltaService struct {
	counters    metrics.CounterStore
	emitter     *AnalyticsEmitter
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker

	flushMu sync.Mutex
	flushes map[string]bool

	now func() time.Time
}

// NewDeltaService creates a new delta accumulator service.
func NewDeltaService(counters metrics.CounterStore, emitter *AnalyticsEmitter, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *DeltaService {
	return &DeltaService{
		counters:    counters,
		emitter:     emitter,
		logger:      logger,
		perfTracker: perfTracker,
		flushes:     make(map[string]bool),
		now:         time.Now,
	}
}

// AddDelta atomically increments today's counter for each nonzero
// field. Zero fields are skipped.
func (s *DeltaService) AddDelta(userID string, fields metrics.DeltaFields) error {
	now := s.now()
	day := metrics.DayKey(now)

	for field, amount := range fields.NonZero() {
		if err := s.counters.Increment(userID, day, field, amount, now); err != nil {
			return err
		}
	}
	return nil
}

// ClearDeltas best-effort removes today's delta counters, discarding
// residue from a prior session whose flush failed. Store errors are
// swallowed.
func (s *DeltaService) ClearDeltas(userID string) {
	day := metrics.DayKey(s.now())
	if err := s.counters.ClearDay(userID, day); err != nil {
		s.logger.Metrics().Warn("Failed to clear delta counters", "error", err.Error(), "userId", userID, "day", day)
	}
}

// Flush snapshots and clears today's delta counters, derives the
// reportable metrics, and emits them. Returns nil when nothing was
// pending, when a concurrent flush holds the key, or on a store error
// (logged, never fatal to the caller).
func (s *DeltaService) Flush(userID, sessionID string, activity session.ActivityType) (*metrics.FlushResult, error) {
	day := metrics.DayKey(s.now())
	key := userID + "|" + day

	s.flushMu.Lock()
	if s.flushes[key] {
		s.flushMu.Unlock()
		// In-flight flush on this key will capture our data.
		return nil, nil
	}
	s.flushes[key] = true
	s.flushMu.Unlock()

	defer func() {
		s.flushMu.Lock()
		delete(s.flushes, key)
		s.flushMu.Unlock()
	}()

	marker := s.perfTracker.StartOperation("delta_flush", userID)
	defer s.perfTracker.CompleteOperation(marker)

	snapshot, err := s.counters.SnapshotAndClear(userID, day, metrics.DeltaFieldNames())
	if err != nil {
		marker.SetError(err)
		s.logger.Metrics().Error("Delta snapshot failed", "error", err.Error(), "userId", userID, "day", day)
		return nil, err
	}
	if snapshot == nil {
		return nil, nil
	}

	result := metrics.Derive(snapshot, config.PerfectAccuracyBonus)
	if result == nil {
		return nil, nil
	}

	s.logger.Metrics().Info("Deltas flushed",
		"userId", userID, "sessionId", sessionID, "activity", string(activity),
		"activeTime", result.ActiveTime, "wasteTime", result.WasteTime, "xpEarned", result.XPEarned)

	if result.XPEarned > 0 || result.HasNonTimeMetrics() {
		s.emitter.SendMetrics(userID, sessionID, activity, result)
	}
	if result.ActiveTime > 0 {
		s.emitter.SendActivityTime(userID, sessionID, activity, result)
	}

	return result, nil
}
