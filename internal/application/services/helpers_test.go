package services

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/hutchutchutch/fmath-sub002/internal/domain/learner"
	"github.com/hutchutchutch/fmath-sub002/internal/domain/metrics"
	"github.com/hutchutchutch/fmath-sub002/internal/domain/session"
	"github.com/hutchutchutch/fmath-sub002/internal/infrastructure/observability/logging"
	"github.com/hutchutchutch/fmath-sub002/internal/infrastructure/observability/performance"
)

func newTestLogger(t *testing.T) *logging.ChanneledLogger {
	t.Helper()
	cfg := logging.DefaultLoggerConfig()
	cfg.OutputToFile = false
	cfg.OutputToConsole = false
	cfg.DefaultLevel = slog.LevelError
	logger, err := logging.NewChanneledLogger(cfg)
	if err != nil {
		t.Fatalf("failed to create test logger: %v", err)
	}
	return logger
}

func newTestTracker() *performance.Tracker {
	cfg := performance.DefaultTrackerConfig()
	cfg.EnableAlerts = false
	return performance.NewTracker(cfg)
}

// testClock is a manually advanced clock shared across services under test.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// fakeCounterStore is an in-memory metrics.CounterStore.
type fakeCounterStore struct {
	mu       sync.Mutex
	counters map[string]map[string]float64 // (userID|day) -> field -> value

	incrementErr error
	snapshotErr  error
}

func newFakeCounterStore() *fakeCounterStore {
	return &fakeCounterStore{counters: make(map[string]map[string]float64)}
}

func (s *fakeCounterStore) key(userID, day string) string { return userID + "|" + day }

func (s *fakeCounterStore) Increment(userID, day, field string, amount float64, now time.Time) error {
	if s.incrementErr != nil {
		return s.incrementErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := s.key(userID, day)
	if s.counters[key] == nil {
		s.counters[key] = make(map[string]float64)
	}
	s.counters[key][field] += amount
	return nil
}

func (s *fakeCounterStore) SnapshotAndClear(userID, day string, fields []string) (map[string]float64, error) {
	if s.snapshotErr != nil {
		return nil, s.snapshotErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := s.key(userID, day)
	row := s.counters[key]
	snapshot := make(map[string]float64)
	for _, field := range fields {
		if value, ok := row[field]; ok {
			snapshot[field] = value
		}
	}
	if len(snapshot) == 0 {
		return nil, nil
	}
	for field, value := range snapshot {
		flushed := field[:len(field)-len(metrics.DeltaSuffix)] + metrics.FlushedSuffix
		row[flushed] += value
		delete(row, field)
	}
	return snapshot, nil
}

func (s *fakeCounterStore) ClearDay(userID, day string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := s.counters[s.key(userID, day)]
	for field := range row {
		if len(field) > len(metrics.DeltaSuffix) && field[len(field)-len(metrics.DeltaSuffix):] == metrics.DeltaSuffix {
			delete(row, field)
		}
	}
	return nil
}

func (s *fakeCounterStore) value(userID, day, field string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters[s.key(userID, day)][field]
}

// fakeSink records posted metric records.
type fakeSink struct {
	mu      sync.Mutex
	records []*metrics.Record
	postErr error
}

func (s *fakeSink) Post(rec *metrics.Record) error {
	if s.postErr != nil {
		return s.postErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *fakeSink) posted() []*metrics.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*metrics.Record, len(s.records))
	copy(out, s.records)
	return out
}

// fakeIdentity resolves display identities.
type fakeIdentity struct {
	profiles  map[string]string
	lookupErr error
}

func (f *fakeIdentity) ProfileByID(userID string) (*learner.Profile, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	name := f.profiles[userID]
	return &learner.Profile{UserID: userID, DisplayName: name}, nil
}

// fakeStatusLookup answers fact statuses.
type fakeStatusLookup struct {
	statuses  map[string]string
	lookupErr error
}

func (f *fakeStatusLookup) FactStatuses(userID, trackID string, factIDs []string) (map[string]string, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	out := make(map[string]string)
	for _, id := range factIDs {
		if status, ok := f.statuses[id]; ok {
			out[id] = status
		}
	}
	return out, nil
}

// fakeSessionStore is an in-memory session.Store with conflict injection.
// Reads hand out deep copies so mutations only land through the write path.
type fakeSessionStore struct {
	mu       sync.Mutex
	sessions map[string]*session.Session

	conflictsRemaining int
	updateCalls        int
	getErr             error
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[string]*session.Session)}
}

func copySession(sess *session.Session) *session.Session {
	raw, _ := json.Marshal(sess)
	var out session.Session
	_ = json.Unmarshal(raw, &out)
	return &out
}

func (s *fakeSessionStore) GetLatestByUserID(userID string) (*session.Session, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *session.Session
	for _, sess := range s.sessions {
		if sess.UserID != userID {
			continue
		}
		if latest == nil || sess.EndTime.After(latest.EndTime) {
			latest = sess
		}
	}
	if latest == nil {
		return nil, nil
	}
	return copySession(latest), nil
}

func (s *fakeSessionStore) Create(sess *session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.SessionID] = copySession(sess)
	return nil
}

func (s *fakeSessionStore) ConditionalUpdate(sessionID string, expectedVersion int64, mut session.Mutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateCalls++
	if s.conflictsRemaining > 0 {
		s.conflictsRemaining--
		return session.ErrVersionConflict
	}
	stored, ok := s.sessions[sessionID]
	if !ok {
		return errors.New("session not found")
	}
	if stored.Version != expectedVersion {
		return session.ErrVersionConflict
	}
	stored.Transitions = mut.Transitions
	stored.EndTime = mut.EndTime
	if mut.Recomputed {
		stored.ActivityTime = mut.ActivityTime
		stored.TotalTime = mut.TotalTime
		stored.FactsCovered = mut.FactsCovered
	}
	stored.Version++
	return nil
}

func (s *fakeSessionStore) IncrementTotals(sessionID string, totals session.Totals) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.sessions[sessionID]
	if !ok {
		return errors.New("session not found")
	}
	stored.ActiveSeconds += totals.ActiveSeconds
	stored.WasteSeconds += totals.WasteSeconds
	stored.XPEarned += totals.XPEarned
	stored.TotalQuestions += totals.TotalQuestions
	stored.CorrectQuestions += totals.CorrectQuestions
	return nil
}

func (s *fakeSessionStore) stored(sessionID string) *session.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copySession(s.sessions[sessionID])
}

func (s *fakeSessionStore) only(t *testing.T) *session.Session {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sessions) != 1 {
		t.Fatalf("store holds %d sessions, want 1", len(s.sessions))
	}
	for _, sess := range s.sessions {
		return copySession(sess)
	}
	return nil
}
