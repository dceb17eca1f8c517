// Package session provides domain entities and pure algorithms for the
// session tracking engine: page transitions, per-activity time breakdowns,
// and fact-coverage bookkeeping.
package session

import (
	"fmt"
	"time"
)

// Page identifies a client page that can emit transition beacons.
type Page string

const (
	PageLearn            Page = "learn"
	PageAccuracyPractice Page = "accuracy-practice"
	PageFluencyPractice  Page = "fluency-practice"
	PageAssessment       Page = "assessment"
	PageOnboarding       Page = "onboarding"
	PageHome             Page = "home"
	PageProgress         Page = "progress"
	PageSettings         Page = "settings"
)

var knownPages = map[Page]bool{
	PageLearn:            true,
	PageAccuracyPractice: true,
	PageFluencyPractice:  true,
	PageAssessment:       true,
	PageOnboarding:       true,
	PageHome:             true,
	PageProgress:         true,
	PageSettings:         true,
}

// ParsePage validates a raw page string against the fixed enum.
func ParsePage(raw string) (Page, error) {
	p := Page(raw)
	if !knownPages[p] {
		return "", fmt.Errorf("unknown page: %q", raw)
	}
	return p, nil
}

// ActivityType is the category a time segment is attributed to.
type ActivityType string

const (
	ActivityLearning    ActivityType = "learning"
	ActivityAccuracy    ActivityType = "accuracy"
	ActivityFluency6s   ActivityType = "fluency-6s"
	ActivityFluency3s   ActivityType = "fluency-3s"
	ActivityFluency2s   ActivityType = "fluency-2s"
	ActivityFluency1_5s ActivityType = "fluency-1.5s"
	ActivityFluency1s   ActivityType = "fluency-1s"
	ActivityAssessment  ActivityType = "assessment"
	ActivityOther       ActivityType = "other"
)

// Stage identifies a practice stage whose fact lists ride along on a
// transition beacon.
type Stage string

const (
	StageLearn      Stage = "learn"
	StageAccuracy   Stage = "accuracy"
	StageFluency6s  Stage = "fluency-6s"
	StageFluency3s  Stage = "fluency-3s"
	StageFluency2s  Stage = "fluency-2s"
	StageFluency1_5 Stage = "fluency-1.5s"
	StageFluency1s  Stage = "fluency-1s"
)

// FluencyTierOrder is the fixed precedence used to sub-tier fluency
// practice segments. First tier with a non-empty fact list wins.
var FluencyTierOrder = []Stage{
	StageFluency6s,
	StageFluency3s,
	StageFluency2s,
	StageFluency1_5,
	StageFluency1s,
}

var fluencyActivityByTier = map[Stage]ActivityType{
	StageFluency6s:  ActivityFluency6s,
	StageFluency3s:  ActivityFluency3s,
	StageFluency2s:  ActivityFluency2s,
	StageFluency1_5: ActivityFluency1_5s,
	StageFluency1s:  ActivityFluency1s,
}

// Transition is a single page-transition beacon recorded in a session.
// Immutable once appended, except same-page duplicates inside the merge
// window, whose FactsByStage are unioned into the existing entry.
type Transition struct {
	Timestamp    time.Time          `json:"timestamp"`
	Page         Page               `json:"page"`
	TrackID      string             `json:"trackId"`
	FactsByStage map[Stage][]string `json:"factsByStage,omitempty"`
}

// Activity classifies this transition into the activity its following
// time segment is attributed to. Onboarding counts as assessment.
func (t *Transition) Activity() ActivityType {
	switch t.Page {
	case PageLearn:
		return ActivityLearning
	case PageAccuracyPractice:
		return ActivityAccuracy
	case PageAssessment, PageOnboarding:
		return ActivityAssessment
	case PageFluencyPractice:
		for _, tier := range FluencyTierOrder {
			if len(t.FactsByStage[tier]) > 0 {
				return fluencyActivityByTier[tier]
			}
		}
		// No tier carried facts; assume the slowest level.
		return ActivityFluency6s
	default:
		return ActivityOther
	}
}

// MergeFacts unions new per-stage fact ids into this transition without
// touching its timestamp. Returns true if anything new was absorbed.
func (t *Transition) MergeFacts(facts map[Stage][]string) bool {
	merged := false
	for stage, ids := range facts {
		if len(ids) == 0 {
			continue
		}
		existing := make(map[string]bool, len(t.FactsByStage[stage]))
		for _, id := range t.FactsByStage[stage] {
			existing[id] = true
		}
		for _, id := range ids {
			if existing[id] {
				continue
			}
			if t.FactsByStage == nil {
				t.FactsByStage = make(map[Stage][]string)
			}
			t.FactsByStage[stage] = append(t.FactsByStage[stage], id)
			existing[id] = true
			merged = true
		}
	}
	return merged
}

// FactCoverage records first-seen mastery status for one fact in one
// stage of a session. StatusChanged is sticky once set.
type FactCoverage struct {
	FactID        string `json:"factId"`
	InitialStatus string `json:"initialStatus"`
	StatusChanged bool   `json:"statusChanged"`
}

// Session is a bounded run of user activity, closed by an inactivity
// timeout. Exactly one logical active session exists per user at a time,
// identified by recency rather than a foreign key.
type Session struct {
	SessionID string    `json:"sessionId"`
	UserID    string    `json:"userId"`
	TrackID   string    `json:"trackId"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	Version   int64     `json:"version"`

	Transitions  []Transition                       `json:"transitions"`
	ActivityTime map[ActivityType]float64           `json:"activityTime"`
	TotalTime    float64                            `json:"totalTime"`
	FactsCovered map[Stage]map[string]*FactCoverage `json:"factsCovered"`

	// Accumulated totals, maintained by atomic increments outside the
	// versioned write path.
	ActiveSeconds    float64 `json:"activeSeconds"`
	WasteSeconds     float64 `json:"wasteSeconds"`
	XPEarned         float64 `json:"xpEarned"`
	TotalQuestions   int64   `json:"totalQuestions"`
	CorrectQuestions int64   `json:"correctQuestions"`
}

// New creates a fresh session at version 1 starting at now.
func New(sessionID, userID, trackID string, now time.Time) *Session {
	return &Session{
		SessionID:    sessionID,
		UserID:       userID,
		TrackID:      trackID,
		StartTime:    now,
		EndTime:      now,
		Version:      1,
		ActivityTime: make(map[ActivityType]float64),
		FactsCovered: make(map[Stage]map[string]*FactCoverage),
	}
}

// LastTransition returns the most recent transition, or nil.
func (s *Session) LastTransition() *Transition {
	if len(s.Transitions) == 0 {
		return nil
	}
	return &s.Transitions[len(s.Transitions)-1]
}

// PreviousTransition returns the transition before the last, or nil.
func (s *Session) PreviousTransition() *Transition {
	if len(s.Transitions) < 2 {
		return nil
	}
	return &s.Transitions[len(s.Transitions)-2]
}

// Expired reports whether the session has aged past the inactivity
// timeout as of now.
func (s *Session) Expired(now time.Time, timeout time.Duration) bool {
	return now.Sub(s.EndTime) > timeout
}

// LastActivity classifies the final transition of the session; it is the
// only activity reported by the session-completed event.
func (s *Session) LastActivity() ActivityType {
	last := s.LastTransition()
	if last == nil {
		return ActivityOther
	}
	return last.Activity()
}
