package session

import (
	"testing"
	"time"
)

func TestParsePage(t *testing.T) {
	for _, raw := range []string{"learn", "accuracy-practice", "fluency-practice", "assessment", "onboarding", "home", "progress", "settings"} {
		if _, err := ParsePage(raw); err != nil {
			t.Errorf("ParsePage(%q) = %v, want nil", raw, err)
		}
	}
	for _, raw := range []string{"", "Learn", "practice", "fluency"} {
		if _, err := ParsePage(raw); err == nil {
			t.Errorf("ParsePage(%q) succeeded, want error", raw)
		}
	}
}

func TestTransitionActivity(t *testing.T) {
	tests := []struct {
		name       string
		transition Transition
		want       ActivityType
	}{
		{"learn", Transition{Page: PageLearn}, ActivityLearning},
		{"accuracy", Transition{Page: PageAccuracyPractice}, ActivityAccuracy},
		{"assessment", Transition{Page: PageAssessment}, ActivityAssessment},
		{"onboarding maps to assessment", Transition{Page: PageOnboarding}, ActivityAssessment},
		{"home maps to other", Transition{Page: PageHome}, ActivityOther},
		{"progress maps to other", Transition{Page: PageProgress}, ActivityOther},
		{
			"fluency defaults to slowest tier",
			Transition{Page: PageFluencyPractice},
			ActivityFluency6s,
		},
		{
			"fluency picks first non-empty tier",
			Transition{Page: PageFluencyPractice, FactsByStage: map[Stage][]string{
				StageFluency2s: {"3x4"},
				StageFluency1s: {"3x5"},
			}},
			ActivityFluency2s,
		},
		{
			"fluency tier precedence respects order not map size",
			Transition{Page: PageFluencyPractice, FactsByStage: map[Stage][]string{
				StageFluency6s: {"3x4"},
				StageFluency1s: {"3x5", "3x6", "3x7"},
			}},
			ActivityFluency6s,
		},
		{
			"fluency ignores empty tier lists",
			Transition{Page: PageFluencyPractice, FactsByStage: map[Stage][]string{
				StageFluency6s:  {},
				StageFluency1_5: {"3x4"},
			}},
			ActivityFluency1_5s,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.transition.Activity(); got != tt.want {
				t.Errorf("Activity() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMergeFacts(t *testing.T) {
	tr := Transition{
		Page:         PageLearn,
		FactsByStage: map[Stage][]string{StageLearn: {"3x4"}},
	}

	if tr.MergeFacts(map[Stage][]string{StageLearn: {"3x4"}}) {
		t.Error("merging known facts reported new data")
	}
	if !tr.MergeFacts(map[Stage][]string{StageLearn: {"3x5"}}) {
		t.Error("merging a new fact reported no-op")
	}
	if len(tr.FactsByStage[StageLearn]) != 2 {
		t.Errorf("learn facts = %v, want two entries", tr.FactsByStage[StageLearn])
	}
	if !tr.MergeFacts(map[Stage][]string{StageAccuracy: {"2x2"}}) {
		t.Error("merging a new stage reported no-op")
	}

	empty := Transition{Page: PageLearn}
	if !empty.MergeFacts(map[Stage][]string{StageLearn: {"3x4"}}) {
		t.Error("merge into nil map reported no-op")
	}
	if empty.MergeFacts(nil) {
		t.Error("merging nil facts reported new data")
	}
}

func TestSessionExpired(t *testing.T) {
	now := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	sess := New("s1", "u1", "t1", now)

	if sess.Expired(now.Add(29*time.Minute), 30*time.Minute) {
		t.Error("session expired inside the timeout window")
	}
	if !sess.Expired(now.Add(31*time.Minute), 30*time.Minute) {
		t.Error("session not expired past the timeout window")
	}
}

func TestSessionLastActivity(t *testing.T) {
	now := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	sess := New("s1", "u1", "t1", now)

	if got := sess.LastActivity(); got != ActivityOther {
		t.Errorf("empty session LastActivity = %v, want other", got)
	}

	sess.Transitions = append(sess.Transitions,
		Transition{Timestamp: now, Page: PageLearn},
		Transition{Timestamp: now.Add(time.Minute), Page: PageAccuracyPractice},
	)
	if got := sess.LastActivity(); got != ActivityAccuracy {
		t.Errorf("LastActivity = %v, want accuracy", got)
	}
}
