package session

import (
	"testing"
	"time"
)

var breakdownBase = time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

func at(offset time.Duration) time.Time {
	return breakdownBase.Add(offset)
}

func TestComputeTimeBreakdown(t *testing.T) {
	tests := []struct {
		name        string
		transitions []Transition
		want        map[ActivityType]float64
		wantTotal   float64
	}{
		{
			name:        "empty",
			transitions: nil,
			want:        map[ActivityType]float64{},
		},
		{
			name: "single transition yields nothing",
			transitions: []Transition{
				{Timestamp: at(0), Page: PageLearn},
			},
			want: map[ActivityType]float64{},
		},
		{
			name: "segment classified by earlier page",
			transitions: []Transition{
				{Timestamp: at(0), Page: PageLearn},
				{Timestamp: at(40 * time.Second), Page: PageAccuracyPractice},
			},
			want:      map[ActivityType]float64{ActivityLearning: 40},
			wantTotal: 40,
		},
		{
			name: "accumulates across pairs",
			transitions: []Transition{
				{Timestamp: at(0), Page: PageLearn},
				{Timestamp: at(30 * time.Second), Page: PageAccuracyPractice},
				{Timestamp: at(90 * time.Second), Page: PageLearn},
				{Timestamp: at(100 * time.Second), Page: PageHome},
			},
			want: map[ActivityType]float64{
				ActivityLearning: 40,
				ActivityAccuracy: 60,
			},
			wantTotal: 100,
		},
		{
			name: "onboarding counts as assessment",
			transitions: []Transition{
				{Timestamp: at(0), Page: PageOnboarding},
				{Timestamp: at(20 * time.Second), Page: PageLearn},
			},
			want:      map[ActivityType]float64{ActivityAssessment: 20},
			wantTotal: 20,
		},
		{
			name: "home classifies as other",
			transitions: []Transition{
				{Timestamp: at(0), Page: PageHome},
				{Timestamp: at(5 * time.Second), Page: PageLearn},
			},
			want:      map[ActivityType]float64{ActivityOther: 5},
			wantTotal: 5,
		},
		{
			name: "out of order input is sorted first",
			transitions: []Transition{
				{Timestamp: at(40 * time.Second), Page: PageAccuracyPractice},
				{Timestamp: at(0), Page: PageLearn},
			},
			want:      map[ActivityType]float64{ActivityLearning: 40},
			wantTotal: 40,
		},
		{
			name: "oversized gap discarded",
			transitions: []Transition{
				{Timestamp: at(0), Page: PageLearn},
				{Timestamp: at(3 * time.Hour), Page: PageAccuracyPractice},
				{Timestamp: at(3*time.Hour + 10*time.Second), Page: PageHome},
			},
			want:      map[ActivityType]float64{ActivityAccuracy: 10},
			wantTotal: 10,
		},
		{
			name: "sub-second gap rounds",
			transitions: []Transition{
				{Timestamp: at(0), Page: PageLearn},
				{Timestamp: at(1400 * time.Millisecond), Page: PageHome},
			},
			want:      map[ActivityType]float64{ActivityLearning: 1},
			wantTotal: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeTimeBreakdown(tt.transitions, 7200)

			if got.Total != tt.wantTotal {
				t.Errorf("Total = %v, want %v", got.Total, tt.wantTotal)
			}
			if len(got.PerActivity) != len(tt.want) {
				t.Errorf("PerActivity = %v, want %v", got.PerActivity, tt.want)
			}
			for activity, seconds := range tt.want {
				if got.PerActivity[activity] != seconds {
					t.Errorf("PerActivity[%s] = %v, want %v", activity, got.PerActivity[activity], seconds)
				}
			}
		})
	}
}

func TestComputeTimeBreakdownBoundedBySpan(t *testing.T) {
	transitions := []Transition{
		{Timestamp: at(0), Page: PageLearn},
		{Timestamp: at(12 * time.Second), Page: PageAccuracyPractice},
		{Timestamp: at(47 * time.Second), Page: PageFluencyPractice},
		{Timestamp: at(2 * time.Minute), Page: PageAssessment},
		{Timestamp: at(5 * time.Minute), Page: PageHome},
	}

	got := ComputeTimeBreakdown(transitions, 7200)

	span := transitions[len(transitions)-1].Timestamp.Sub(transitions[0].Timestamp).Seconds()
	var sum float64
	for _, seconds := range got.PerActivity {
		sum += seconds
	}
	if sum > span {
		t.Errorf("per-activity sum %v exceeds span %v", sum, span)
	}
	if got.Total != sum {
		t.Errorf("Total = %v, want sum of activities %v", got.Total, sum)
	}
}

func TestCoverageCandidates(t *testing.T) {
	current := &Transition{
		FactsByStage: map[Stage][]string{
			StageLearn:    {"3x4", "3x5"},
			StageAccuracy: {"2x2"},
		},
	}
	previous := &Transition{
		FactsByStage: map[Stage][]string{
			StageLearn: {"3x4", "3x6"},
		},
	}

	got := CoverageCandidates(current, previous)

	wantLearn := map[string]bool{"3x4": true, "3x5": true, "3x6": true}
	if len(got[StageLearn]) != len(wantLearn) {
		t.Fatalf("learn candidates = %v, want %v", got[StageLearn], wantLearn)
	}
	for _, id := range got[StageLearn] {
		if !wantLearn[id] {
			t.Errorf("unexpected learn candidate %q", id)
		}
	}
	if len(got[StageAccuracy]) != 1 || got[StageAccuracy][0] != "2x2" {
		t.Errorf("accuracy candidates = %v, want [2x2]", got[StageAccuracy])
	}

	if got := CoverageCandidates(&Transition{}, nil); len(got) != 0 {
		t.Errorf("candidates for empty transitions = %v, want none", got)
	}
}

func TestApplyFactStatuses(t *testing.T) {
	sess := New("s1", "u1", "t1", at(0))
	candidates := map[Stage][]string{StageLearn: {"3x4"}}

	sess.ApplyFactStatuses(candidates, map[string]string{"3x4": "learning"})
	record := sess.FactsCovered[StageLearn]["3x4"]
	if record == nil || record.InitialStatus != "learning" || record.StatusChanged {
		t.Fatalf("initial record = %+v, want InitialStatus=learning unchanged", record)
	}

	// Same status again: no change flag.
	sess.ApplyFactStatuses(candidates, map[string]string{"3x4": "learning"})
	if record.StatusChanged {
		t.Fatal("StatusChanged set on identical status")
	}

	// Status moved: flag set and sticky.
	sess.ApplyFactStatuses(candidates, map[string]string{"3x4": "mastered"})
	if !record.StatusChanged {
		t.Fatal("StatusChanged not set on differing status")
	}
	sess.ApplyFactStatuses(candidates, map[string]string{"3x4": "learning"})
	if !record.StatusChanged {
		t.Fatal("StatusChanged must be sticky")
	}
}
