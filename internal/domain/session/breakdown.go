package session

import (
	"math"
	"sort"
)

// TimeBreakdown is the per-activity attribution of a session's elapsed time.
type TimeBreakdown struct {
	PerActivity map[ActivityType]float64
	Total       float64
}

// ComputeTimeBreakdown attributes the gaps between adjacent transitions
// to activity categories. Transitions are sorted by timestamp; each
// adjacent pair yields a rounded-seconds segment classified by the
// earlier transition's page. Segments below zero or above
// maxSegmentSeconds are corrupt or idle gaps and are discarded without
// error.
func ComputeTimeBreakdown(transitions []Transition, maxSegmentSeconds float64) TimeBreakdown {
	breakdown := TimeBreakdown{PerActivity: make(map[ActivityType]float64)}
	if len(transitions) < 2 {
		return breakdown
	}

	ordered := make([]Transition, len(transitions))
	copy(ordered, transitions)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	for i := 0; i < len(ordered)-1; i++ {
		current := &ordered[i]
		next := &ordered[i+1]

		seconds := math.Round(next.Timestamp.Sub(current.Timestamp).Seconds())
		if seconds < 0 || seconds > maxSegmentSeconds {
			continue
		}

		activity := current.Activity()
		breakdown.PerActivity[activity] += seconds
		breakdown.Total += seconds
	}

	return breakdown
}

// CoverageCandidates unions the per-stage fact ids of the current and
// immediately preceding transitions. These are the facts whose live
// mastery status the coverage merge needs.
func CoverageCandidates(current, previous *Transition) map[Stage][]string {
	candidates := make(map[Stage][]string)
	for _, t := range []*Transition{previous, current} {
		if t == nil {
			continue
		}
		for stage, ids := range t.FactsByStage {
			seen := make(map[string]bool, len(candidates[stage]))
			for _, id := range candidates[stage] {
				seen[id] = true
			}
			for _, id := range ids {
				if !seen[id] {
					candidates[stage] = append(candidates[stage], id)
					seen[id] = true
				}
			}
		}
	}
	return candidates
}

// ApplyFactStatuses folds live mastery statuses into the session's
// coverage records. A fact new to its stage records the live status as
// its initial status; a fact already recorded whose live status now
// differs gets StatusChanged set, and it never reverts.
func (s *Session) ApplyFactStatuses(candidates map[Stage][]string, statuses map[string]string) {
	if s.FactsCovered == nil {
		s.FactsCovered = make(map[Stage]map[string]*FactCoverage)
	}
	for stage, ids := range candidates {
		covered := s.FactsCovered[stage]
		if covered == nil {
			covered = make(map[string]*FactCoverage)
			s.FactsCovered[stage] = covered
		}
		for _, id := range ids {
			live := statuses[id]
			record, exists := covered[id]
			if !exists {
				covered[id] = &FactCoverage{FactID: id, InitialStatus: live}
				continue
			}
			if live != "" && live != record.InitialStatus {
				record.StatusChanged = true
			}
		}
	}
}
