package metrics

// Derive turns one snapshot of pre-flush delta values into reportable
// metrics. Active time is clamped to raw time spent, the remainder is
// waste, and XP is earned at one unit per active minute with a bonus
// multiplier for a perfect answer record.
func Derive(snapshot map[string]float64, perfectBonus float64) *FlushResult {
	if len(snapshot) == 0 {
		return nil
	}

	timeSpent := snapshot[FieldTimeSpent+DeltaSuffix]
	activeTime := snapshot[FieldActiveTime+DeltaSuffix]

	active := activeTime
	if active > timeSpent {
		active = timeSpent
	}
	waste := timeSpent - active
	if waste < 0 {
		waste = 0
	}

	xp := active / 60
	totalQ, hasTotalQ := snapshot[FieldTotalQuestions+DeltaSuffix]
	correctQ, hasCorrectQ := snapshot[FieldCorrectQuestions+DeltaSuffix]
	if hasTotalQ && totalQ > 0 && totalQ == correctQ {
		xp *= perfectBonus
	}

	result := &FlushResult{
		ActiveTime: active,
		WasteTime:  waste,
		XPEarned:   xp,
	}
	if hasTotalQ {
		result.TotalQuestions = &totalQ
	}
	if hasCorrectQ {
		result.CorrectQuestions = &correctQ
	}
	if mastered, ok := snapshot[FieldMasteredUnits+DeltaSuffix]; ok {
		result.MasteredUnits = &mastered
	}
	return result
}
