// Package metrics provides the delta-counter domain model: rolling
// not-yet-reported increments per user per day, flush results, and the
// store and collector contracts they depend on.
package metrics

import "time"

// Metric field names. Stored counters carry the Delta suffix while
// unreported and the Flushed suffix once snapshotted.
const (
	FieldTimeSpent        = "timeSpent"
	FieldActiveTime       = "activeTime"
	FieldXPEarned         = "xpEarned"
	FieldTotalQuestions   = "totalQuestions"
	FieldCorrectQuestions = "correctQuestions"
	FieldMasteredUnits    = "masteredUnits"

	DeltaSuffix   = "Delta"
	FlushedSuffix = "Flushed"
)

// DeltaFieldNames lists every delta counter a flush snapshots, in a
// stable order.
func DeltaFieldNames() []string {
	return []string{
		FieldTimeSpent + DeltaSuffix,
		FieldActiveTime + DeltaSuffix,
		FieldXPEarned + DeltaSuffix,
		FieldTotalQuestions + DeltaSuffix,
		FieldCorrectQuestions + DeltaSuffix,
		FieldMasteredUnits + DeltaSuffix,
	}
}

// DayKey is the canonical (userId, day) partition key component.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// DeltaFields carries one batch of increments. Zero fields are skipped
// by AddDelta.
type DeltaFields struct {
	TimeSpent        float64
	ActiveTime       float64
	XPEarned         float64
	TotalQuestions   float64
	CorrectQuestions float64
	MasteredUnits    float64
}

// NonZero maps the populated fields to their stored delta counter names.
func (d DeltaFields) NonZero() map[string]float64 {
	out := make(map[string]float64)
	if d.TimeSpent != 0 {
		out[FieldTimeSpent+DeltaSuffix] = d.TimeSpent
	}
	if d.ActiveTime != 0 {
		out[FieldActiveTime+DeltaSuffix] = d.ActiveTime
	}
	if d.XPEarned != 0 {
		out[FieldXPEarned+DeltaSuffix] = d.XPEarned
	}
	if d.TotalQuestions != 0 {
		out[FieldTotalQuestions+DeltaSuffix] = d.TotalQuestions
	}
	if d.CorrectQuestions != 0 {
		out[FieldCorrectQuestions+DeltaSuffix] = d.CorrectQuestions
	}
	if d.MasteredUnits != 0 {
		out[FieldMasteredUnits+DeltaSuffix] = d.MasteredUnits
	}
	return out
}

// FlushResult is what one snapshot-and-clear produced after derivation:
// clamped active time, the waste remainder, earned XP, and the question
// counters when they were present in the snapshot.
type FlushResult struct {
	ActiveTime       float64
	WasteTime        float64
	XPEarned         float64
	TotalQuestions   *float64
	CorrectQuestions *float64
	MasteredUnits    *float64
}

// HasNonTimeMetrics reports whether the flush carried anything beyond
// pure time accounting.
func (r *FlushResult) HasNonTimeMetrics() bool {
	return r.TotalQuestions != nil || r.CorrectQuestions != nil || r.MasteredUnits != nil
}

// CounterStore is the per-(user, day) numeric counter persistence. All
// operations are atomic per field; increments commute regardless of
// arrival order.
type CounterStore interface {
	// Increment atomically adds amount to a counter, creating it at
	// zero when absent, and stamps the last-increment time.
	Increment(userID, day, field string, amount float64, now time.Time) error

	// SnapshotAndClear atomically reads the listed fields, copies each
	// present value into its Flushed counterpart, removes the delta
	// rows, and returns the pre-update values. A nil map means nothing
	// was present.
	SnapshotAndClear(userID, day string, fields []string) (map[string]float64, error)

	// ClearDay best-effort removes every delta counter for the day.
	ClearDay(userID, day string) error
}
