package metrics

// Item is one typed value inside an opaque metric record.
type Item struct {
	Type  string  `json:"type"`
	Value float64 `json:"value"`
}

// Record is the opaque payload posted to the analytics collector: a list
// of typed values plus caller-supplied actor and session identifiers.
// Its downstream schema is not this service's concern.
type Record struct {
	ActorID   string `json:"actorId"`
	ActorName string `json:"actorName,omitempty"`
	SessionID string `json:"sessionId"`
	Activity  string `json:"activity"`
	Items     []Item `json:"items"`
}

// RecordSink accepts metric records for delivery to the collector.
// Delivery is at-least-once; callers treat failures as non-fatal.
type RecordSink interface {
	Post(rec *Record) error
}

// Well-known record item types.
const (
	ItemXPEarned         = "xpEarned"
	ItemActiveTime       = "activeTime"
	ItemWasteTime        = "wasteTime"
	ItemTotalQuestions   = "totalQuestions"
	ItemCorrectQuestions = "correctQuestions"
	ItemMasteredUnits    = "masteredUnits"
	ItemSessionCompleted = "sessionCompleted"
)
