// Package learner defines the contracts toward the progress/mastery
// store and the user directory, both external collaborators.
package learner

// StatusUnknown is the mastery status assumed when the progress store
// cannot answer; lookup failures degrade, they never block tracking.
const StatusUnknown = "unknown"

// Profile is the display identity attached to outbound metric records.
type Profile struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

// StatusLookup answers live mastery statuses for a set of fact ids.
type StatusLookup interface {
	FactStatuses(userID, trackID string, factIDs []string) (map[string]string, error)
}

// IdentityLookup resolves a user's display identity.
type IdentityLookup interface {
	ProfileByID(userID string) (*Profile, error)
}
