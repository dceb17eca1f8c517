package security

import "time"

// Signer mints the short-lived credentials attached to outbound
// collector records.
type Signer struct {
	secret string
	ttl    time.Duration
}

// NewSigner creates a signer with the given secret and credential TTL.
func NewSigner(secret string, ttl time.Duration) *Signer {
	return &Signer{secret: secret, ttl: ttl}
}

// SignerToken returns a fresh credential scoped to metrics writes for
// the given actor. Never reused across emissions.
func (s *Signer) SignerToken(actorID string) (string, error) {
	return GenerateSignerToken(actorID, s.secret, s.ttl)
}
