// Package identity mints the opaque identifiers handed out to chat clients.
//
// Identifiers carry no account state: every call to Issue returns a fresh
// value and nothing is recorded. A user that authenticates twice simply
// holds two unrelated identifiers.
package identity

import "github.com/google/uuid"

// Issuer mints opaque user identifiers.
type Issuer interface {
	// Issue returns a fresh identifier. Never blocks, no side effects
	// beyond consuming randomness.
	Issue() string
}

// IssuerFunc is a function adapter for Issuer.
type IssuerFunc func() string

func (f IssuerFunc) Issue() string {
	return f()
}

// NewIssuer returns the default UUIDv4-backed issuer.
func NewIssuer() Issuer {
	return uuidIssuer{}
}

type uuidIssuer struct{}

// Issue returns a random UUID string. An exhausted randomness source
// panics; there is no sensible recovery from that condition.
func (uuidIssuer) Issue() string {
	return uuid.NewString()
}
