package core

import "time"

// Challenge represents a pending wallet-ownership challenge
type Challenge struct {
	ID        string    // Unique identifier for the challenge
	Address   string    // Canonical (lower-case) address the challenge was issued to
	Nonce     string    // Random nonce embedded in the message
	Message   string    // Exact text the wallet has to sign
	IssuedAt  time.Time // When the challenge was created
	ExpiresAt time.Time // When the challenge stops being accepted
}

// Expired reports whether the challenge is no longer usable at now.
func (c *Challenge) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Session represents an authenticated wallet session
type Session struct {
	ID           string    // Unique session identifier
	Address      string    // Canonical address proven by the signature
	IssuedAt     time.Time // When the session was created
	AccessExpiry time.Time // When the access capability expires
}
