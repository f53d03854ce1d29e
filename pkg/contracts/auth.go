package contracts

import (
	"context"
	"time"
)

// ── Identity ────────────────────────────────────────────────

// Identity is the authenticated caller, produced by a TokenVerifier and
// consumed by handlers. No handler knows how the token was issued.
type Identity struct {
	// Subject is the user id the request acts for.
	Subject string `json:"subject"`

	// Provider identifies the verifier, e.g. "jwt".
	Provider string `json:"provider"`

	Claims    map[string]string `json:"claims,omitempty"`
	ExpiresAt time.Time         `json:"expires_at,omitempty"`
}

// TokenVerifier validates a bearer admission token.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}
