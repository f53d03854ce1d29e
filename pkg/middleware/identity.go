package middleware

import (
	"context"

	"github.com/vortexartec/gencore/pkg/contracts"
)

const identityKey contextKey = "identity"

// SetIdentity stores the authenticated Identity in the context and mirrors
// its subject as the user id.
func SetIdentity(ctx context.Context, identity *contracts.Identity) context.Context {
	if identity == nil {
		return ctx
	}
	ctx = context.WithValue(ctx, identityKey, identity)
	return SetUserID(ctx, identity.Subject)
}

// GetIdentity retrieves the authenticated Identity from the context.
// Returns nil if no identity is set.
func GetIdentity(ctx context.Context) *contracts.Identity {
	if v, ok := ctx.Value(identityKey).(*contracts.Identity); ok {
		return v
	}
	return nil
}
