// Package middleware provides request-context helpers shared by the HTTP
// layer and any wrapping server that embeds gencore.
package middleware

import (
	"context"
	"sync"
)

type contextKey string

const (
	userKey     contextKey = "user_id"
	userSlotKey contextKey = "user_slot"
)

// userSlot lets an outer middleware see the user id set further down the
// chain on a derived request context.
type userSlot struct {
	mu sync.Mutex
	id string
}

// TrackUser returns a context in which any later SetUserID on a derived
// context is also visible through GetUserID on this one.
func TrackUser(ctx context.Context) context.Context {
	return context.WithValue(ctx, userSlotKey, &userSlot{})
}

// GetUserID extracts the authenticated user id from the context.
// Returns "" when the request is anonymous.
func GetUserID(ctx context.Context) string {
	if v, ok := ctx.Value(userKey).(string); ok {
		return v
	}
	if s, ok := ctx.Value(userSlotKey).(*userSlot); ok {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.id
	}
	return ""
}

// SetUserID stores the user id in the context.
func SetUserID(ctx context.Context, userID string) context.Context {
	if s, ok := ctx.Value(userSlotKey).(*userSlot); ok {
		s.mu.Lock()
		s.id = userID
		s.mu.Unlock()
	}
	return context.WithValue(ctx, userKey, userID)
}
