package middleware_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vortexartec/gencore/pkg/contracts"
	"github.com/vortexartec/gencore/pkg/middleware"
)

func TestIdentityRoundTrip(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, middleware.GetIdentity(ctx))
	assert.Empty(t, middleware.GetUserID(ctx))

	ctx = middleware.SetIdentity(ctx, &contracts.Identity{Subject: "42", Provider: "jwt"})
	assert.Equal(t, "42", middleware.GetIdentity(ctx).Subject)
	assert.Equal(t, "42", middleware.GetUserID(ctx))
}

func TestSetIdentityNil(t *testing.T) {
	ctx := middleware.SetIdentity(context.Background(), nil)
	assert.Nil(t, middleware.GetIdentity(ctx))
}

func TestTrackUserSeesDerivedContext(t *testing.T) {
	outer := middleware.TrackUser(context.Background())
	assert.Empty(t, middleware.GetUserID(outer))

	inner := middleware.SetIdentity(outer, &contracts.Identity{Subject: "u-9"})
	assert.Equal(t, "u-9", middleware.GetUserID(inner))
	assert.Equal(t, "u-9", middleware.GetUserID(outer))
}

func TestUserNotVisibleWithoutTracking(t *testing.T) {
	outer := context.Background()
	_ = middleware.SetUserID(outer, "u-9")
	assert.Empty(t, middleware.GetUserID(outer))
}
