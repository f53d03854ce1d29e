package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerify_RoundTrip(t *testing.T) {
	v := NewHMACVerifier("test-secret", "gencore")
	token, err := v.Issue("42", time.Hour)
	require.NoError(t, err)

	id, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "42", id.Subject)
	assert.Equal(t, "jwt", id.Provider)
	assert.False(t, id.ExpiresAt.IsZero())
}

func TestVerify_Rejects(t *testing.T) {
	v := NewHMACVerifier("test-secret", "gencore")
	ctx := context.Background()

	_, err := v.Verify(ctx, "")
	assert.ErrorIs(t, err, ErrMissingToken)

	_, err = v.Verify(ctx, "not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)

	other, err := NewHMACVerifier("other-secret", "gencore").Issue("42", time.Hour)
	require.NoError(t, err)
	_, err = v.Verify(ctx, other)
	assert.ErrorIs(t, err, ErrInvalidToken, "wrong signing key")

	foreign, err := NewHMACVerifier("test-secret", "someone-else").Issue("42", time.Hour)
	require.NoError(t, err)
	_, err = v.Verify(ctx, foreign)
	assert.ErrorIs(t, err, ErrInvalidToken, "wrong issuer")

	past := time.Now().Add(-2 * time.Hour)
	expired, err := NewHMACVerifier("test-secret", "gencore").WithClock(func() time.Time { return past }).Issue("42", time.Hour)
	require.NoError(t, err)
	_, err = v.Verify(ctx, expired)
	assert.ErrorIs(t, err, ErrInvalidToken, "expired")
}

func TestVerify_RejectsNoneAndMissingSubject(t *testing.T) {
	v := NewHMACVerifier("test-secret", "")
	ctx := context.Background()

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "42"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = v.Verify(ctx, none)
	assert.ErrorIs(t, err, ErrInvalidToken)

	anon, err := v.Issue("", time.Hour)
	require.NoError(t, err)
	_, err = v.Verify(ctx, anon)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
