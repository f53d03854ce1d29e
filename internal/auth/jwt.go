// Package auth verifies the admission tokens callers present on the tier
// endpoints. Tokens are HS256 JWTs whose subject is the user id.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vortexartec/gencore/pkg/contracts"
)

var (
	ErrMissingToken = errors.New("admission token required")
	ErrInvalidToken = errors.New("invalid admission token")
)

// Claims is the admission token payload.
type Claims struct {
	jwt.RegisteredClaims
	Scope string `json:"scope,omitempty"`
}

// HMACVerifier validates HS256 admission tokens.
type HMACVerifier struct {
	secret []byte
	issuer string
	now    func() time.Time
}

var _ contracts.TokenVerifier = (*HMACVerifier)(nil)

// NewHMACVerifier creates a verifier. A non-empty issuer is enforced.
func NewHMACVerifier(secret, issuer string) *HMACVerifier {
	return &HMACVerifier{secret: []byte(secret), issuer: issuer, now: time.Now}
}

// WithClock overrides the validation clock.
func (v *HMACVerifier) WithClock(now func() time.Time) *HMACVerifier {
	v.now = now
	return v
}

func (v *HMACVerifier) Verify(_ context.Context, token string) (*contracts.Identity, error) {
	if token == "" {
		return nil, ErrMissingToken
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	id := &contracts.Identity{Subject: claims.Subject, Provider: "jwt"}
	if claims.Scope != "" {
		id.Claims = map[string]string{"scope": claims.Scope}
	}
	if claims.ExpiresAt != nil {
		id.ExpiresAt = claims.ExpiresAt.Time
	}
	return id, nil
}

// Issue signs a token for subject valid for ttl. Used by operators and tests.
func (v *HMACVerifier) Issue(subject string, ttl time.Duration) (string, error) {
	now := v.now()
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    v.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
