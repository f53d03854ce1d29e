package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vortexartec/gencore/pkg/contracts"
	pkgmw "github.com/vortexartec/gencore/pkg/middleware"
)

// Authenticate requires a valid bearer admission token and stores the
// resulting Identity (and user id) in the request context.
func Authenticate(verifier contracts.TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearer(r)
			if token == "" {
				respondUnauthorized(w, "Admission token required. Set Authorization: Bearer <token>.")
				return
			}
			identity, err := verifier.Verify(r.Context(), token)
			if err != nil {
				log.Debug().Err(err).Str("path", r.URL.Path).Msg("Authentication failed")
				respondUnauthorized(w, "Invalid admission token.")
				return
			}
			trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("gencore.user_id", identity.Subject))
			next.ServeHTTP(w, r.WithContext(pkgmw.SetIdentity(r.Context(), identity)))
		})
	}
}

func extractBearer(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

func respondUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="gencore"`)
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{
		"error":   "unauthorized",
		"message": msg,
	})
}
