package middleware_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vortexartec/gencore/internal/api/middleware"
	"github.com/vortexartec/gencore/internal/auth"
	pkgmw "github.com/vortexartec/gencore/pkg/middleware"
)

func echoUser() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(pkgmw.GetUserID(r.Context())))
	})
}

func TestAuthenticate(t *testing.T) {
	verifier := auth.NewHMACVerifier("s3cret", "gencore")
	good, err := verifier.Issue("user-42", time.Hour)
	require.NoError(t, err)
	h := middleware.Authenticate(verifier)(echoUser())

	tests := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"valid", "Bearer " + good, http.StatusOK, "user-42"},
		{"lowercase scheme", "bearer " + good, http.StatusOK, "user-42"},
		{"missing", "", http.StatusUnauthorized, ""},
		{"basic scheme", "Basic dXNlcjpwdw==", http.StatusUnauthorized, ""},
		{"garbage", "Bearer not-a-jwt", http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/tier/basic/status", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, tt.body, rec.Body.String())
			} else {
				assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer")
				assert.Contains(t, rec.Body.String(), "unauthorized")
			}
		})
	}
}

func TestLoggerAndTelemetryPassThrough(t *testing.T) {
	h := middleware.Logger(middleware.Telemetry(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("brew"))
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "brew", rec.Body.String())
}

func TestLoggerRecordsTierAndUser(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })

	verifier := auth.NewHMACVerifier("s3cret", "gencore")
	token, err := verifier.Issue("user-42", time.Hour)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.With(middleware.Authenticate(verifier)).Get("/tier/{tier}/status", echoUser().ServeHTTP)

	req := httptest.NewRequest(http.MethodGet, "/tier/basic/status", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, buf.String(), `"user_id":"user-42"`)
	assert.Contains(t, buf.String(), `"tier":"basic"`)
}

func TestLoggerOmitsAnonymousUser(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })

	h := middleware.Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Contains(t, buf.String(), `"path":"/health"`)
	assert.NotContains(t, buf.String(), "user_id")
	assert.NotContains(t, buf.String(), "tier")
}
