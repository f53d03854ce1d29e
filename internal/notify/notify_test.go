package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vortexartec/gencore/pkg/contracts"
	"github.com/vortexartec/gencore/pkg/models"
)

func testService() *Service {
	return NewService(WithRetry(3, time.Millisecond), WithLogger(zerolog.Nop()))
}

func TestDispatch_SignsPayload(t *testing.T) {
	var gotSig, gotEvent string
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Gencore-Signature")
		gotEvent = r.Header.Get("X-Gencore-Event")
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	r := testService().Dispatch(context.Background(), Channel{Name: "c", URL: srv.URL, Secret: "s3cret"},
		Event{Type: EventMarketplaceSync, RequestID: "req-1", Timestamp: time.Now()})
	require.True(t, r.Success, r.Error)
	assert.Equal(t, 1, r.Attempts)
	assert.Equal(t, string(EventMarketplaceSync), gotEvent)
	assert.Equal(t, Sign("s3cret", body), gotSig)
}

func TestDispatch_RetriesThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := testService().Dispatch(context.Background(), Channel{Name: "c", URL: srv.URL}, Event{Type: EventMarginCritical})
	require.True(t, r.Success, r.Error)
	assert.Equal(t, 3, r.Attempts)
}

func TestDispatch_GivesUp(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	r := testService().Dispatch(context.Background(), Channel{Name: "c", URL: srv.URL}, Event{Type: EventMarginCritical})
	assert.False(t, r.Success)
	assert.Contains(t, r.Error, "HTTP 500")
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestWebhookAlerter(t *testing.T) {
	var got Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
	}))
	defer srv.Close()

	a := NewWebhookAlerter(testService(), srv.URL, "")
	err := a.Alert(context.Background(), contracts.Alert{
		Severity: "critical", Title: "Margin below floor",
		Details: map[string]interface{}{"margin": 0.4}, Timestamp: time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, EventMarginCritical, got.Type)
	assert.Equal(t, "critical", got.Payload["severity"])
}

func TestWebhookAlerter_Failure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	a := NewWebhookAlerter(testService(), srv.URL, "")
	assert.Error(t, a.Alert(context.Background(), contracts.Alert{Severity: "critical"}))
}

func TestWebhookMarketplace_SkipsFailedResults(t *testing.T) {
	var got Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
	}))
	defer srv.Close()

	m := NewWebhookMarketplace(testService(), srv.URL, "k")
	err := m.Sync(context.Background(), &models.PipelineResponse{
		RequestID: "req-9",
		Action:    models.ActionPublish,
		Results: []models.AgentInvocationResult{
			{AgentID: "publishing_agent", Content: "ok"},
			{AgentID: "marketplace_agent", Error: "timeout"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "req-9", got.RequestID)
	assert.Equal(t, []interface{}{"ok"}, got.Payload["contents"])
}
