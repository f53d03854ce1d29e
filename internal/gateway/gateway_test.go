package gateway_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vortexartec/gencore/internal/gateway"
	"github.com/vortexartec/gencore/pkg/contracts"
	"github.com/vortexartec/gencore/pkg/models"
)

type stubDriver struct {
	kind  string
	delay time.Duration
	resp  *contracts.AgentResponse
	err   error
}

func (d *stubDriver) Kind() string { return d.kind }

func (d *stubDriver) Invoke(ctx context.Context, _ contracts.AgentRequest) (*contracts.AgentResponse, error) {
	if d.delay > 0 {
		select {
		case <-time.After(d.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return d.resp, d.err
}

func newGateway(opts ...gateway.Option) *gateway.Gateway {
	return gateway.New(append([]gateway.Option{gateway.WithLogger(zerolog.Nop())}, opts...)...)
}

func TestInvokeSuccessClampsValues(t *testing.T) {
	g := newGateway()
	g.RegisterDriver(&stubDriver{kind: "stub", resp: &contracts.AgentResponse{Content: "ok", Quality: 1.7, Cost: -1}})

	r := g.Invoke(context.Background(), contracts.AgentRequest{AgentID: "a"})
	assert.Empty(t, r.Error)
	assert.Equal(t, "a", r.AgentID)
	assert.Equal(t, 1.0, r.Quality)
	assert.Equal(t, 0.0, r.Cost)
}

func TestInvokeErrorIsData(t *testing.T) {
	g := newGateway()
	g.RegisterDriver(&stubDriver{kind: "stub", err: errors.New("model overloaded")})

	r := g.Invoke(context.Background(), contracts.AgentRequest{AgentID: "a"})
	assert.True(t, r.Failed())
	assert.Contains(t, r.Error, "model overloaded")
}

func TestInvokeTimeout(t *testing.T) {
	g := newGateway(gateway.WithTimeout(20 * time.Millisecond))
	g.RegisterDriver(&stubDriver{kind: "slow", delay: time.Second, resp: &contracts.AgentResponse{}})

	r := g.Invoke(context.Background(), contracts.AgentRequest{AgentID: "a"})
	assert.True(t, r.Failed())
	assert.Contains(t, r.Error, "timed out")
}

func TestRouting(t *testing.T) {
	g := newGateway()
	g.RegisterDriver(&stubDriver{kind: "first", resp: &contracts.AgentResponse{Content: "first"}})
	g.RegisterDriver(&stubDriver{kind: "second", resp: &contracts.AgentResponse{Content: "second"}})

	assert.Equal(t, []string{"first", "second"}, g.ListDrivers())
	assert.Equal(t, "first", g.Invoke(context.Background(), contracts.AgentRequest{AgentID: "x"}).Content)

	require.NoError(t, g.Route("x", "second"))
	assert.Equal(t, "second", g.Invoke(context.Background(), contracts.AgentRequest{AgentID: "x"}).Content)

	var nf *gateway.ErrNotFound
	assert.ErrorAs(t, g.Route("x", "missing"), &nf)
	assert.ErrorAs(t, g.SetDefault("missing"), &nf)
}

func TestNoDrivers(t *testing.T) {
	r := newGateway().Invoke(context.Background(), contracts.AgentRequest{AgentID: "a"})
	assert.Contains(t, r.Error, "driver not found")
}

func TestLocalDriverDeterministic(t *testing.T) {
	d := gateway.NewLocalDriver()
	req := contracts.AgentRequest{AgentID: "creative_agent", Action: models.ActionGenerate, Query: "a fox"}

	a, err := d.Invoke(context.Background(), req)
	require.NoError(t, err)
	b, err := d.Invoke(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.GreaterOrEqual(t, a.Quality, 0.6)
	assert.LessOrEqual(t, a.Quality, 1.0)
	assert.Positive(t, a.Cost)

	d.Costs["creative_agent"] = 0.5
	c, err := d.Invoke(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 0.5, c.Cost)
}

func TestHTTPDriver(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/agents/style_agent/invoke", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req contracts.AgentRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "make it pop", req.Query)

		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"content":"popped","quality":0.91,"cost":0.012,"provider":"acme","usage":{"tokens":321}}`))
	}))
	defer srv.Close()

	d := gateway.NewHTTPDriver(srv.URL+"/", "secret", time.Second)
	resp, err := d.Invoke(context.Background(), contracts.AgentRequest{AgentID: "style_agent", Query: "make it pop"})
	require.NoError(t, err)

	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, "popped", resp.Content)
	assert.Equal(t, 0.91, resp.Quality)
	assert.Equal(t, 0.012, resp.Cost)
	assert.Equal(t, "acme", resp.ProviderStats["provider"])
	assert.NotNil(t, resp.ProviderStats["usage"])
}

func TestHTTPDriverPermanentError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad agent", http.StatusBadRequest)
	}))
	defer srv.Close()

	d := gateway.NewHTTPDriver(srv.URL, "", time.Second)
	_, err := d.Invoke(context.Background(), contracts.AgentRequest{AgentID: "a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPDriverAgentError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":"content policy"}`))
	}))
	defer srv.Close()

	_, err := gateway.NewHTTPDriver(srv.URL, "", time.Second).Invoke(context.Background(), contracts.AgentRequest{AgentID: "a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "content policy")
}
