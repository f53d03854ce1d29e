// Package gateway invokes agents through pluggable drivers.
//
// Agent ids are routed to a driver kind; unrouted agents use the default
// driver. Every call carries its own timeout and never returns an error:
// failures come back as an error-flagged AgentInvocationResult.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vortexartec/gencore/internal/telemetry"
	"github.com/vortexartec/gencore/pkg/contracts"
	"github.com/vortexartec/gencore/pkg/models"
)

// DefaultTimeout bounds one agent call.
const DefaultTimeout = 30 * time.Second

// ErrNotFound is returned when a requested driver does not exist.
type ErrNotFound struct {
	Entity string
	Key    string
}

func (e *ErrNotFound) Error() string {
	return e.Entity + " not found: " + e.Key
}

// Gateway routes agent calls to registered drivers.
type Gateway struct {
	mu          sync.RWMutex
	drivers     map[string]contracts.AgentDriver
	routes      map[string]string
	defaultKind string

	timeout time.Duration
	log     zerolog.Logger
	now     func() time.Time
}

// Option configures a Gateway.
type Option func(*Gateway)

func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.timeout = d
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(g *Gateway) { g.log = l }
}

// New creates a gateway. The first registered driver becomes the default.
func New(opts ...Option) *Gateway {
	g := &Gateway{
		drivers: make(map[string]contracts.AgentDriver),
		routes:  make(map[string]string),
		timeout: DefaultTimeout,
		log:     log.Logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// RegisterDriver adds or replaces a driver for its kind.
func (g *Gateway) RegisterDriver(d contracts.AgentDriver) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.drivers[d.Kind()] = d
	if g.defaultKind == "" {
		g.defaultKind = d.Kind()
	}
	g.log.Info().Str("kind", d.Kind()).Msg("Registered agent driver")
}

// SetDefault selects the driver for unrouted agents.
func (g *Gateway) SetDefault(kind string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.drivers[kind]; !ok {
		return &ErrNotFound{Entity: "driver", Key: kind}
	}
	g.defaultKind = kind
	return nil
}

// Route pins an agent id to a driver kind.
func (g *Gateway) Route(agentID, kind string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.drivers[kind]; !ok {
		return &ErrNotFound{Entity: "driver", Key: kind}
	}
	g.routes[agentID] = kind
	return nil
}

// ListDrivers returns registered driver kinds, sorted.
func (g *Gateway) ListDrivers() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	kinds := make([]string, 0, len(g.drivers))
	for k := range g.drivers {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

func (g *Gateway) driverFor(agentID string) (contracts.AgentDriver, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	kind, ok := g.routes[agentID]
	if !ok {
		kind = g.defaultKind
	}
	d, ok := g.drivers[kind]
	if !ok {
		return nil, &ErrNotFound{Entity: "driver", Key: kind}
	}
	return d, nil
}

// Invoke calls one agent under the gateway timeout.
func (g *Gateway) Invoke(ctx context.Context, req contracts.AgentRequest) models.AgentInvocationResult {
	start := g.now()
	result := models.AgentInvocationResult{AgentID: req.AgentID}

	driver, err := g.driverFor(req.AgentID)
	if err != nil {
		result.Error = err.Error()
		telemetry.AgentInvocations.WithLabelValues(req.AgentID, "error").Inc()
		return result
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := driver.Invoke(callCtx, req)
	result.LatencyMs = g.now().Sub(start).Milliseconds()
	if err == nil && resp == nil {
		err = fmt.Errorf("driver %s returned no response", driver.Kind())
	}
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("agent %s timed out after %s: %w", req.AgentID, g.timeout, err)
		}
		result.Error = err.Error()
		telemetry.AgentInvocations.WithLabelValues(req.AgentID, "error").Inc()
		g.log.Warn().
			Err(err).
			Str("agent", req.AgentID).
			Str("driver", driver.Kind()).
			Str("request_id", req.RequestID).
			Msg("Agent invocation failed")
		return result
	}

	result.Content = resp.Content
	result.Quality = clamp(resp.Quality, 0, 1)
	result.Cost = math.Max(resp.Cost, 0)
	result.ProviderStats = resp.ProviderStats
	telemetry.AgentInvocations.WithLabelValues(req.AgentID, "ok").Inc()
	return result
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
