// Package ledger tracks declared per-stage costs against booked revenue and
// signals when the cumulative profit margin drops below target.
package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vortexartec/gencore/internal/telemetry"
	"github.com/vortexartec/gencore/pkg/contracts"
	"github.com/vortexartec/gencore/pkg/models"
)

// Health is the margin band the ledger is in.
type Health string

const (
	HealthOK       Health = "ok"
	HealthWarning  Health = "warning"
	HealthCritical Health = "critical"
)

// Receipt is one tracked step.
type Receipt = models.CostLedgerEntry

// Snapshot is the ledger state exposed over HTTP.
type Snapshot struct {
	TotalCost      float64              `json:"total_cost"`
	Revenue        float64              `json:"revenue"`
	Margin         float64              `json:"margin"`
	TargetMargin   float64              `json:"target_margin"`
	CriticalMargin float64              `json:"critical_margin"`
	Health         Health               `json:"health"`
	Steps          map[models.Stage]int `json:"steps"`
}

// Ledger is the process-wide cost ledger.
type Ledger struct {
	mu        sync.Mutex
	stepCosts map[models.Stage]float64
	totalCost float64
	revenue   float64
	steps     map[models.Stage]int
	health    Health

	target    float64
	critical  float64
	realert   time.Duration
	lastAlert time.Time
	alerter   contracts.Alerter
	log      zerolog.Logger
	now      func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

func WithAlerter(a contracts.Alerter) Option {
	return func(l *Ledger) { l.alerter = a }
}

func WithLogger(lg zerolog.Logger) Option {
	return func(l *Ledger) { l.log = lg }
}

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithRealertInterval sets how often a ledger that stays critical pages
// again. Zero pages only on entering the band.
func WithRealertInterval(d time.Duration) Option {
	return func(l *Ledger) { l.realert = d }
}

// DefaultRealertInterval spaces repeated critical pages.
const DefaultRealertInterval = 15 * time.Minute

// New creates a ledger over the declared step costs.
func New(stepCosts map[models.Stage]float64, target, critical float64, opts ...Option) *Ledger {
	l := &Ledger{
		stepCosts: make(map[models.Stage]float64, len(stepCosts)),
		steps:     make(map[models.Stage]int),
		health:    HealthOK,
		target:    target,
		critical:  critical,
		realert:   DefaultRealertInterval,
		log:       log.Logger,
		now:       time.Now,
	}
	for s, c := range stepCosts {
		l.stepCosts[s] = c
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// UnitCost returns the declared cost of a step.
func (l *Ledger) UnitCost(step models.Stage) float64 {
	return l.stepCosts[step]
}

// RecordRevenue books revenue for an admitted request.
func (l *Ledger) RecordRevenue(amount float64) {
	if amount <= 0 {
		return
	}
	l.mu.Lock()
	l.revenue += amount
	l.mu.Unlock()
}

// Track adds the declared cost of step to the running total and
// re-evaluates the margin.
func (l *Ledger) Track(ctx context.Context, step models.Stage) Receipt {
	now := l.now()
	l.mu.Lock()
	unit := l.stepCosts[step]
	l.totalCost += unit
	l.steps[step]++
	r := Receipt{
		StepName:       string(step),
		UnitCost:       unit,
		CumulativeCost: l.totalCost,
		Timestamp:      now.UTC(),
	}
	margin := l.marginLocked()
	prev, next := l.health, l.bandLocked(margin)
	l.health = next
	fire := next != prev
	if next == HealthCritical {
		if !fire && l.realert > 0 && now.Sub(l.lastAlert) >= l.realert {
			fire = true
		}
		if fire {
			l.lastAlert = now
		}
	}
	l.mu.Unlock()

	telemetry.LedgerMargin.Set(margin)
	if fire {
		l.signal(ctx, prev, next, margin, step)
	}
	return r
}

// CurrentMargin is (revenue - cost) / revenue; zero before any revenue.
func (l *Ledger) CurrentMargin() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.marginLocked()
}

// IsMarginHealthy reports whether the margin is at or above target.
func (l *Ledger) IsMarginHealthy() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.revenue > 0 && l.marginLocked() >= l.target
}

func (l *Ledger) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	steps := make(map[models.Stage]int, len(l.steps))
	for s, n := range l.steps {
		steps[s] = n
	}
	return Snapshot{
		TotalCost:      l.totalCost,
		Revenue:        l.revenue,
		Margin:         l.marginLocked(),
		TargetMargin:   l.target,
		CriticalMargin: l.critical,
		Health:         l.health,
		Steps:          steps,
	}
}

func (l *Ledger) marginLocked() float64 {
	if l.revenue <= 0 {
		return 0
	}
	return (l.revenue - l.totalCost) / l.revenue
}

// bandLocked keeps the previous band until revenue is booked.
func (l *Ledger) bandLocked(margin float64) Health {
	switch {
	case l.revenue <= 0:
		return l.health
	case margin < l.critical:
		return HealthCritical
	case margin < l.target:
		return HealthWarning
	default:
		return HealthOK
	}
}

// signal runs outside the lock; the alerter may block on the network.
// It fires on every band change and, while critical, once per realert
// interval. A ledger that stays in the warning band logs only on entry.
func (l *Ledger) signal(ctx context.Context, prev, next Health, margin float64, step models.Stage) {
	ev := l.log.Info()
	switch next {
	case HealthWarning:
		ev = l.log.Warn()
		telemetry.MarginAlerts.WithLabelValues(string(HealthWarning)).Inc()
	case HealthCritical:
		ev = l.log.Error()
		telemetry.MarginAlerts.WithLabelValues(string(HealthCritical)).Inc()
	}
	ev.
		Str("from", string(prev)).
		Str("to", string(next)).
		Float64("margin", margin).
		Float64("target", l.target).
		Str("step", string(step)).
		Msg(bandMessage(prev, next))

	if next != HealthCritical || l.alerter == nil {
		return
	}
	err := l.alerter.Alert(ctx, contracts.Alert{
		Severity: string(HealthCritical),
		Title:    "Profit margin below critical floor",
		Details: map[string]interface{}{
			"margin":          margin,
			"critical_margin": l.critical,
			"target_margin":   l.target,
			"step":            string(step),
		},
		Timestamp: l.now().UTC(),
	})
	if err != nil {
		l.log.Warn().Err(err).Msg("Margin alert delivery failed")
	}
}

// ── Session ──────────────────────────────────────────────────

// Session records the entries of one request while feeding the ledger.
type Session struct {
	ledger     *Ledger
	entries    []models.CostLedgerEntry
	cumulative float64
}

// Begin opens a request session and books its revenue.
func (l *Ledger) Begin(revenue float64) *Session {
	l.RecordRevenue(revenue)
	return &Session{ledger: l}
}

// Track records step for this request. The entry's cumulative cost is
// request-scoped.
func (s *Session) Track(ctx context.Context, step models.Stage) models.CostLedgerEntry {
	r := s.ledger.Track(ctx, step)
	s.cumulative += r.UnitCost
	e := models.CostLedgerEntry{
		StepName:       r.StepName,
		UnitCost:       r.UnitCost,
		CumulativeCost: s.cumulative,
		Timestamp:      r.Timestamp,
	}
	s.entries = append(s.entries, e)
	return e
}

// Entries returns a copy of the recorded entries.
func (s *Session) Entries() []models.CostLedgerEntry {
	return append([]models.CostLedgerEntry(nil), s.entries...)
}

// Total is the request's declared cost so far.
func (s *Session) Total() float64 {
	return s.cumulative
}

func bandMessage(prev, next Health) string {
	if prev == next {
		return "Profit margin still below critical floor"
	}
	return "Profit margin band changed"
}
