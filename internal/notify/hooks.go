package notify

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/vortexartec/gencore/pkg/contracts"
	"github.com/vortexartec/gencore/pkg/models"
)

var (
	_ contracts.Alerter = (*WebhookAlerter)(nil)
	_ contracts.Alerter = (*LogAlerter)(nil)
)

// WebhookAlerter pages an on-call webhook.
type WebhookAlerter struct {
	svc     *Service
	channel Channel
}

func NewWebhookAlerter(svc *Service, url, secret string) *WebhookAlerter {
	return &WebhookAlerter{svc: svc, channel: Channel{Name: "alerts", URL: url, Secret: secret}}
}

func (a *WebhookAlerter) Alert(ctx context.Context, alert contracts.Alert) error {
	payload := map[string]interface{}{
		"severity": alert.Severity,
		"title":    alert.Title,
	}
	if len(alert.Details) > 0 {
		payload["details"] = alert.Details
	}
	r := a.svc.Dispatch(ctx, a.channel, Event{
		Type:      EventMarginCritical,
		Payload:   payload,
		Timestamp: alert.Timestamp,
	})
	if !r.Success {
		return errors.New(r.Error)
	}
	return nil
}

// LogAlerter writes alerts to the log only.
type LogAlerter struct {
	Log zerolog.Logger
}

func (a *LogAlerter) Alert(_ context.Context, alert contracts.Alert) error {
	a.Log.Error().
		Str("severity", alert.Severity).
		Interface("details", alert.Details).
		Msg("🚨 " + alert.Title)
	return nil
}

// MarketplaceSync announces completed results to the marketplace.
type MarketplaceSync interface {
	Sync(ctx context.Context, resp *models.PipelineResponse) error
}

// WebhookMarketplace posts a compact result summary to the marketplace hook.
type WebhookMarketplace struct {
	svc     *Service
	channel Channel
}

func NewWebhookMarketplace(svc *Service, url, secret string) *WebhookMarketplace {
	return &WebhookMarketplace{svc: svc, channel: Channel{Name: "marketplace", URL: url, Secret: secret}}
}

func (m *WebhookMarketplace) Sync(ctx context.Context, resp *models.PipelineResponse) error {
	contents := make([]string, 0, len(resp.Results))
	for _, r := range resp.Results {
		if !r.Failed() {
			contents = append(contents, r.Content)
		}
	}
	r := m.svc.Dispatch(ctx, m.channel, Event{
		Type:      EventMarketplaceSync,
		RequestID: resp.RequestID,
		Payload: map[string]interface{}{
			"user_id":  resp.UserID,
			"tier":     resp.Tier,
			"action":   string(resp.Action),
			"agents":   resp.AgentsUsed,
			"contents": contents,
			"quality":  resp.PerformanceMetrics.AverageQuality,
		},
		Timestamp: time.Now().UTC(),
	})
	if !r.Success {
		return errors.New(r.Error)
	}
	return nil
}

// NopMarketplace drops sync events.
type NopMarketplace struct{}

func (NopMarketplace) Sync(context.Context, *models.PipelineResponse) error { return nil }
