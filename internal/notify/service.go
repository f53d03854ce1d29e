// Package notify delivers operational notifications over signed webhooks:
// critical margin pages and marketplace sync events.
//
// Deliveries are POSTed as JSON with an optional HMAC-SHA256 signature in
// X-Gencore-Signature and retried with exponential backoff on transport
// errors and non-2xx responses.
package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ── Event types ─────────────────────────────────────────────

// EventType describes what happened.
type EventType string

const (
	EventMarginCritical  EventType = "margin_critical"
	EventMarketplaceSync EventType = "marketplace_sync"
)

// Event is the webhook payload.
type Event struct {
	Type      EventType              `json:"type"`
	RequestID string                 `json:"request_id,omitempty"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Channel is one webhook destination.
type Channel struct {
	Name   string
	URL    string
	Secret string
}

// Result reports one delivery.
type Result struct {
	Channel   string    `json:"channel"`
	Success   bool      `json:"success"`
	Attempts  int       `json:"attempts"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ── Service ──────────────────────────────────────────────────

const (
	defaultTimeout     = 15 * time.Second
	defaultMaxAttempts = 3
)

// Service sends events to webhook channels.
type Service struct {
	client          *http.Client
	maxAttempts     uint64
	initialInterval time.Duration
	log             zerolog.Logger
}

type Option func(*Service)

func WithHTTPClient(c *http.Client) Option {
	return func(s *Service) { s.client = c }
}

// WithRetry sets the attempt budget and the first backoff interval.
func WithRetry(maxAttempts int, initial time.Duration) Option {
	return func(s *Service) {
		if maxAttempts > 0 {
			s.maxAttempts = uint64(maxAttempts)
		}
		s.initialInterval = initial
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.log = l }
}

func NewService(opts ...Option) *Service {
	s := &Service{
		client:          &http.Client{Timeout: defaultTimeout},
		maxAttempts:     defaultMaxAttempts,
		initialInterval: 500 * time.Millisecond,
		log:             log.Logger,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Dispatch delivers event to channel. Failures are reported in the Result.
func (s *Service) Dispatch(ctx context.Context, channel Channel, event Event) Result {
	result := Result{Channel: channel.Name, Timestamp: time.Now().UTC()}

	body, err := json.Marshal(event)
	if err != nil {
		result.Error = fmt.Sprintf("marshal webhook payload: %v", err)
		return result
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.initialInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(b, s.maxAttempts-1), ctx)

	err = backoff.Retry(func() error {
		result.Attempts++
		return s.send(ctx, channel, event, body)
	}, policy)
	if err != nil {
		result.Error = err.Error()
		s.log.Warn().Err(err).
			Str("channel", channel.Name).
			Str("event", string(event.Type)).
			Int("attempts", result.Attempts).
			Msg("Webhook notification failed")
		return result
	}

	result.Success = true
	s.log.Info().
		Str("channel", channel.Name).
		Str("event", string(event.Type)).
		Str("request_id", event.RequestID).
		Msg("Webhook notification dispatched")
	return result
}

func (s *Service) send(ctx context.Context, channel Channel, event Event, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, channel.URL, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("build webhook request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Gencore-Webhook/1.0")
	req.Header.Set("X-Gencore-Event", string(event.Type))
	if channel.Secret != "" {
		req.Header.Set("X-Gencore-Signature", Sign(channel.Secret, body))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return fmt.Errorf("webhook HTTP %d from %s", resp.StatusCode, channel.URL)
}

// Sign returns the X-Gencore-Signature header value for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
