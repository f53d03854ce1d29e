package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/tidwall/gjson"

	"github.com/vortexartec/gencore/pkg/contracts"
)

// HTTPDriver calls a remote inference service at
// POST {baseURL}/agents/{agent_id}/invoke. The response body is read with
// gjson so providers may add fields freely; content, quality and cost are
// required, usage and provider are folded into provider stats.
type HTTPDriver struct {
	baseURL    string
	apiKey     string
	client     *http.Client
	maxRetries uint64
}

// NewHTTPDriver creates a driver. Transient failures (network errors, 429,
// 5xx) are retried with exponential backoff inside the caller's deadline.
func NewHTTPDriver(baseURL, apiKey string, timeout time.Duration) *HTTPDriver {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPDriver{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		client:     &http.Client{Timeout: timeout},
		maxRetries: 2,
	}
}

func (d *HTTPDriver) Kind() string { return "http" }

func (d *HTTPDriver) Invoke(ctx context.Context, req contracts.AgentRequest) (*contracts.AgentResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal agent request: %w", err)
	}
	endpoint := d.baseURL + "/agents/" + url.PathEscape(req.AgentID) + "/invoke"

	var raw []byte
	op := func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build request: %w", err))
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("User-Agent", "gencore-gateway/1.0")
		if d.apiKey != "" {
			httpReq.Header.Set("Authorization", "Bearer "+d.apiKey)
		}

		resp, err := d.client.Do(httpReq)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		if err != nil {
			return err
		}
		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return fmt.Errorf("inference HTTP %d", resp.StatusCode)
		case resp.StatusCode >= 300:
			return backoff.Permanent(fmt.Errorf("inference HTTP %d: %s", resp.StatusCode, truncate(data, 200)))
		}
		raw = data
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), d.maxRetries), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}
	return parseAgentResponse(raw)
}

func parseAgentResponse(raw []byte) (*contracts.AgentResponse, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("inference response is not JSON")
	}
	if e := gjson.GetBytes(raw, "error"); e.Exists() && e.String() != "" {
		return nil, fmt.Errorf("agent error: %s", e.String())
	}
	content := gjson.GetBytes(raw, "content")
	if !content.Exists() {
		return nil, fmt.Errorf("inference response missing content")
	}

	stats := map[string]interface{}{}
	if usage := gjson.GetBytes(raw, "usage"); usage.IsObject() {
		stats["usage"] = usage.Value()
	}
	if ps := gjson.GetBytes(raw, "provider_stats"); ps.IsObject() {
		for k, v := range ps.Map() {
			stats[k] = v.Value()
		}
	}
	if p := gjson.GetBytes(raw, "provider"); p.Exists() {
		stats["provider"] = p.String()
	}

	return &contracts.AgentResponse{
		Content:       content.String(),
		Quality:       gjson.GetBytes(raw, "quality").Float(),
		Cost:          gjson.GetBytes(raw, "cost").Float(),
		ProviderStats: stats,
	}, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
