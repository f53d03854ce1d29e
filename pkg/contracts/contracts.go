// Package contracts defines the boundary interfaces between the core and its
// external collaborators. Every backend (Redis, PostgreSQL, NATS, S3, Batch,
// inference services) is reached through one of these, so the admission
// controller and the pipeline can be wired with in-memory fakes in tests.
package contracts

import (
	"context"
	"time"

	"github.com/vortexartec/gencore/pkg/models"
)

// ── Quota ────────────────────────────────────────────────────

// Counter is an atomic monthly counter. Incr returns the post-increment
// value; ttl is applied only when the key is created. Get returns 0 for an
// absent key.
type Counter interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Get(ctx context.Context, key string) (int64, error)
}

// ── Credentials ──────────────────────────────────────────────

// Vault seals API keys at rest. aad binds the ciphertext to its owner.
type Vault interface {
	Encrypt(plaintext, aad []byte) ([]byte, error)
	Decrypt(ciphertext, aad []byte) ([]byte, error)
}

// CredentialStore persists one credential per (user, tier). Get returns
// (nil, nil) when absent. Create is insert-if-absent and reports whether
// this call created the row.
type CredentialStore interface {
	Get(ctx context.Context, userID, tier string) (*models.ApiCredential, error)
	Create(ctx context.Context, cred *models.ApiCredential) (bool, error)
}

// ── Agents ───────────────────────────────────────────────────

// AgentRequest is what the gateway sends to one agent.
type AgentRequest struct {
	RequestID string                 `json:"request_id"`
	AgentID   string                 `json:"agent_id"`
	Action    models.Action          `json:"action"`
	UserID    string                 `json:"user_id"`
	Query     string                 `json:"query"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	State     map[string]interface{} `json:"state,omitempty"`
}

// AgentResponse is the raw agent outcome before the gateway stamps latency.
type AgentResponse struct {
	Content       string
	Quality       float64
	Cost          float64
	ProviderStats map[string]interface{}
}

// AgentDriver invokes one family of agents. Kind selects the driver.
type AgentDriver interface {
	Kind() string
	Invoke(ctx context.Context, req AgentRequest) (*AgentResponse, error)
}

// ── Sinks ────────────────────────────────────────────────────

// MemoryStore keeps summarized interaction records.
type MemoryStore interface {
	Put(ctx context.Context, namespace, key string, value []byte) error
	Get(ctx context.Context, namespace, key string) ([]byte, error)
}

// Publisher broadcasts to pub/sub topics.
type Publisher interface {
	Publish(ctx context.Context, topic string, msg []byte) error
}

// Queue enqueues durable work items.
type Queue interface {
	Enqueue(ctx context.Context, queue string, msg []byte) error
}

// ObjectStore writes archive objects and returns their location.
type ObjectStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) (string, error)
}

// BatchSubmitter starts a retraining job and returns its id.
type BatchSubmitter interface {
	Submit(ctx context.Context, jobName, jobQueue, jobDefinition string, params map[string]string) (string, error)
}

// ── Alerts ───────────────────────────────────────────────────

// Alert is a margin breach or other operational page.
type Alert struct {
	Severity  string                 `json:"severity"`
	Title     string                 `json:"title"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Alerter routes critical alerts to an on-call channel.
type Alerter interface {
	Alert(ctx context.Context, alert Alert) error
}
