package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	goredis "github.com/redis/go-redis/v9"

	"github.com/vortexartec/gencore/pkg/models"
)

// GenericBundle is the bundle name used when an action has none of its own.
const GenericBundle = "generic"

// historyDepth caps the user history handed to agents.
const historyDepth = 20

// ContextSource resolves what stage 1 hands to the rest of the pipeline.
type ContextSource interface {
	Fetch(ctx context.Context, action models.Action, agents []string, userID string) (*models.PipelineContext, error)
}

// HistoryRecorder is implemented by sources that keep user history current.
type HistoryRecorder interface {
	AppendHistory(ctx context.Context, userID string, entry map[string]interface{}) error
}

// ── Redis ────────────────────────────────────────────────────

// RedisContextSource reads bundles, agent state and history from Redis:
//
//	{prefix}bundle:{action}       JSON AlgorithmBundle
//	{prefix}bundle:generic        JSON AlgorithmBundle
//	{prefix}agent_state:{agent}   JSON object
//	{prefix}history:{user_id}     list of JSON objects, newest first
type RedisContextSource struct {
	client    goredis.Cmdable
	keyPrefix string
}

func NewRedisContextSource(client goredis.Cmdable, keyPrefix string) *RedisContextSource {
	return &RedisContextSource{client: client, keyPrefix: keyPrefix}
}

func (s *RedisContextSource) Fetch(ctx context.Context, action models.Action, agents []string, userID string) (*models.PipelineContext, error) {
	pc := &models.PipelineContext{AgentStates: make(map[string]map[string]interface{}, len(agents))}

	bundle, err := s.bundle(ctx, string(action))
	if errors.Is(err, goredis.Nil) {
		bundle, err = s.bundle(ctx, GenericBundle)
	}
	switch {
	case errors.Is(err, goredis.Nil):
		pc.Bundle = models.AlgorithmBundle{Name: GenericBundle}
	case err != nil:
		return nil, err
	default:
		pc.Bundle = *bundle
	}

	if len(agents) > 0 {
		keys := make([]string, len(agents))
		for i, a := range agents {
			keys[i] = s.keyPrefix + "agent_state:" + a
		}
		vals, err := s.client.MGet(ctx, keys...).Result()
		if err != nil {
			return nil, fmt.Errorf("context/redis: agent state: %w", err)
		}
		for i, v := range vals {
			raw, ok := v.(string)
			if !ok {
				continue
			}
			var state map[string]interface{}
			if err := json.Unmarshal([]byte(raw), &state); err != nil {
				return nil, fmt.Errorf("context/redis: decode state for %s: %w", agents[i], err)
			}
			pc.AgentStates[agents[i]] = state
		}
	}

	raw, err := s.client.LRange(ctx, s.keyPrefix+"history:"+userID, 0, historyDepth-1).Result()
	if err != nil {
		return nil, fmt.Errorf("context/redis: history: %w", err)
	}
	for _, r := range raw {
		var entry map[string]interface{}
		if err := json.Unmarshal([]byte(r), &entry); err != nil {
			return nil, fmt.Errorf("context/redis: decode history: %w", err)
		}
		pc.UserHistory = append(pc.UserHistory, entry)
	}
	return pc, nil
}

func (s *RedisContextSource) bundle(ctx context.Context, name string) (*models.AlgorithmBundle, error) {
	raw, err := s.client.Get(ctx, s.keyPrefix+"bundle:"+name).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, err
		}
		return nil, fmt.Errorf("context/redis: bundle %s: %w", name, err)
	}
	var b models.AlgorithmBundle
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("context/redis: decode bundle %s: %w", name, err)
	}
	return &b, nil
}

func (s *RedisContextSource) AppendHistory(ctx context.Context, userID string, entry map[string]interface{}) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("context/redis: marshal history: %w", err)
	}
	key := s.keyPrefix + "history:" + userID
	_, err = s.client.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.LPush(ctx, key, data)
		p.LTrim(ctx, key, 0, historyDepth-1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("context/redis: append history: %w", err)
	}
	return nil
}

// SetBundle stores a bundle for action, or the generic bundle when action is
// GenericBundle.
func (s *RedisContextSource) SetBundle(ctx context.Context, name string, b models.AlgorithmBundle) error {
	data, err := json.Marshal(b)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.keyPrefix+"bundle:"+name, data, 0).Err()
}

// ── In-memory ────────────────────────────────────────────────

// StaticContextSource serves bundles from memory and keeps a bounded
// per-user history.
type StaticContextSource struct {
	mu      sync.RWMutex
	bundles map[string]models.AlgorithmBundle
	states  map[string]map[string]interface{}
	history map[string][]map[string]interface{}
}

func NewStaticContextSource(generic models.AlgorithmBundle) *StaticContextSource {
	return &StaticContextSource{
		bundles: map[string]models.AlgorithmBundle{GenericBundle: generic},
		states:  make(map[string]map[string]interface{}),
		history: make(map[string][]map[string]interface{}),
	}
}

func (s *StaticContextSource) SetBundle(action models.Action, b models.AlgorithmBundle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bundles[string(action)] = b
}

func (s *StaticContextSource) SetAgentState(agent string, state map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[agent] = state
}

func (s *StaticContextSource) Fetch(_ context.Context, action models.Action, agents []string, userID string) (*models.PipelineContext, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bundles[string(action)]
	if !ok {
		b = s.bundles[GenericBundle]
	}
	pc := &models.PipelineContext{
		Bundle:      b,
		AgentStates: make(map[string]map[string]interface{}, len(agents)),
		UserHistory: append([]map[string]interface{}(nil), s.history[userID]...),
	}
	for _, a := range agents {
		if st, ok := s.states[a]; ok {
			pc.AgentStates[a] = st
		}
	}
	return pc, nil
}

func (s *StaticContextSource) AppendHistory(_ context.Context, userID string, entry map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := append([]map[string]interface{}{entry}, s.history[userID]...)
	if len(h) > historyDepth {
		h = h[:historyDepth]
	}
	s.history[userID] = h
	return nil
}
