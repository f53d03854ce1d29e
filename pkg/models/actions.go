package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Action is the closed set of user actions the pipeline understands.
type Action string

const (
	ActionGenerate Action = "generate"
	ActionAnalyze  Action = "analyze"
	ActionOptimize Action = "optimize"
	ActionPublish  Action = "publish"
)

// AllActions lists every action. Tables keyed by action are tested against it.
func AllActions() []Action {
	return []Action{ActionGenerate, ActionAnalyze, ActionOptimize, ActionPublish}
}

// ErrUnknownAction is returned for action names outside the enumeration.
var ErrUnknownAction = errors.New("unknown action")

// ParseAction validates an action name.
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionGenerate, ActionAnalyze, ActionOptimize, ActionPublish:
		return a, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
	}
}

// Params is the per-action parameter variant.
type Params interface {
	Action() Action
	// Query renders the params into the text handed to agents.
	Query() string
	Meta() map[string]interface{}
}

// GenerateParams asks agents to produce new content.
type GenerateParams struct {
	Prompt    string                 `json:"prompt"`
	Style     string                 `json:"style,omitempty"`
	MaxLength int                    `json:"max_length,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

func (GenerateParams) Action() Action { return ActionGenerate }
func (p GenerateParams) Query() string { return p.Prompt }
func (p GenerateParams) Meta() map[string]interface{} { return p.Metadata }

// AnalyzeParams asks agents to evaluate existing content.
type AnalyzeParams struct {
	Content  string                 `json:"content"`
	Metrics  []string               `json:"metrics,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

func (AnalyzeParams) Action() Action { return ActionAnalyze }
func (p AnalyzeParams) Query() string { return p.Content }
func (p AnalyzeParams) Meta() map[string]interface{} { return p.Metadata }

// OptimizeParams asks agents to improve content toward a goal.
type OptimizeParams struct {
	Content  string                 `json:"content"`
	Goal     string                 `json:"goal,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

func (OptimizeParams) Action() Action { return ActionOptimize }
func (p OptimizeParams) Query() string {
	if p.Goal == "" {
		return p.Content
	}
	return p.Goal + ": " + p.Content
}
func (p OptimizeParams) Meta() map[string]interface{} { return p.Metadata }

// PublishParams prepares content for distribution channels.
type PublishParams struct {
	Content  string                 `json:"content"`
	Channels []string               `json:"channels,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

func (PublishParams) Action() Action { return ActionPublish }
func (p PublishParams) Query() string { return p.Content }
func (p PublishParams) Meta() map[string]interface{} { return p.Metadata }

// DecodeParams decodes raw JSON into the variant for action. Empty input
// yields the zero variant.
func DecodeParams(action Action, raw json.RawMessage) (Params, error) {
	var (
		p   Params
		err error
	)
	switch action {
	case ActionGenerate:
		var v GenerateParams
		err = decodeInto(raw, &v)
		p = v
	case ActionAnalyze:
		var v AnalyzeParams
		err = decodeInto(raw, &v)
		p = v
	case ActionOptimize:
		var v OptimizeParams
		err = decodeInto(raw, &v)
		p = v
	case ActionPublish:
		var v PublishParams
		err = decodeInto(raw, &v)
		p = v
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s params: %w", action, err)
	}
	return p, nil
}

func decodeInto(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, v)
}
