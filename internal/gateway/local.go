package gateway

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/vortexartec/gencore/pkg/contracts"
)

// LocalDriver produces deterministic synthetic results without a network
// call. It backs zero-config mode and demos.
type LocalDriver struct {
	// Costs overrides the per-agent cost; others derive one from the name.
	Costs map[string]float64
}

func NewLocalDriver() *LocalDriver {
	return &LocalDriver{Costs: map[string]float64{}}
}

func (d *LocalDriver) Kind() string { return "local" }

func (d *LocalDriver) Invoke(ctx context.Context, req contracts.AgentRequest) (*contracts.AgentResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	seed := hash(req.AgentID + "|" + string(req.Action) + "|" + req.Query)

	cost, ok := d.Costs[req.AgentID]
	if !ok {
		cost = 0.004 + float64(hash(req.AgentID)%20)/1000
	}
	return &contracts.AgentResponse{
		Content: fmt.Sprintf("[%s] %s: %s", req.AgentID, req.Action, req.Query),
		Quality: 0.6 + float64(seed%39)/100,
		Cost:    cost,
		ProviderStats: map[string]interface{}{
			"provider": "local",
		},
	}, nil
}

func hash(s string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return h.Sum32()
}
