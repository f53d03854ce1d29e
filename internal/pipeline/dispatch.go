package pipeline

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/vortexartec/gencore/pkg/contracts"
	"github.com/vortexartec/gencore/pkg/models"
)

// KeepOnPrune is how many agents survive cost-ceiling pruning.
const KeepOnPrune = 2

// Invoker calls one agent. Failures are reported in the result.
type Invoker interface {
	Invoke(ctx context.Context, req contracts.AgentRequest) models.AgentInvocationResult
}

// DispatchRequest is the input to stage 2.
type DispatchRequest struct {
	Request models.OrchestrationRequest
	Agents  []string
	Context *models.PipelineContext
}

// Dispatcher fans a request out to its agents and returns one result per
// agent in selection order. An error aborts the pipeline.
type Dispatcher interface {
	Dispatch(ctx context.Context, req DispatchRequest) ([]models.AgentInvocationResult, error)
}

// GatewayDispatcher invokes agents concurrently through an Invoker.
type GatewayDispatcher struct {
	invoker Invoker
	limit   int
}

// NewGatewayDispatcher bounds in-flight calls to limit; limit <= 0 means
// unbounded.
func NewGatewayDispatcher(invoker Invoker, limit int) *GatewayDispatcher {
	return &GatewayDispatcher{invoker: invoker, limit: limit}
}

func (d *GatewayDispatcher) Dispatch(ctx context.Context, req DispatchRequest) ([]models.AgentInvocationResult, error) {
	results := make([]models.AgentInvocationResult, len(req.Agents))

	var g errgroup.Group
	if d.limit > 0 {
		g.SetLimit(d.limit)
	}
	for i, agent := range req.Agents {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					results[i] = models.AgentInvocationResult{AgentID: agent, Error: fmt.Sprintf("agent panicked: %v", r)}
				}
			}()
			results[i] = d.invoker.Invoke(ctx, agentRequest(req.Request, agent, req.Context))
			return nil
		})
	}
	// Goroutines never return an error; every agent settles.
	_ = g.Wait()
	return results, nil
}

func agentRequest(req models.OrchestrationRequest, agent string, pc *models.PipelineContext) contracts.AgentRequest {
	ar := contracts.AgentRequest{
		RequestID: req.RequestID,
		AgentID:   agent,
		Action:    req.Action,
		UserID:    req.UserID,
	}
	if req.Params != nil {
		ar.Query = req.Params.Query()
		ar.Metadata = req.Params.Meta()
	}
	if pc != nil {
		ar.State = pc.AgentStates[agent]
	}
	return ar
}

// Prune keeps the keep most efficient results. Failed agents rank last and
// ties keep selection order. It returns the kept results in their original
// order and the ids of the pruned agents.
func Prune(results []models.AgentInvocationResult, keep int) ([]models.AgentInvocationResult, []string) {
	if len(results) <= keep {
		return results, nil
	}
	idx := make([]int, len(results))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return results[idx[a]].Efficiency() > results[idx[b]].Efficiency()
	})

	kept := make(map[int]bool, keep)
	for _, i := range idx[:keep] {
		kept[i] = true
	}
	out := make([]models.AgentInvocationResult, 0, keep)
	var pruned []string
	for i, r := range results {
		if kept[i] {
			out = append(out, r)
		} else {
			pruned = append(pruned, r.AgentID)
		}
	}
	return out, pruned
}

// measuredCost sums the cost reported by succeeding agents.
func measuredCost(results []models.AgentInvocationResult) float64 {
	var total float64
	for _, r := range results {
		if !r.Failed() {
			total += r.Cost
		}
	}
	return total
}

// averageQuality is the mean quality of succeeding agents; ok is false when
// every agent failed.
func averageQuality(results []models.AgentInvocationResult) (avg float64, ok bool) {
	var sum float64
	var n int
	for _, r := range results {
		if !r.Failed() {
			sum += r.Quality
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}
