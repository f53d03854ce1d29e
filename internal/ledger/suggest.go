package ledger

import (
	"fmt"
	"sort"

	"github.com/vortexartec/gencore/pkg/models"
)

// Suggest returns cost-reduction hints for a request whose margin is below
// target. It returns nil when the margin is healthy.
func Suggest(stageCosts map[models.Stage]float64, revenue, target float64) []string {
	var total float64
	for _, c := range stageCosts {
		total += c
	}
	if revenue <= 0 || total <= 0 {
		return nil
	}
	margin := (revenue - total) / revenue
	if margin >= target {
		return nil
	}

	type share struct {
		stage models.Stage
		cost  float64
	}
	shares := make([]share, 0, len(stageCosts))
	for s, c := range stageCosts {
		shares = append(shares, share{s, c})
	}
	sort.Slice(shares, func(i, j int) bool {
		if shares[i].cost != shares[j].cost {
			return shares[i].cost > shares[j].cost
		}
		return shares[i].stage < shares[j].stage
	})

	var out []string
	top := shares[0]
	out = append(out, fmt.Sprintf("%s accounts for %.0f%% of request cost", top.stage, 100*top.cost/total))

	for _, s := range shares[:min(2, len(shares))] {
		switch s.stage {
		case models.StageAgentDispatch:
			out = append(out, "Reduce agent fan-out or lower the cost ceiling so pruning keeps fewer agents")
		case models.StageTrainingTrigger:
			out = append(out, "Raise the feedback buffer size so retraining is evaluated less often")
		case models.StageArchivalWrite, models.StageMemoryPersistence:
			out = append(out, fmt.Sprintf("Batch %s writes across requests", s.stage))
		case models.StageResponseAssembly:
			out = append(out, "Cache response assembly for repeated queries")
		}
	}

	// Cost budget that meets target at the current price.
	budget := revenue * (1 - target)
	out = append(out, fmt.Sprintf("Cut request cost from %.4f to %.4f or raise the price to %.4f to reach a %.0f%% margin",
		total, budget, total/(1-target), 100*target))
	return out
}
