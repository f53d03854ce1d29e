package models

// Stage names one step of the orchestration pipeline. The names double as
// ledger step keys.
type Stage string

const (
	StageContextFetch      Stage = "context_fetch"
	StageAgentDispatch     Stage = "agent_dispatch"
	StageMemoryPersistence Stage = "memory_persistence"
	StageEventEmission     Stage = "event_emission"
	StageArchivalWrite     Stage = "archival_write"
	StageTrainingTrigger   Stage = "training_trigger"
	StageResponseAssembly  Stage = "response_assembly"
)

// AllStages lists the stages in execution order.
func AllStages() []Stage {
	return []Stage{
		StageContextFetch,
		StageAgentDispatch,
		StageMemoryPersistence,
		StageEventEmission,
		StageArchivalWrite,
		StageTrainingTrigger,
		StageResponseAssembly,
	}
}
