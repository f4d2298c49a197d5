package validator

import "fmt"

// Tools the research orchestration phase may invoke: spawning a
// sub-research task and marking research complete. Everything else is
// deferred until the orchestrator leaves the phase.
var researchPhaseTools = map[string]bool{
	"ConductResearch":  true,
	"ResearchComplete": true,
}

// checkPhase applies the per-phase whitelist. Each restricted phase is a
// case; phases without a case carry no restriction beyond role
// permission. This is not a transition graph; the engine sees one phase
// tag per call and keeps no history.
func checkPhase(phase Phase, toolName string) (ok bool, reason string) {
	switch phase {
	case PhaseClarify:
		return false, "tools prohibited during clarification phase"
	case PhaseResearch:
		if !researchPhaseTools[toolName] {
			return false, fmt.Sprintf("tool %q not allowed during research orchestration", toolName)
		}
	}
	return true, ""
}
