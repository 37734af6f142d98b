package domain

import (
	"fmt"
	"strings"
)

// ExecutionScenario is a named cost preset for fill simulation.
type ExecutionScenario struct {
	ScenarioID    string  // "optimistic" | "realistic" | "pessimistic" | "degraded"
	SlippageBps   float64 // adverse move applied to the quote, in basis points
	CommissionBps float64 // commission on fill notional, in basis points
}

// Scenario ID constants
const (
	ScenarioOptimistic  = "optimistic"
	ScenarioRealistic   = "realistic"
	ScenarioPessimistic = "pessimistic"
	ScenarioDegraded    = "degraded"
)

// Predefined scenarios. Realistic matches the backtester defaults.
var (
	ScenarioConfigOptimistic = ExecutionScenario{
		ScenarioID:    ScenarioOptimistic,
		SlippageBps:   1,
		CommissionBps: 1,
	}

	ScenarioConfigRealistic = ExecutionScenario{
		ScenarioID:    ScenarioRealistic,
		SlippageBps:   5,
		CommissionBps: 2,
	}

	ScenarioConfigPessimistic = ExecutionScenario{
		ScenarioID:    ScenarioPessimistic,
		SlippageBps:   15,
		CommissionBps: 5,
	}

	ScenarioConfigDegraded = ExecutionScenario{
		ScenarioID:    ScenarioDegraded,
		SlippageBps:   40,
		CommissionBps: 10,
	}
)

// AllScenarios returns the predefined scenarios from cheapest to most expensive.
func AllScenarios() []ExecutionScenario {
	return []ExecutionScenario{
		ScenarioConfigOptimistic,
		ScenarioConfigRealistic,
		ScenarioConfigPessimistic,
		ScenarioConfigDegraded,
	}
}

// ScenarioByID looks up a predefined scenario, case-insensitively.
func ScenarioByID(id string) (ExecutionScenario, error) {
	for _, s := range AllScenarios() {
		if s.ScenarioID == strings.ToLower(id) {
			return s, nil
		}
	}
	return ExecutionScenario{}, fmt.Errorf("%w: %q", ErrUnknownScenario, id)
}
