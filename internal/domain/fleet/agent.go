package fleet

import (
	"fmt"

	"github.com/whyando/spacetraders/internal/domain/shared"
)

// Agent is the player account the orchestrator operates.
type Agent struct {
	Symbol          string                `json:"symbol"`
	StartingFaction string                `json:"startingFaction"`
	Headquarters    shared.WaypointSymbol `json:"headquarters"`
	Credits         int64                 `json:"credits"`
}

// AgentEra is the coarse progression state gating which roles exist.
type AgentEra string

const (
	// EraStartingSystem1 is the initial era: the agent runs its two starter ships.
	EraStartingSystem1 AgentEra = "StartingSystem1"
	// EraStartingSystem2 begins once the credit threshold is met: buy more ships.
	EraStartingSystem2 AgentEra = "StartingSystem2"
	// EraInterSystem1 begins when the jumpgate is completed and the capital
	// system becomes reachable.
	EraInterSystem1 AgentEra = "InterSystem1"
	// EraInterSystem2 is the final era.
	EraInterSystem2 AgentEra = "InterSystem2"
)

// ParseAgentEra parses an era name, e.g. from the ERA_OVERRIDE env var.
func ParseAgentEra(s string) (AgentEra, error) {
	switch AgentEra(s) {
	case EraStartingSystem1, EraStartingSystem2, EraInterSystem1, EraInterSystem2:
		return AgentEra(s), nil
	}
	return "", fmt.Errorf("unknown agent era %q", s)
}

// AgentState is the persisted slice of controller state.
type AgentState struct {
	Era AgentEra `json:"era"`
}

// DefaultAgentState is the state of a freshly registered agent.
func DefaultAgentState() AgentState {
	return AgentState{Era: EraStartingSystem1}
}

// Contract is an accepted or offered delivery contract.
type Contract struct {
	ID        string        `json:"id"`
	Accepted  bool          `json:"accepted"`
	Fulfilled bool          `json:"fulfilled"`
	Terms     ContractTerms `json:"terms"`
}

type ContractTerms struct {
	Deliver []ContractDeliverable `json:"deliver"`
}

type ContractDeliverable struct {
	TradeSymbol       string                `json:"tradeSymbol"`
	DestinationSymbol shared.WaypointSymbol `json:"destinationSymbol"`
	UnitsRequired     int64                 `json:"unitsRequired"`
	UnitsFulfilled    int64                 `json:"unitsFulfilled"`
}

// Faction describes a recruiting faction; used at registration time and to
// locate the faction capital.
type Faction struct {
	Symbol       string               `json:"symbol"`
	Headquarters *shared.SystemSymbol `json:"headquarters,omitempty"`
	IsRecruiting bool                 `json:"isRecruiting"`
}
