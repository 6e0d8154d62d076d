package shared

import "math"

// Waypoint types and traits the orchestrator cares about.
const (
	WaypointTypeJumpGate = "JUMP_GATE"

	TraitMarketplace = "MARKETPLACE"
	TraitShipyard    = "SHIPYARD"
)

// Waypoint is a point in a system. Traits determine whether it hosts a
// market, shipyard or jump gate.
type Waypoint struct {
	Symbol              WaypointSymbol `json:"symbol"`
	SystemSymbol        SystemSymbol   `json:"systemSymbol"`
	Type                string         `json:"type"`
	X                   int64          `json:"x"`
	Y                   int64          `json:"y"`
	Traits              []string       `json:"traits"`
	IsUnderConstruction bool           `json:"isUnderConstruction"`
}

func (w *Waypoint) hasTrait(trait string) bool {
	for _, t := range w.Traits {
		if t == trait {
			return true
		}
	}
	return false
}

func (w *Waypoint) IsMarket() bool   { return w.hasTrait(TraitMarketplace) }
func (w *Waypoint) IsShipyard() bool { return w.hasTrait(TraitShipyard) }
func (w *Waypoint) IsJumpGate() bool { return w.Type == WaypointTypeJumpGate }

// Distance is the straight-line distance between two waypoints, rounded, and
// never less than 1 for distinct waypoints.
func (w *Waypoint) Distance(other *Waypoint) int64 {
	if w.Symbol == other.Symbol {
		return 0
	}
	dx := float64(w.X - other.X)
	dy := float64(w.Y - other.Y)
	d := int64(math.Round(math.Sqrt(dx*dx + dy*dy)))
	if d < 1 {
		return 1
	}
	return d
}

// System is a star system: coordinates plus its waypoints.
type System struct {
	Symbol    SystemSymbol `json:"symbol"`
	Type      string       `json:"type"`
	X         int64        `json:"x"`
	Y         int64        `json:"y"`
	Waypoints []Waypoint   `json:"waypoints"`
}

// IsStarterSystem reports whether the system is one agents start in.
// Starter systems are the only ones seeded with an engineered asteroid.
func (s *System) IsStarterSystem() bool {
	for i := range s.Waypoints {
		if s.Waypoints[i].Type == "ENGINEERED_ASTEROID" {
			return true
		}
	}
	return false
}

// Distance is the straight-line distance between two systems, rounded, and
// never less than 1 for distinct systems.
func (s *System) Distance(other *System) int64 {
	if s.Symbol == other.Symbol {
		return 0
	}
	dx := float64(s.X - other.X)
	dy := float64(s.Y - other.Y)
	d := int64(math.Round(math.Sqrt(dx*dx + dy*dy)))
	if d < 1 {
		return 1
	}
	return d
}
