package logistics

import (
	"fmt"
	"time"

	"github.com/whyando/spacetraders/internal/domain/shared"
)

// TravelMatrix holds precomputed pairwise travel durations over the waypoint
// set a plan may visit.
type TravelMatrix struct {
	waypoints []shared.WaypointSymbol
	index     map[shared.WaypointSymbol]int
	durations [][]int64
}

// NewTravelMatrix wraps a duration matrix indexed by waypoint order.
func NewTravelMatrix(waypoints []shared.WaypointSymbol, durations [][]int64) (*TravelMatrix, error) {
	if len(durations) != len(waypoints) {
		return nil, fmt.Errorf("matrix dimension %d does not match %d waypoints", len(durations), len(waypoints))
	}
	index := make(map[shared.WaypointSymbol]int, len(waypoints))
	for i, w := range waypoints {
		index[w] = i
	}
	return &TravelMatrix{waypoints: waypoints, index: index, durations: durations}, nil
}

// Duration returns the travel duration between two covered waypoints.
func (m *TravelMatrix) Duration(from, to shared.WaypointSymbol) (int64, bool) {
	i, ok := m.index[from]
	if !ok {
		return 0, false
	}
	j, ok := m.index[to]
	if !ok {
		return 0, false
	}
	return m.durations[i][j], true
}

// Covers reports whether the waypoint is part of the matrix.
func (m *TravelMatrix) Covers(w shared.WaypointSymbol) bool {
	_, ok := m.index[w]
	return ok
}

// PlannerShip is the slice of ship state planning needs.
type PlannerShip struct {
	Symbol        string
	Waypoint      shared.WaypointSymbol
	CargoCapacity int64
}

// PlannerConstraints bound the plan's simulated duration and the planner's
// own compute time.
type PlannerConstraints struct {
	PlanLength time.Duration
	MaxCompute time.Duration
}

// Planner turns a candidate task set into an ordered schedule for one ship.
// Implementations are interchangeable strategies; an empty schedule with a
// nil error means no worthwhile plan was found.
type Planner interface {
	Plan(ship PlannerShip, tasks []Task, matrix *TravelMatrix, constraints PlannerConstraints) (Schedule, error)
}
