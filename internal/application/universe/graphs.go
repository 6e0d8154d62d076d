package universe

import (
	"context"
	"fmt"

	"github.com/whyando/spacetraders/internal/adapters/api"
	"github.com/whyando/spacetraders/internal/domain/logistics"
	"github.com/whyando/spacetraders/internal/domain/routing"
	"github.com/whyando/spacetraders/internal/domain/shared"
)

// The game returns 4001 for gates that no probe has charted yet.
const errCodeUnchartedGate = 4001

// LoadJumpGate fetches a gate's connections. Uncharted gates are recorded
// as unknown rather than failing.
func (u *Universe) LoadJumpGate(ctx context.Context, waypoint shared.WaypointSymbol) (*api.JumpGate, error) {
	u.mu.RLock()
	gate, known := u.jumpGates[waypoint]
	uncharted := u.unchartedGates[waypoint]
	u.mu.RUnlock()
	if known {
		return gate, nil
	}
	if uncharted {
		return nil, nil
	}

	gate, err := u.client.GetJumpGate(ctx, waypoint)
	if err != nil {
		if apiErr, ok := api.AsAPIError(err); ok && apiErr.Code == errCodeUnchartedGate {
			u.mu.Lock()
			u.unchartedGates[waypoint] = true
			u.mu.Unlock()
			return nil, nil
		}
		return nil, err
	}

	u.mu.Lock()
	u.jumpGates[waypoint] = gate
	delete(u.unchartedGates, waypoint)
	u.mu.Unlock()
	return gate, nil
}

// MarkGateCharted replaces any uncharted record after a probe charts the
// gate on site.
func (u *Universe) MarkGateCharted(gate *api.JumpGate) {
	if gate == nil {
		return
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.jumpGates[gate.Symbol] = gate
	delete(u.unchartedGates, gate.Symbol)
}

// ConnectionsKnown reports whether the gate's connections are cached.
func (u *Universe) ConnectionsKnown(waypoint shared.WaypointSymbol) bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	_, ok := u.jumpGates[waypoint]
	return ok
}

// JumpgateGraph is the system-level adjacency derived from every charted
// gate's connections.
func (u *Universe) JumpgateGraph() map[shared.SystemSymbol][]shared.SystemSymbol {
	u.mu.RLock()
	defer u.mu.RUnlock()

	graph := map[shared.SystemSymbol][]shared.SystemSymbol{}
	for waypoint, gate := range u.jumpGates {
		from := waypoint.System()
		for _, conn := range gate.Connections {
			graph[from] = append(graph[from], conn.System())
		}
	}
	return graph
}

// WarpJumpGraph is the system-level adjacency combining charted gate links
// with warp edges between starter systems within maxWarpRange of each other.
// Explorers traverse it to reach unoccupied starter systems.
func (u *Universe) WarpJumpGraph(maxWarpRange int64) map[shared.SystemSymbol][]shared.SystemSymbol {
	graph := u.JumpgateGraph()

	u.mu.RLock()
	defer u.mu.RUnlock()

	var starters []*shared.System
	for _, s := range u.systems {
		if s.IsStarterSystem() {
			starters = append(starters, s)
		}
	}
	for i := range starters {
		for j := range starters {
			if i == j {
				continue
			}
			if starters[i].Distance(starters[j]) <= maxWarpRange {
				graph[starters[i].Symbol] = append(graph[starters[i].Symbol], starters[j].Symbol)
			}
		}
	}
	return graph
}

// Route computes a fuel-aware route between two waypoints of one system.
func (u *Universe) Route(
	ctx context.Context,
	src, dest shared.WaypointSymbol,
	speed, startFuel, fuelCapacity int64,
) (*routing.Route, error) {
	if src.System() != dest.System() {
		return nil, fmt.Errorf("route %s -> %s crosses systems", src, dest)
	}
	if err := u.EnsureSystemLoaded(ctx, src.System()); err != nil {
		return nil, err
	}
	u.mu.RLock()
	pathfinder := u.pathfinders[src.System()]
	u.mu.RUnlock()
	return pathfinder.Route(src, dest, speed, startFuel, fuelCapacity)
}

// FullTravelMatrix computes the pairwise duration matrix over a waypoint set
// for the logistics planner, routing at full tank.
func (u *Universe) FullTravelMatrix(
	ctx context.Context,
	system shared.SystemSymbol,
	waypoints []shared.WaypointSymbol,
	fuelCapacity, speed int64,
) (*logistics.TravelMatrix, error) {
	if err := u.EnsureSystemLoaded(ctx, system); err != nil {
		return nil, err
	}
	u.mu.RLock()
	pathfinder := u.pathfinders[system]
	u.mu.RUnlock()

	durations, _, err := pathfinder.TravelMatrix(waypoints, fuelCapacity, speed)
	if err != nil {
		return nil, err
	}
	return logistics.NewTravelMatrix(waypoints, durations)
}
