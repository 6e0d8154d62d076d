package agent

import (
	"context"
	"fmt"
	"log"

	"github.com/whyando/spacetraders/internal/adapters/persistence"
	"github.com/whyando/spacetraders/internal/domain/shared"
)

func (c *Controller) gateReservationsKey() string {
	return c.callsign + "/probe_jumpgate_reservations"
}

func (c *Controller) explorerReservationsKey() string {
	return c.callsign + "/explorer_reservations"
}

// ReserveUnchartedGate claims the closest uncharted, unreserved jump gate
// reachable over the charted gate network from the probe's system. Claims
// are serialized and persisted so two probes never chart the same gate.
func (c *Controller) ReserveUnchartedGate(ctx context.Context, ship string, from shared.SystemSymbol) (shared.WaypointSymbol, bool, error) {
	c.gateResMu.Lock()
	defer c.gateResMu.Unlock()

	if gate, ok := c.gateReservations[ship]; ok {
		return gate, true, nil
	}

	reserved := map[shared.WaypointSymbol]bool{}
	for _, gate := range c.gateReservations {
		reserved[gate] = true
	}

	graph := c.universe.JumpgateGraph()
	for _, system := range systemsByHopDistance(graph, from) {
		gate, err := c.systemGateWaypoint(ctx, system)
		if err != nil {
			return "", false, err
		}
		if gate == "" || reserved[gate] || c.universe.ConnectionsKnown(gate) {
			continue
		}
		c.gateReservations[ship] = gate
		if err := persistence.SetValue(ctx, c.store, c.gateReservationsKey(), c.gateReservations); err != nil {
			return "", false, err
		}
		log.Printf("[%s] reserved uncharted gate %s for %s", c.callsign, gate, ship)
		return gate, true, nil
	}
	return "", false, nil
}

// ClearGateReservation releases a probe's claim. The gate must have become
// charted; anything else means the probe's charting visit silently failed.
func (c *Controller) ClearGateReservation(ctx context.Context, ship string) error {
	c.gateResMu.Lock()
	defer c.gateResMu.Unlock()

	gate, ok := c.gateReservations[ship]
	if !ok {
		return nil
	}
	if !c.universe.ConnectionsKnown(gate) {
		return fmt.Errorf("clearing reservation for %s but gate %s is still uncharted", ship, gate)
	}
	delete(c.gateReservations, ship)
	return persistence.SetValue(ctx, c.store, c.gateReservationsKey(), c.gateReservations)
}

// ReserveStarterSystem claims the closest unreserved starter system over the
// combined gate and warp graph, the explorer's own system included.
func (c *Controller) ReserveStarterSystem(ctx context.Context, ship string, from shared.SystemSymbol) (shared.SystemSymbol, bool, error) {
	c.explorerResMu.Lock()
	defer c.explorerResMu.Unlock()

	if system, ok := c.explorerReservations[ship]; ok {
		return system, true, nil
	}

	reserved := map[shared.SystemSymbol]bool{c.startSystem: true}
	for _, system := range c.explorerReservations {
		reserved[system] = true
	}

	graph := c.universe.WarpJumpGraph(maxWarpRange)
	for _, system := range systemsByHopDistance(graph, from) {
		s := c.universe.System(system)
		if s == nil || !s.IsStarterSystem() || reserved[system] {
			continue
		}
		c.explorerReservations[ship] = system
		if err := persistence.SetValue(ctx, c.store, c.explorerReservationsKey(), c.explorerReservations); err != nil {
			return "", false, err
		}
		log.Printf("[%s] reserved starter system %s for %s", c.callsign, system, ship)
		return system, true, nil
	}
	return "", false, nil
}

func (c *Controller) systemGateWaypoint(ctx context.Context, system shared.SystemSymbol) (shared.WaypointSymbol, error) {
	waypoints, err := c.universe.SystemWaypoints(ctx, system)
	if err != nil {
		return "", err
	}
	for i := range waypoints {
		if waypoints[i].IsJumpGate() {
			return waypoints[i].Symbol, nil
		}
	}
	return "", nil
}

// systemsByHopDistance is a BFS ordering of the graph from the start system,
// the start itself first.
func systemsByHopDistance(graph map[shared.SystemSymbol][]shared.SystemSymbol, from shared.SystemSymbol) []shared.SystemSymbol {
	seen := map[shared.SystemSymbol]bool{from: true}
	order := []shared.SystemSymbol{from}
	for i := 0; i < len(order); i++ {
		for _, next := range graph[order[i]] {
			if !seen[next] {
				seen[next] = true
				order = append(order, next)
			}
		}
	}
	return order
}
