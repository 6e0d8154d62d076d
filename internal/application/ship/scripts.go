package ship

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/whyando/spacetraders/internal/application/broker"
	"github.com/whyando/spacetraders/internal/application/survey"
	"github.com/whyando/spacetraders/internal/domain/fleet"
	"github.com/whyando/spacetraders/internal/domain/shared"
)

// Markets go stale for the task generator after fifteen minutes; probes
// refresh on the same cadence.
const probeRefreshInterval = 15 * time.Minute

// GateReservations serializes uncharted-gate claims across jumpgate probes.
// The agent controller implements it.
type GateReservations interface {
	// ReserveUnchartedGate claims the closest unclaimed uncharted gate for
	// the ship, or reports none available.
	ReserveUnchartedGate(ctx context.Context, ship string, from shared.SystemSymbol) (shared.WaypointSymbol, bool, error)
	// ClearGateReservation releases the ship's claim once the gate's
	// connections are known.
	ClearGateReservation(ctx context.Context, ship string) error
}

// SystemReservations serializes starter-system claims across explorers.
type SystemReservations interface {
	ReserveStarterSystem(ctx context.Context, ship string, from shared.SystemSymbol) (shared.SystemSymbol, bool, error)
}

// RunProbe rotates a probe through its configured waypoints, refreshing the
// market (and shipyard where present) at each stop. A single waypoint makes
// the probe static.
func RunProbe(ctx context.Context, ctrl *Controller, cfg fleet.ProbeScriptConfig) error {
	if len(cfg.Waypoints) == 0 {
		return fmt.Errorf("%s: probe has no waypoints configured", ctrl.Symbol())
	}
	if err := ctrl.WaitForTransit(ctx); err != nil {
		return err
	}

	interval := probeRefreshInterval / time.Duration(len(cfg.Waypoints))
	for i := 0; ; i = (i + 1) % len(cfg.Waypoints) {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		target := cfg.Waypoints[i]
		if err := ctrl.GotoWaypoint(ctx, target); err != nil {
			return err
		}
		waypoint, err := ctrl.universe.Waypoint(ctx, target)
		if err != nil {
			return err
		}
		if waypoint.IsMarket() {
			if err := ctrl.RefreshMarket(ctx); err != nil {
				return err
			}
		}
		if waypoint.IsShipyard() {
			if err := ctrl.RefreshShipyard(ctx); err != nil {
				return err
			}
		}
		ctrl.clock.Sleep(interval)
	}
}

// RunJumpgateProbe repeatedly claims the nearest uncharted jump gate,
// travels the gate network to it, and charts it. With nothing left to chart
// it parks and retries periodically.
func RunJumpgateProbe(ctx context.Context, ctrl *Controller, reservations GateReservations) error {
	if err := ctrl.WaitForTransit(ctx); err != nil {
		return err
	}
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		gate, ok, err := reservations.ReserveUnchartedGate(ctx, ctrl.Symbol(), ctrl.Waypoint().System())
		if err != nil {
			return err
		}
		if !ok {
			log.Printf("[%s] no uncharted gates reachable, idling", ctrl.Symbol())
			ctrl.clock.Sleep(10 * time.Minute)
			continue
		}
		if err := travelGateNetwork(ctx, ctrl, gate.System()); err != nil {
			return err
		}
		if err := ctrl.GotoWaypoint(ctx, gate); err != nil {
			return err
		}
		if err := ctrl.ChartJumpGate(ctx); err != nil {
			return err
		}
		if !ctrl.universe.ConnectionsKnown(gate) {
			return fmt.Errorf("%s: gate %s still uncharted after charting visit", ctrl.Symbol(), gate)
		}
		if err := reservations.ClearGateReservation(ctx, ctrl.Symbol()); err != nil {
			return err
		}
	}
}

// travelGateNetwork moves the ship system-to-system over charted gate links
// until it is in the target system.
func travelGateNetwork(ctx context.Context, ctrl *Controller, target shared.SystemSymbol) error {
	for ctrl.Waypoint().System() != target {
		current := ctrl.Waypoint().System()
		path, ok := systemPath(ctrl.universe.JumpgateGraph(), current, target)
		if !ok {
			return fmt.Errorf("%s: no gate path from %s to %s", ctrl.Symbol(), current, target)
		}

		localGate, err := systemGate(ctx, ctrl, current)
		if err != nil {
			return err
		}
		if err := ctrl.GotoWaypoint(ctx, localGate); err != nil {
			return err
		}
		nextGate, err := systemGate(ctx, ctrl, path[1])
		if err != nil {
			return err
		}
		if err := ctrl.JumpTo(ctx, nextGate); err != nil {
			return err
		}
	}
	return nil
}

func systemGate(ctx context.Context, ctrl *Controller, system shared.SystemSymbol) (shared.WaypointSymbol, error) {
	waypoints, err := ctrl.universe.SystemWaypoints(ctx, system)
	if err != nil {
		return "", err
	}
	for i := range waypoints {
		if waypoints[i].IsJumpGate() {
			return waypoints[i].Symbol, nil
		}
	}
	return "", fmt.Errorf("system %s has no jump gate", system)
}

// systemPath is a BFS over the system adjacency graph.
func systemPath(graph map[shared.SystemSymbol][]shared.SystemSymbol, from, to shared.SystemSymbol) ([]shared.SystemSymbol, bool) {
	if from == to {
		return []shared.SystemSymbol{from}, true
	}
	prev := map[shared.SystemSymbol]shared.SystemSymbol{from: from}
	queue := []shared.SystemSymbol{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range graph[cur] {
			if _, seen := prev[next]; seen {
				continue
			}
			prev[next] = cur
			if next == to {
				path := []shared.SystemSymbol{to}
				for at := to; at != from; {
					at = prev[at]
					path = append(path, at)
				}
				for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
					path[i], path[j] = path[j], path[i]
				}
				return path, true
			}
			queue = append(queue, next)
		}
	}
	return nil, false
}

// ExplorerMaxWarpRange bounds direct warps between starter systems.
const ExplorerMaxWarpRange = 20_000

// RunExplorer claims an unoccupied starter system, travels there over the
// combined gate and warp graph, then keeps the new system's markets fresh.
func RunExplorer(ctx context.Context, ctrl *Controller, reservations SystemReservations) error {
	if err := ctrl.WaitForTransit(ctx); err != nil {
		return err
	}

	target, ok, err := reservations.ReserveStarterSystem(ctx, ctrl.Symbol(), ctrl.Waypoint().System())
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s: no unoccupied starter system reachable", ctrl.Symbol())
	}

	gateGraph := ctrl.universe.JumpgateGraph()
	warpGraph := ctrl.universe.WarpJumpGraph(ExplorerMaxWarpRange)
	for ctrl.Waypoint().System() != target {
		current := ctrl.Waypoint().System()
		path, found := systemPath(warpGraph, current, target)
		if !found {
			return fmt.Errorf("%s: no route from %s to %s", ctrl.Symbol(), current, target)
		}
		next := path[1]

		if hasEdge(gateGraph, current, next) {
			localGate, err := systemGate(ctx, ctrl, current)
			if err != nil {
				return err
			}
			if err := ctrl.GotoWaypoint(ctx, localGate); err != nil {
				return err
			}
			nextGate, err := systemGate(ctx, ctrl, next)
			if err != nil {
				return err
			}
			if err := ctrl.JumpTo(ctx, nextGate); err != nil {
				return err
			}
			continue
		}

		// Warp edge. Fill the tank and carry spare FUEL goods; the far side
		// may have sparse markets.
		if err := ctrl.RefuelFull(ctx, ctrl.Ship().Fuel.Capacity); err != nil {
			return err
		}
		entry, err := warpEntryWaypoint(ctx, ctrl, next)
		if err != nil {
			return err
		}
		if err := ctrl.WarpTo(ctx, entry); err != nil {
			return err
		}
		if err := ctrl.RefuelFromCargo(ctx); err != nil {
			return err
		}
	}

	log.Printf("[%s] arrived in %s, holding market watch", ctrl.Symbol(), target)
	return runMarketWatch(ctx, ctrl, target)
}

func hasEdge(graph map[shared.SystemSymbol][]shared.SystemSymbol, from, to shared.SystemSymbol) bool {
	for _, s := range graph[from] {
		if s == to {
			return true
		}
	}
	return false
}

// warpEntryWaypoint picks where a warp lands: the target system's gate if it
// has one, else its first market.
func warpEntryWaypoint(ctx context.Context, ctrl *Controller, system shared.SystemSymbol) (shared.WaypointSymbol, error) {
	waypoints, err := ctrl.universe.SystemWaypoints(ctx, system)
	if err != nil {
		return "", err
	}
	for i := range waypoints {
		if waypoints[i].IsJumpGate() {
			return waypoints[i].Symbol, nil
		}
	}
	for i := range waypoints {
		if waypoints[i].IsMarket() {
			return waypoints[i].Symbol, nil
		}
	}
	return "", fmt.Errorf("system %s has no gate or market to warp into", system)
}

// runMarketWatch cycles through every market in the system refreshing
// prices, the explorer's steady-state job in a claimed system.
func runMarketWatch(ctx context.Context, ctrl *Controller, system shared.SystemSymbol) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		waypoints, err := ctrl.universe.SystemWaypoints(ctx, system)
		if err != nil {
			return err
		}
		for i := range waypoints {
			if !waypoints[i].IsMarket() {
				continue
			}
			if err := ctrl.GotoWaypoint(ctx, waypoints[i].Symbol); err != nil {
				return err
			}
			if err := ctrl.RefreshMarket(ctx); err != nil {
				return err
			}
			if waypoints[i].IsShipyard() {
				if err := ctrl.RefreshShipyard(ctx); err != nil {
					return err
				}
			}
		}
		ctrl.clock.Sleep(probeRefreshInterval)
	}
}

// RunSiphonDrone siphons gas at the gas giant and hands the yield to
// shuttles through the cargo broker.
func RunSiphonDrone(ctx context.Context, ctrl *Controller, b *broker.Broker, cfg fleet.SiphonScriptConfig) error {
	if err := ctrl.WaitForTransit(ctx); err != nil {
		return err
	}
	if err := ctrl.GotoWaypoint(ctx, cfg.GasGiant); err != nil {
		return err
	}
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		ship := ctrl.Ship()
		if ship.Cargo.SpaceAvailable() == 0 {
			if err := b.TransferAllCargo(ctx, ship.Symbol, cfg.GasGiant, ship.Cargo.Map()); err != nil {
				return err
			}
			continue
		}
		if err := ctrl.WaitForCooldown(ctx); err != nil {
			return err
		}
		yield, err := ctrl.Siphon(ctx)
		if err != nil {
			return err
		}
		log.Printf("[%s] siphoned %d %s", ctrl.Symbol(), yield.Units, yield.Symbol)
	}
}

// RunSiphonShuttle ferries siphoned gas from the gas giant to the best
// paying market.
func RunSiphonShuttle(ctx context.Context, ctrl *Controller, b *broker.Broker, cfg fleet.SiphonScriptConfig) error {
	return runShuttle(ctx, ctrl, b, cfg.GasGiant)
}

// RunMiningSurveyor keeps the survey pool stocked for its asteroid.
func RunMiningSurveyor(ctx context.Context, ctrl *Controller, surveys *survey.Manager, cfg fleet.MiningScriptConfig) error {
	if err := ctrl.WaitForTransit(ctx); err != nil {
		return err
	}
	if err := ctrl.GotoWaypoint(ctx, cfg.Asteroid); err != nil {
		return err
	}
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := ctrl.WaitForCooldown(ctx); err != nil {
			return err
		}
		created, err := ctrl.CreateSurveys(ctx)
		if err != nil {
			return err
		}
		if err := surveys.InsertSurveys(ctx, created); err != nil {
			return err
		}
		log.Printf("[%s] added %d surveys (%d active)", ctrl.Symbol(), len(created), surveys.ActiveCount())
	}
}

// RunMiningDrone extracts against the best available survey for the target
// good and hands yields to shuttles through the cargo broker. Off-target
// yields are jettisoned.
func RunMiningDrone(ctx context.Context, ctrl *Controller, b *broker.Broker, surveys *survey.Manager, cfg fleet.MiningScriptConfig) error {
	if err := ctrl.WaitForTransit(ctx); err != nil {
		return err
	}
	if err := ctrl.GotoWaypoint(ctx, cfg.Asteroid); err != nil {
		return err
	}
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		ship := ctrl.Ship()
		if ship.Cargo.SpaceAvailable() == 0 {
			if err := b.TransferAllCargo(ctx, ship.Symbol, cfg.Asteroid, ship.Cargo.Map()); err != nil {
				return err
			}
			continue
		}

		key, best, ok := surveys.BestSurveyFor(cfg.Asteroid, cfg.TargetGood)
		if !ok {
			ctrl.clock.Sleep(30 * time.Second)
			continue
		}
		if err := ctrl.WaitForCooldown(ctx); err != nil {
			return err
		}
		yield, removed, err := ctrl.ExtractSurvey(ctx, best)
		if err != nil {
			return err
		}
		if removed {
			if err := surveys.RemoveSurvey(ctx, key); err != nil {
				return err
			}
			continue
		}
		if yield.Symbol != cfg.TargetGood {
			if err := ctrl.JettisonGood(ctx, yield.Symbol, yield.Units); err != nil {
				return err
			}
			continue
		}
		log.Printf("[%s] extracted %d %s", ctrl.Symbol(), yield.Units, yield.Symbol)
	}
}

// RunMiningShuttle ferries mined ore from the asteroid to the best paying
// market.
func RunMiningShuttle(ctx context.Context, ctrl *Controller, b *broker.Broker, cfg fleet.MiningScriptConfig) error {
	return runShuttle(ctx, ctrl, b, cfg.Asteroid)
}

// runShuttle is the shared shuttle loop: fill up at the extraction site via
// the broker, sell at the best market, return.
func runShuttle(ctx context.Context, ctrl *Controller, b *broker.Broker, site shared.WaypointSymbol) error {
	if err := ctrl.WaitForTransit(ctx); err != nil {
		return err
	}
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := ctrl.GotoWaypoint(ctx, site); err != nil {
			return err
		}
		ship := ctrl.Ship()
		received, err := b.ReceiveCargo(ctx, ship.Symbol, site, ship.Cargo.SpaceAvailable())
		if err != nil {
			return err
		}
		for good, units := range received {
			ctrl.ReceiveTransfer(good, units)
		}

		dest, err := bestSellWaypoint(ctx, ctrl, ctrl.Ship().Cargo.Map())
		if err != nil {
			return err
		}
		if err := ctrl.GotoWaypoint(ctx, dest); err != nil {
			return err
		}
		if err := ctrl.SellAllCargo(ctx, ""); err != nil {
			return err
		}
	}
}

// bestSellWaypoint picks the market with the highest total sampled sell
// value for the given cargo, falling back to any market trading at least one
// of the goods.
func bestSellWaypoint(ctx context.Context, ctrl *Controller, cargo map[string]int64) (shared.WaypointSymbol, error) {
	system := ctrl.Waypoint().System()
	waypoints, err := ctrl.universe.SystemWaypoints(ctx, system)
	if err != nil {
		return "", err
	}

	var best shared.WaypointSymbol
	var bestValue int64 = -1
	for i := range waypoints {
		if !waypoints[i].IsMarket() {
			continue
		}
		sampled := ctrl.universe.SampledMarket(waypoints[i].Symbol)
		if sampled == nil {
			continue
		}
		var value int64
		for good, units := range cargo {
			if g := sampled.Data.Good(good); g != nil {
				value += g.SellPrice * units
			}
		}
		if value > bestValue {
			best = waypoints[i].Symbol
			bestValue = value
		}
	}
	if bestValue <= 0 {
		return "", fmt.Errorf("no sampled market in %s buys any of %v", system, cargo)
	}
	return best, nil
}
