package agent

import (
	"context"
	"fmt"
	"log"

	"github.com/whyando/spacetraders/internal/adapters/persistence"
	"github.com/whyando/spacetraders/internal/application/universe"
	"github.com/whyando/spacetraders/internal/domain/fleet"
	"github.com/whyando/spacetraders/internal/domain/shared"
)

// generateRoles produces the starter system's declarative fleet for the
// current era. Role IDs are stable across regenerations so persisted
// assignments survive restarts.
func (c *Controller) generateRoles(ctx context.Context, era fleet.AgentEra) ([]fleet.ShipConfig, error) {
	switch era {
	case fleet.EraStartingSystem1, fleet.EraStartingSystem2, fleet.EraInterSystem1:
	case fleet.EraInterSystem2:
		return nil, fmt.Errorf("role generation for era %s is not implemented", era)
	default:
		return nil, fmt.Errorf("unknown era %s", era)
	}

	var roles []fleet.ShipConfig

	// The starter command frigate runs logistics from day one. It is never
	// bought; registration grants it.
	roles = append(roles, fleet.ShipConfig{
		ID:        "cmd",
		ShipModel: fleet.ShipModelCommandFrigate,
		Behavior: fleet.Behavior{
			Kind: fleet.BehaviorLogistics,
			Logistics: &fleet.LogisticsScriptConfig{
				UsePlanner:         true,
				AllowMarketRefresh: true,
				AllowShipbuying:    true,
				AllowConstruction:  !c.cfg.Agent.NoGateMode,
			},
		},
		PurchaseCriteria: fleet.PurchaseCriteria{NeverPurchase: true},
	})

	shipyards, err := c.universe.SearchWaypoints(ctx, c.startSystem, universe.WaypointFilter{IsShipyard: true})
	if err != nil {
		return nil, err
	}
	markets, err := c.universe.SearchWaypoints(ctx, c.startSystem, universe.WaypointFilter{IsMarket: true})
	if err != nil {
		return nil, err
	}

	// One static probe per shipyard: keeps prices fresh and doubles as the
	// on-site purchaser.
	for i := range shipyards {
		roles = append(roles, fleet.ShipConfig{
			ID:        fmt.Sprintf("probe_%s", shipyards[i].Symbol),
			ShipModel: fleet.ShipModelProbe,
			Behavior: fleet.Behavior{
				Kind:  fleet.BehaviorProbe,
				Probe: &fleet.ProbeScriptConfig{Waypoints: []shared.WaypointSymbol{shipyards[i].Symbol}},
			},
			PurchaseCriteria: fleet.PurchaseCriteria{RequireCheapest: true},
		})
	}

	if era == fleet.EraStartingSystem1 {
		return c.filterRoles(roles), nil
	}

	// Era 2 and beyond: probe every other market, a hauler wing, the
	// extraction fleet and the gate hauler.
	isShipyard := map[shared.WaypointSymbol]bool{}
	for i := range shipyards {
		isShipyard[shipyards[i].Symbol] = true
	}
	for i := range markets {
		if isShipyard[markets[i].Symbol] {
			continue
		}
		roles = append(roles, fleet.ShipConfig{
			ID:        fmt.Sprintf("probe_%s", markets[i].Symbol),
			ShipModel: fleet.ShipModelProbe,
			Behavior: fleet.Behavior{
				Kind:  fleet.BehaviorProbe,
				Probe: &fleet.ProbeScriptConfig{Waypoints: []shared.WaypointSymbol{markets[i].Symbol}},
			},
			PurchaseCriteria: fleet.PurchaseCriteria{},
		})
	}

	for i := 0; i < 4; i++ {
		roles = append(roles, fleet.ShipConfig{
			ID:        fmt.Sprintf("hauler_%d", i),
			ShipModel: fleet.ShipModelLightHauler,
			Behavior: fleet.Behavior{
				Kind: fleet.BehaviorLogistics,
				Logistics: &fleet.LogisticsScriptConfig{
					UsePlanner:         true,
					AllowMarketRefresh: true,
				},
			},
			PurchaseCriteria: fleet.PurchaseCriteria{AllowLogisticTask: true},
		})
	}

	if !c.cfg.Agent.NoGateMode {
		roles = append(roles, fleet.ShipConfig{
			ID:        "construction_hauler",
			ShipModel: fleet.ShipModelLightHauler,
			Behavior: fleet.Behavior{
				Kind: fleet.BehaviorConstructionHauler,
				Logistics: &fleet.LogisticsScriptConfig{
					UsePlanner:        true,
					AllowConstruction: true,
				},
			},
			PurchaseCriteria: fleet.PurchaseCriteria{AllowLogisticTask: true},
		})
	}

	gasGiants, err := c.universe.SearchWaypoints(ctx, c.startSystem, universe.WaypointFilter{Type: "GAS_GIANT"})
	if err != nil {
		return nil, err
	}
	if len(gasGiants) > 0 {
		siphon := &fleet.SiphonScriptConfig{GasGiant: gasGiants[0].Symbol}
		for i := 0; i < 2; i++ {
			roles = append(roles, fleet.ShipConfig{
				ID:               fmt.Sprintf("siphon_drone_%d", i),
				ShipModel:        fleet.ShipModelSiphonDrone,
				Behavior:         fleet.Behavior{Kind: fleet.BehaviorSiphonDrone, Siphon: siphon},
				PurchaseCriteria: fleet.PurchaseCriteria{},
			})
		}
		roles = append(roles, fleet.ShipConfig{
			ID:               "siphon_shuttle_0",
			ShipModel:        fleet.ShipModelLightShuttle,
			Behavior:         fleet.Behavior{Kind: fleet.BehaviorSiphonShuttle, Siphon: siphon},
			PurchaseCriteria: fleet.PurchaseCriteria{},
		})
	}

	asteroids, err := c.universe.SearchWaypoints(ctx, c.startSystem, universe.WaypointFilter{Type: "ENGINEERED_ASTEROID"})
	if err != nil {
		return nil, err
	}
	if len(asteroids) > 0 {
		mining := &fleet.MiningScriptConfig{Asteroid: asteroids[0].Symbol, TargetGood: "IRON_ORE"}
		roles = append(roles, fleet.ShipConfig{
			ID:               "mining_surveyor_0",
			ShipModel:        fleet.ShipModelSurveyor,
			Behavior:         fleet.Behavior{Kind: fleet.BehaviorMiningSurveyor, Mining: mining},
			PurchaseCriteria: fleet.PurchaseCriteria{},
		})
		for i := 0; i < 2; i++ {
			roles = append(roles, fleet.ShipConfig{
				ID:               fmt.Sprintf("mining_drone_%d", i),
				ShipModel:        fleet.ShipModelMiningDrone,
				Behavior:         fleet.Behavior{Kind: fleet.BehaviorMiningDrone, Mining: mining},
				PurchaseCriteria: fleet.PurchaseCriteria{},
			})
		}
		roles = append(roles, fleet.ShipConfig{
			ID:               "mining_shuttle_0",
			ShipModel:        fleet.ShipModelLightShuttle,
			Behavior:         fleet.Behavior{Kind: fleet.BehaviorMiningShuttle, Mining: mining},
			PurchaseCriteria: fleet.PurchaseCriteria{},
		})
	}

	if era == fleet.EraInterSystem1 {
		for i := 0; i < 2; i++ {
			roles = append(roles, fleet.ShipConfig{
				ID:               fmt.Sprintf("jumpgate_probe_%d", i),
				ShipModel:        fleet.ShipModelProbe,
				Behavior:         fleet.Behavior{Kind: fleet.BehaviorJumpgateProbe},
				PurchaseCriteria: fleet.PurchaseCriteria{},
			})
		}
		for i := 0; i < 2; i++ {
			roles = append(roles, fleet.ShipConfig{
				ID:               fmt.Sprintf("explorer_%d", i),
				ShipModel:        fleet.ShipModelExplorer,
				Behavior:         fleet.Behavior{Kind: fleet.BehaviorExplorer},
				PurchaseCriteria: fleet.PurchaseCriteria{},
			})
		}
	}

	return c.filterRoles(roles), nil
}

// filterRoles applies the JOB_ID_FILTER regex.
func (c *Controller) filterRoles(roles []fleet.ShipConfig) []fleet.ShipConfig {
	pattern := c.cfg.Agent.JobIDPattern()
	if pattern == nil {
		return roles
	}
	out := roles[:0]
	for _, r := range roles {
		if pattern.MatchString(r.ID) {
			out = append(out, r)
		}
	}
	return out
}

// refreshShipConfig regenerates roles from era and universe state, drops
// stale assignments and re-assigns loose ships. Re-running with unchanged
// inputs is a no-op on the persisted assignments.
func (c *Controller) refreshShipConfig(ctx context.Context) error {
	roles, err := c.generateRoles(ctx, c.era())
	if err != nil {
		return err
	}

	c.assignMu.Lock()
	c.roles = roles
	validRole := map[string]bool{}
	for i := range roles {
		validRole[roles[i].ID] = true
	}
	changed := false
	for roleID, ship := range c.assignments {
		if !validRole[roleID] {
			log.Printf("[%s] dropping stale assignment %s -> %s", c.callsign, roleID, ship)
			delete(c.assignments, roleID)
			changed = true
			continue
		}
		if !c.hasShip(ship) {
			log.Printf("[%s] dropping assignment %s -> %s: ship gone", c.callsign, roleID, ship)
			delete(c.assignments, roleID)
			changed = true
		}
	}
	assigned := map[string]bool{}
	for _, ship := range c.assignments {
		assigned[ship] = true
	}
	c.assignMu.Unlock()

	if changed {
		if err := c.persistAssignments(ctx); err != nil {
			return err
		}
	}

	for _, ship := range c.shipSnapshots() {
		if assigned[ship.Symbol] {
			continue
		}
		s := ship
		if err := c.tryAssignShip(ctx, &s); err != nil {
			return err
		}
	}

	c.refreshStandingReservations(ctx)
	return nil
}

// refreshStandingReservations maintains the well-known ledger keys.
func (c *Controller) refreshStandingReservations(ctx context.Context) {
	c.ledger.ReserveCredits("FUEL", fuelReservation)

	gates, err := c.universe.SearchWaypoints(ctx, c.startSystem, universe.WaypointFilter{IsJumpGate: true})
	if err != nil || len(gates) == 0 {
		return
	}
	construction, err := c.universe.Construction(ctx, gates[0].Symbol)
	if err != nil {
		log.Printf("[%s] failed to check gate construction: %v", c.callsign, err)
		return
	}
	if construction == nil || construction.IsComplete {
		c.ledger.ReserveCredits("JUMPGATE_COSTS", jumpgateCostsReservation)
	}
}

func (c *Controller) persistAssignments(ctx context.Context) error {
	c.assignMu.Lock()
	snapshot := make(map[string]string, len(c.assignments))
	for k, v := range c.assignments {
		snapshot[k] = v
	}
	c.assignMu.Unlock()
	return persistence.SetValue(ctx, c.store, c.callsign+"/ship_assignments", snapshot)
}

// StaticallyProbedWaypoints reports waypoints covered by an assigned static
// probe. The task generator skips refresh tasks for them and procurement
// treats the probes as on-site purchasers.
func (c *Controller) StaticallyProbedWaypoints(ctx context.Context) map[shared.WaypointSymbol]bool {
	c.assignMu.Lock()
	defer c.assignMu.Unlock()
	out := map[shared.WaypointSymbol]bool{}
	for i := range c.roles {
		r := &c.roles[i]
		if _, ok := c.assignments[r.ID]; !ok {
			continue
		}
		if r.IsStaticProbe() {
			out[r.Behavior.Probe.Waypoints[0]] = true
		}
	}
	return out
}
