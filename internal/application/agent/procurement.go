package agent

import (
	"context"
	"fmt"
	"log"

	"github.com/whyando/spacetraders/internal/application/universe"
	"github.com/whyando/spacetraders/internal/domain/fleet"
	"github.com/whyando/spacetraders/internal/domain/shared"
)

// purchaseOutcome is the domain-expected result of one procurement attempt.
// Only an API failure is an error; everything here is recovered locally.
type purchaseOutcome int

const (
	purchaseBought purchaseOutcome = iota
	purchaseNeverPurchase
	purchaseNoShipyards
	purchaseLowCredits
	purchaseNoPurchaser
)

type purchaseResult struct {
	outcome purchaseOutcome
	ship    *fleet.Ship
	// suggestedWaypoint is set on purchaseNoPurchaser when the role allows
	// ferrying a hauler to the shipyard via a TryBuyShips task.
	suggestedWaypoint shared.WaypointSymbol
}

// tryBuyShip attempts to procure one ship for one unfilled role. purchaser,
// when non-empty, is a ship allowed to act as the buyer in addition to
// static probes. Caller holds the buy-ships lock.
func (c *Controller) tryBuyShip(ctx context.Context, role *fleet.ShipConfig, purchaser string) (*purchaseResult, error) {
	if role.PurchaseCriteria.NeverPurchase {
		return &purchaseResult{outcome: purchaseNeverPurchase}, nil
	}

	system := c.startSystem
	if role.PurchaseCriteria.SystemSymbol != nil {
		system = *role.PurchaseCriteria.SystemSymbol
	}
	listings, err := c.universe.SearchShipyards(ctx, system, role.ShipModel)
	if err != nil {
		return nil, err
	}
	if len(listings) == 0 {
		return &purchaseResult{outcome: purchaseNoShipyards}, nil
	}

	var jobReservation int64
	if kind := role.Behavior.Kind; kind == fleet.BehaviorLogistics || kind == fleet.BehaviorConstructionHauler {
		jobReservation = creditsPerCargoUnit * fleet.ShipModels[role.ShipModel].CargoCapacity
	}
	available := c.ledger.AvailableCredits()
	if available < listings[0].Price+jobReservation {
		log.Printf("[%s] cannot afford %s for role %s: price %d + job %d > available %d",
			c.callsign, role.ShipModel, role.ID, listings[0].Price, jobReservation, available)
		return &purchaseResult{outcome: purchaseLowCredits}, nil
	}

	for _, listing := range listings {
		if available < listing.Price+jobReservation {
			break
		}
		if !c.hasPurchaserAt(listing.Waypoint, purchaser) {
			if role.PurchaseCriteria.RequireCheapest {
				break
			}
			continue
		}
		ship, err := c.buyAt(ctx, role, listing)
		if err != nil {
			return nil, err
		}
		return &purchaseResult{outcome: purchaseBought, ship: ship}, nil
	}

	result := &purchaseResult{outcome: purchaseNoPurchaser}
	if role.PurchaseCriteria.AllowLogisticTask {
		result.suggestedWaypoint = listings[0].Waypoint
	}
	return result, nil
}

// hasPurchaserAt reports whether a qualifying ship is parked at the
// shipyard: a static probe stationed there, or the provided purchaser.
func (c *Controller) hasPurchaserAt(waypoint shared.WaypointSymbol, purchaser string) bool {
	staticProbes := map[string]bool{}
	c.assignMu.Lock()
	for i := range c.roles {
		if ship, ok := c.assignments[c.roles[i].ID]; ok && c.roles[i].IsStaticProbe() {
			staticProbes[ship] = true
		}
	}
	c.assignMu.Unlock()

	c.shipsMu.Lock()
	defer c.shipsMu.Unlock()
	for symbol, ctrl := range c.ships {
		if ctrl.Waypoint() != waypoint || ctrl.IsInTransit() {
			continue
		}
		if symbol == purchaser || staticProbes[symbol] {
			return true
		}
	}
	return false
}

func (c *Controller) buyAt(ctx context.Context, role *fleet.ShipConfig, listing universe.ShipyardListing) (*fleet.Ship, error) {
	result, err := c.client.PurchaseShip(ctx, role.ShipModel, listing.Waypoint)
	if err != nil {
		return nil, err
	}
	c.UpdateAgent(&result.Agent)
	log.Printf("[%s] bought %s (%s) at %s for %d credits",
		c.callsign, result.Ship.Symbol, role.ShipModel, listing.Waypoint, result.Transaction.Price)

	// Prices move after a sale; refresh while a ship of ours is on site.
	if _, sampled, err := c.client.GetShipyard(ctx, listing.Waypoint); err != nil {
		log.Printf("[%s] failed to refresh shipyard %s after purchase: %v", c.callsign, listing.Waypoint, err)
	} else if sampled != nil {
		c.universe.SaveShipyard(listing.Waypoint, sampled)
	}

	ship := result.Ship
	c.addShip(ship)
	if err := c.assignShip(ctx, &ship, role); err != nil {
		return nil, err
	}
	return &ship, nil
}

// assignShip binds a ship to a role, persists the assignment and places the
// role's standing credit reservation.
func (c *Controller) assignShip(ctx context.Context, ship *fleet.Ship, role *fleet.ShipConfig) error {
	c.assignMu.Lock()
	c.assignments[role.ID] = ship.Symbol
	c.assignMu.Unlock()

	if kind := role.Behavior.Kind; kind == fleet.BehaviorLogistics || kind == fleet.BehaviorConstructionHauler {
		c.ledger.ReserveCredits("logistics/"+ship.Symbol, creditsPerCargoUnit*ship.Cargo.Capacity)
	}
	return c.persistAssignments(ctx)
}

// tryAssignShip assigns an unassigned ship to the first unfilled role whose
// model matches.
func (c *Controller) tryAssignShip(ctx context.Context, ship *fleet.Ship) error {
	model, err := ship.Model()
	if err != nil {
		return err
	}

	c.assignMu.Lock()
	var role *fleet.ShipConfig
	for i := range c.roles {
		r := &c.roles[i]
		if _, filled := c.assignments[r.ID]; filled {
			continue
		}
		if r.ShipModel == model {
			role = r
			break
		}
	}
	c.assignMu.Unlock()

	if role == nil {
		log.Printf("[%s] no unfilled role for %s (%s)", c.callsign, ship.Symbol, model)
		return nil
	}
	return c.assignShip(ctx, ship, role)
}

func (c *Controller) shipRole(ship string) *fleet.ShipConfig {
	for i := range c.roles {
		if c.assignments[c.roles[i].ID] == ship {
			return &c.roles[i]
		}
	}
	return nil
}

// TryBuyShips walks unfilled roles in order and attempts to procure each.
// Serialized by the buy-ships lock; a stuck acquisition is a fatal bug.
// Implements the executor's FleetCoordinator.
func (c *Controller) TryBuyShips(ctx context.Context, purchaser string) error {
	release := c.acquireBuyLock()
	defer release()

	c.assignMu.Lock()
	var unfilled []*fleet.ShipConfig
	for i := range c.roles {
		if _, filled := c.assignments[c.roles[i].ID]; !filled {
			unfilled = append(unfilled, &c.roles[i])
		}
	}
	c.assignMu.Unlock()

	pending := map[shared.WaypointSymbol]bool{}
	var bought []*fleet.Ship
	for _, role := range unfilled {
		result, err := c.tryBuyShip(ctx, role, purchaser)
		if err != nil {
			return fmt.Errorf("failed to buy ship for role %s: %w", role.ID, err)
		}
		switch result.outcome {
		case purchaseBought:
			bought = append(bought, result.ship)
		case purchaseNoPurchaser:
			if result.suggestedWaypoint != "" {
				pending[result.suggestedWaypoint] = true
			}
		case purchaseLowCredits:
			// Roles are ordered by priority; later ones cost at least as
			// much attention, but keep walking in case a cheaper model fits.
		}
	}

	c.pendingMu.Lock()
	c.pendingPurchases = pending
	c.pendingMu.Unlock()

	for _, ship := range bought {
		c.spawnRunShip(*ship)
	}
	return nil
}

// PendingPurchaseWaypoints reports shipyards where a purchase is waiting for
// a hauler to show up. Feeds TryBuyShips task generation.
func (c *Controller) PendingPurchaseWaypoints(ctx context.Context, system shared.SystemSymbol) ([]shared.WaypointSymbol, error) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	var out []shared.WaypointSymbol
	for w := range c.pendingPurchases {
		if w.System() == system {
			out = append(out, w)
		}
	}
	return out, nil
}
