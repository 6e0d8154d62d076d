package ship

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/whyando/spacetraders/internal/adapters/api"
	"github.com/whyando/spacetraders/internal/application/universe"
	"github.com/whyando/spacetraders/internal/domain/fleet"
	"github.com/whyando/spacetraders/internal/domain/ledger"
	"github.com/whyando/spacetraders/internal/domain/shared"
	"github.com/whyando/spacetraders/pkg/utils"
)

// AgentUpdater receives fresh agent and contract payloads returned by ship
// operations. The agent controller implements it and keeps the ledger's
// credit mirror in sync.
type AgentUpdater interface {
	UpdateAgent(agent *fleet.Agent)
	UpdateContract(contract *fleet.Contract)
}

// Controller owns one ship's state and exposes the primitive operations
// scripts compose. All mutations go through the owning script's goroutine;
// other readers take snapshots.
type Controller struct {
	client   *api.Client
	universe *universe.Universe
	ledger   *ledger.Ledger
	agent    AgentUpdater
	clock    shared.Clock

	mu   sync.Mutex
	ship fleet.Ship
}

// NewController wraps a ship. A nil clock means RealClock.
func NewController(
	ship fleet.Ship,
	client *api.Client,
	u *universe.Universe,
	l *ledger.Ledger,
	agent AgentUpdater,
	clock shared.Clock,
) *Controller {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &Controller{
		client:   client,
		universe: u,
		ledger:   l,
		agent:    agent,
		clock:    clock,
		ship:     ship,
	}
}

// Ship returns a snapshot of the ship's state.
func (c *Controller) Ship() fleet.Ship {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ship
}

// Symbol is the ship's symbol.
func (c *Controller) Symbol() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ship.Symbol
}

// Waypoint is the ship's current (or destination, while in transit)
// waypoint.
func (c *Controller) Waypoint() shared.WaypointSymbol {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ship.Nav.WaypointSymbol
}

func (c *Controller) update(f func(s *fleet.Ship)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f(&c.ship)
}

// Orbit moves the ship into orbit unless it is already there.
func (c *Controller) Orbit(ctx context.Context) error {
	if c.Ship().Nav.Status == fleet.NavStatusInOrbit {
		return nil
	}
	nav, err := c.client.Orbit(ctx, c.Symbol())
	if err != nil {
		return err
	}
	c.update(func(s *fleet.Ship) { s.Nav = *nav })
	return nil
}

// Dock docks the ship unless it is already docked.
func (c *Controller) Dock(ctx context.Context) error {
	if c.Ship().Nav.Status == fleet.NavStatusDocked {
		return nil
	}
	nav, err := c.client.Dock(ctx, c.Symbol())
	if err != nil {
		return err
	}
	c.update(func(s *fleet.Ship) { s.Nav = *nav })
	return nil
}

// SetFlightMode patches the nav mode unless it already matches.
func (c *Controller) SetFlightMode(ctx context.Context, mode fleet.FlightMode) error {
	if c.Ship().Nav.FlightMode == mode {
		return nil
	}
	nav, err := c.client.SetFlightMode(ctx, c.Symbol(), mode)
	if err != nil {
		return err
	}
	c.update(func(s *fleet.Ship) { s.Nav = *nav })
	return nil
}

// IsInTransit reports whether the ship is still travelling.
func (c *Controller) IsInTransit() bool {
	ship := c.Ship()
	if ship.Nav.Status != fleet.NavStatusInTransit {
		return false
	}
	return ship.Nav.Route.Arrival.After(c.clock.Now())
}

// waitUntil sleeps in small quanta until the wall clock passes t (plus a
// one second margin), tolerating clock jumps in either direction.
func (c *Controller) waitUntil(ctx context.Context, t time.Time) error {
	target := t.Add(time.Second)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		remaining := target.Sub(c.clock.Now())
		if remaining <= 0 {
			return nil
		}
		if remaining > 30*time.Second {
			remaining = 30 * time.Second
		}
		c.clock.Sleep(remaining)
	}
}

// WaitForTransit blocks until the current transit, if any, has arrived,
// then marks the ship in orbit.
func (c *Controller) WaitForTransit(ctx context.Context) error {
	ship := c.Ship()
	if ship.Nav.Status != fleet.NavStatusInTransit {
		return nil
	}
	if err := c.waitUntil(ctx, ship.Nav.Route.Arrival); err != nil {
		return err
	}
	c.update(func(s *fleet.Ship) { s.Nav.Status = fleet.NavStatusInOrbit })
	return nil
}

// WaitForCooldown blocks until the ship's reactor cooldown expires.
func (c *Controller) WaitForCooldown(ctx context.Context) error {
	ship := c.Ship()
	if ship.Cooldown.Expiration == nil {
		return nil
	}
	return c.waitUntil(ctx, *ship.Cooldown.Expiration)
}

// navigate performs one hop: set mode, orbit, navigate, wait out the
// transit.
func (c *Controller) navigate(ctx context.Context, waypoint shared.WaypointSymbol, mode fleet.FlightMode) error {
	if c.Waypoint() == waypoint && !c.IsInTransit() {
		return nil
	}
	if err := c.SetFlightMode(ctx, mode); err != nil {
		return err
	}
	if err := c.Orbit(ctx); err != nil {
		return err
	}
	result, err := c.client.Navigate(ctx, c.Symbol(), waypoint)
	if err != nil {
		return err
	}
	c.update(func(s *fleet.Ship) {
		s.Nav = result.Nav
		s.Fuel = result.Fuel
	})
	log.Printf("[%s] navigating to %s (%s)", c.Symbol(), waypoint, mode)
	return c.WaitForTransit(ctx)
}

// RefuelFull tops the tank up from the local market, buying in multiples
// of 100 units. When rounding down would leave the tank below `required`,
// the exact missing amount is bought instead.
func (c *Controller) RefuelFull(ctx context.Context, required int64) error {
	ship := c.Ship()
	missing := ship.Fuel.Capacity - ship.Fuel.Current
	if missing <= 0 {
		return nil
	}
	units := missing - missing%100
	if units == 0 || ship.Fuel.Current+units < required {
		units = missing
	}
	return c.refuel(ctx, units, false)
}

// RefuelFromCargo converts carried FUEL goods into tank fuel, bounded by
// what the cargo can provide (100 tank units per cargo unit).
func (c *Controller) RefuelFromCargo(ctx context.Context) error {
	ship := c.Ship()
	fuelCargo := ship.Cargo.GoodCount("FUEL")
	if fuelCargo == 0 {
		return nil
	}
	missing := ship.Fuel.Capacity - ship.Fuel.Current
	units := missing - missing%100
	if max := 100 * fuelCargo; units > max {
		units = max
	}
	if units <= 0 {
		return nil
	}
	initialCargo := fuelCargo
	if err := c.refuel(ctx, units, true); err != nil {
		return err
	}
	// The server burns one cargo unit per started block of 100.
	expected := initialCargo - (units+99)/100
	if got := c.Ship().Cargo.GoodCount("FUEL"); got != expected {
		return fmt.Errorf("%s: fuel cargo mismatch after refuel: got %d, expected %d", c.Symbol(), got, expected)
	}
	c.update(func(s *fleet.Ship) {
		s.Cargo = removeCargo(s.Cargo, "FUEL", (units+99)/100)
	})
	return nil
}

func (c *Controller) refuel(ctx context.Context, units int64, fromCargo bool) error {
	if err := c.Dock(ctx); err != nil {
		return err
	}
	result, err := c.client.Refuel(ctx, c.Symbol(), units, fromCargo)
	if err != nil {
		return err
	}
	c.update(func(s *fleet.Ship) { s.Fuel = result.Fuel })
	c.agent.UpdateAgent(&result.Agent)
	log.Printf("[%s] refueled %d units for %d credits", c.Symbol(), result.Transaction.Units, result.Transaction.TotalPrice)
	return nil
}

func removeCargo(cargo fleet.ShipCargo, good string, units int64) fleet.ShipCargo {
	out := cargo
	out.Inventory = nil
	for _, item := range cargo.Inventory {
		if item.Symbol == good {
			item.Units -= units
			out.Units -= units
			if item.Units <= 0 {
				continue
			}
		}
		out.Inventory = append(out.Inventory, item)
	}
	return out
}

// GotoWaypoint routes the ship to a waypoint in its system, refueling at
// markets along the way as hops demand.
func (c *Controller) GotoWaypoint(ctx context.Context, dest shared.WaypointSymbol) error {
	if err := c.WaitForTransit(ctx); err != nil {
		return err
	}
	ship := c.Ship()
	if ship.Nav.WaypointSymbol == dest {
		return nil
	}

	// Fuel-less frames (probes) cruise anywhere for free.
	if ship.Fuel.Capacity == 0 {
		return c.navigate(ctx, dest, fleet.FlightModeCruise)
	}

	route, err := c.universe.Route(ctx, ship.Nav.WaypointSymbol, dest, ship.Engine.Speed, ship.Fuel.Current, ship.Fuel.Capacity)
	if err != nil {
		return fmt.Errorf("%s: %w", c.Symbol(), err)
	}

	for i, hop := range route.Hops {
		required := hop.Edge.FuelCost
		if i == len(route.Hops)-1 && !hop.DstIsMarket {
			required += route.ReqTerminalFuel
		}
		if c.Ship().Fuel.Current < required {
			if !hop.SrcIsMarket {
				return fmt.Errorf("%s: stranded at non-market %s needing %d fuel", c.Symbol(), c.Waypoint(), required)
			}
			if err := c.RefuelFull(ctx, required); err != nil {
				return err
			}
		}
		if err := c.navigate(ctx, hop.Waypoint, hop.Edge.FlightMode); err != nil {
			return err
		}
	}
	return nil
}

// BuyGood purchases goods at the docked market in trade-volume chunks.
// ledgerKey, when non-empty, registers the spend as goods-in-transit.
func (c *Controller) BuyGood(ctx context.Context, good string, units int64, ledgerKey string) error {
	return c.trade(ctx, good, units, ledgerKey, true)
}

// SellGood sells goods at the docked market in trade-volume chunks.
func (c *Controller) SellGood(ctx context.Context, good string, units int64, ledgerKey string) error {
	return c.trade(ctx, good, units, ledgerKey, false)
}

func (c *Controller) trade(ctx context.Context, good string, units int64, ledgerKey string, buying bool) error {
	if units <= 0 {
		return nil
	}
	if err := c.Dock(ctx); err != nil {
		return err
	}

	chunk := units
	if sampled := c.universe.SampledMarket(c.Waypoint()); sampled != nil {
		if g := sampled.Data.Good(good); g != nil && g.TradeVolume > 0 {
			chunk = g.TradeVolume
		}
	}

	remaining := units
	for remaining > 0 {
		n := utils.Min(remaining, chunk)
		var result *api.TradeResult
		var err error
		if buying {
			result, err = c.client.PurchaseCargo(ctx, c.Symbol(), good, n)
		} else {
			result, err = c.client.SellCargo(ctx, c.Symbol(), good, n)
		}
		if err != nil {
			return err
		}
		c.update(func(s *fleet.Ship) { s.Cargo = result.Cargo })
		c.agent.UpdateAgent(&result.Agent)
		if ledgerKey != "" {
			delta := result.Transaction.TotalPrice
			if !buying {
				delta = -delta
			}
			c.ledger.RegisterGoodsChange(ledgerKey, delta)
		}
		remaining -= n
	}
	return nil
}

// RefreshMarket samples the local market into the universe cache. The ship
// must be at the waypoint for prices to be present.
func (c *Controller) RefreshMarket(ctx context.Context) error {
	_, sampled, err := c.client.GetMarket(ctx, c.Waypoint())
	if err != nil {
		return err
	}
	if sampled == nil {
		return fmt.Errorf("%s: market %s returned no price data on site", c.Symbol(), c.Waypoint())
	}
	c.universe.SaveMarket(c.Waypoint(), sampled)
	return nil
}

// RefreshShipyard samples the local shipyard into the universe cache.
func (c *Controller) RefreshShipyard(ctx context.Context) error {
	_, sampled, err := c.client.GetShipyard(ctx, c.Waypoint())
	if err != nil {
		return err
	}
	if sampled == nil {
		return fmt.Errorf("%s: shipyard %s returned no price data on site", c.Symbol(), c.Waypoint())
	}
	c.universe.SaveShipyard(c.Waypoint(), sampled)
	return nil
}

// SellAllCargo refreshes the local market and sells every carried good it
// trades.
func (c *Controller) SellAllCargo(ctx context.Context, ledgerKey string) error {
	if err := c.RefreshMarket(ctx); err != nil {
		return err
	}
	sampled := c.universe.SampledMarket(c.Waypoint())
	for good, units := range c.Ship().Cargo.Map() {
		if sampled.Data.Good(good) == nil {
			log.Printf("[%s] market %s does not trade %s, keeping %d units", c.Symbol(), c.Waypoint(), good, units)
			continue
		}
		if err := c.SellGood(ctx, good, units, ledgerKey); err != nil {
			return err
		}
	}
	return nil
}

// Survey error codes the server uses for dead surveys.
const (
	errCodeSurveyExhausted = 4221
	errCodeSurveyExpired   = 4224
)

// ExtractSurvey mines against a survey. The removed return is true when the
// server declared the survey exhausted or expired; the caller purges it.
func (c *Controller) ExtractSurvey(ctx context.Context, survey *fleet.Survey) (yield *api.ExtractionYield, removed bool, err error) {
	if err := c.Orbit(ctx); err != nil {
		return nil, false, err
	}
	result, err := c.client.ExtractSurvey(ctx, c.Symbol(), survey)
	if err != nil {
		if apiErr, ok := api.AsAPIError(err); ok {
			if apiErr.Code == errCodeSurveyExhausted || apiErr.Code == errCodeSurveyExpired {
				return nil, true, nil
			}
		}
		return nil, false, err
	}
	c.update(func(s *fleet.Ship) {
		s.Cargo = result.Cargo
		s.Cooldown = result.Cooldown
	})
	return &result.Extraction.Yield, false, nil
}

// Siphon extracts gas at the ship's waypoint.
func (c *Controller) Siphon(ctx context.Context) (*api.ExtractionYield, error) {
	if err := c.Orbit(ctx); err != nil {
		return nil, err
	}
	result, err := c.client.Siphon(ctx, c.Symbol())
	if err != nil {
		return nil, err
	}
	c.update(func(s *fleet.Ship) {
		s.Cargo = result.Cargo
		s.Cooldown = result.Cooldown
	})
	return &result.Extraction.Yield, nil
}

// CreateSurveys surveys the asteroid the ship orbits.
func (c *Controller) CreateSurveys(ctx context.Context) ([]fleet.Survey, error) {
	if err := c.Orbit(ctx); err != nil {
		return nil, err
	}
	result, err := c.client.Survey(ctx, c.Symbol())
	if err != nil {
		return nil, err
	}
	c.update(func(s *fleet.Ship) { s.Cooldown = result.Cooldown })
	return result.Surveys, nil
}

// JettisonGood discards cargo overboard.
func (c *Controller) JettisonGood(ctx context.Context, good string, units int64) error {
	cargo, err := c.client.Jettison(ctx, c.Symbol(), good, units)
	if err != nil {
		return err
	}
	c.update(func(s *fleet.Ship) { s.Cargo = *cargo })
	return nil
}

// Scrap docks and sells the ship for scrap. The controller is dead after a
// successful scrap.
func (c *Controller) Scrap(ctx context.Context) error {
	if err := c.WaitForTransit(ctx); err != nil {
		return err
	}
	if err := c.Dock(ctx); err != nil {
		return err
	}
	result, err := c.client.ScrapShip(ctx, c.Symbol())
	if err != nil {
		return err
	}
	c.agent.UpdateAgent(&result.Agent)
	log.Printf("[%s] scrapped for %d credits", c.Symbol(), result.Transaction.TotalPrice)
	return nil
}

// SupplyConstruction docks and feeds carried goods into the local
// construction site, updating the universe's cached site state.
func (c *Controller) SupplyConstruction(ctx context.Context, good string, units int64) error {
	if err := c.Dock(ctx); err != nil {
		return err
	}
	result, err := c.client.SupplyConstruction(ctx, c.Waypoint(), c.Symbol(), good, units)
	if err != nil {
		return err
	}
	c.update(func(s *fleet.Ship) { s.Cargo = result.Cargo })
	c.universe.UpdateConstruction(&result.Construction)
	log.Printf("[%s] supplied %d %s to %s", c.Symbol(), units, good, c.Waypoint())
	return nil
}

// DeliverContract delivers carried goods toward a contract.
func (c *Controller) DeliverContract(ctx context.Context, contractID, good string, units int64) error {
	if err := c.Dock(ctx); err != nil {
		return err
	}
	result, err := c.client.DeliverContract(ctx, contractID, c.Symbol(), good, units)
	if err != nil {
		return err
	}
	c.update(func(s *fleet.Ship) { s.Cargo = result.Cargo })
	c.agent.UpdateContract(&result.Contract)
	return nil
}

// TransferTo hands cargo to another of the agent's ships at the same
// waypoint.
func (c *Controller) TransferTo(ctx context.Context, toShip, good string, units int64) error {
	if err := c.Orbit(ctx); err != nil {
		return err
	}
	cargo, err := c.client.TransferCargo(ctx, c.Symbol(), toShip, good, units)
	if err != nil {
		return err
	}
	c.update(func(s *fleet.Ship) { s.Cargo = *cargo })
	return nil
}

// ReceiveTransfer adjusts the local cargo mirror after another ship
// transferred goods in.
func (c *Controller) ReceiveTransfer(good string, units int64) {
	c.update(func(s *fleet.Ship) {
		s.Cargo.Units += units
		for i := range s.Cargo.Inventory {
			if s.Cargo.Inventory[i].Symbol == good {
				s.Cargo.Inventory[i].Units += units
				return
			}
		}
		s.Cargo.Inventory = append(s.Cargo.Inventory, fleet.ShipCargoItem{Symbol: good, Units: units})
	})
}

// JumpTo traverses the jump gate the ship sits on to a connected gate.
func (c *Controller) JumpTo(ctx context.Context, gate shared.WaypointSymbol) error {
	if err := c.WaitForCooldown(ctx); err != nil {
		return err
	}
	if err := c.Orbit(ctx); err != nil {
		return err
	}
	result, err := c.client.Jump(ctx, c.Symbol(), gate)
	if err != nil {
		return err
	}
	c.update(func(s *fleet.Ship) {
		s.Nav = result.Nav
		s.Fuel = result.Fuel
		s.Cooldown = result.Cooldown
	})
	log.Printf("[%s] jumped to %s", c.Symbol(), gate)
	return c.WaitForTransit(ctx)
}

// WarpTo warps the ship to a waypoint in another system. The caller ensures
// the tank covers the warp distance.
func (c *Controller) WarpTo(ctx context.Context, waypoint shared.WaypointSymbol) error {
	if err := c.SetFlightMode(ctx, fleet.FlightModeCruise); err != nil {
		return err
	}
	if err := c.Orbit(ctx); err != nil {
		return err
	}
	result, err := c.client.Warp(ctx, c.Symbol(), waypoint)
	if err != nil {
		return err
	}
	c.update(func(s *fleet.Ship) {
		s.Nav = result.Nav
		s.Fuel = result.Fuel
		s.Cooldown = result.Cooldown
	})
	log.Printf("[%s] warping to %s", c.Symbol(), waypoint)
	return c.WaitForTransit(ctx)
}

// ChartJumpGate reads the gate's connections while on site and records them
// in the universe cache.
func (c *Controller) ChartJumpGate(ctx context.Context) error {
	gate, err := c.client.GetJumpGate(ctx, c.Waypoint())
	if err != nil {
		return err
	}
	c.universe.MarkGateCharted(gate)
	return nil
}
