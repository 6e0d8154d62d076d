package steps

import (
	"context"
	"errors"
	"fmt"

	"github.com/cucumber/godog"

	"github.com/whyando/spacetraders/internal/domain/routing"
	"github.com/whyando/spacetraders/internal/domain/shared"
)

type routingContext struct {
	waypoints []shared.Waypoint
	edge      routing.Edge
	edgeOK    bool
	route     *routing.Route
	routeErr  error
}

func (rc *routingContext) reset() {
	rc.waypoints = nil
	rc.edge = routing.Edge{}
	rc.edgeOK = false
	rc.route = nil
	rc.routeErr = nil
}

func (rc *routingContext) theFollowingWaypoints(table *godog.Table) error {
	for i, row := range table.Rows {
		if i == 0 {
			continue // Skip header
		}
		var x, y int64
		fmt.Sscanf(row.Cells[1].Value, "%d", &x)
		fmt.Sscanf(row.Cells[2].Value, "%d", &y)
		w := shared.Waypoint{
			Symbol:       shared.WaypointSymbol(row.Cells[0].Value),
			SystemSymbol: "X1-BDD",
			Type:         "PLANET",
			X:            x,
			Y:            y,
		}
		if row.Cells[3].Value == "yes" {
			w.Traits = []string{shared.TraitMarketplace}
		}
		rc.waypoints = append(rc.waypoints, w)
	}
	return nil
}

func (rc *routingContext) find(symbol string) *shared.Waypoint {
	for i := range rc.waypoints {
		if rc.waypoints[i].Symbol == shared.WaypointSymbol(symbol) {
			return &rc.waypoints[i]
		}
	}
	return nil
}

func (rc *routingContext) bestEdgeIsComputed(from, to string, speed, budget int) error {
	a := rc.find(from)
	b := rc.find(to)
	if a == nil || b == nil {
		return fmt.Errorf("waypoint %s or %s not defined", from, to)
	}
	rc.edge, rc.edgeOK = routing.EdgeBetween(a, b, int64(speed), int64(budget))
	return nil
}

func (rc *routingContext) edgeFlightModeShouldBe(mode string) error {
	if !rc.edgeOK {
		return fmt.Errorf("no edge was available")
	}
	if string(rc.edge.FlightMode) != mode {
		return fmt.Errorf("expected flight mode %s, got %s", mode, rc.edge.FlightMode)
	}
	return nil
}

func (rc *routingContext) edgeFuelCostShouldBe(cost int) error {
	if !rc.edgeOK {
		return fmt.Errorf("no edge was available")
	}
	if rc.edge.FuelCost != int64(cost) {
		return fmt.Errorf("expected fuel cost %d, got %d", cost, rc.edge.FuelCost)
	}
	return nil
}

func (rc *routingContext) edgeDurationShouldBe(seconds int) error {
	if !rc.edgeOK {
		return fmt.Errorf("no edge was available")
	}
	if rc.edge.TravelDuration != int64(seconds) {
		return fmt.Errorf("expected duration %d, got %d", seconds, rc.edge.TravelDuration)
	}
	return nil
}

func (rc *routingContext) noEdgeShouldBeAvailable() error {
	if rc.edgeOK {
		return fmt.Errorf("expected no edge, got %s at %d fuel", rc.edge.FlightMode, rc.edge.FuelCost)
	}
	return nil
}

func (rc *routingContext) routeIsPlanned(from, to string, speed, fuel, capacity int) error {
	pathfinder := routing.NewPathfinder(rc.waypoints)
	rc.route, rc.routeErr = pathfinder.Route(
		shared.WaypointSymbol(from), shared.WaypointSymbol(to),
		int64(speed), int64(fuel), int64(capacity),
	)
	return nil
}

func (rc *routingContext) routeShouldPassThrough(first, second string) error {
	if rc.routeErr != nil {
		return fmt.Errorf("route planning failed: %w", rc.routeErr)
	}
	if len(rc.route.Hops) != 2 {
		return fmt.Errorf("expected 2 hops, got %d", len(rc.route.Hops))
	}
	if rc.route.Hops[0].Waypoint != shared.WaypointSymbol(first) {
		return fmt.Errorf("expected first hop %s, got %s", first, rc.route.Hops[0].Waypoint)
	}
	if rc.route.Hops[1].Waypoint != shared.WaypointSymbol(second) {
		return fmt.Errorf("expected second hop %s, got %s", second, rc.route.Hops[1].Waypoint)
	}
	return nil
}

func (rc *routingContext) requiredTerminalFuelShouldBe(fuel int) error {
	if rc.routeErr != nil {
		return fmt.Errorf("route planning failed: %w", rc.routeErr)
	}
	if rc.route.ReqTerminalFuel != int64(fuel) {
		return fmt.Errorf("expected terminal fuel %d, got %d", fuel, rc.route.ReqTerminalFuel)
	}
	return nil
}

func (rc *routingContext) routePlanningShouldFail() error {
	if rc.routeErr == nil {
		return fmt.Errorf("expected route planning to fail")
	}
	if !errors.Is(rc.routeErr, routing.ErrNoRoute) {
		return fmt.Errorf("expected no-route error, got: %v", rc.routeErr)
	}
	return nil
}

// InitializeRoutingScenario registers edge selection and route planning steps.
func InitializeRoutingScenario(ctx *godog.ScenarioContext) {
	rc := &routingContext{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		rc.reset()
		return ctx, nil
	})

	ctx.Step(`^the following waypoints:$`, rc.theFollowingWaypoints)
	ctx.Step(`^the best edge from "([^"]*)" to "([^"]*)" is computed at speed (\d+) with fuel budget (\d+)$`, rc.bestEdgeIsComputed)
	ctx.Step(`^the edge flight mode should be "([^"]*)"$`, rc.edgeFlightModeShouldBe)
	ctx.Step(`^the edge fuel cost should be (\d+)$`, rc.edgeFuelCostShouldBe)
	ctx.Step(`^the edge duration should be (\d+) seconds$`, rc.edgeDurationShouldBe)
	ctx.Step(`^no edge should be available$`, rc.noEdgeShouldBeAvailable)
	ctx.Step(`^a route is planned from "([^"]*)" to "([^"]*)" at speed (\d+) with fuel (\d+) of capacity (\d+)$`, rc.routeIsPlanned)
	ctx.Step(`^the route should pass through "([^"]*)" then "([^"]*)"$`, rc.routeShouldPassThrough)
	ctx.Step(`^the required terminal fuel should be (\d+)$`, rc.requiredTerminalFuelShouldBe)
	ctx.Step(`^route planning should fail with no route$`, rc.routePlanningShouldFail)
}
