package routing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whyando/spacetraders/internal/domain/fleet"
	"github.com/whyando/spacetraders/internal/domain/shared"
)

func marketWaypoint(symbol string, x, y int64) shared.Waypoint {
	return shared.Waypoint{
		Symbol:       shared.WaypointSymbol(symbol),
		SystemSymbol: "X1-TEST",
		Type:         "PLANET",
		X:            x,
		Y:            y,
		Traits:       []string{shared.TraitMarketplace},
	}
}

func plainWaypoint(symbol string, x, y int64) shared.Waypoint {
	return shared.Waypoint{
		Symbol:       shared.WaypointSymbol(symbol),
		SystemSymbol: "X1-TEST",
		Type:         "ASTEROID",
		X:            x,
		Y:            y,
	}
}

func TestWaypointDistance(t *testing.T) {
	a := marketWaypoint("X1-TEST-A", 0, 0)
	b := marketWaypoint("X1-TEST-B", 30, 40)
	coincident := marketWaypoint("X1-TEST-C", 0, 0)

	assert.Equal(t, int64(0), a.Distance(&a))
	assert.Equal(t, int64(50), a.Distance(&b))
	assert.Equal(t, int64(50), b.Distance(&a))

	// Distinct waypoints are never at distance zero.
	assert.Equal(t, int64(1), a.Distance(&coincident))
}

func TestEdgeBetweenSelectsFlightMode(t *testing.T) {
	a := marketWaypoint("X1-TEST-A", 0, 0)
	b := marketWaypoint("X1-TEST-B", 30, 40)

	// Burn needs twice the distance in fuel.
	edge, ok := EdgeBetween(&a, &b, 10, 100)
	require.True(t, ok)
	assert.Equal(t, fleet.FlightModeBurn, edge.FlightMode)
	assert.Equal(t, int64(50), edge.Distance)
	assert.Equal(t, int64(100), edge.FuelCost)
	assert.Equal(t, int64(78), edge.TravelDuration)

	// One unit short of Burn falls back to Cruise.
	edge, ok = EdgeBetween(&a, &b, 10, 99)
	require.True(t, ok)
	assert.Equal(t, fleet.FlightModeCruise, edge.FlightMode)
	assert.Equal(t, int64(50), edge.FuelCost)
	assert.Equal(t, int64(140), edge.TravelDuration)

	edge, ok = EdgeBetween(&a, &b, 10, 50)
	require.True(t, ok)
	assert.Equal(t, fleet.FlightModeCruise, edge.FlightMode)

	// Below the distance no mode is feasible.
	_, ok = EdgeBetween(&a, &b, 10, 49)
	assert.False(t, ok)
}

func TestRouteBetweenMarkets(t *testing.T) {
	pathfinder := NewPathfinder([]shared.Waypoint{
		marketWaypoint("X1-TEST-M1", 0, 0),
		marketWaypoint("X1-TEST-M2", 30, 40),
	})

	route, err := pathfinder.Route("X1-TEST-M1", "X1-TEST-M2", 10, 100, 100)
	require.NoError(t, err)

	require.Len(t, route.Hops, 1)
	assert.Equal(t, shared.WaypointSymbol("X1-TEST-M2"), route.Hops[0].Waypoint)
	assert.Equal(t, fleet.FlightModeBurn, route.Hops[0].Edge.FlightMode)
	assert.Equal(t, int64(78), route.MinTravelDuration)
	assert.Equal(t, int64(0), route.ReqTerminalFuel)
}

func TestRouteToNonMarketReservesEscapeFuel(t *testing.T) {
	pathfinder := NewPathfinder([]shared.Waypoint{
		marketWaypoint("X1-TEST-M1", 0, 0),
		marketWaypoint("X1-TEST-M2", 30, 40),
		plainWaypoint("X1-TEST-N", 60, 80),
	})

	route, err := pathfinder.Route("X1-TEST-M1", "X1-TEST-N", 10, 60, 100)
	require.NoError(t, err)

	// Direct M1->N (distance 100) cannot fit the 100-50 escape-reduced
	// budget, so the route fuels through M2.
	require.Len(t, route.Hops, 2)
	assert.Equal(t, shared.WaypointSymbol("X1-TEST-M2"), route.Hops[0].Waypoint)
	assert.Equal(t, shared.WaypointSymbol("X1-TEST-N"), route.Hops[1].Waypoint)
	assert.Equal(t, int64(50), route.ReqTerminalFuel)

	first := route.Hops[0]
	assert.True(t, first.SrcIsMarket)
	assert.True(t, first.DstIsMarket)
	assert.Equal(t, fleet.FlightModeBurn, first.Edge.FlightMode)

	last := route.Hops[1]
	assert.True(t, last.SrcIsMarket)
	assert.False(t, last.DstIsMarket)
	assert.Equal(t, fleet.FlightModeCruise, last.Edge.FlightMode)
	assert.Equal(t, int64(50), last.Edge.FuelCost)

	assert.Equal(t, first.Edge.TravelDuration+last.Edge.TravelDuration, route.MinTravelDuration)
}

func TestRouteFromNonMarketUsesStartingFuel(t *testing.T) {
	pathfinder := NewPathfinder([]shared.Waypoint{
		plainWaypoint("X1-TEST-N", 0, 0),
		marketWaypoint("X1-TEST-M1", 30, 40),
		marketWaypoint("X1-TEST-M2", 90, 120),
	})

	// 50 fuel in the tank reaches M1 at Cruise but not M2 (distance 150).
	route, err := pathfinder.Route("X1-TEST-N", "X1-TEST-M2", 10, 50, 400)
	require.NoError(t, err)

	require.Len(t, route.Hops, 2)
	assert.Equal(t, shared.WaypointSymbol("X1-TEST-M1"), route.Hops[0].Waypoint)
	assert.Equal(t, fleet.FlightModeCruise, route.Hops[0].Edge.FlightMode)
	assert.Equal(t, shared.WaypointSymbol("X1-TEST-M2"), route.Hops[1].Waypoint)
	assert.Equal(t, fleet.FlightModeBurn, route.Hops[1].Edge.FlightMode)
}

func TestRouteNoFeasiblePath(t *testing.T) {
	pathfinder := NewPathfinder([]shared.Waypoint{
		marketWaypoint("X1-TEST-M1", 0, 0),
		marketWaypoint("X1-TEST-M2", 3000, 4000),
	})

	_, err := pathfinder.Route("X1-TEST-M1", "X1-TEST-M2", 10, 100, 100)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoRoute))
}

func TestRouteUnknownWaypoint(t *testing.T) {
	pathfinder := NewPathfinder([]shared.Waypoint{
		marketWaypoint("X1-TEST-M1", 0, 0),
	})

	_, err := pathfinder.Route("X1-TEST-M1", "X1-TEST-NOPE", 10, 100, 100)
	assert.Error(t, err)
}

func TestTravelMatrix(t *testing.T) {
	pathfinder := NewPathfinder([]shared.Waypoint{
		marketWaypoint("X1-TEST-M1", 0, 0),
		marketWaypoint("X1-TEST-M2", 30, 40),
		marketWaypoint("X1-TEST-M3", 60, 80),
	})

	durations, distances, err := pathfinder.TravelMatrix(
		[]shared.WaypointSymbol{"X1-TEST-M1", "X1-TEST-M2", "X1-TEST-M3"}, 100, 10)
	require.NoError(t, err)

	assert.Equal(t, int64(0), durations[0][0])
	// Direct Burn hops of 50 each.
	assert.Equal(t, int64(78), durations[0][1])
	assert.Equal(t, int64(78), durations[1][2])
	assert.Equal(t, int64(50), distances[0][1])
	// M1->M3 is 100 apart; a full tank only Burns 50, so the best path
	// chains two Burn hops through M2.
	assert.Equal(t, int64(156), durations[0][2])
	assert.Equal(t, int64(100), distances[0][2])
}
