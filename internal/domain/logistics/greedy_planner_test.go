package logistics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whyando/spacetraders/internal/domain/shared"
)

func testMatrix(t *testing.T) *TravelMatrix {
	t.Helper()
	matrix, err := NewTravelMatrix(
		[]shared.WaypointSymbol{"X1-S-A", "X1-S-B", "X1-S-C"},
		[][]int64{
			{0, 100, 200},
			{100, 0, 100},
			{200, 100, 0},
		},
	)
	require.NoError(t, err)
	return matrix
}

func TestGreedyPlannerOrdersByValueRate(t *testing.T) {
	matrix := testMatrix(t)
	ship := PlannerShip{Symbol: "SHIP-1", Waypoint: "X1-S-A", CargoCapacity: 40}
	tasks := []Task{
		{
			ID:    "refreshmarket_X1-S-C",
			Value: 1000,
			Visit: &VisitLocation{Waypoint: "X1-S-C", Action: Action{Kind: ActionRefreshMarket}},
		},
		{
			ID:    "refreshmarket_X1-S-B",
			Value: 5000,
			Visit: &VisitLocation{Waypoint: "X1-S-B", Action: Action{Kind: ActionRefreshMarket}},
		},
	}

	schedule, err := NewGreedyPlanner().Plan(ship, tasks, matrix, PlannerConstraints{PlanLength: 15 * time.Minute})
	require.NoError(t, err)

	require.Len(t, schedule, 2)
	assert.Equal(t, shared.WaypointSymbol("X1-S-B"), schedule[0].Waypoint)
	assert.Equal(t, "refreshmarket_X1-S-B", schedule[0].CompletesTaskID)
	assert.Equal(t, shared.WaypointSymbol("X1-S-C"), schedule[1].Waypoint)
}

func TestGreedyPlannerExpandsTransportTasks(t *testing.T) {
	matrix := testMatrix(t)
	ship := PlannerShip{Symbol: "SHIP-1", Waypoint: "X1-S-A", CargoCapacity: 40}
	tasks := []Task{
		{
			ID:    "trade_IRON",
			Value: 2400,
			Transport: &TransportCargo{
				Src:        "X1-S-B",
				Dest:       "X1-S-C",
				SrcAction:  Action{Kind: ActionBuyGoods, Good: "IRON", Units: 40},
				DestAction: Action{Kind: ActionSellGoods, Good: "IRON", Units: 40},
			},
		},
	}

	schedule, err := NewGreedyPlanner().Plan(ship, tasks, matrix, PlannerConstraints{PlanLength: 15 * time.Minute})
	require.NoError(t, err)

	require.Len(t, schedule, 2)
	assert.Equal(t, ActionBuyGoods, schedule[0].Action.Kind)
	assert.Empty(t, schedule[0].CompletesTaskID)
	assert.Equal(t, ActionSellGoods, schedule[1].Action.Kind)
	assert.Equal(t, "trade_IRON", schedule[1].CompletesTaskID)
	assert.Equal(t, []string{"trade_IRON"}, schedule.TaskIDs())
}

func TestGreedyPlannerStampsCompletionOffsets(t *testing.T) {
	matrix := testMatrix(t)
	ship := PlannerShip{Symbol: "SHIP-1", Waypoint: "X1-S-A", CargoCapacity: 40}
	tasks := []Task{
		{
			ID:    "trade_IRON",
			Value: 2400,
			Transport: &TransportCargo{
				Src:        "X1-S-B",
				Dest:       "X1-S-C",
				SrcAction:  Action{Kind: ActionBuyGoods, Good: "IRON", Units: 40},
				DestAction: Action{Kind: ActionSellGoods, Good: "IRON", Units: 40},
			},
		},
		{
			ID:    "refreshmarket_X1-S-C",
			Value: 100,
			Visit: &VisitLocation{Waypoint: "X1-S-C", Action: Action{Kind: ActionRefreshMarket}},
		},
	}

	schedule, err := NewGreedyPlanner().Plan(ship, tasks, matrix, PlannerConstraints{PlanLength: 15 * time.Minute})
	require.NoError(t, err)

	require.Len(t, schedule, 3)
	// Pickup at B: 100s travel from A plus 60s handling.
	assert.Equal(t, int64(160), schedule[0].Timestamp)
	// Drop-off at C: another 100s travel plus handling.
	assert.Equal(t, int64(320), schedule[1].Timestamp)
	// Market refresh at C: handling only, no travel.
	assert.Equal(t, int64(380), schedule[2].Timestamp)
}

func TestGreedyPlannerSkipsOversizedAndUncoveredTasks(t *testing.T) {
	matrix := testMatrix(t)
	ship := PlannerShip{Symbol: "SHIP-1", Waypoint: "X1-S-A", CargoCapacity: 10}
	tasks := []Task{
		{
			ID:    "trade_IRON",
			Value: 9000,
			Transport: &TransportCargo{
				Src:        "X1-S-B",
				Dest:       "X1-S-C",
				SrcAction:  Action{Kind: ActionBuyGoods, Good: "IRON", Units: 40},
				DestAction: Action{Kind: ActionSellGoods, Good: "IRON", Units: 40},
			},
		},
		{
			ID:    "refreshmarket_X1-S-Z",
			Value: 5000,
			Visit: &VisitLocation{Waypoint: "X1-S-Z", Action: Action{Kind: ActionRefreshMarket}},
		},
	}

	schedule, err := NewGreedyPlanner().Plan(ship, tasks, matrix, PlannerConstraints{PlanLength: 15 * time.Minute})
	require.NoError(t, err)
	assert.Empty(t, schedule)
}

func TestGreedyPlannerHonorsPlanLength(t *testing.T) {
	matrix := testMatrix(t)
	ship := PlannerShip{Symbol: "SHIP-1", Waypoint: "X1-S-A", CargoCapacity: 40}
	tasks := []Task{
		{
			ID:    "refreshmarket_X1-S-B",
			Value: 5000,
			Visit: &VisitLocation{Waypoint: "X1-S-B", Action: Action{Kind: ActionRefreshMarket}},
		},
		{
			ID:    "refreshmarket_X1-S-C",
			Value: 5000,
			Visit: &VisitLocation{Waypoint: "X1-S-C", Action: Action{Kind: ActionRefreshMarket}},
		},
	}

	// 200 seconds covers one visit (100 travel + 60 handling) but not two.
	schedule, err := NewGreedyPlanner().Plan(ship, tasks, matrix, PlannerConstraints{PlanLength: 200 * time.Second})
	require.NoError(t, err)
	require.Len(t, schedule, 1)
	assert.Equal(t, shared.WaypointSymbol("X1-S-B"), schedule[0].Waypoint)
}

func TestScheduleExpectedCargo(t *testing.T) {
	schedule := Schedule{
		{Waypoint: "X1-S-B", Action: Action{Kind: ActionBuyGoods, Good: "IRON", Units: 40}},
		{Waypoint: "X1-S-C", Action: Action{Kind: ActionSellGoods, Good: "IRON", Units: 40}},
		{Waypoint: "X1-S-C", Action: Action{Kind: ActionRefreshMarket}},
	}

	assert.Empty(t, schedule.ExpectedCargo(0))
	assert.Equal(t, map[string]int64{"IRON": 40}, schedule.ExpectedCargo(1))
	assert.Empty(t, schedule.ExpectedCargo(2))
	assert.Empty(t, schedule.ExpectedCargo(3))
}
