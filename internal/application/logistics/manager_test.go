package logistics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whyando/spacetraders/internal/adapters/persistence"
	"github.com/whyando/spacetraders/internal/domain/fleet"
	"github.com/whyando/spacetraders/internal/domain/ledger"
	domain "github.com/whyando/spacetraders/internal/domain/logistics"
	"github.com/whyando/spacetraders/internal/domain/shared"
	"github.com/whyando/spacetraders/test/helpers"
)

func newTestManager(t *testing.T, store *persistence.KVStoreGORM) *Manager {
	t.Helper()
	clock := shared.NewMockClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	return NewManager(ManagerConfig{System: "X1-TEST"}, nil, ledger.NewLedger(), store, nil, clock)
}

func refreshTask(waypoint shared.WaypointSymbol) domain.Task {
	return domain.Task{
		ID:    "refresh-market/" + string(waypoint),
		Value: 5_000,
		Visit: &domain.VisitLocation{
			Waypoint: waypoint,
			Action:   domain.Action{Kind: domain.ActionRefreshMarket},
		},
	}
}

func buyShipsTask(waypoint shared.WaypointSymbol) domain.Task {
	return domain.Task{
		ID:    "buy-ships/" + string(waypoint),
		Value: 200_000,
		Visit: &domain.VisitLocation{
			Waypoint: waypoint,
			Action:   domain.Action{Kind: domain.ActionTryBuyShips},
		},
	}
}

func tradeTask(id string, value, units int64) domain.Task {
	return domain.Task{
		ID:    id,
		Value: value,
		Transport: &domain.TransportCargo{
			Src:        "X1-TEST-M1",
			Dest:       "X1-TEST-M2",
			SrcAction:  domain.Action{Kind: domain.ActionBuyGoods, Good: "IRON", Units: units},
			DestAction: domain.Action{Kind: domain.ActionSellGoods, Good: "IRON", Units: units},
		},
	}
}

func constructionTask(id string) domain.Task {
	return domain.Task{
		ID:    id,
		Value: 50_000,
		Transport: &domain.TransportCargo{
			Src:        "X1-TEST-M1",
			Dest:       "X1-TEST-GATE",
			SrcAction:  domain.Action{Kind: domain.ActionBuyGoods, Good: "FAB_MATS", Units: 40},
			DestAction: domain.Action{Kind: domain.ActionDeliverConstruction, Good: "FAB_MATS", Units: 40},
		},
	}
}

func taskIDs(tasks []domain.Task) []string {
	ids := make([]string, 0, len(tasks))
	for i := range tasks {
		ids = append(ids, tasks[i].ID)
	}
	return ids
}

func TestFilterTasksRespectsConfigPermissions(t *testing.T) {
	m := newTestManager(t, persistence.NewKVStore(helpers.NewTestDB(t)))
	tasks := []domain.Task{
		refreshTask("X1-TEST-M1"),
		buyShipsTask("X1-TEST-S1"),
		constructionTask("construction/FAB_MATS"),
		tradeTask("trade/IRON", 30_000, 40),
	}

	bare := m.filterTasks(tasks, TakeTasksRequest{ShipSymbol: "SHIP-1"})
	assert.Equal(t, []string{"trade/IRON"}, taskIDs(bare))

	full := m.filterTasks(tasks, TakeTasksRequest{
		ShipSymbol: "SHIP-1",
		Config: fleet.LogisticsScriptConfig{
			AllowMarketRefresh: true,
			AllowShipbuying:    true,
			AllowConstruction:  true,
		},
	})
	assert.Len(t, full, 4)
}

func TestFilterTasksSkipsTasksHeldByOthers(t *testing.T) {
	m := newTestManager(t, persistence.NewKVStore(helpers.NewTestDB(t)))
	m.inProgress["trade/IRON"] = "OTHER-SHIP"
	m.inProgress["trade/COPPER"] = "SHIP-1"
	tasks := []domain.Task{
		tradeTask("trade/IRON", 30_000, 40),
		tradeTask("trade/COPPER", 20_000, 40),
	}

	out := m.filterTasks(tasks, TakeTasksRequest{ShipSymbol: "SHIP-1"})

	// A ship may re-take a task it already holds.
	assert.Equal(t, []string{"trade/COPPER"}, taskIDs(out))
}

func TestFilterTasksWaypointAllowlist(t *testing.T) {
	m := newTestManager(t, persistence.NewKVStore(helpers.NewTestDB(t)))
	tasks := []domain.Task{
		refreshTask("X1-TEST-M1"),
		refreshTask("X1-TEST-M2"),
	}

	out := m.filterTasks(tasks, TakeTasksRequest{
		ShipSymbol: "SHIP-1",
		Config: fleet.LogisticsScriptConfig{
			AllowMarketRefresh: true,
			WaypointAllowlist:  []shared.WaypointSymbol{"X1-TEST-M2"},
		},
	})

	assert.Equal(t, []string{"refresh-market/X1-TEST-M2"}, taskIDs(out))
}

func TestSetTaskCompletedChecksHolder(t *testing.T) {
	store := persistence.NewKVStore(helpers.NewTestDB(t))
	m := newTestManager(t, store)
	m.inProgress["trade/IRON"] = "SHIP-1"

	err := m.SetTaskCompleted(context.Background(), "SHIP-2", "trade/IRON")
	assert.Error(t, err)
	assert.Equal(t, "SHIP-1", m.InProgress()["trade/IRON"])

	require.NoError(t, m.SetTaskCompleted(context.Background(), "SHIP-1", "trade/IRON"))
	assert.Empty(t, m.InProgress())

	// Completing an unknown task is a no-op.
	assert.NoError(t, m.SetTaskCompleted(context.Background(), "SHIP-1", "trade/IRON"))
}

func TestInProgressSurvivesRestart(t *testing.T) {
	store := persistence.NewKVStore(helpers.NewTestDB(t))
	m := newTestManager(t, store)
	m.inProgress["trade/IRON"] = "SHIP-1"
	require.NoError(t, m.persistInProgress(context.Background()))

	restarted := newTestManager(t, store)
	require.NoError(t, restarted.Load(context.Background()))

	assert.Equal(t, map[string]string{"trade/IRON": "SHIP-1"}, restarted.InProgress())
}

func TestForceAssignPicksBestFittingTask(t *testing.T) {
	tasks := []domain.Task{
		tradeTask("trade/IRON", 90_000, 80), // does not fit a 40-unit hold
		tradeTask("trade/COPPER", 30_000, 40),
		tradeTask("trade/ALUMINUM", 50_000, 40),
	}

	schedule := forceAssign(tasks, 40)

	require.Len(t, schedule, 2)
	assert.Equal(t, []string{"trade/ALUMINUM"}, schedule.TaskIDs())
}

func TestForceAssignNoFittingTask(t *testing.T) {
	tasks := []domain.Task{tradeTask("trade/IRON", 90_000, 80)}

	assert.Nil(t, forceAssign(tasks, 40))
}
