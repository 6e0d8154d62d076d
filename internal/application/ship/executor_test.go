package ship

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whyando/spacetraders/internal/adapters/api"
	"github.com/whyando/spacetraders/internal/adapters/persistence"
	"github.com/whyando/spacetraders/internal/application/universe"
	"github.com/whyando/spacetraders/internal/domain/fleet"
	"github.com/whyando/spacetraders/internal/domain/ledger"
	"github.com/whyando/spacetraders/internal/domain/logistics"
	"github.com/whyando/spacetraders/internal/domain/shared"
	"github.com/whyando/spacetraders/test/helpers"
)

type stubAgentUpdater struct{}

func (stubAgentUpdater) UpdateAgent(*fleet.Agent)       {}
func (stubAgentUpdater) UpdateContract(*fleet.Contract) {}

func dockedShip(cargo fleet.ShipCargo) fleet.Ship {
	return fleet.Ship{
		Symbol: "TESTAGENT-1",
		Nav: fleet.ShipNav{
			SystemSymbol:   "X1-TEST",
			WaypointSymbol: "X1-TEST-A1",
			Status:         fleet.NavStatusDocked,
		},
		Fuel:  fleet.ShipFuel{Current: 400, Capacity: 400},
		Cargo: cargo,
	}
}

func newTestExecutor(t *testing.T, ship fleet.Ship, client *api.Client) (*LogisticsExecutor, *persistence.KVStoreGORM) {
	t.Helper()
	clock := shared.NewMockClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	ctrl := NewController(ship, client, universe.New(nil, nil), ledger.NewLedger(), stubAgentUpdater{}, clock)
	store := persistence.NewKVStore(helpers.NewTestDB(t))
	exec := NewLogisticsExecutor(ctrl, nil, store, nil, fleet.LogisticsScriptConfig{}, clock)
	return exec, store
}

func tradeSchedule() logistics.Schedule {
	return logistics.Schedule{
		{
			Waypoint: "X1-TEST-B2",
			Action:   logistics.Action{Kind: logistics.ActionBuyGoods, Good: "IRON", Units: 10},
		},
		{
			Waypoint:        "X1-TEST-C3",
			Action:          logistics.Action{Kind: logistics.ActionSellGoods, Good: "IRON", Units: 10},
			CompletesTaskID: "trade_IRON",
		},
	}
}

func persistSchedule(t *testing.T, exec *LogisticsExecutor, store *persistence.KVStoreGORM, schedule logistics.Schedule, progress int) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, persistence.SetValue(ctx, store, exec.scheduleKey(), schedule))
	require.NoError(t, persistence.SetValue(ctx, store, exec.progressKey(), progress))
}

// A crash between a buy and its progress write leaves the hold one step
// ahead of the persisted counter, even when that counter still reads zero.
// Resuming must skip the already-executed step instead of buying again.
func TestResumeSkipsExecutedStepAtStart(t *testing.T) {
	ship := dockedShip(fleet.ShipCargo{
		Capacity:  40,
		Units:     10,
		Inventory: []fleet.ShipCargoItem{{Symbol: "IRON", Units: 10}},
	})
	exec, store := newTestExecutor(t, ship, nil)
	persistSchedule(t, exec, store, tradeSchedule(), 0)

	schedule, progress, err := exec.resume(context.Background())
	require.NoError(t, err)
	require.Len(t, schedule, 2)
	assert.Equal(t, 1, progress)
}

func TestResumeKeepsMatchingProgress(t *testing.T) {
	ship := dockedShip(fleet.ShipCargo{
		Capacity:  40,
		Units:     10,
		Inventory: []fleet.ShipCargoItem{{Symbol: "IRON", Units: 10}},
	})
	exec, store := newTestExecutor(t, ship, nil)
	persistSchedule(t, exec, store, tradeSchedule(), 1)

	_, progress, err := exec.resume(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, progress)
}

func TestResumeEmptyHoldAtStart(t *testing.T) {
	exec, store := newTestExecutor(t, dockedShip(fleet.ShipCargo{Capacity: 40}), nil)
	persistSchedule(t, exec, store, tradeSchedule(), 0)

	_, progress, err := exec.resume(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, progress)
}

func TestResumeSellsFuelSurplus(t *testing.T) {
	var sold []struct {
		Symbol string `json:"symbol"`
		Units  int64  `json:"units"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/my/ships/TESTAGENT-1/sell", r.URL.Path)
		var body struct {
			Symbol string `json:"symbol"`
			Units  int64  `json:"units"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		sold = append(sold, body)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"agent": map[string]any{"symbol": "TESTAGENT", "credits": 100_000},
				"cargo": map[string]any{
					"capacity":  40,
					"units":     10,
					"inventory": []map[string]any{{"symbol": "IRON", "units": 10}},
				},
				"transaction": map[string]any{
					"tradeSymbol": body.Symbol,
					"units":       body.Units,
					"totalPrice":  60 * body.Units,
				},
			},
		})
	}))
	defer srv.Close()

	ship := dockedShip(fleet.ShipCargo{
		Capacity: 40,
		Units:    13,
		Inventory: []fleet.ShipCargoItem{
			{Symbol: "IRON", Units: 10},
			{Symbol: "FUEL", Units: 3},
		},
	})
	exec, store := newTestExecutor(t, ship, api.NewClient(srv.URL, nil))
	persistSchedule(t, exec, store, tradeSchedule(), 1)

	_, progress, err := exec.resume(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, progress)

	require.Len(t, sold, 1)
	assert.Equal(t, "FUEL", sold[0].Symbol)
	assert.Equal(t, int64(3), sold[0].Units)
	assert.Equal(t, map[string]int64{"IRON": 10}, exec.ctrl.Ship().Cargo.Map())
}

func TestResumeRejectsUnexplainedCargo(t *testing.T) {
	ship := dockedShip(fleet.ShipCargo{
		Capacity:  40,
		Units:     5,
		Inventory: []fleet.ShipCargoItem{{Symbol: "GOLD", Units: 5}},
	})
	exec, store := newTestExecutor(t, ship, nil)
	persistSchedule(t, exec, store, tradeSchedule(), 0)

	_, _, err := exec.resume(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match schedule step")
}
