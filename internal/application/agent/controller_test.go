package agent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whyando/spacetraders/internal/adapters/api"
	"github.com/whyando/spacetraders/internal/adapters/persistence"
	applogistics "github.com/whyando/spacetraders/internal/application/logistics"
	"github.com/whyando/spacetraders/internal/application/universe"
	"github.com/whyando/spacetraders/internal/domain/fleet"
	"github.com/whyando/spacetraders/internal/domain/ledger"
	"github.com/whyando/spacetraders/internal/domain/shared"
	"github.com/whyando/spacetraders/internal/infrastructure/config"
	"github.com/whyando/spacetraders/test/helpers"
)

func newTestController(t *testing.T, credits int64) *Controller {
	t.Helper()
	t.Setenv("AGENT_CALLSIGN", "TESTAGENT")
	cfg, err := config.Load()
	require.NoError(t, err)

	store := persistence.NewKVStore(helpers.NewTestDB(t))
	creditLedger := ledger.NewLedger()
	u := universe.New(nil, nil)
	tasks := applogistics.NewManager(applogistics.ManagerConfig{System: "X1-TEST"}, u, creditLedger, store, nil, nil)
	clock := shared.NewMockClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	agent := fleet.Agent{Symbol: "TESTAGENT", Headquarters: "X1-TEST-A1", Credits: credits}
	return NewController(cfg, nil, u, creditLedger, store, tasks, nil, agent, nil, clock)
}

func TestAdvanceEraBelowThreshold(t *testing.T) {
	c := newTestController(t, 799_999)

	require.NoError(t, c.advanceEra(context.Background()))

	assert.Equal(t, fleet.EraStartingSystem1, c.era())
	_, ok, err := persistence.GetValue[fleet.AgentState](context.Background(), c.store, c.stateKey())
	require.NoError(t, err)
	assert.False(t, ok, "no transition should be persisted")
}

func TestAdvanceEraAtThreshold(t *testing.T) {
	c := newTestController(t, 800_000)

	require.NoError(t, c.advanceEra(context.Background()))
	assert.Equal(t, fleet.EraStartingSystem2, c.era())

	state, ok, err := persistence.GetValue[fleet.AgentState](context.Background(), c.store, c.stateKey())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, fleet.EraStartingSystem2, state.Era)

	// The machine is at a fixed point; a second pass changes nothing.
	require.NoError(t, c.advanceEra(context.Background()))
	assert.Equal(t, fleet.EraStartingSystem2, c.era())
}

func TestAdvanceEraReservationsCount(t *testing.T) {
	c := newTestController(t, 850_000)
	c.ledger.ReserveCredits("JUMPGATE_COSTS", 500_000)

	require.NoError(t, c.advanceEra(context.Background()))

	// 850k in the bank but only 350k available.
	assert.Equal(t, fleet.EraStartingSystem1, c.era())
}

func TestEraOverridePinsEra(t *testing.T) {
	t.Setenv("ERA_OVERRIDE", "StartingSystem1")
	c := newTestController(t, 5_000_000)

	require.NoError(t, c.advanceEra(context.Background()))

	assert.Equal(t, fleet.EraStartingSystem1, c.era())
	_, ok, err := persistence.GetValue[fleet.AgentState](context.Background(), c.store, c.stateKey())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpdateAgentMirrorsCreditsIntoLedger(t *testing.T) {
	c := newTestController(t, 100_000)

	c.UpdateAgent(&fleet.Agent{Symbol: "TESTAGENT", Credits: 123_456})

	assert.Equal(t, int64(123_456), c.Agent().Credits)
	assert.Equal(t, int64(123_456), c.ledger.Credits())
}

func TestClearGateReservationRequiresChartedGate(t *testing.T) {
	c := newTestController(t, 100_000)
	gate := shared.WaypointSymbol("X1-AA-GATE")
	c.gateReservations["SHIP-1"] = gate

	err := c.ClearGateReservation(context.Background(), "SHIP-1")
	assert.Error(t, err, "gate is still uncharted")

	c.universe.MarkGateCharted(&api.JumpGate{Symbol: gate})
	require.NoError(t, c.ClearGateReservation(context.Background(), "SHIP-1"))

	persisted, ok, err := persistence.GetValue[map[string]shared.WaypointSymbol](
		context.Background(), c.store, c.gateReservationsKey())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, persisted)
}

func TestSystemsByHopDistance(t *testing.T) {
	graph := map[shared.SystemSymbol][]shared.SystemSymbol{
		"X1-A": {"X1-B", "X1-C"},
		"X1-B": {"X1-D"},
	}

	order := systemsByHopDistance(graph, "X1-A")

	assert.Equal(t, []shared.SystemSymbol{"X1-A", "X1-B", "X1-C", "X1-D"}, order)
}
