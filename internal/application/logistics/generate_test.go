package logistics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/whyando/spacetraders/internal/domain/logistics"
	"github.com/whyando/spacetraders/internal/domain/market"
	"github.com/whyando/spacetraders/internal/domain/shared"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func sampledAt(ts time.Time, m market.Market) *market.WithTimestamp[market.Market] {
	return &market.WithTimestamp[market.Market]{Timestamp: ts, Data: m}
}

func activity(a market.Activity) *market.Activity { return &a }

func baseInput() GenerationInput {
	return GenerationInput{
		System:        "X1-TEST",
		IsStartSystem: true,
		Now:           testNow,
		CargoCapacity: 50,
		MinProfit:     1,
	}
}

func taskByID(t *testing.T, tasks []domain.Task, id string) *domain.Task {
	t.Helper()
	for i := range tasks {
		if tasks[i].ID == id {
			return &tasks[i]
		}
	}
	return nil
}

func TestMarketRefreshValueBands(t *testing.T) {
	_, worth := marketRefreshValue(15*time.Minute, true)
	assert.False(t, worth)

	value, worth := marketRefreshValue(30*time.Minute, true)
	assert.True(t, worth)
	assert.Equal(t, int64(1_000), value)

	value, worth = marketRefreshValue(45*time.Minute, true)
	assert.True(t, worth)
	assert.Equal(t, int64(3_000), value)

	value, worth = marketRefreshValue(60*time.Minute, true)
	assert.True(t, worth)
	assert.Equal(t, int64(5_000), value)

	value, worth = marketRefreshValue(0, false)
	assert.True(t, worth)
	assert.Equal(t, int64(5_000), value)
}

func TestRefreshTasksSkipProbedAndPureExchange(t *testing.T) {
	in := baseInput()
	in.Markets = []MarketSnapshot{
		{
			Waypoint: "X1-TEST-M1",
			Remote:   market.MarketRemote{Symbol: "X1-TEST-M1", Imports: []string{"FOOD"}},
		},
		{
			Waypoint: "X1-TEST-M2",
			Remote:   market.MarketRemote{Symbol: "X1-TEST-M2", Imports: []string{"FOOD"}},
		},
		{
			Waypoint: "X1-TEST-FUELSTOP",
			Remote:   market.MarketRemote{Symbol: "X1-TEST-FUELSTOP", Exchange: []string{"FUEL"}},
		},
	}
	in.ProbedWaypoints = map[shared.WaypointSymbol]bool{"X1-TEST-M2": true}

	tasks, err := GenerateTasks(in)
	require.NoError(t, err)

	assert.NotNil(t, taskByID(t, tasks, "refreshmarket_X1-TEST-M1"))
	assert.Nil(t, taskByID(t, tasks, "refreshmarket_X1-TEST-M2"))
	assert.Nil(t, taskByID(t, tasks, "refreshmarket_X1-TEST-FUELSTOP"))
}

func TestTaskIDsArePrefixedOutsideStartSystem(t *testing.T) {
	in := baseInput()
	in.IsStartSystem = false
	in.Markets = []MarketSnapshot{
		{
			Waypoint: "X1-TEST-M1",
			Remote:   market.MarketRemote{Symbol: "X1-TEST-M1", Imports: []string{"FOOD"}},
		},
	}

	tasks, err := GenerateTasks(in)
	require.NoError(t, err)

	assert.NotNil(t, taskByID(t, tasks, "X1-TEST/refreshmarket_X1-TEST-M1"))
}

func TestArbitrageSelection(t *testing.T) {
	in := baseInput()
	in.Markets = []MarketSnapshot{
		{
			Waypoint: "X1-TEST-M1",
			Remote:   market.MarketRemote{Symbol: "X1-TEST-M1", Exports: []string{"X"}},
			Sampled: sampledAt(testNow, market.Market{
				Symbol: "X1-TEST-M1",
				TradeGoods: []market.TradeGood{{
					Symbol:        "X",
					Type:          market.TradeExport,
					Supply:        market.SupplyHigh,
					Activity:      activity(market.ActivityStrong),
					TradeVolume:   60,
					PurchasePrice: 100,
					SellPrice:     95,
				}},
			}),
		},
		{
			Waypoint: "X1-TEST-M2",
			Remote:   market.MarketRemote{Symbol: "X1-TEST-M2", Imports: []string{"X"}},
			Sampled: sampledAt(testNow, market.Market{
				Symbol: "X1-TEST-M2",
				TradeGoods: []market.TradeGood{{
					Symbol:      "X",
					Type:        market.TradeImport,
					Supply:      market.SupplyLimited,
					TradeVolume: 40,
					SellPrice:   160,
				}},
			}),
		},
	}

	tasks, err := GenerateTasks(in)
	require.NoError(t, err)

	trade := taskByID(t, tasks, "trade_X")
	require.NotNil(t, trade)
	require.NotNil(t, trade.Transport)
	assert.Equal(t, shared.WaypointSymbol("X1-TEST-M1"), trade.Transport.Src)
	assert.Equal(t, shared.WaypointSymbol("X1-TEST-M2"), trade.Transport.Dest)
	assert.Equal(t, int64(40), trade.Transport.SrcAction.Units)
	assert.Equal(t, int64(2_400), trade.Value)
}

func TestArbitrageRequiresHighSupplyWhenActivityStrong(t *testing.T) {
	in := baseInput()
	in.Markets = []MarketSnapshot{
		{
			Waypoint: "X1-TEST-M1",
			Remote:   market.MarketRemote{Symbol: "X1-TEST-M1", Exports: []string{"X"}},
			Sampled: sampledAt(testNow, market.Market{
				Symbol: "X1-TEST-M1",
				TradeGoods: []market.TradeGood{{
					Symbol:        "X",
					Type:          market.TradeExport,
					Supply:        market.SupplyModerate,
					Activity:      activity(market.ActivityStrong),
					TradeVolume:   60,
					PurchasePrice: 100,
				}},
			}),
		},
		{
			Waypoint: "X1-TEST-M2",
			Remote:   market.MarketRemote{Symbol: "X1-TEST-M2", Imports: []string{"X"}},
			Sampled: sampledAt(testNow, market.Market{
				Symbol: "X1-TEST-M2",
				TradeGoods: []market.TradeGood{{
					Symbol:      "X",
					Type:        market.TradeImport,
					Supply:      market.SupplyLimited,
					TradeVolume: 40,
					SellPrice:   160,
				}},
			}),
		},
	}

	tasks, err := GenerateTasks(in)
	require.NoError(t, err)
	assert.Nil(t, taskByID(t, tasks, "trade_X"))
}

// fabChainInput builds a system with a fabricator, an iron smeltery, an
// iron exporter and an incomplete FAB_MATS construction site.
func fabChainInput(fabIronSupply market.Supply, fabIronVolume int64) GenerationInput {
	in := baseInput()
	in.Construction = &market.Construction{
		Symbol: "X1-TEST-GATE",
		Materials: []market.ConstructionMaterial{
			{TradeSymbol: "FAB_MATS", Required: 4000, Fulfilled: 100},
		},
	}
	in.Markets = []MarketSnapshot{
		{
			Waypoint: "X1-TEST-FAB",
			Remote: market.MarketRemote{
				Symbol:  "X1-TEST-FAB",
				Imports: []string{"IRON", "QUARTZ_SAND"},
				Exports: []string{"FAB_MATS"},
			},
			Sampled: sampledAt(testNow, market.Market{
				Symbol: "X1-TEST-FAB",
				TradeGoods: []market.TradeGood{
					{
						Symbol:        "FAB_MATS",
						Type:          market.TradeExport,
						Supply:        market.SupplyModerate,
						TradeVolume:   20,
						PurchasePrice: 200,
					},
					{
						Symbol:      "IRON",
						Type:        market.TradeImport,
						Supply:      fabIronSupply,
						TradeVolume: fabIronVolume,
						SellPrice:   60,
					},
				},
			}),
		},
		{
			Waypoint: "X1-TEST-SMELTERY",
			Remote: market.MarketRemote{
				Symbol:  "X1-TEST-SMELTERY",
				Imports: []string{"IRON_ORE"},
				Exports: []string{"IRON"},
			},
			Sampled: sampledAt(testNow, market.Market{
				Symbol: "X1-TEST-SMELTERY",
				TradeGoods: []market.TradeGood{{
					Symbol:        "IRON",
					Type:          market.TradeExport,
					Supply:        market.SupplyModerate,
					Activity:      activity(market.ActivityStrong),
					TradeVolume:   35,
					PurchasePrice: 40,
				}},
			}),
		},
		{
			Waypoint: "X1-TEST-GENERAL",
			Remote:   market.MarketRemote{Symbol: "X1-TEST-GENERAL", Imports: []string{"IRON"}},
			Sampled: sampledAt(testNow, market.Market{
				Symbol: "X1-TEST-GENERAL",
				TradeGoods: []market.TradeGood{{
					Symbol:      "IRON",
					Type:        market.TradeImport,
					Supply:      market.SupplyScarce,
					TradeVolume: 100,
					SellPrice:   500,
				}},
			}),
		},
	}
	in.ImportVolumeCaps = map[string]int64{"IRON": 120}
	return in
}

func TestConstructionRedirectsIronToFabricator(t *testing.T) {
	in := fabChainInput(market.SupplyLimited, 60)

	tasks, err := GenerateTasks(in)
	require.NoError(t, err)

	// IRON is constant-flow while the chain runs: the Strong/Moderate
	// exporter still qualifies, and the sale lands at the fabricator
	// despite the general market's better price.
	trade := taskByID(t, tasks, "trade_IRON")
	require.NotNil(t, trade)
	assert.Equal(t, shared.WaypointSymbol("X1-TEST-SMELTERY"), trade.Transport.Src)
	assert.Equal(t, shared.WaypointSymbol("X1-TEST-FAB"), trade.Transport.Dest)

	// The gate material itself gets a delivery from the fabricator.
	construction := taskByID(t, tasks, "construction_FAB_MATS")
	require.NotNil(t, construction)
	assert.Equal(t, shared.WaypointSymbol("X1-TEST-FAB"), construction.Transport.Src)
	assert.Equal(t, shared.WaypointSymbol("X1-TEST-GATE"), construction.Transport.Dest)
	assert.Equal(t, domain.ActionDeliverConstruction, construction.Transport.DestAction.Kind)
	assert.Equal(t, int64(20), construction.Transport.SrcAction.Units)
}

func TestConstructionIronCapBlocksSaturatedFabricator(t *testing.T) {
	// Volume at the cap plus Moderate supply: no sell candidate.
	in := fabChainInput(market.SupplyModerate, 120)
	tasks, err := GenerateTasks(in)
	require.NoError(t, err)
	assert.Nil(t, taskByID(t, tasks, "trade_IRON"))

	// Same volume but supply back down to Limited: the sale is emitted.
	in = fabChainInput(market.SupplyLimited, 120)
	tasks, err = GenerateTasks(in)
	require.NoError(t, err)
	assert.NotNil(t, taskByID(t, tasks, "trade_IRON"))
}

func TestConstructionChainRequiresMarkets(t *testing.T) {
	in := baseInput()
	in.Construction = &market.Construction{
		Symbol: "X1-TEST-GATE",
		Materials: []market.ConstructionMaterial{
			{TradeSymbol: "FAB_MATS", Required: 4000},
		},
	}

	_, err := GenerateTasks(in)
	assert.Error(t, err)
}

func TestNoGateModeDisablesConstruction(t *testing.T) {
	in := fabChainInput(market.SupplyLimited, 60)
	in.NoGateMode = true
	// Without constant-flow status the Strong exporter needs High supply
	// to qualify as a buy.
	in.Markets[1].Sampled.Data.TradeGoods[0].Supply = market.SupplyHigh

	tasks, err := GenerateTasks(in)
	require.NoError(t, err)

	assert.Nil(t, taskByID(t, tasks, "construction_FAB_MATS"))
	// With the chain inactive IRON sells wherever it pays best.
	trade := taskByID(t, tasks, "trade_IRON")
	require.NotNil(t, trade)
	assert.Equal(t, shared.WaypointSymbol("X1-TEST-GENERAL"), trade.Transport.Dest)
}

func TestBuyShipsTasks(t *testing.T) {
	in := baseInput()
	in.PurchaseWaypoints = []shared.WaypointSymbol{"X1-TEST-SHIPYARD"}

	tasks, err := GenerateTasks(in)
	require.NoError(t, err)

	task := taskByID(t, tasks, "buyships_X1-TEST-SHIPYARD")
	require.NotNil(t, task)
	assert.Equal(t, int64(200_000), task.Value)
	assert.Equal(t, domain.ActionTryBuyShips, task.Visit.Action.Kind)
}
