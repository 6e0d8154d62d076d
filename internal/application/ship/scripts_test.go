package ship

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whyando/spacetraders/internal/domain/fleet"
	"github.com/whyando/spacetraders/internal/domain/shared"
)

func TestSystemPath(t *testing.T) {
	graph := map[shared.SystemSymbol][]shared.SystemSymbol{
		"X1-A": {"X1-B"},
		"X1-B": {"X1-A", "X1-C"},
		"X1-C": {"X1-B", "X1-D"},
	}

	path, ok := systemPath(graph, "X1-A", "X1-D")
	require.True(t, ok)
	assert.Equal(t, []shared.SystemSymbol{"X1-A", "X1-B", "X1-C", "X1-D"}, path)
}

func TestSystemPathSameSystem(t *testing.T) {
	path, ok := systemPath(nil, "X1-A", "X1-A")
	require.True(t, ok)
	assert.Equal(t, []shared.SystemSymbol{"X1-A"}, path)
}

func TestSystemPathUnreachable(t *testing.T) {
	graph := map[shared.SystemSymbol][]shared.SystemSymbol{
		"X1-A": {"X1-B"},
	}

	_, ok := systemPath(graph, "X1-A", "X1-Z")
	assert.False(t, ok)
}

func TestRemoveCargo(t *testing.T) {
	cargo := fleet.ShipCargo{
		Capacity: 80,
		Units:    50,
		Inventory: []fleet.ShipCargoItem{
			{Symbol: "IRON_ORE", Units: 30},
			{Symbol: "FUEL", Units: 20},
		},
	}

	out := removeCargo(cargo, "FUEL", 20)
	assert.Equal(t, int64(30), out.Units)
	assert.Equal(t, []fleet.ShipCargoItem{{Symbol: "IRON_ORE", Units: 30}}, out.Inventory)

	partial := removeCargo(cargo, "IRON_ORE", 10)
	assert.Equal(t, int64(40), partial.Units)
	assert.Contains(t, partial.Inventory, fleet.ShipCargoItem{Symbol: "IRON_ORE", Units: 20})
}

func TestCargoEqual(t *testing.T) {
	assert.True(t, cargoEqual(map[string]int64{"IRON": 3}, map[string]int64{"IRON": 3}))
	assert.False(t, cargoEqual(map[string]int64{"IRON": 3}, map[string]int64{"IRON": 4}))
	assert.False(t, cargoEqual(map[string]int64{"IRON": 3}, map[string]int64{}))
	assert.True(t, cargoEqual(nil, map[string]int64{}))
}
