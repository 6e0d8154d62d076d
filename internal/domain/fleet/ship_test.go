package fleet

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShipCargoAccessorsOnSnapshot(t *testing.T) {
	snapshot := func() ShipCargo {
		return ShipCargo{
			Capacity: 80,
			Units:    50,
			Inventory: []ShipCargoItem{
				{Symbol: "IRON", Units: 30},
				{Symbol: "FUEL", Units: 20},
			},
		}
	}

	// Controllers hand out cargo by value, so the accessors must work on
	// snapshots returned straight from a call.
	assert.Equal(t, int64(20), snapshot().GoodCount("FUEL"))
	assert.Equal(t, int64(0), snapshot().GoodCount("GOLD"))
	assert.Equal(t, int64(30), snapshot().SpaceAvailable())
	assert.Equal(t, map[string]int64{"IRON": 30, "FUEL": 20}, snapshot().Map())
}
