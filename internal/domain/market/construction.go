package market

import "github.com/whyando/spacetraders/internal/domain/shared"

// ConstructionMaterial tracks one required good at a construction site.
type ConstructionMaterial struct {
	TradeSymbol string `json:"tradeSymbol"`
	Required    int64  `json:"required"`
	Fulfilled   int64  `json:"fulfilled"`
}

// Construction is a waypoint's construction site state. A nil *Construction
// in the cache means the waypoint is not under construction.
type Construction struct {
	Symbol     shared.WaypointSymbol  `json:"symbol"`
	Materials  []ConstructionMaterial `json:"materials"`
	IsComplete bool                   `json:"isComplete"`
}

// Material looks up a material by trade symbol, or nil.
func (c *Construction) Material(tradeSymbol string) *ConstructionMaterial {
	for i := range c.Materials {
		if c.Materials[i].TradeSymbol == tradeSymbol {
			return &c.Materials[i]
		}
	}
	return nil
}
