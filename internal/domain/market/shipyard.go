package market

import "github.com/whyando/spacetraders/internal/domain/shared"

// ShipyardShip is one model offered at a shipyard, with its listed price.
type ShipyardShip struct {
	Type          string `json:"type"`
	PurchasePrice int64  `json:"purchasePrice"`
}

// Shipyard is one sampled shipyard payload.
type Shipyard struct {
	Symbol shared.WaypointSymbol `json:"symbol"`
	Ships  []ShipyardShip        `json:"ships"`
}

// ShipyardRemote is the shipyard's static shape: which models it sells.
type ShipyardRemote struct {
	Symbol    shared.WaypointSymbol `json:"symbol"`
	ShipTypes []string              `json:"shipTypes"`
}

func (s *ShipyardRemote) Sells(model string) bool {
	for _, t := range s.ShipTypes {
		if t == model {
			return true
		}
	}
	return false
}
