package api

import (
	"github.com/whyando/spacetraders/internal/domain/fleet"
	"github.com/whyando/spacetraders/internal/domain/market"
	"github.com/whyando/spacetraders/internal/domain/shared"
)

// Envelope types for the API's {"data": ...} and paginated shapes.

type dataEnvelope[T any] struct {
	Data T `json:"data"`
}

type pageMeta struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

type pageEnvelope[T any] struct {
	Data []T      `json:"data"`
	Meta pageMeta `json:"meta"`
}

// StatusResponse is GET /status; ResetDate seeds the slice id.
type StatusResponse struct {
	Status    string `json:"status"`
	ResetDate string `json:"resetDate"`
}

// RegisterResult is the payload of POST /register.
type RegisterResult struct {
	Token string      `json:"token"`
	Agent fleet.Agent `json:"agent"`
}

// apiTraitRef is the {symbol, name, description} shape traits arrive in.
type apiTraitRef struct {
	Symbol string `json:"symbol"`
}

type apiWaypoint struct {
	Symbol              shared.WaypointSymbol `json:"symbol"`
	SystemSymbol        shared.SystemSymbol   `json:"systemSymbol"`
	Type                string                `json:"type"`
	X                   int64                 `json:"x"`
	Y                   int64                 `json:"y"`
	Traits              []apiTraitRef         `json:"traits"`
	IsUnderConstruction bool                  `json:"isUnderConstruction"`
}

func (w apiWaypoint) toDomain() shared.Waypoint {
	traits := make([]string, 0, len(w.Traits))
	for _, t := range w.Traits {
		traits = append(traits, t.Symbol)
	}
	return shared.Waypoint{
		Symbol:              w.Symbol,
		SystemSymbol:        w.SystemSymbol,
		Type:                w.Type,
		X:                   w.X,
		Y:                   w.Y,
		Traits:              traits,
		IsUnderConstruction: w.IsUnderConstruction,
	}
}

type apiSystemWaypoint struct {
	Symbol shared.WaypointSymbol `json:"symbol"`
	Type   string                `json:"type"`
	X      int64                 `json:"x"`
	Y      int64                 `json:"y"`
}

type apiSystem struct {
	Symbol    shared.SystemSymbol `json:"symbol"`
	Type      string              `json:"type"`
	X         int64               `json:"x"`
	Y         int64               `json:"y"`
	Waypoints []apiSystemWaypoint `json:"waypoints"`
}

func (s apiSystem) toDomain() shared.System {
	waypoints := make([]shared.Waypoint, 0, len(s.Waypoints))
	for _, w := range s.Waypoints {
		waypoints = append(waypoints, shared.Waypoint{
			Symbol:       w.Symbol,
			SystemSymbol: s.Symbol,
			Type:         w.Type,
			X:            w.X,
			Y:            w.Y,
		})
	}
	return shared.System{
		Symbol:    s.Symbol,
		Type:      s.Type,
		X:         s.X,
		Y:         s.Y,
		Waypoints: waypoints,
	}
}

type apiMarket struct {
	Symbol     shared.WaypointSymbol `json:"symbol"`
	Imports    []apiTraitRef         `json:"imports"`
	Exports    []apiTraitRef         `json:"exports"`
	Exchange   []apiTraitRef         `json:"exchange"`
	TradeGoods []market.TradeGood    `json:"tradeGoods,omitempty"`
}

func symbolList(refs []apiTraitRef) []string {
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		out = append(out, r.Symbol)
	}
	return out
}

func (m apiMarket) toRemote() market.MarketRemote {
	return market.MarketRemote{
		Symbol:   m.Symbol,
		Imports:  symbolList(m.Imports),
		Exports:  symbolList(m.Exports),
		Exchange: symbolList(m.Exchange),
	}
}

func (m apiMarket) toSampled() *market.Market {
	if m.TradeGoods == nil {
		return nil
	}
	return &market.Market{Symbol: m.Symbol, TradeGoods: m.TradeGoods}
}

type apiShipType struct {
	Type string `json:"type"`
}

type apiShipyard struct {
	Symbol    shared.WaypointSymbol `json:"symbol"`
	ShipTypes []apiShipType         `json:"shipTypes"`
	Ships     []market.ShipyardShip `json:"ships,omitempty"`
}

func (s apiShipyard) toRemote() market.ShipyardRemote {
	types := make([]string, 0, len(s.ShipTypes))
	for _, t := range s.ShipTypes {
		types = append(types, t.Type)
	}
	return market.ShipyardRemote{Symbol: s.Symbol, ShipTypes: types}
}

func (s apiShipyard) toSampled() *market.Shipyard {
	if s.Ships == nil {
		return nil
	}
	return &market.Shipyard{Symbol: s.Symbol, Ships: s.Ships}
}

// JumpGate is GET .../jump-gate: the gate's outbound connections.
type JumpGate struct {
	Symbol      shared.WaypointSymbol   `json:"symbol"`
	Connections []shared.WaypointSymbol `json:"connections"`
}

// Transaction is the market transaction attached to trade responses.
type Transaction struct {
	WaypointSymbol shared.WaypointSymbol `json:"waypointSymbol"`
	TradeSymbol    string                `json:"tradeSymbol"`
	Type           string                `json:"type"`
	Units          int64                 `json:"units"`
	PricePerUnit   int64                 `json:"pricePerUnit"`
	TotalPrice     int64                 `json:"totalPrice"`
}

// TradeResult is the shared shape of purchase/sell/refuel style responses.
type TradeResult struct {
	Agent       fleet.Agent     `json:"agent"`
	Cargo       fleet.ShipCargo `json:"cargo"`
	Transaction Transaction     `json:"transaction"`
}

// RefuelResult is POST .../refuel.
type RefuelResult struct {
	Agent       fleet.Agent    `json:"agent"`
	Fuel        fleet.ShipFuel `json:"fuel"`
	Transaction Transaction    `json:"transaction"`
}

// NavResult is POST .../navigate and PATCH .../nav.
type NavResult struct {
	Nav  fleet.ShipNav  `json:"nav"`
	Fuel fleet.ShipFuel `json:"fuel"`
}

// WarpResult is POST .../warp and .../jump.
type WarpResult struct {
	Nav      fleet.ShipNav      `json:"nav"`
	Fuel     fleet.ShipFuel     `json:"fuel"`
	Cooldown fleet.ShipCooldown `json:"cooldown"`
}

// ExtractionYield is the good and units produced by one extraction.
type ExtractionYield struct {
	Symbol string `json:"symbol"`
	Units  int64  `json:"units"`
}

// ExtractionResult is POST .../extract/survey and .../siphon.
type ExtractionResult struct {
	Cargo      fleet.ShipCargo    `json:"cargo"`
	Cooldown   fleet.ShipCooldown `json:"cooldown"`
	Extraction struct {
		ShipSymbol string          `json:"shipSymbol"`
		Yield      ExtractionYield `json:"yield"`
	} `json:"extraction"`
}

// SurveyResult is POST .../survey.
type SurveyResult struct {
	Surveys  []fleet.Survey     `json:"surveys"`
	Cooldown fleet.ShipCooldown `json:"cooldown"`
}

// PurchaseShipResult is POST /my/ships.
type PurchaseShipResult struct {
	Agent       fleet.Agent `json:"agent"`
	Ship        fleet.Ship  `json:"ship"`
	Transaction struct {
		WaypointSymbol shared.WaypointSymbol `json:"waypointSymbol"`
		ShipType       string                `json:"shipType"`
		Price          int64                 `json:"price"`
	} `json:"transaction"`
}

// ScrapResult is POST .../scrap.
type ScrapResult struct {
	Agent       fleet.Agent `json:"agent"`
	Transaction Transaction `json:"transaction"`
}

// ContractDeliverResult is POST /my/contracts/{id}/deliver.
type ContractDeliverResult struct {
	Contract fleet.Contract  `json:"contract"`
	Cargo    fleet.ShipCargo `json:"cargo"`
}

// ContractAgentResult is contract accept/fulfill.
type ContractAgentResult struct {
	Agent    fleet.Agent    `json:"agent"`
	Contract fleet.Contract `json:"contract"`
}

// SupplyConstructionResult is POST .../construction/supply.
type SupplyConstructionResult struct {
	Construction market.Construction `json:"construction"`
	Cargo        fleet.ShipCargo     `json:"cargo"`
}
