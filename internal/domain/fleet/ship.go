package fleet

import (
	"fmt"
	"time"

	"github.com/whyando/spacetraders/internal/domain/shared"
)

// NavStatus represents ship navigation status
type NavStatus string

const (
	NavStatusDocked    NavStatus = "DOCKED"
	NavStatusInOrbit   NavStatus = "IN_ORBIT"
	NavStatusInTransit NavStatus = "IN_TRANSIT"
)

// FlightMode controls the fuel/time tradeoff of a navigate call
type FlightMode string

const (
	FlightModeCruise  FlightMode = "CRUISE"
	FlightModeBurn    FlightMode = "BURN"
	FlightModeDrift   FlightMode = "DRIFT"
	FlightModeStealth FlightMode = "STEALTH"
)

// Ship mirrors the API's ship payload. Each ship is owned by exactly one
// executor goroutine; everyone else reads snapshots through ShipCell.
type Ship struct {
	Symbol       string       `json:"symbol"`
	Registration Registration `json:"registration"`
	Nav          ShipNav      `json:"nav"`
	Engine       ShipEngine   `json:"engine"`
	Frame        ShipFrame    `json:"frame"`
	Reactor      ShipReactor  `json:"reactor"`
	Fuel         ShipFuel     `json:"fuel"`
	Cargo        ShipCargo    `json:"cargo"`
	Cooldown     ShipCooldown `json:"cooldown"`
	Mounts       []ShipMount  `json:"mounts"`
}

type Registration struct {
	Role          string `json:"role"`
	FactionSymbol string `json:"factionSymbol"`
}

type ShipNav struct {
	SystemSymbol   shared.SystemSymbol   `json:"systemSymbol"`
	WaypointSymbol shared.WaypointSymbol `json:"waypointSymbol"`
	Status         NavStatus             `json:"status"`
	FlightMode     FlightMode            `json:"flightMode"`
	Route          ShipNavRoute          `json:"route"`
}

type ShipNavRoute struct {
	Origin        RouteEndpoint `json:"origin"`
	Destination   RouteEndpoint `json:"destination"`
	DepartureTime time.Time     `json:"departureTime"`
	Arrival       time.Time     `json:"arrival"`
}

type RouteEndpoint struct {
	Symbol       shared.WaypointSymbol `json:"symbol"`
	SystemSymbol shared.SystemSymbol   `json:"systemSymbol"`
	X            int64                 `json:"x"`
	Y            int64                 `json:"y"`
}

type ShipEngine struct {
	Symbol    string   `json:"symbol"`
	Speed     int64    `json:"speed"`
	Condition *float64 `json:"condition,omitempty"`
}

type ShipFrame struct {
	Symbol    string   `json:"symbol"`
	Condition *float64 `json:"condition,omitempty"`
}

type ShipReactor struct {
	Symbol    string   `json:"symbol"`
	Condition *float64 `json:"condition,omitempty"`
}

type ShipFuel struct {
	Current  int64 `json:"current"`
	Capacity int64 `json:"capacity"`
}

type ShipCargo struct {
	Capacity  int64           `json:"capacity"`
	Units     int64           `json:"units"`
	Inventory []ShipCargoItem `json:"inventory"`
}

type ShipCargoItem struct {
	Symbol string `json:"symbol"`
	Units  int64  `json:"units"`
}

type ShipCooldown struct {
	Expiration *time.Time `json:"expiration,omitempty"`
}

type ShipMount struct {
	Symbol string `json:"symbol"`
}

// GoodCount returns the units of a single good held in cargo.
func (c ShipCargo) GoodCount(good string) int64 {
	for _, item := range c.Inventory {
		if item.Symbol == good {
			return item.Units
		}
	}
	return 0
}

// SpaceAvailable returns the free cargo space.
func (c ShipCargo) SpaceAvailable() int64 {
	return c.Capacity - c.Units
}

// Map returns cargo inventory as good -> units.
func (c ShipCargo) Map() map[string]int64 {
	m := make(map[string]int64, len(c.Inventory))
	for _, item := range c.Inventory {
		m[item.Symbol] = item.Units
	}
	return m
}

func (s *Ship) HasMount(symbol string) bool {
	for _, m := range s.Mounts {
		if m.Symbol == symbol {
			return true
		}
	}
	return false
}

// Model derives the purchasable ship model from frame and mounts. The API
// does not echo the model back on a purchased ship, so assignment matching
// reconstructs it.
func (s *Ship) Model() (string, error) {
	switch s.Frame.Symbol {
	case "FRAME_PROBE":
		return ShipModelProbe, nil
	case "FRAME_LIGHT_FREIGHTER":
		return ShipModelLightHauler, nil
	case "FRAME_FRIGATE":
		return ShipModelCommandFrigate, nil
	case "FRAME_SHUTTLE":
		return ShipModelLightShuttle, nil
	case "FRAME_EXPLORER":
		return ShipModelExplorer, nil
	case "FRAME_MINER":
		return ShipModelOreHound, nil
	case "FRAME_DRONE":
		switch {
		case s.HasMount("MOUNT_GAS_SIPHON_I"):
			return ShipModelSiphonDrone, nil
		case s.HasMount("MOUNT_MINING_LASER_I"):
			return ShipModelMiningDrone, nil
		case s.HasMount("MOUNT_SURVEYOR_I"):
			return ShipModelSurveyor, nil
		}
	}
	return "", fmt.Errorf("unrecognised ship frame %q for ship %s", s.Frame.Symbol, s.Symbol)
}

// Ship model identifiers as listed by shipyards.
const (
	ShipModelProbe          = "SHIP_PROBE"
	ShipModelLightHauler    = "SHIP_LIGHT_HAULER"
	ShipModelCommandFrigate = "SHIP_COMMAND_FRIGATE"
	ShipModelLightShuttle   = "SHIP_LIGHT_SHUTTLE"
	ShipModelSiphonDrone    = "SHIP_SIPHON_DRONE"
	ShipModelMiningDrone    = "SHIP_MINING_DRONE"
	ShipModelSurveyor       = "SHIP_SURVEYOR"
	ShipModelExplorer       = "SHIP_EXPLORER"
	ShipModelOreHound       = "SHIP_ORE_HOUND"
)

// ShipModelSpec carries the static attributes purchasing decisions need.
type ShipModelSpec struct {
	CargoCapacity int64
}

// ShipModels indexes the static spec of every model the orchestrator buys.
var ShipModels = map[string]ShipModelSpec{
	ShipModelProbe:          {CargoCapacity: 0},
	ShipModelLightHauler:    {CargoCapacity: 80},
	ShipModelCommandFrigate: {CargoCapacity: 60},
	ShipModelLightShuttle:   {CargoCapacity: 40},
	ShipModelSiphonDrone:    {CargoCapacity: 15},
	ShipModelMiningDrone:    {CargoCapacity: 15},
	ShipModelSurveyor:       {CargoCapacity: 0},
	ShipModelExplorer:       {CargoCapacity: 40},
	ShipModelOreHound:       {CargoCapacity: 30},
}
