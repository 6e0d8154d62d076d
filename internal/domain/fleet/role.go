package fleet

import "github.com/whyando/spacetraders/internal/domain/shared"

// BehaviorKind enumerates the closed set of ship behaviors a role can demand.
type BehaviorKind string

const (
	BehaviorProbe              BehaviorKind = "Probe"
	BehaviorLogistics          BehaviorKind = "Logistics"
	BehaviorSiphonDrone        BehaviorKind = "SiphonDrone"
	BehaviorSiphonShuttle      BehaviorKind = "SiphonShuttle"
	BehaviorMiningDrone        BehaviorKind = "MiningDrone"
	BehaviorMiningShuttle      BehaviorKind = "MiningShuttle"
	BehaviorMiningSurveyor     BehaviorKind = "MiningSurveyor"
	BehaviorConstructionHauler BehaviorKind = "ConstructionHauler"
	BehaviorJumpgateProbe      BehaviorKind = "JumpgateProbe"
	BehaviorExplorer           BehaviorKind = "Explorer"
)

// Behavior is the role's behavior plus its per-kind configuration. Only the
// config matching Kind is set.
type Behavior struct {
	Kind      BehaviorKind           `json:"kind"`
	Probe     *ProbeScriptConfig     `json:"probe,omitempty"`
	Logistics *LogisticsScriptConfig `json:"logistics,omitempty"`
	Siphon    *SiphonScriptConfig    `json:"siphon,omitempty"`
	Mining    *MiningScriptConfig    `json:"mining,omitempty"`
}

// ProbeScriptConfig lists the waypoints a probe rotates through. A single
// waypoint makes the probe static.
type ProbeScriptConfig struct {
	Waypoints []shared.WaypointSymbol `json:"waypoints"`
}

// LogisticsScriptConfig constrains which tasks a logistics ship may take.
type LogisticsScriptConfig struct {
	UsePlanner         bool                    `json:"usePlanner"`
	AllowMarketRefresh bool                    `json:"allowMarketRefresh"`
	AllowShipbuying    bool                    `json:"allowShipbuying"`
	AllowConstruction  bool                    `json:"allowConstruction"`
	WaypointAllowlist  []shared.WaypointSymbol `json:"waypointAllowlist,omitempty"`
	MinProfit          int64                   `json:"minProfit"`
}

// SiphonScriptConfig places a siphon drone or shuttle at a gas giant.
type SiphonScriptConfig struct {
	GasGiant shared.WaypointSymbol `json:"gasGiant"`
}

// MiningScriptConfig places a mining drone, surveyor or shuttle at an
// asteroid, extracting toward one good.
type MiningScriptConfig struct {
	Asteroid   shared.WaypointSymbol `json:"asteroid"`
	TargetGood string                `json:"targetGood"`
}

// PurchaseCriteria controls how the controller procures a ship for a role.
type PurchaseCriteria struct {
	SystemSymbol      *shared.SystemSymbol `json:"systemSymbol,omitempty"`
	NeverPurchase     bool                 `json:"neverPurchase"`
	RequireCheapest   bool                 `json:"requireCheapest"`
	AllowLogisticTask bool                 `json:"allowLogisticTask"`
}

// ShipConfig is a declarative role: what kind of ship must exist, doing what,
// and how to buy it. The ID is stable across regenerations so persisted
// assignments survive restarts.
type ShipConfig struct {
	ID               string           `json:"id"`
	ShipModel        string           `json:"shipModel"`
	Behavior         Behavior         `json:"behavior"`
	PurchaseCriteria PurchaseCriteria `json:"purchaseCriteria"`
}

// IsStaticProbe reports whether the role parks a probe on a single waypoint
// indefinitely.
func (c *ShipConfig) IsStaticProbe() bool {
	return c.Behavior.Kind == BehaviorProbe &&
		c.Behavior.Probe != nil &&
		len(c.Behavior.Probe.Waypoints) == 1
}
