package logistics

import (
	"fmt"
	"time"

	domain "github.com/whyando/spacetraders/internal/domain/logistics"
	"github.com/whyando/spacetraders/internal/domain/market"
	"github.com/whyando/spacetraders/internal/domain/shared"
	"github.com/whyando/spacetraders/pkg/utils"
)

const (
	taskValueBuyShips     = 200_000
	taskValueConstruction = 50_000
	taskValueShipyard     = 5_000
	marketRefreshMax      = 5_000
)

// MarketSnapshot is one market's static shape plus its freshest priced
// sample, if any ship ever took one.
type MarketSnapshot struct {
	Waypoint shared.WaypointSymbol
	Remote   market.MarketRemote
	Sampled  *market.WithTimestamp[market.Market]
}

// ShipyardSnapshot mirrors MarketSnapshot for shipyards.
type ShipyardSnapshot struct {
	Waypoint shared.WaypointSymbol
	Remote   market.ShipyardRemote
	Sampled  *market.WithTimestamp[market.Shipyard]
}

// GenerationInput is everything task generation reads. It is a value so the
// generator stays a pure function of its arguments.
type GenerationInput struct {
	System        shared.SystemSymbol
	IsStartSystem bool
	Now           time.Time

	Markets   []MarketSnapshot
	Shipyards []ShipyardSnapshot

	// Waypoints covered by a parked probe; visiting them is never worth
	// a hauler's time.
	ProbedWaypoints map[shared.WaypointSymbol]bool

	// Shipyard waypoints where a pending ship purchase waits for a
	// hauler to show up.
	PurchaseWaypoints []shared.WaypointSymbol

	// The system's jump gate construction site, nil when absent or done.
	Construction *market.Construction

	CargoCapacity int64
	MinProfit     int64

	NoGateMode          bool
	DisableTradingTasks bool

	// Per-good trade volume caps at chain import markets.
	ImportVolumeCaps map[string]int64
}

// taskID builds the deterministic id: bare in the start system, prefixed
// with the system symbol elsewhere.
func (in *GenerationInput) taskID(kind, suffix string) string {
	prefix := ""
	if !in.IsStartSystem {
		prefix = string(in.System) + "/"
	}
	return fmt.Sprintf("%s%s_%s", prefix, kind, suffix)
}

// marketRefreshValue prices a refresh visit by snapshot age. Fresh markets
// are not worth the trip; value ramps linearly between 30 and 60 minutes.
func marketRefreshValue(age time.Duration, sampled bool) (int64, bool) {
	if !sampled {
		return marketRefreshMax, true
	}
	minutes := age.Minutes()
	switch {
	case minutes <= 15:
		return 0, false
	case minutes < 30:
		return 1_000, true
	case minutes < 60:
		return 1_000 + int64((minutes-30)*4_000/30), true
	default:
		return marketRefreshMax, true
	}
}

// chain describes the supply-chain redirection active while the jump gate
// needs a material: which goods may only be sold where, which goods flow
// constantly regardless of price, and which import markets are capped.
type chain struct {
	sellPermits  map[string][]shared.WaypointSymbol
	constantFlow map[string]bool
	volumeCaps   map[shared.WaypointSymbol]map[string]int64
}

func newChain() *chain {
	return &chain{
		sellPermits:  map[string][]shared.WaypointSymbol{},
		constantFlow: map[string]bool{},
		volumeCaps:   map[shared.WaypointSymbol]map[string]int64{},
	}
}

func (c *chain) permitSell(good string, waypoints []shared.WaypointSymbol) {
	c.sellPermits[good] = append(c.sellPermits[good], waypoints...)
}

func (c *chain) capImport(waypoint shared.WaypointSymbol, good string, cap int64) {
	if c.volumeCaps[waypoint] == nil {
		c.volumeCaps[waypoint] = map[string]int64{}
	}
	c.volumeCaps[waypoint][good] = cap
}

func (c *chain) sellAllowed(good string, waypoint shared.WaypointSymbol) bool {
	permitted, restricted := c.sellPermits[good]
	if !restricted {
		return true
	}
	for _, w := range permitted {
		if w == waypoint {
			return true
		}
	}
	return false
}

func (c *chain) importCap(waypoint shared.WaypointSymbol, good string) (int64, bool) {
	caps, ok := c.volumeCaps[waypoint]
	if !ok {
		return 0, false
	}
	cap, ok := caps[good]
	return cap, ok
}

// exportersOf returns markets whose static shape exports the good.
func exportersOf(markets []MarketSnapshot, good string) []shared.WaypointSymbol {
	var out []shared.WaypointSymbol
	for i := range markets {
		if markets[i].Remote.DoesExport(good) {
			out = append(out, markets[i].Waypoint)
		}
	}
	return out
}

// importersOf returns markets whose static shape imports the good.
func importersOf(markets []MarketSnapshot, good string) []shared.WaypointSymbol {
	var out []shared.WaypointSymbol
	for i := range markets {
		if markets[i].Remote.DoesImport(good) {
			out = append(out, markets[i].Waypoint)
		}
	}
	return out
}

// buildChain derives the redirection rules for the gate's incomplete
// materials. Errors when a required chain stage has no market at all.
func buildChain(in *GenerationInput) (*chain, error) {
	c := newChain()
	if in.Construction == nil || in.Construction.IsComplete || in.NoGateMode {
		return c, nil
	}

	needs := func(good string) bool {
		m := in.Construction.Material(good)
		return m != nil && m.Fulfilled < m.Required
	}

	if needs("FAB_MATS") {
		fabricators := exportersOf(in.Markets, "FAB_MATS")
		smelteries := importersOf(in.Markets, "IRON_ORE")
		if len(fabricators) == 0 || len(smelteries) == 0 {
			return nil, fmt.Errorf("system %s has no complete FAB_MATS chain (%d fabricators, %d smelteries)",
				in.System, len(fabricators), len(smelteries))
		}
		c.permitSell("FAB_MATS", fabricators)
		c.permitSell("IRON", fabricators)
		c.permitSell("QUARTZ_SAND", fabricators)
		c.permitSell("IRON_ORE", smelteries)
		c.constantFlow["IRON_ORE"] = true
		c.constantFlow["QUARTZ_SAND"] = true
		c.constantFlow["IRON"] = true
		if cap, ok := in.ImportVolumeCaps["IRON"]; ok {
			for _, w := range fabricators {
				c.capImport(w, "IRON", cap)
			}
		}
	}

	if needs("ADVANCED_CIRCUITRY") {
		circuitMakers := exportersOf(in.Markets, "ADVANCED_CIRCUITRY")
		electronics := exportersOf(in.Markets, "ELECTRONICS")
		microprocessors := exportersOf(in.Markets, "MICROPROCESSORS")
		smelteries := importersOf(in.Markets, "COPPER_ORE")
		if len(circuitMakers) == 0 || len(electronics) == 0 || len(microprocessors) == 0 || len(smelteries) == 0 {
			return nil, fmt.Errorf("system %s has no complete ADVANCED_CIRCUITRY chain", in.System)
		}
		c.permitSell("ADVANCED_CIRCUITRY", circuitMakers)
		c.permitSell("ELECTRONICS", circuitMakers)
		c.permitSell("MICROPROCESSORS", circuitMakers)
		c.permitSell("SILICON_CRYSTALS", append(append([]shared.WaypointSymbol{}, electronics...), microprocessors...))
		c.permitSell("COPPER", append(append([]shared.WaypointSymbol{}, electronics...), microprocessors...))
		c.permitSell("COPPER_ORE", smelteries)
		for _, good := range []string{"SILICON_CRYSTALS", "COPPER", "COPPER_ORE", "ELECTRONICS", "MICROPROCESSORS"} {
			c.constantFlow[good] = true
		}
	}

	return c, nil
}

// GenerateTasks produces the system's current task set: market and shipyard
// refreshes, pending ship purchases, arbitrage trades, and construction
// deliveries.
func GenerateTasks(in GenerationInput) ([]domain.Task, error) {
	redirect, err := buildChain(&in)
	if err != nil {
		return nil, err
	}

	var tasks []domain.Task
	tasks = append(tasks, refreshTasks(&in)...)
	tasks = append(tasks, buyShipsTasks(&in)...)
	if !in.DisableTradingTasks {
		tasks = append(tasks, tradeTasks(&in, redirect)...)
	}
	tasks = append(tasks, constructionTasks(&in, redirect)...)
	return tasks, nil
}

func refreshTasks(in *GenerationInput) []domain.Task {
	var tasks []domain.Task
	for i := range in.Markets {
		m := &in.Markets[i]
		if in.ProbedWaypoints[m.Waypoint] || m.Remote.IsPureExchange() {
			continue
		}
		var age time.Duration
		sampled := m.Sampled != nil
		if sampled {
			age = in.Now.Sub(m.Sampled.Timestamp)
		}
		value, worth := marketRefreshValue(age, sampled)
		if !worth {
			continue
		}
		tasks = append(tasks, domain.Task{
			ID:    in.taskID("refreshmarket", string(m.Waypoint)),
			Value: value,
			Visit: &domain.VisitLocation{
				Waypoint: m.Waypoint,
				Action:   domain.Action{Kind: domain.ActionRefreshMarket},
			},
		})
	}
	for i := range in.Shipyards {
		s := &in.Shipyards[i]
		if in.ProbedWaypoints[s.Waypoint] || s.Sampled != nil {
			continue
		}
		tasks = append(tasks, domain.Task{
			ID:    in.taskID("refreshshipyard", string(s.Waypoint)),
			Value: taskValueShipyard,
			Visit: &domain.VisitLocation{
				Waypoint: s.Waypoint,
				Action:   domain.Action{Kind: domain.ActionRefreshShipyard},
			},
		})
	}
	return tasks
}

func buyShipsTasks(in *GenerationInput) []domain.Task {
	var tasks []domain.Task
	for _, w := range in.PurchaseWaypoints {
		tasks = append(tasks, domain.Task{
			ID:    in.taskID("buyships", string(w)),
			Value: taskValueBuyShips,
			Visit: &domain.VisitLocation{
				Waypoint: w,
				Action:   domain.Action{Kind: domain.ActionTryBuyShips},
			},
		})
	}
	return tasks
}

type tradeSide struct {
	waypoint shared.WaypointSymbol
	price    int64
	volume   int64
}

// bestBuy finds the cheapest qualified purchase of the good. Exports must
// carry at least Moderate supply; Strong activity tightens that to High for
// ordinary goods since strong exporters restock into their own demand.
// Constant-flow chain intermediates skip the tightening. Exchanges always
// qualify.
func bestBuy(in *GenerationInput, redirect *chain, good string) *tradeSide {
	var best *tradeSide
	for i := range in.Markets {
		m := &in.Markets[i]
		if m.Sampled == nil {
			continue
		}
		g := m.Sampled.Data.Good(good)
		if g == nil {
			continue
		}

		qualified := false
		switch {
		case m.Remote.DoesExport(good) && g.Type == market.TradeExport:
			required := market.SupplyModerate
			if g.Activity != nil && *g.Activity == market.ActivityStrong && !redirect.constantFlow[good] {
				required = market.SupplyHigh
			}
			qualified = g.Supply.AtLeast(required)
		case contains(m.Remote.Exchange, good) && g.Type == market.TradeExchange:
			qualified = true
		}
		if !qualified {
			continue
		}
		if best == nil || g.PurchasePrice < best.price {
			best = &tradeSide{waypoint: m.Waypoint, price: g.PurchasePrice, volume: g.TradeVolume}
		}
	}
	return best
}

// bestSell finds the best qualified sale of the good, honoring the chain's
// sell permits and import volume caps.
func bestSell(in *GenerationInput, redirect *chain, good string, excluding shared.WaypointSymbol) *tradeSide {
	var best *tradeSide
	for i := range in.Markets {
		m := &in.Markets[i]
		if m.Waypoint == excluding || m.Sampled == nil {
			continue
		}
		if !redirect.sellAllowed(good, m.Waypoint) {
			continue
		}
		g := m.Sampled.Data.Good(good)
		if g == nil {
			continue
		}

		qualified := false
		switch {
		case m.Remote.DoesImport(good) && g.Type == market.TradeImport:
			maxSupply := market.SupplyModerate
			if cap, capped := redirect.importCap(m.Waypoint, good); capped && g.TradeVolume >= cap {
				maxSupply = market.SupplyLimited
			}
			qualified = g.Supply.AtMost(maxSupply)
		case contains(m.Remote.Exchange, good) && g.Type == market.TradeExchange:
			qualified = true
		}
		if !qualified {
			continue
		}
		if best == nil || g.SellPrice > best.price {
			best = &tradeSide{waypoint: m.Waypoint, price: g.SellPrice, volume: g.TradeVolume}
		}
	}
	return best
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// tradeTasks emits one arbitrage task per good with a profitable buy/sell
// pair in the system.
func tradeTasks(in *GenerationInput, redirect *chain) []domain.Task {
	goods := map[string]bool{}
	for i := range in.Markets {
		if in.Markets[i].Sampled == nil {
			continue
		}
		for _, g := range in.Markets[i].Sampled.Data.TradeGoods {
			goods[g.Symbol] = true
		}
	}

	var tasks []domain.Task
	for good := range goods {
		buy := bestBuy(in, redirect, good)
		if buy == nil {
			continue
		}
		sell := bestSell(in, redirect, good, buy.waypoint)
		if sell == nil {
			continue
		}

		units := utils.Min3(buy.volume, sell.volume, in.CargoCapacity)
		profit := (sell.price - buy.price) * units
		if units <= 0 || profit < in.MinProfit {
			continue
		}
		tasks = append(tasks, domain.Task{
			ID:    in.taskID("trade", good),
			Value: profit,
			Transport: &domain.TransportCargo{
				Src:        buy.waypoint,
				Dest:       sell.waypoint,
				SrcAction:  domain.Action{Kind: domain.ActionBuyGoods, Good: good, Units: units},
				DestAction: domain.Action{Kind: domain.ActionSellGoods, Good: good, Units: units},
			},
		})
	}
	return tasks
}

// constructionTasks emits deliveries of the gate's incomplete materials from
// their producing markets to the site.
func constructionTasks(in *GenerationInput, redirect *chain) []domain.Task {
	if in.Construction == nil || in.Construction.IsComplete || in.NoGateMode {
		return nil
	}

	var tasks []domain.Task
	for _, material := range in.Construction.Materials {
		remaining := material.Required - material.Fulfilled
		if remaining <= 0 {
			continue
		}
		buy := bestBuy(in, redirect, material.TradeSymbol)
		if buy == nil {
			continue
		}
		units := utils.Min3(buy.volume, remaining, in.CargoCapacity)
		if units <= 0 {
			continue
		}
		tasks = append(tasks, domain.Task{
			ID:    in.taskID("construction", material.TradeSymbol),
			Value: taskValueConstruction,
			Transport: &domain.TransportCargo{
				Src:        buy.waypoint,
				Dest:       in.Construction.Symbol,
				SrcAction:  domain.Action{Kind: domain.ActionBuyGoods, Good: material.TradeSymbol, Units: units},
				DestAction: domain.Action{Kind: domain.ActionDeliverConstruction, Good: material.TradeSymbol, Units: units},
			},
		})
	}
	return tasks
}
