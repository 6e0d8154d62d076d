package universe

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/whyando/spacetraders/internal/adapters/api"
	"github.com/whyando/spacetraders/internal/domain/fleet"
	"github.com/whyando/spacetraders/internal/domain/market"
	"github.com/whyando/spacetraders/internal/domain/routing"
	"github.com/whyando/spacetraders/internal/domain/shared"
)

// Universe is the read-mostly cache of galaxy state: systems, waypoints,
// markets, shipyards, jump gates and construction sites. Remote (static)
// shapes are fetched once; sampled (priced) snapshots are pushed in by ships
// physically present at a waypoint.
type Universe struct {
	client *api.Client
	clock  shared.Clock

	mu              sync.RWMutex
	systems         map[shared.SystemSymbol]*shared.System
	waypoints       map[shared.SystemSymbol][]shared.Waypoint
	marketsRemote   map[shared.WaypointSymbol]market.MarketRemote
	markets         map[shared.WaypointSymbol]*market.WithTimestamp[market.Market]
	shipyardsRemote map[shared.WaypointSymbol]market.ShipyardRemote
	shipyards       map[shared.WaypointSymbol]*market.WithTimestamp[market.Shipyard]
	construction    map[shared.WaypointSymbol]*market.WithTimestamp[*market.Construction]
	jumpGates       map[shared.WaypointSymbol]*api.JumpGate
	unchartedGates  map[shared.WaypointSymbol]bool
	pathfinders     map[shared.SystemSymbol]*routing.Pathfinder
	factions        map[string]fleet.Faction
}

// New creates an empty universe cache. A nil clock means RealClock.
func New(client *api.Client, clock shared.Clock) *Universe {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &Universe{
		client:          client,
		clock:           clock,
		systems:         map[shared.SystemSymbol]*shared.System{},
		waypoints:       map[shared.SystemSymbol][]shared.Waypoint{},
		marketsRemote:   map[shared.WaypointSymbol]market.MarketRemote{},
		markets:         map[shared.WaypointSymbol]*market.WithTimestamp[market.Market]{},
		shipyardsRemote: map[shared.WaypointSymbol]market.ShipyardRemote{},
		shipyards:       map[shared.WaypointSymbol]*market.WithTimestamp[market.Shipyard]{},
		construction:    map[shared.WaypointSymbol]*market.WithTimestamp[*market.Construction]{},
		jumpGates:       map[shared.WaypointSymbol]*api.JumpGate{},
		unchartedGates:  map[shared.WaypointSymbol]bool{},
		pathfinders:     map[shared.SystemSymbol]*routing.Pathfinder{},
		factions:        map[string]fleet.Faction{},
	}
}

// LoadGalaxy downloads the full system dump. Called once at startup.
func (u *Universe) LoadGalaxy(ctx context.Context) error {
	systems, err := u.client.GetAllSystems(ctx)
	if err != nil {
		return fmt.Errorf("failed to load galaxy: %w", err)
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	for i := range systems {
		s := systems[i]
		u.systems[s.Symbol] = &s
	}
	log.Printf("[universe] loaded %d systems", len(systems))
	return nil
}

// Systems returns all known systems.
func (u *Universe) Systems() []*shared.System {
	u.mu.RLock()
	defer u.mu.RUnlock()
	out := make([]*shared.System, 0, len(u.systems))
	for _, s := range u.systems {
		out = append(out, s)
	}
	return out
}

// System returns a system by symbol, or nil.
func (u *Universe) System(symbol shared.SystemSymbol) *shared.System {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.systems[symbol]
}

// EnsureSystemLoaded fetches the system's detailed waypoints (traits,
// construction flags) if not already cached.
func (u *Universe) EnsureSystemLoaded(ctx context.Context, system shared.SystemSymbol) error {
	u.mu.RLock()
	_, ok := u.waypoints[system]
	u.mu.RUnlock()
	if ok {
		return nil
	}

	waypoints, err := u.client.GetSystemWaypoints(ctx, system)
	if err != nil {
		return fmt.Errorf("failed to load system %s: %w", system, err)
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	u.waypoints[system] = waypoints
	u.pathfinders[system] = routing.NewPathfinder(waypoints)
	return nil
}

// SystemWaypoints returns the system's detailed waypoints, loading them on
// first use.
func (u *Universe) SystemWaypoints(ctx context.Context, system shared.SystemSymbol) ([]shared.Waypoint, error) {
	if err := u.EnsureSystemLoaded(ctx, system); err != nil {
		return nil, err
	}
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.waypoints[system], nil
}

// Waypoint returns one detailed waypoint, loading its system on first use.
func (u *Universe) Waypoint(ctx context.Context, symbol shared.WaypointSymbol) (*shared.Waypoint, error) {
	waypoints, err := u.SystemWaypoints(ctx, symbol.System())
	if err != nil {
		return nil, err
	}
	for i := range waypoints {
		if waypoints[i].Symbol == symbol {
			return &waypoints[i], nil
		}
	}
	return nil, fmt.Errorf("waypoint %s not found in %s", symbol, symbol.System())
}

// WaypointFilter narrows SearchWaypoints results. Zero values match all.
type WaypointFilter struct {
	Type       string
	HasTrait   string
	IsMarket   bool
	IsShipyard bool
	IsJumpGate bool
}

// SearchWaypoints returns the system's waypoints matching the filter.
func (u *Universe) SearchWaypoints(ctx context.Context, system shared.SystemSymbol, filter WaypointFilter) ([]shared.Waypoint, error) {
	waypoints, err := u.SystemWaypoints(ctx, system)
	if err != nil {
		return nil, err
	}
	var out []shared.Waypoint
	for _, w := range waypoints {
		if filter.Type != "" && w.Type != filter.Type {
			continue
		}
		if filter.HasTrait != "" && !hasTrait(&w, filter.HasTrait) {
			continue
		}
		if filter.IsMarket && !w.IsMarket() {
			continue
		}
		if filter.IsShipyard && !w.IsShipyard() {
			continue
		}
		if filter.IsJumpGate && !w.IsJumpGate() {
			continue
		}
		out = append(out, w)
	}
	return out, nil
}

func hasTrait(w *shared.Waypoint, trait string) bool {
	for _, t := range w.Traits {
		if t == trait {
			return true
		}
	}
	return false
}

// SystemMarketsRemote returns the static shape of every market in the
// system, fetching uncached ones.
func (u *Universe) SystemMarketsRemote(ctx context.Context, system shared.SystemSymbol) ([]market.MarketRemote, error) {
	waypoints, err := u.SearchWaypoints(ctx, system, WaypointFilter{IsMarket: true})
	if err != nil {
		return nil, err
	}
	out := make([]market.MarketRemote, 0, len(waypoints))
	for _, w := range waypoints {
		remote, err := u.MarketRemote(ctx, w.Symbol)
		if err != nil {
			return nil, err
		}
		out = append(out, remote)
	}
	return out, nil
}

// MarketRemote returns one market's static shape, fetching it on first use.
func (u *Universe) MarketRemote(ctx context.Context, waypoint shared.WaypointSymbol) (market.MarketRemote, error) {
	u.mu.RLock()
	remote, ok := u.marketsRemote[waypoint]
	u.mu.RUnlock()
	if ok {
		return remote, nil
	}

	remote, sampled, err := u.client.GetMarket(ctx, waypoint)
	if err != nil {
		return market.MarketRemote{}, err
	}
	u.mu.Lock()
	u.marketsRemote[waypoint] = remote
	if sampled != nil {
		u.markets[waypoint] = &market.WithTimestamp[market.Market]{Timestamp: u.clock.Now(), Data: *sampled}
	}
	u.mu.Unlock()
	return remote, nil
}

// SampledMarket returns the freshest priced snapshot of a market, or nil if
// no ship ever sampled it.
func (u *Universe) SampledMarket(waypoint shared.WaypointSymbol) *market.WithTimestamp[market.Market] {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.markets[waypoint]
}

// SaveMarket stores a priced snapshot observed by a ship on site.
func (u *Universe) SaveMarket(waypoint shared.WaypointSymbol, sampled *market.Market) {
	if sampled == nil {
		return
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.markets[waypoint] = &market.WithTimestamp[market.Market]{Timestamp: u.clock.Now(), Data: *sampled}
}

// SystemShipyardsRemote returns the static shape of every shipyard in the
// system, fetching uncached ones.
func (u *Universe) SystemShipyardsRemote(ctx context.Context, system shared.SystemSymbol) ([]market.ShipyardRemote, error) {
	waypoints, err := u.SearchWaypoints(ctx, system, WaypointFilter{IsShipyard: true})
	if err != nil {
		return nil, err
	}
	out := make([]market.ShipyardRemote, 0, len(waypoints))
	for _, w := range waypoints {
		remote, err := u.ShipyardRemote(ctx, w.Symbol)
		if err != nil {
			return nil, err
		}
		out = append(out, remote)
	}
	return out, nil
}

// ShipyardRemote returns one shipyard's static shape, fetching it on first
// use.
func (u *Universe) ShipyardRemote(ctx context.Context, waypoint shared.WaypointSymbol) (market.ShipyardRemote, error) {
	u.mu.RLock()
	remote, ok := u.shipyardsRemote[waypoint]
	u.mu.RUnlock()
	if ok {
		return remote, nil
	}

	remote, sampled, err := u.client.GetShipyard(ctx, waypoint)
	if err != nil {
		return market.ShipyardRemote{}, err
	}
	u.mu.Lock()
	u.shipyardsRemote[waypoint] = remote
	if sampled != nil {
		u.shipyards[waypoint] = &market.WithTimestamp[market.Shipyard]{Timestamp: u.clock.Now(), Data: *sampled}
	}
	u.mu.Unlock()
	return remote, nil
}

// SampledShipyard returns the freshest priced snapshot of a shipyard.
func (u *Universe) SampledShipyard(waypoint shared.WaypointSymbol) *market.WithTimestamp[market.Shipyard] {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.shipyards[waypoint]
}

// SaveShipyard stores a priced snapshot observed by a ship on site.
func (u *Universe) SaveShipyard(waypoint shared.WaypointSymbol, sampled *market.Shipyard) {
	if sampled == nil {
		return
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.shipyards[waypoint] = &market.WithTimestamp[market.Shipyard]{Timestamp: u.clock.Now(), Data: *sampled}
}

// ShipyardListing is one shipyard offering a ship model at a known price.
type ShipyardListing struct {
	Waypoint shared.WaypointSymbol
	Price    int64
}

// SearchShipyards returns the system's shipyards with a known price for the
// model, cheapest first.
func (u *Universe) SearchShipyards(ctx context.Context, system shared.SystemSymbol, model string) ([]ShipyardListing, error) {
	waypoints, err := u.SearchWaypoints(ctx, system, WaypointFilter{IsShipyard: true})
	if err != nil {
		return nil, err
	}

	var listings []ShipyardListing
	u.mu.RLock()
	for _, w := range waypoints {
		sampled := u.shipyards[w.Symbol]
		if sampled == nil {
			continue
		}
		for _, s := range sampled.Data.Ships {
			if s.Type == model {
				listings = append(listings, ShipyardListing{Waypoint: w.Symbol, Price: s.PurchasePrice})
				break
			}
		}
	}
	u.mu.RUnlock()

	sort.Slice(listings, func(i, j int) bool { return listings[i].Price < listings[j].Price })
	return listings, nil
}

// Construction returns the waypoint's construction site state, fetching it
// on first use. Nil data means the waypoint has no construction site.
func (u *Universe) Construction(ctx context.Context, waypoint shared.WaypointSymbol) (*market.Construction, error) {
	u.mu.RLock()
	cached, ok := u.construction[waypoint]
	u.mu.RUnlock()
	if ok {
		return cached.Data, nil
	}

	construction, err := u.client.GetConstruction(ctx, waypoint)
	if err != nil {
		return nil, err
	}
	u.mu.Lock()
	u.construction[waypoint] = &market.WithTimestamp[*market.Construction]{Timestamp: u.clock.Now(), Data: construction}
	u.mu.Unlock()
	return construction, nil
}

// UpdateConstruction stores the state returned by a supply call.
func (u *Universe) UpdateConstruction(construction *market.Construction) {
	if construction == nil {
		return
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.construction[construction.Symbol] = &market.WithTimestamp[*market.Construction]{
		Timestamp: u.clock.Now(),
		Data:      construction,
	}
}

// Faction returns a faction by symbol, fetching the faction list on first
// use.
func (u *Universe) Faction(ctx context.Context, symbol string) (*fleet.Faction, error) {
	u.mu.RLock()
	cached, ok := u.factions[symbol]
	u.mu.RUnlock()
	if ok {
		return &cached, nil
	}

	factions, err := u.client.GetFactions(ctx)
	if err != nil {
		return nil, err
	}
	u.mu.Lock()
	for _, f := range factions {
		u.factions[f.Symbol] = f
	}
	cached, ok = u.factions[symbol]
	u.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown faction %s", symbol)
	}
	return &cached, nil
}
