package agent

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/whyando/spacetraders/internal/adapters/api"
	"github.com/whyando/spacetraders/internal/adapters/persistence"
	"github.com/whyando/spacetraders/internal/application/broker"
	applogistics "github.com/whyando/spacetraders/internal/application/logistics"
	"github.com/whyando/spacetraders/internal/application/ship"
	"github.com/whyando/spacetraders/internal/application/survey"
	"github.com/whyando/spacetraders/internal/application/universe"
	"github.com/whyando/spacetraders/internal/domain/fleet"
	"github.com/whyando/spacetraders/internal/domain/ledger"
	"github.com/whyando/spacetraders/internal/domain/shared"
	"github.com/whyando/spacetraders/internal/infrastructure/config"
)

const (
	// Era advance threshold for StartingSystem1 -> StartingSystem2.
	eraCreditThreshold = 800_000

	// Standing ledger reservations.
	fuelReservation          = 10_000
	jumpgateCostsReservation = 500_000
	creditsPerCargoUnit      = 5_000

	tickInterval   = time.Minute
	buyLockTimeout = 30 * time.Second

	// Warp range cap for explorer system hops.
	maxWarpRange = 20_000
)

// Controller supervises the fleet: role assignment, procurement, credit
// reservations, era progression and the lifecycle of per-ship scripts.
// All mutating fleet operations funnel through it.
type Controller struct {
	cfg      *config.Config
	callsign string

	client   *api.Client
	universe *universe.Universe
	ledger   *ledger.Ledger
	store    *persistence.KVStoreGORM
	tasks    *applogistics.Manager
	surveys  *survey.Manager
	broker   *broker.Broker
	clock    shared.Clock

	startSystem shared.SystemSymbol

	agentMu sync.Mutex
	agent   fleet.Agent

	stateMu sync.Mutex
	state   fleet.AgentState

	shipsMu sync.Mutex
	ships   map[string]*ship.Controller

	assignMu    sync.Mutex
	roles       []fleet.ShipConfig
	assignments map[string]string // role id -> ship symbol

	buyLock chan struct{}

	pendingMu        sync.Mutex
	pendingPurchases map[shared.WaypointSymbol]bool

	gateResMu        sync.Mutex
	gateReservations map[string]shared.WaypointSymbol

	explorerResMu        sync.Mutex
	explorerReservations map[string]shared.SystemSymbol

	contractMu          sync.Mutex
	contract            *fleet.Contract
	contractFailEpoch   int64
	lastContractFailure time.Time

	runningMu sync.Mutex
	running   map[string]bool
	group     *errgroup.Group
	groupCtx  context.Context
}

// NewController wires the supervisor. agent and ships are the freshly
// fetched account state. A nil clock means RealClock.
func NewController(
	cfg *config.Config,
	client *api.Client,
	u *universe.Universe,
	l *ledger.Ledger,
	store *persistence.KVStoreGORM,
	tasks *applogistics.Manager,
	surveys *survey.Manager,
	agent fleet.Agent,
	ships []fleet.Ship,
	clock shared.Clock,
) *Controller {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	buyLock := make(chan struct{}, 1)
	buyLock <- struct{}{}

	c := &Controller{
		cfg:                  cfg,
		callsign:             agent.Symbol,
		client:               client,
		universe:             u,
		ledger:               l,
		store:                store,
		tasks:                tasks,
		surveys:              surveys,
		clock:                clock,
		startSystem:          agent.Headquarters.System(),
		agent:                agent,
		state:                fleet.DefaultAgentState(),
		ships:                map[string]*ship.Controller{},
		assignments:          map[string]string{},
		buyLock:              buyLock,
		pendingPurchases:     map[shared.WaypointSymbol]bool{},
		gateReservations:     map[string]shared.WaypointSymbol{},
		explorerReservations: map[string]shared.SystemSymbol{},
		running:              map[string]bool{},
	}
	c.broker = broker.NewBroker(c)
	c.ledger.SetCredits(agent.Credits)
	tasks.SetFleetOps(c)
	for _, s := range ships {
		c.addShip(s)
	}
	return c
}

func (c *Controller) stateKey() string { return c.callsign + "/state" }

// Load restores persisted controller state.
func (c *Controller) Load(ctx context.Context) error {
	state, ok, err := persistence.GetValue[fleet.AgentState](ctx, c.store, c.stateKey())
	if err != nil {
		return fmt.Errorf("failed to load agent state: %w", err)
	}
	if ok {
		c.stateMu.Lock()
		c.state = state
		c.stateMu.Unlock()
	}

	assignments, ok, err := persistence.GetValue[map[string]string](ctx, c.store, c.callsign+"/ship_assignments")
	if err != nil {
		return fmt.Errorf("failed to load ship assignments: %w", err)
	}
	if ok {
		c.assignMu.Lock()
		c.assignments = assignments
		c.assignMu.Unlock()
	}

	gates, ok, err := persistence.GetValue[map[string]shared.WaypointSymbol](ctx, c.store, c.gateReservationsKey())
	if err != nil {
		return fmt.Errorf("failed to load gate reservations: %w", err)
	}
	if ok {
		c.gateReservations = gates
	}

	systems, ok, err := persistence.GetValue[map[string]shared.SystemSymbol](ctx, c.store, c.explorerReservationsKey())
	if err != nil {
		return fmt.Errorf("failed to load explorer reservations: %w", err)
	}
	if ok {
		c.explorerReservations = systems
	}
	return nil
}

// era is the effective era: the configured override, or the persisted state.
func (c *Controller) era() fleet.AgentEra {
	if override := c.cfg.Agent.Era(); override != nil {
		return *override
	}
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.state.Era
}

// advanceEra loops the era machine to a fixed point, persisting after each
// transition. Only StartingSystem1 -> StartingSystem2 is active: it fires
// when available credits reach the threshold.
func (c *Controller) advanceEra(ctx context.Context) error {
	if c.cfg.Agent.Era() != nil {
		return nil
	}
	for {
		c.stateMu.Lock()
		era := c.state.Era
		c.stateMu.Unlock()

		var next fleet.AgentEra
		switch {
		case era == fleet.EraStartingSystem1 && c.ledger.AvailableCredits() >= eraCreditThreshold:
			next = fleet.EraStartingSystem2
		default:
			return nil
		}

		c.stateMu.Lock()
		c.state.Era = next
		state := c.state
		c.stateMu.Unlock()
		if err := persistence.SetValue(ctx, c.store, c.stateKey(), state); err != nil {
			return fmt.Errorf("failed to persist era advance: %w", err)
		}
		log.Printf("[%s] era advanced: %s -> %s", c.callsign, era, next)
	}
}

// Run starts the cargo broker, spawns scripts for the existing fleet and
// drives the supervisor tick. It returns when any supervised task errors or
// the context is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	group, groupCtx := errgroup.WithContext(ctx)
	c.group = group
	c.groupCtx = groupCtx

	group.Go(func() error { return c.broker.Run(groupCtx) })

	if err := c.Load(ctx); err != nil {
		return err
	}
	if err := c.startup(groupCtx); err != nil {
		return err
	}

	group.Go(func() error {
		ticker := time.NewTicker(tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-groupCtx.Done():
				return groupCtx.Err()
			case <-ticker.C:
				if err := c.tick(groupCtx); err != nil {
					return err
				}
			}
		}
	})

	return group.Wait()
}

func (c *Controller) startup(ctx context.Context) error {
	if err := c.tick(ctx); err != nil {
		return err
	}
	for _, s := range c.shipSnapshots() {
		c.spawnRunShip(s)
	}
	return nil
}

// tick is one supervisor pass: era, roles, procurement, contract.
func (c *Controller) tick(ctx context.Context) error {
	if err := c.advanceEra(ctx); err != nil {
		return err
	}
	if err := c.refreshShipConfig(ctx); err != nil {
		return err
	}
	if err := c.TryBuyShips(ctx, ""); err != nil {
		return err
	}
	c.contractTick(ctx)
	return nil
}

func (c *Controller) acquireBuyLock() func() {
	select {
	case <-c.buyLock:
	case <-time.After(buyLockTimeout):
		log.Panicf("[%s] buy-ships lock held for over %v", c.callsign, buyLockTimeout)
	}
	return func() { c.buyLock <- struct{}{} }
}

func (c *Controller) addShip(s fleet.Ship) *ship.Controller {
	c.shipsMu.Lock()
	defer c.shipsMu.Unlock()
	if ctrl, ok := c.ships[s.Symbol]; ok {
		return ctrl
	}
	ctrl := ship.NewController(s, c.client, c.universe, c.ledger, c, c.clock)
	c.ships[s.Symbol] = ctrl
	return ctrl
}

func (c *Controller) removeShip(symbol string) {
	c.shipsMu.Lock()
	delete(c.ships, symbol)
	c.shipsMu.Unlock()
}

func (c *Controller) hasShip(symbol string) bool {
	c.shipsMu.Lock()
	defer c.shipsMu.Unlock()
	_, ok := c.ships[symbol]
	return ok
}

func (c *Controller) shipController(symbol string) *ship.Controller {
	c.shipsMu.Lock()
	defer c.shipsMu.Unlock()
	return c.ships[symbol]
}

func (c *Controller) shipSnapshots() []fleet.Ship {
	c.shipsMu.Lock()
	defer c.shipsMu.Unlock()
	out := make([]fleet.Ship, 0, len(c.ships))
	for _, ctrl := range c.ships {
		out = append(out, ctrl.Ship())
	}
	return out
}

// UpdateAgent replaces the agent cache and mirrors credits into the ledger.
// Implements the ship controller's AgentUpdater.
func (c *Controller) UpdateAgent(agent *fleet.Agent) {
	if agent == nil {
		return
	}
	c.agentMu.Lock()
	c.agent = *agent
	c.agentMu.Unlock()
	c.ledger.SetCredits(agent.Credits)
}

// Agent returns a snapshot of the agent cache.
func (c *Controller) Agent() fleet.Agent {
	c.agentMu.Lock()
	defer c.agentMu.Unlock()
	return c.agent
}

// TransferCargo moves goods between two of the fleet's ships at the same
// waypoint. Implements the cargo broker's TransferActor.
func (c *Controller) TransferCargo(ctx context.Context, fromShip, toShip, good string, units int64) error {
	src := c.shipController(fromShip)
	if src == nil {
		return fmt.Errorf("unknown ship %s", fromShip)
	}
	return src.TransferTo(ctx, toShip, good, units)
}

// spawnRunShip idempotently starts the script matching the ship's role.
// Scrap policy takes precedence; a damaged ship parks with a warning.
func (c *Controller) spawnRunShip(s fleet.Ship) {
	c.runningMu.Lock()
	if c.running[s.Symbol] {
		c.runningMu.Unlock()
		return
	}
	c.running[s.Symbol] = true
	c.runningMu.Unlock()

	ctrl := c.addShip(s)

	c.assignMu.Lock()
	role := c.shipRole(s.Symbol)
	if role != nil {
		// shipRole returns a pointer into c.roles, which refreshShipConfig
		// replaces; copy while holding the lock.
		r := *role
		role = &r
	}
	c.assignMu.Unlock()

	if c.cfg.Agent.ScrapAllShips || (c.cfg.Agent.ScrapUnassigned && role == nil) {
		c.group.Go(func() error {
			if err := ctrl.Scrap(c.groupCtx); err != nil {
				return fmt.Errorf("[%s] scrap failed: %w", s.Symbol, err)
			}
			c.removeShip(s.Symbol)
			return nil
		})
		return
	}

	if damaged(&s) {
		log.Printf("[%s] ship %s has damaged components, parking it", c.callsign, s.Symbol)
		return
	}
	if role == nil {
		log.Printf("[%s] ship %s has no role, parking it", c.callsign, s.Symbol)
		return
	}

	run := c.scriptFor(ctrl, role)
	if run == nil {
		log.Printf("[%s] ship %s: no script for behavior %s, parking it", c.callsign, s.Symbol, role.Behavior.Kind)
		return
	}
	c.group.Go(func() error {
		if err := run(c.groupCtx); err != nil && c.groupCtx.Err() == nil {
			return fmt.Errorf("[%s] script %s failed: %w", s.Symbol, role.Behavior.Kind, err)
		}
		return nil
	})
}

func damaged(s *fleet.Ship) bool {
	for _, cond := range []*float64{s.Engine.Condition, s.Frame.Condition, s.Reactor.Condition} {
		if cond != nil && *cond < 0 {
			return true
		}
	}
	return false
}

func (c *Controller) scriptFor(ctrl *ship.Controller, role *fleet.ShipConfig) func(context.Context) error {
	switch role.Behavior.Kind {
	case fleet.BehaviorProbe:
		cfg := *role.Behavior.Probe
		return func(ctx context.Context) error { return ship.RunProbe(ctx, ctrl, cfg) }
	case fleet.BehaviorLogistics, fleet.BehaviorConstructionHauler:
		cfg := *role.Behavior.Logistics
		exec := ship.NewLogisticsExecutor(ctrl, c.tasks, c.store, c, cfg, c.clock)
		return exec.Run
	case fleet.BehaviorSiphonDrone:
		cfg := *role.Behavior.Siphon
		return func(ctx context.Context) error { return ship.RunSiphonDrone(ctx, ctrl, c.broker, cfg) }
	case fleet.BehaviorSiphonShuttle:
		cfg := *role.Behavior.Siphon
		return func(ctx context.Context) error { return ship.RunSiphonShuttle(ctx, ctrl, c.broker, cfg) }
	case fleet.BehaviorMiningDrone:
		cfg := *role.Behavior.Mining
		return func(ctx context.Context) error { return ship.RunMiningDrone(ctx, ctrl, c.broker, c.surveys, cfg) }
	case fleet.BehaviorMiningSurveyor:
		cfg := *role.Behavior.Mining
		return func(ctx context.Context) error { return ship.RunMiningSurveyor(ctx, ctrl, c.surveys, cfg) }
	case fleet.BehaviorMiningShuttle:
		cfg := *role.Behavior.Mining
		return func(ctx context.Context) error { return ship.RunMiningShuttle(ctx, ctrl, c.broker, cfg) }
	case fleet.BehaviorJumpgateProbe:
		return func(ctx context.Context) error { return ship.RunJumpgateProbe(ctx, ctrl, c) }
	case fleet.BehaviorExplorer:
		return func(ctx context.Context) error { return ship.RunExplorer(ctx, ctrl, c) }
	default:
		return nil
	}
}
