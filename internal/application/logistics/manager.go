package logistics

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/whyando/spacetraders/internal/adapters/persistence"
	"github.com/whyando/spacetraders/internal/application/universe"
	"github.com/whyando/spacetraders/internal/domain/fleet"
	"github.com/whyando/spacetraders/internal/domain/ledger"
	domain "github.com/whyando/spacetraders/internal/domain/logistics"
	"github.com/whyando/spacetraders/internal/domain/shared"
)

const (
	// A take-tasks call stuck this long means a deadlocked fleet; better
	// to crash loudly than to idle forever.
	takeTasksLockTimeout = 20 * time.Minute

	// Credits earmarked per unit of logistics cargo capacity.
	creditsPerCargoUnit = 5_000
)

// FleetOps is the slice of the agent controller the task manager needs.
// Injected after construction to break the package cycle.
type FleetOps interface {
	// StaticallyProbedWaypoints are waypoints a parked probe keeps fresh.
	StaticallyProbedWaypoints(ctx context.Context) map[shared.WaypointSymbol]bool
	// PendingPurchaseWaypoints are shipyards where a purchase waits for a
	// hauler on site.
	PendingPurchaseWaypoints(ctx context.Context, system shared.SystemSymbol) ([]shared.WaypointSymbol, error)
}

// Manager owns one system's logistics task set: generation, assignment and
// completion. Assignment is serialized through a single lock so the
// in-progress set is read-modified-written atomically.
type Manager struct {
	system        shared.SystemSymbol
	isStartSystem bool

	universe *universe.Universe
	ledger   *ledger.Ledger
	store    *persistence.KVStoreGORM
	clock    shared.Clock
	planner  domain.Planner
	fleetOps FleetOps

	minProfit           int64
	importVolumeCaps    map[string]int64
	noGateMode          bool
	disableTradingTasks bool

	lock       chan struct{}
	inProgress map[string]string // task id -> holding ship
}

// ManagerConfig carries the task generator's tuning knobs.
type ManagerConfig struct {
	System              shared.SystemSymbol
	IsStartSystem       bool
	MinProfit           int64
	ImportVolumeCaps    map[string]int64
	NoGateMode          bool
	DisableTradingTasks bool
}

// NewManager creates a task manager for one system. A nil clock means
// RealClock; a nil planner means the greedy planner.
func NewManager(
	cfg ManagerConfig,
	u *universe.Universe,
	l *ledger.Ledger,
	store *persistence.KVStoreGORM,
	planner domain.Planner,
	clock shared.Clock,
) *Manager {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	if planner == nil {
		planner = domain.NewGreedyPlanner()
	}
	lock := make(chan struct{}, 1)
	lock <- struct{}{}
	return &Manager{
		system:              cfg.System,
		isStartSystem:       cfg.IsStartSystem,
		universe:            u,
		ledger:              l,
		store:               store,
		clock:               clock,
		planner:             planner,
		minProfit:           cfg.MinProfit,
		importVolumeCaps:    cfg.ImportVolumeCaps,
		noGateMode:          cfg.NoGateMode,
		disableTradingTasks: cfg.DisableTradingTasks,
		lock:                lock,
		inProgress:          map[string]string{},
	}
}

// SetFleetOps injects the agent controller dependency.
func (m *Manager) SetFleetOps(ops FleetOps) {
	m.fleetOps = ops
}

func (m *Manager) stateKey() string {
	return fmt.Sprintf("task_manager_state/%s", m.system)
}

// Load restores the in-progress task set.
func (m *Manager) Load(ctx context.Context) error {
	state, ok, err := persistence.GetValue[map[string]string](ctx, m.store, m.stateKey())
	if err != nil {
		return fmt.Errorf("failed to load task manager state: %w", err)
	}
	if ok {
		m.inProgress = state
	}
	return nil
}

func (m *Manager) acquireLock(ctx context.Context) func() {
	select {
	case <-m.lock:
	default:
		log.Printf("[tasks %s] take-tasks lock is busy, waiting", m.system)
		select {
		case <-m.lock:
		case <-time.After(takeTasksLockTimeout):
			log.Panicf("[tasks %s] take-tasks lock held for over %v", m.system, takeTasksLockTimeout)
		case <-ctx.Done():
			// Treat cancellation like a release-less acquire; the
			// caller sees the context error from its next I/O.
			return func() {}
		}
	}
	return func() { m.lock <- struct{}{} }
}

// TakeTasksRequest describes the ship asking for work.
type TakeTasksRequest struct {
	ShipSymbol    string
	Waypoint      shared.WaypointSymbol
	CargoCapacity int64
	FuelCapacity  int64
	EngineSpeed   int64
	Config        fleet.LogisticsScriptConfig
	PlanLength    time.Duration
}

// TakeTasks atomically reassigns the ship: its prior tasks are dropped back
// into the pool, a fresh task set is generated, and a new schedule is
// planned, recorded in the in-progress set and persisted.
func (m *Manager) TakeTasks(ctx context.Context, req TakeTasksRequest) (domain.Schedule, error) {
	release := m.acquireLock(ctx)
	defer release()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	for id, holder := range m.inProgress {
		if holder == req.ShipSymbol {
			delete(m.inProgress, id)
		}
	}

	m.ledger.ReserveCredits("logistics/"+req.ShipSymbol, creditsPerCargoUnit*req.CargoCapacity)

	input, err := m.generationInput(ctx, req)
	if err != nil {
		return nil, err
	}
	tasks, err := GenerateTasks(*input)
	if err != nil {
		return nil, err
	}

	candidates := m.filterTasks(tasks, req)
	if len(candidates) == 0 {
		return nil, m.persistInProgress(ctx)
	}

	schedule, err := m.plan(ctx, req, candidates)
	if err != nil {
		return nil, err
	}
	if len(schedule) == 0 {
		schedule = forceAssign(candidates, req.CargoCapacity)
	}

	for _, id := range schedule.TaskIDs() {
		m.inProgress[id] = req.ShipSymbol
	}
	if err := m.persistInProgress(ctx); err != nil {
		return nil, err
	}
	log.Printf("[tasks %s] assigned %d actions (%d tasks) to %s",
		m.system, len(schedule), len(schedule.TaskIDs()), req.ShipSymbol)
	return schedule, nil
}

// SetTaskCompleted removes a finished task from the in-progress set.
func (m *Manager) SetTaskCompleted(ctx context.Context, shipSymbol, taskID string) error {
	release := m.acquireLock(ctx)
	defer release()
	if ctx.Err() != nil {
		return ctx.Err()
	}

	holder, ok := m.inProgress[taskID]
	if !ok {
		return nil
	}
	if holder != shipSymbol {
		return fmt.Errorf("task %s is held by %s, not %s", taskID, holder, shipSymbol)
	}
	delete(m.inProgress, taskID)
	return m.persistInProgress(ctx)
}

func (m *Manager) persistInProgress(ctx context.Context) error {
	return persistence.SetValue(ctx, m.store, m.stateKey(), m.inProgress)
}

func (m *Manager) generationInput(ctx context.Context, req TakeTasksRequest) (*GenerationInput, error) {
	marketWaypoints, err := m.universe.SearchWaypoints(ctx, m.system, universe.WaypointFilter{IsMarket: true})
	if err != nil {
		return nil, err
	}
	markets := make([]MarketSnapshot, 0, len(marketWaypoints))
	for _, w := range marketWaypoints {
		remote, err := m.universe.MarketRemote(ctx, w.Symbol)
		if err != nil {
			return nil, err
		}
		markets = append(markets, MarketSnapshot{
			Waypoint: w.Symbol,
			Remote:   remote,
			Sampled:  m.universe.SampledMarket(w.Symbol),
		})
	}

	shipyardWaypoints, err := m.universe.SearchWaypoints(ctx, m.system, universe.WaypointFilter{IsShipyard: true})
	if err != nil {
		return nil, err
	}
	shipyards := make([]ShipyardSnapshot, 0, len(shipyardWaypoints))
	for _, w := range shipyardWaypoints {
		remote, err := m.universe.ShipyardRemote(ctx, w.Symbol)
		if err != nil {
			return nil, err
		}
		shipyards = append(shipyards, ShipyardSnapshot{
			Waypoint: w.Symbol,
			Remote:   remote,
			Sampled:  m.universe.SampledShipyard(w.Symbol),
		})
	}

	input := &GenerationInput{
		System:              m.system,
		IsStartSystem:       m.isStartSystem,
		Now:                 m.clock.Now(),
		Markets:             markets,
		Shipyards:           shipyards,
		ProbedWaypoints:     map[shared.WaypointSymbol]bool{},
		CargoCapacity:       req.CargoCapacity,
		MinProfit:           m.minProfit,
		NoGateMode:          m.noGateMode,
		DisableTradingTasks: m.disableTradingTasks,
		ImportVolumeCaps:    m.importVolumeCaps,
	}
	if req.Config.MinProfit > 0 {
		input.MinProfit = req.Config.MinProfit
	}

	if m.fleetOps != nil {
		input.ProbedWaypoints = m.fleetOps.StaticallyProbedWaypoints(ctx)
		if req.Config.AllowShipbuying {
			purchases, err := m.fleetOps.PendingPurchaseWaypoints(ctx, m.system)
			if err != nil {
				return nil, err
			}
			input.PurchaseWaypoints = purchases
		}
	}

	gates, err := m.universe.SearchWaypoints(ctx, m.system, universe.WaypointFilter{IsJumpGate: true})
	if err != nil {
		return nil, err
	}
	if len(gates) > 0 {
		construction, err := m.universe.Construction(ctx, gates[0].Symbol)
		if err != nil {
			return nil, err
		}
		input.Construction = construction
	}

	return input, nil
}

// filterTasks drops tasks the ship may not run: held by another ship,
// outside its waypoint allowlist, or of a kind its config forbids.
func (m *Manager) filterTasks(tasks []domain.Task, req TakeTasksRequest) []domain.Task {
	cfg := req.Config
	allowed := func(task *domain.Task) bool {
		if holder, held := m.inProgress[task.ID]; held && holder != req.ShipSymbol {
			return false
		}
		if len(cfg.WaypointAllowlist) > 0 {
			for _, w := range task.Waypoints() {
				if !containsWaypoint(cfg.WaypointAllowlist, w) {
					return false
				}
			}
		}
		for _, a := range task.Actions() {
			switch a.Action.Kind {
			case domain.ActionRefreshMarket, domain.ActionRefreshShipyard:
				if !cfg.AllowMarketRefresh {
					return false
				}
			case domain.ActionTryBuyShips:
				if !cfg.AllowShipbuying {
					return false
				}
			case domain.ActionDeliverConstruction:
				if !cfg.AllowConstruction {
					return false
				}
			}
		}
		return true
	}

	var out []domain.Task
	for i := range tasks {
		if allowed(&tasks[i]) {
			out = append(out, tasks[i])
		}
	}
	return out
}

func containsWaypoint(list []shared.WaypointSymbol, w shared.WaypointSymbol) bool {
	for _, v := range list {
		if v == w {
			return true
		}
	}
	return false
}

func (m *Manager) plan(ctx context.Context, req TakeTasksRequest, tasks []domain.Task) (domain.Schedule, error) {
	if !req.Config.UsePlanner {
		return nil, nil
	}

	waypointSet := map[shared.WaypointSymbol]bool{req.Waypoint: true}
	for i := range tasks {
		for _, w := range tasks[i].Waypoints() {
			waypointSet[w] = true
		}
	}
	waypoints := make([]shared.WaypointSymbol, 0, len(waypointSet))
	for w := range waypointSet {
		waypoints = append(waypoints, w)
	}

	matrix, err := m.universe.FullTravelMatrix(ctx, m.system, waypoints, req.FuelCapacity, req.EngineSpeed)
	if err != nil {
		return nil, fmt.Errorf("failed to build travel matrix: %w", err)
	}

	planLength := req.PlanLength
	if planLength == 0 {
		planLength = 15 * time.Minute
	}
	return m.planner.Plan(
		domain.PlannerShip{
			Symbol:        req.ShipSymbol,
			Waypoint:      req.Waypoint,
			CargoCapacity: req.CargoCapacity,
		},
		tasks,
		matrix,
		domain.PlannerConstraints{PlanLength: planLength, MaxCompute: 5 * time.Second},
	)
}

// forceAssign falls back to the single highest-value task that fits the
// ship, so a hauler never idles while work exists.
func forceAssign(tasks []domain.Task, cargoCapacity int64) domain.Schedule {
	var best *domain.Task
	for i := range tasks {
		if tasks[i].CargoUnits() > cargoCapacity {
			continue
		}
		if best == nil || tasks[i].Value > best.Value {
			best = &tasks[i]
		}
	}
	if best == nil {
		return nil
	}
	return best.Actions()
}

// InProgress returns a snapshot of the in-progress assignment.
func (m *Manager) InProgress() map[string]string {
	release := m.acquireLock(context.Background())
	defer release()
	out := make(map[string]string, len(m.inProgress))
	for k, v := range m.inProgress {
		out[k] = v
	}
	return out
}
