package ship

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/whyando/spacetraders/internal/adapters/persistence"
	applogistics "github.com/whyando/spacetraders/internal/application/logistics"
	"github.com/whyando/spacetraders/internal/domain/fleet"
	"github.com/whyando/spacetraders/internal/domain/logistics"
	"github.com/whyando/spacetraders/internal/domain/shared"
)

// FleetCoordinator is the slice of the agent controller the executor calls
// back into when a schedule step needs fleet-level work.
type FleetCoordinator interface {
	TryBuyShips(ctx context.Context, purchaser string) error
}

// LogisticsExecutor drives one hauler through take-tasks / execute cycles.
// Schedules and progress are persisted per ship so a restart resumes
// mid-schedule instead of abandoning bought cargo.
type LogisticsExecutor struct {
	ctrl        *Controller
	tasks       *applogistics.Manager
	store       *persistence.KVStoreGORM
	coordinator FleetCoordinator
	clock       shared.Clock

	config     fleet.LogisticsScriptConfig
	planLength time.Duration
}

func NewLogisticsExecutor(
	ctrl *Controller,
	tasks *applogistics.Manager,
	store *persistence.KVStoreGORM,
	coordinator FleetCoordinator,
	config fleet.LogisticsScriptConfig,
	clock shared.Clock,
) *LogisticsExecutor {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &LogisticsExecutor{
		ctrl:        ctrl,
		tasks:       tasks,
		store:       store,
		coordinator: coordinator,
		clock:       clock,
		config:      config,
		planLength:  15 * time.Minute,
	}
}

func (e *LogisticsExecutor) scheduleKey() string {
	return e.ctrl.Symbol() + "/schedule"
}

func (e *LogisticsExecutor) progressKey() string {
	return e.ctrl.Symbol() + "/schedule_progress"
}

// Run executes until the context is cancelled.
func (e *LogisticsExecutor) Run(ctx context.Context) error {
	if err := e.ctrl.WaitForTransit(ctx); err != nil {
		return err
	}

	schedule, progress, err := e.resume(ctx)
	if err != nil {
		return err
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if progress >= len(schedule) {
			schedule, err = e.acquireSchedule(ctx)
			if err != nil {
				return err
			}
			if len(schedule) == 0 {
				e.idle(ctx)
				continue
			}
			progress = 0
		}

		action := schedule[progress]
		if err := e.ctrl.GotoWaypoint(ctx, action.Waypoint); err != nil {
			return err
		}
		if err := e.execute(ctx, action); err != nil {
			return err
		}
		progress++
		if err := persistence.SetValue(ctx, e.store, e.progressKey(), progress); err != nil {
			return err
		}
		if action.CompletesTaskID != "" {
			if err := e.tasks.SetTaskCompleted(ctx, e.ctrl.Symbol(), action.CompletesTaskID); err != nil {
				return err
			}
		}
	}
}

// resume restores the persisted schedule and reconciles the hold against it.
// Reconciliation runs for every unfinished schedule, including one persisted
// at step zero, since the crash window between an executed step and its
// progress write exists at every step.
func (e *LogisticsExecutor) resume(ctx context.Context) (logistics.Schedule, int, error) {
	schedule, progress, err := e.loadSchedule(ctx)
	if err != nil {
		return nil, 0, err
	}
	if progress < len(schedule) {
		progress, err = e.reconcileCargo(ctx, schedule, progress)
		if err != nil {
			return nil, 0, err
		}
	}
	return schedule, progress, nil
}

func (e *LogisticsExecutor) loadSchedule(ctx context.Context) (logistics.Schedule, int, error) {
	schedule, ok, err := persistence.GetValue[logistics.Schedule](ctx, e.store, e.scheduleKey())
	if err != nil {
		return nil, 0, err
	}
	if !ok {
		return nil, 0, nil
	}
	progress, _, err := persistence.GetValue[int](ctx, e.store, e.progressKey())
	if err != nil {
		return nil, 0, err
	}
	if progress < len(schedule) {
		log.Printf("[%s] resuming schedule at step %d of %d", e.ctrl.Symbol(), progress, len(schedule))
	}
	return schedule, progress, nil
}

// acquireSchedule clears leftovers and asks the task manager for fresh work.
func (e *LogisticsExecutor) acquireSchedule(ctx context.Context) (logistics.Schedule, error) {
	// Fuel bought for the tank but left in cargo is sold back before
	// taking on cargo tasks.
	if e.ctrl.Ship().Cargo.GoodCount("FUEL") > 0 {
		if err := e.ctrl.SellGood(ctx, "FUEL", e.ctrl.Ship().Cargo.GoodCount("FUEL"), ""); err != nil {
			return nil, err
		}
	}
	if ship := e.ctrl.Ship(); ship.Cargo.Units != 0 {
		return nil, fmt.Errorf("%s: cargo not empty before take-tasks: %v", ship.Symbol, ship.Cargo.Map())
	}

	ship := e.ctrl.Ship()
	schedule, err := e.tasks.TakeTasks(ctx, applogistics.TakeTasksRequest{
		ShipSymbol:    ship.Symbol,
		Waypoint:      ship.Nav.WaypointSymbol,
		CargoCapacity: ship.Cargo.Capacity,
		FuelCapacity:  ship.Fuel.Capacity,
		EngineSpeed:   ship.Engine.Speed,
		Config:        e.config,
		PlanLength:    e.planLength,
	})
	if err != nil {
		return nil, err
	}
	if err := persistence.SetValue(ctx, e.store, e.scheduleKey(), schedule); err != nil {
		return nil, err
	}
	if err := persistence.SetValue(ctx, e.store, e.progressKey(), 0); err != nil {
		return nil, err
	}
	return schedule, nil
}

// reconcileCargo verifies the hold matches the persisted progress. A crash
// between the API call and the progress write leaves the hold one step
// ahead; that step is skipped. A FUEL surplus from refueling is sold off.
func (e *LogisticsExecutor) reconcileCargo(ctx context.Context, schedule logistics.Schedule, progress int) (int, error) {
	actual := e.ctrl.Ship().Cargo.Map()

	if cargoEqual(actual, schedule.ExpectedCargo(progress)) {
		return progress, nil
	}
	if progress+1 <= len(schedule) && cargoEqual(actual, schedule.ExpectedCargo(progress+1)) {
		log.Printf("[%s] cargo matches step %d, skipping persisted step %d", e.ctrl.Symbol(), progress+1, progress)
		return progress + 1, nil
	}

	expected := schedule.ExpectedCargo(progress)
	if surplus := actual["FUEL"] - expected["FUEL"]; surplus > 0 {
		withoutSurplus := copyCargo(actual)
		withoutSurplus["FUEL"] -= surplus
		if withoutSurplus["FUEL"] == 0 {
			delete(withoutSurplus, "FUEL")
		}
		if cargoEqual(withoutSurplus, expected) {
			if err := e.ctrl.SellGood(ctx, "FUEL", surplus, ""); err != nil {
				return 0, err
			}
			return progress, nil
		}
	}

	return 0, fmt.Errorf("%s: cargo %v does not match schedule step %d (expected %v)",
		e.ctrl.Symbol(), actual, progress, expected)
}

func (e *LogisticsExecutor) execute(ctx context.Context, action logistics.ScheduledAction) error {
	a := action.Action
	log.Printf("[%s] %s at %s", e.ctrl.Symbol(), a, action.Waypoint)
	switch a.Kind {
	case logistics.ActionRefreshMarket:
		return e.ctrl.RefreshMarket(ctx)
	case logistics.ActionRefreshShipyard:
		return e.ctrl.RefreshShipyard(ctx)
	case logistics.ActionTryBuyShips:
		return e.coordinator.TryBuyShips(ctx, e.ctrl.Symbol())
	case logistics.ActionBuyGoods:
		return e.ctrl.BuyGood(ctx, a.Good, a.Units, "logistics/"+e.ctrl.Symbol())
	case logistics.ActionSellGoods:
		return e.ctrl.SellGood(ctx, a.Good, a.Units, "logistics/"+e.ctrl.Symbol())
	case logistics.ActionDeliverConstruction:
		return e.ctrl.SupplyConstruction(ctx, a.Good, a.Units)
	default:
		return fmt.Errorf("unknown scheduled action kind %q", a.Kind)
	}
}

// idle sleeps five to ten minutes so an empty task pool is not hammered.
func (e *LogisticsExecutor) idle(ctx context.Context) {
	wait := time.Duration(300+rand.Int63n(300)) * time.Second
	log.Printf("[%s] no tasks available, sleeping %v", e.ctrl.Symbol(), wait)
	e.clock.Sleep(wait)
}

func cargoEqual(a, b map[string]int64) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

func copyCargo(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
