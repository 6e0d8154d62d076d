package logistics

import (
	"fmt"

	"github.com/whyando/spacetraders/internal/domain/shared"
)

// ActionKind enumerates what a ship can do at a waypoint on behalf of a task.
type ActionKind string

const (
	ActionRefreshMarket       ActionKind = "REFRESH_MARKET"
	ActionRefreshShipyard     ActionKind = "REFRESH_SHIPYARD"
	ActionTryBuyShips         ActionKind = "TRY_BUY_SHIPS"
	ActionBuyGoods            ActionKind = "BUY_GOODS"
	ActionSellGoods           ActionKind = "SELL_GOODS"
	ActionDeliverConstruction ActionKind = "DELIVER_CONSTRUCTION"
)

// Action is a single operation performed while parked at a waypoint.
// Good and Units are only meaningful for the cargo-moving kinds.
type Action struct {
	Kind  ActionKind `json:"kind"`
	Good  string     `json:"good,omitempty"`
	Units int64      `json:"units,omitempty"`
}

// NetCargo returns the cargo delta the action applies for its good.
// Buying adds units, selling and delivering remove them.
func (a Action) NetCargo() int64 {
	switch a.Kind {
	case ActionBuyGoods:
		return a.Units
	case ActionSellGoods, ActionDeliverConstruction:
		return -a.Units
	default:
		return 0
	}
}

func (a Action) String() string {
	switch a.Kind {
	case ActionBuyGoods, ActionSellGoods, ActionDeliverConstruction:
		return fmt.Sprintf("%s %d %s", a.Kind, a.Units, a.Good)
	default:
		return string(a.Kind)
	}
}

// VisitLocation is a task satisfied by performing one action at one waypoint.
type VisitLocation struct {
	Waypoint shared.WaypointSymbol `json:"waypoint"`
	Action   Action                `json:"action"`
}

// TransportCargo is a task satisfied by a pickup action at the source
// waypoint followed by a drop-off action at the destination.
type TransportCargo struct {
	Src        shared.WaypointSymbol `json:"src"`
	Dest       shared.WaypointSymbol `json:"dest"`
	SrcAction  Action                `json:"srcAction"`
	DestAction Action                `json:"destAction"`
}

// Task is one unit of logistics work. Exactly one of Visit or Transport is
// set. IDs are pure functions of the task's arguments so regenerating tasks
// de-duplicates against the in-progress set without extra bookkeeping.
type Task struct {
	ID        string          `json:"id"`
	Value     int64           `json:"value"`
	Visit     *VisitLocation  `json:"visit,omitempty"`
	Transport *TransportCargo `json:"transport,omitempty"`
}

// CargoUnits is the cargo space the task occupies while in flight.
func (t *Task) CargoUnits() int64 {
	if t.Transport == nil {
		return 0
	}
	return t.Transport.SrcAction.Units
}

// Actions expands the task into its schedule steps, tagging the final step
// with the task id so completion is reported exactly once.
func (t *Task) Actions() Schedule {
	if t.Visit != nil {
		return Schedule{{
			Waypoint:        t.Visit.Waypoint,
			Action:          t.Visit.Action,
			CompletesTaskID: t.ID,
		}}
	}
	return Schedule{
		{
			Waypoint: t.Transport.Src,
			Action:   t.Transport.SrcAction,
		},
		{
			Waypoint:        t.Transport.Dest,
			Action:          t.Transport.DestAction,
			CompletesTaskID: t.ID,
		},
	}
}

// Waypoints returns the waypoints the task touches.
func (t *Task) Waypoints() []shared.WaypointSymbol {
	if t.Visit != nil {
		return []shared.WaypointSymbol{t.Visit.Waypoint}
	}
	return []shared.WaypointSymbol{t.Transport.Src, t.Transport.Dest}
}

// ScheduledAction is one step of a ship's schedule. CompletesTaskID is set on
// the final action of a task so the executor can report completion.
// Timestamp is the planner's estimated completion offset of the step, in
// seconds from the start of the schedule; force-assigned schedules leave it
// zero.
type ScheduledAction struct {
	Waypoint        shared.WaypointSymbol `json:"waypoint"`
	Action          Action                `json:"action"`
	Timestamp       int64                 `json:"timestamp"`
	CompletesTaskID string                `json:"completesTaskId,omitempty"`
}

// Schedule is an ordered list of actions for one ship.
type Schedule []ScheduledAction

// ExpectedCargo returns the cargo map implied by executing the first
// `progress` actions of the schedule, starting empty.
func (s Schedule) ExpectedCargo(progress int) map[string]int64 {
	cargo := map[string]int64{}
	for i := 0; i < progress && i < len(s); i++ {
		a := s[i].Action
		if delta := a.NetCargo(); delta != 0 {
			cargo[a.Good] += delta
			if cargo[a.Good] == 0 {
				delete(cargo, a.Good)
			}
		}
	}
	return cargo
}

// TaskIDs returns the distinct task ids the schedule completes, in order.
func (s Schedule) TaskIDs() []string {
	var ids []string
	for _, a := range s {
		if a.CompletesTaskID != "" {
			ids = append(ids, a.CompletesTaskID)
		}
	}
	return ids
}
