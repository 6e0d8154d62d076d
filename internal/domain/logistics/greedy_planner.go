package logistics

import (
	"time"

	"github.com/whyando/spacetraders/internal/domain/shared"
)

// Seconds a ship spends docked per scheduled action, on top of travel.
const actionOverheadSeconds = 60

// GreedyPlanner builds a schedule by repeatedly appending the task with the
// best value-per-second from the ship's current position. It is deliberately
// simple; the Planner interface leaves room for a real solver later.
type GreedyPlanner struct{}

func NewGreedyPlanner() *GreedyPlanner { return &GreedyPlanner{} }

func (p *GreedyPlanner) Plan(
	ship PlannerShip,
	tasks []Task,
	matrix *TravelMatrix,
	constraints PlannerConstraints,
) (Schedule, error) {
	planBudget := int64(constraints.PlanLength / time.Second)
	if planBudget <= 0 {
		return nil, nil
	}

	remaining := make([]*Task, 0, len(tasks))
	for i := range tasks {
		remaining = append(remaining, &tasks[i])
	}

	var schedule Schedule
	position := ship.Waypoint
	var elapsed int64

	for {
		bestIdx := -1
		var bestRate float64
		var bestOffsets []int64

		for i, task := range remaining {
			if task == nil {
				continue
			}
			offsets, ok := actionOffsets(position, task, matrix)
			if !ok {
				continue
			}
			duration := offsets[len(offsets)-1]
			if elapsed+duration > planBudget {
				continue
			}
			if task.CargoUnits() > ship.CargoCapacity {
				continue
			}
			rate := float64(task.Value) / float64(duration)
			if bestIdx == -1 || rate > bestRate {
				bestIdx = i
				bestRate = rate
				bestOffsets = offsets
			}
		}

		if bestIdx == -1 {
			break
		}

		task := remaining[bestIdx]
		remaining[bestIdx] = nil
		actions := task.Actions()
		for i := range actions {
			actions[i].Timestamp = elapsed + bestOffsets[i]
		}
		schedule = append(schedule, actions...)
		elapsed += bestOffsets[len(bestOffsets)-1]
		position = schedule[len(schedule)-1].Waypoint
	}

	return schedule, nil
}

// actionOffsets returns the simulated completion offset of each of the
// task's schedule steps starting at `from`, or false when the matrix does
// not cover the task's waypoints. The last offset is the task's total
// duration, and the offsets align with Task.Actions.
func actionOffsets(from shared.WaypointSymbol, task *Task, matrix *TravelMatrix) ([]int64, bool) {
	switch {
	case task.Visit != nil:
		travel, ok := matrix.Duration(from, task.Visit.Waypoint)
		if !ok {
			return nil, false
		}
		return []int64{travel + actionOverheadSeconds}, true
	case task.Transport != nil:
		toSrc, ok := matrix.Duration(from, task.Transport.Src)
		if !ok {
			return nil, false
		}
		srcToDest, ok := matrix.Duration(task.Transport.Src, task.Transport.Dest)
		if !ok {
			return nil, false
		}
		pickup := toSrc + actionOverheadSeconds
		return []int64{pickup, pickup + srcToDest + actionOverheadSeconds}, true
	default:
		return nil, false
	}
}
