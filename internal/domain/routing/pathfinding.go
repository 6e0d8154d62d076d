package routing

import (
	"container/heap"
	"errors"
	"fmt"
	"math"

	"github.com/whyando/spacetraders/internal/domain/fleet"
	"github.com/whyando/spacetraders/internal/domain/shared"
)

const (
	cruiseNavModifier = 25.0
	burnNavModifier   = 12.5
)

// ErrNoRoute is returned when no fuel-feasible path exists.
var ErrNoRoute = errors.New("no route")

// Edge is one direct jump between two waypoints at a specific flight mode.
type Edge struct {
	Distance       int64
	TravelDuration int64
	FuelCost       int64
	FlightMode     fleet.FlightMode
}

// EdgeBetween returns the best single-hop edge between two waypoints given a
// fuel budget: Burn when 2d fits the budget, Cruise when d fits, else none.
func EdgeBetween(a, b *shared.Waypoint, speed, fuelMax int64) (Edge, bool) {
	distance := a.Distance(b)

	if 2*distance <= fuelMax {
		duration := int64(math.Round(15.0 + burnNavModifier/float64(speed)*float64(distance)))
		return Edge{
			Distance:       distance,
			TravelDuration: duration,
			FuelCost:       2 * distance,
			FlightMode:     fleet.FlightModeBurn,
		}, true
	}

	if distance <= fuelMax {
		duration := int64(math.Round(15.0 + cruiseNavModifier/float64(speed)*float64(distance)))
		return Edge{
			Distance:       distance,
			TravelDuration: duration,
			FuelCost:       distance,
			FlightMode:     fleet.FlightModeCruise,
		}, true
	}

	return Edge{}, false
}

// Hop is one leg of a computed route.
type Hop struct {
	Waypoint    shared.WaypointSymbol
	Edge        Edge
	SrcIsMarket bool
	DstIsMarket bool
}

// Route is a fuel-feasible path between two waypoints. ReqTerminalFuel is the
// Cruise fuel needed to later escape a non-market destination to its closest
// market; the executor refuels accordingly before the final hop.
type Route struct {
	Hops              []Hop
	MinTravelDuration int64
	ReqTerminalFuel   int64
}

// Pathfinder computes fuel-aware minimum-duration routes within one system.
type Pathfinder struct {
	waypoints     map[shared.WaypointSymbol]*shared.Waypoint
	closestMarket map[shared.WaypointSymbol]*closestMarket
}

type closestMarket struct {
	symbol   shared.WaypointSymbol
	distance int64
}

// NewPathfinder indexes a system's waypoints and precomputes, for every
// non-market waypoint, its closest market neighbor.
func NewPathfinder(waypoints []shared.Waypoint) *Pathfinder {
	index := make(map[shared.WaypointSymbol]*shared.Waypoint, len(waypoints))
	for i := range waypoints {
		index[waypoints[i].Symbol] = &waypoints[i]
	}
	closest := make(map[shared.WaypointSymbol]*closestMarket)
	for i := range waypoints {
		w := &waypoints[i]
		if w.IsMarket() {
			continue
		}
		var best *closestMarket
		for j := range waypoints {
			m := &waypoints[j]
			if !m.IsMarket() {
				continue
			}
			d := w.Distance(m)
			if best == nil || d < best.distance {
				best = &closestMarket{symbol: m.Symbol, distance: d}
			}
		}
		closest[w.Symbol] = best
	}
	return &Pathfinder{waypoints: index, closestMarket: closest}
}

// Route computes the minimum-duration fuel-feasible path.
//
// Edge budgets:
//   - market <-> market: fuelCapacity
//   - src (non-market) -> market: startFuel
//   - market -> dst (non-market): fuelCapacity - reqEscape
//   - src (non-market) -> dst (non-market) direct: startFuel - reqEscape
func (p *Pathfinder) Route(
	srcSymbol, destSymbol shared.WaypointSymbol,
	speed, startFuel, fuelCapacity int64,
) (*Route, error) {
	if _, ok := p.waypoints[srcSymbol]; !ok {
		return nil, fmt.Errorf("unknown waypoint %s", srcSymbol)
	}
	dst, ok := p.waypoints[destSymbol]
	if !ok {
		return nil, fmt.Errorf("unknown waypoint %s", destSymbol)
	}
	destIsMarket := dst.IsMarket()

	var reqEscapeFuel int64
	if !destIsMarket {
		closest := p.closestMarket[destSymbol]
		if closest == nil {
			return nil, fmt.Errorf("no market reachable from %s: %w", destSymbol, ErrNoRoute)
		}
		reqEscapeFuel = closest.distance // assumes CRUISE escape
	}

	neighbors := func(xSymbol shared.WaypointSymbol) []dijkstraEdge {
		x := p.waypoints[xSymbol]
		var edges []dijkstraEdge
		if x.IsMarket() {
			for ySymbol, y := range p.waypoints {
				if ySymbol == xSymbol || !y.IsMarket() {
					continue
				}
				if e, ok := EdgeBetween(x, y, speed, fuelCapacity); ok {
					edges = append(edges, dijkstraEdge{to: ySymbol, cost: e.TravelDuration})
				}
			}
			if !destIsMarket {
				if e, ok := EdgeBetween(x, dst, speed, fuelCapacity-reqEscapeFuel); ok {
					edges = append(edges, dijkstraEdge{to: destSymbol, cost: e.TravelDuration})
				}
			}
			return edges
		}
		// Non-market nodes only have outgoing edges when they are the start.
		if xSymbol != srcSymbol {
			return nil
		}
		for ySymbol, y := range p.waypoints {
			if !y.IsMarket() {
				continue
			}
			if e, ok := EdgeBetween(x, y, speed, startFuel); ok {
				edges = append(edges, dijkstraEdge{to: ySymbol, cost: e.TravelDuration})
			}
		}
		if !destIsMarket {
			if e, ok := EdgeBetween(x, dst, speed, startFuel-reqEscapeFuel); ok {
				edges = append(edges, dijkstraEdge{to: destSymbol, cost: e.TravelDuration})
			}
		}
		return edges
	}

	path, total, found := dijkstra(srcSymbol, destSymbol, neighbors)
	if !found {
		return nil, fmt.Errorf("%s -> %s: %w", srcSymbol, destSymbol, ErrNoRoute)
	}

	hops := make([]Hop, 0, len(path)-1)
	for i := 0; i+1 < len(path); i++ {
		a := p.waypoints[path[i]]
		b := p.waypoints[path[i+1]]
		var fuelMax int64
		switch {
		case a.IsMarket() && b.IsMarket():
			fuelMax = fuelCapacity
		case a.IsMarket():
			fuelMax = fuelCapacity - reqEscapeFuel
		case b.IsMarket():
			fuelMax = startFuel
		default:
			fuelMax = startFuel - reqEscapeFuel
		}
		e, ok := EdgeBetween(a, b, speed, fuelMax)
		if !ok {
			return nil, fmt.Errorf("hop %s -> %s infeasible at budget %d: %w", a.Symbol, b.Symbol, fuelMax, ErrNoRoute)
		}
		hops = append(hops, Hop{
			Waypoint:    b.Symbol,
			Edge:        e,
			SrcIsMarket: a.IsMarket(),
			DstIsMarket: b.IsMarket(),
		})
	}

	return &Route{
		Hops:              hops,
		MinTravelDuration: total,
		ReqTerminalFuel:   reqEscapeFuel,
	}, nil
}

// TravelMatrix computes the pairwise duration and distance matrices over a
// waypoint set, routing with a full tank. Used by the logistics planner.
func (p *Pathfinder) TravelMatrix(
	waypoints []shared.WaypointSymbol,
	fuelCapacity, speed int64,
) (durations [][]int64, distances [][]int64, err error) {
	n := len(waypoints)
	durations = make([][]int64, n)
	distances = make([][]int64, n)
	for i := 0; i < n; i++ {
		durations[i] = make([]int64, n)
		distances[i] = make([]int64, n)
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			route, rerr := p.Route(waypoints[i], waypoints[j], speed, fuelCapacity, fuelCapacity)
			if rerr != nil {
				return nil, nil, fmt.Errorf("travel matrix %s -> %s: %w", waypoints[i], waypoints[j], rerr)
			}
			durations[i][j] = route.MinTravelDuration
			var dist int64
			for _, hop := range route.Hops {
				dist += hop.Edge.Distance
			}
			distances[i][j] = dist
		}
	}
	return durations, distances, nil
}

type dijkstraEdge struct {
	to   shared.WaypointSymbol
	cost int64
}

type pqItem struct {
	symbol shared.WaypointSymbol
	dist   int64
	index  int
}

type priorityQueue []*pqItem

func (pq priorityQueue) Len() int           { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool { return pq[i].dist < pq[j].dist }
func (pq priorityQueue) Swap(i, j int)      { pq[i], pq[j] = pq[j], pq[i]; pq[i].index = i; pq[j].index = j }
func (pq *priorityQueue) Push(x interface{}) {
	item := x.(*pqItem)
	item.index = len(*pq)
	*pq = append(*pq, item)
}
func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*pq = old[:n-1]
	return item
}

func dijkstra(
	start, goal shared.WaypointSymbol,
	neighbors func(shared.WaypointSymbol) []dijkstraEdge,
) (path []shared.WaypointSymbol, total int64, found bool) {
	dist := map[shared.WaypointSymbol]int64{start: 0}
	prev := map[shared.WaypointSymbol]shared.WaypointSymbol{}
	visited := map[shared.WaypointSymbol]bool{}

	pq := &priorityQueue{}
	heap.Init(pq)
	heap.Push(pq, &pqItem{symbol: start, dist: 0})

	for pq.Len() > 0 {
		item := heap.Pop(pq).(*pqItem)
		if visited[item.symbol] {
			continue
		}
		visited[item.symbol] = true
		if item.symbol == goal {
			break
		}
		for _, e := range neighbors(item.symbol) {
			next := item.dist + e.cost
			if d, ok := dist[e.to]; !ok || next < d {
				dist[e.to] = next
				prev[e.to] = item.symbol
				heap.Push(pq, &pqItem{symbol: e.to, dist: next})
			}
		}
	}

	total, found = dist[goal]
	if !found || !visited[goal] {
		return nil, 0, false
	}
	path = []shared.WaypointSymbol{goal}
	for cur := goal; cur != start; {
		cur = prev[cur]
		path = append(path, cur)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, total, true
}
