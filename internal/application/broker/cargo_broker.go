package broker

import (
	"context"
	"fmt"
	"log"

	"github.com/whyando/spacetraders/internal/domain/shared"
)

// TransferActor executes the actual ship-to-ship cargo transfer once the
// broker has paired a producer and consumer at the same waypoint.
type TransferActor interface {
	TransferCargo(ctx context.Context, fromShip, toShip, good string, units int64) error
}

type producer struct {
	ship     string
	waypoint shared.WaypointSymbol
	cargo    map[string]int64
	done     chan error
}

type consumer struct {
	ship     string
	waypoint shared.WaypointSymbol
	space    int64
	received map[string]int64
	done     chan error
}

// Broker is a single-threaded rendezvous between cargo producers (miners,
// siphoners) and consumers (shuttles) parked at the same waypoint. Producers
// block until drained, consumers until filled; pairing and transfer calls
// happen on the broker's own goroutine.
type Broker struct {
	actor     TransferActor
	producers chan *producer
	consumers chan *consumer
}

func NewBroker(actor TransferActor) *Broker {
	return &Broker{
		actor:     actor,
		producers: make(chan *producer),
		consumers: make(chan *consumer),
	}
}

// Run operates the rendezvous until ctx is cancelled. Parked parties are
// released with ctx.Err() on shutdown.
func (b *Broker) Run(ctx context.Context) error {
	waiting := map[shared.WaypointSymbol]*waypointQueue{}

	for {
		select {
		case <-ctx.Done():
			for _, q := range waiting {
				for _, p := range q.producers {
					p.done <- ctx.Err()
				}
				for _, c := range q.consumers {
					c.done <- ctx.Err()
				}
			}
			return ctx.Err()

		case p := <-b.producers:
			q := getQueue(waiting, p.waypoint)
			q.producers = append(q.producers, p)
			b.settle(ctx, q)

		case c := <-b.consumers:
			q := getQueue(waiting, c.waypoint)
			q.consumers = append(q.consumers, c)
			b.settle(ctx, q)
		}
	}
}

type waypointQueue struct {
	producers []*producer
	consumers []*consumer
}

func getQueue(waiting map[shared.WaypointSymbol]*waypointQueue, w shared.WaypointSymbol) *waypointQueue {
	q := waiting[w]
	if q == nil {
		q = &waypointQueue{}
		waiting[w] = q
	}
	return q
}

// settle pairs parked parties at one waypoint until one side runs out.
func (b *Broker) settle(ctx context.Context, q *waypointQueue) {
	for len(q.producers) > 0 && len(q.consumers) > 0 {
		p := q.producers[0]
		c := q.consumers[0]

		for good, units := range p.cargo {
			if c.space == 0 {
				break
			}
			transfer := units
			if transfer > c.space {
				transfer = c.space
			}
			if err := b.actor.TransferCargo(ctx, p.ship, c.ship, good, transfer); err != nil {
				log.Printf("[broker] transfer %s -> %s failed: %v", p.ship, c.ship, err)
				p.done <- err
				c.done <- err
				q.producers = q.producers[1:]
				q.consumers = q.consumers[1:]
				return
			}
			p.cargo[good] -= transfer
			if p.cargo[good] == 0 {
				delete(p.cargo, good)
			}
			c.space -= transfer
			c.received[good] += transfer
		}

		if len(p.cargo) == 0 {
			p.done <- nil
			q.producers = q.producers[1:]
		}
		if c.space == 0 {
			c.done <- nil
			q.consumers = q.consumers[1:]
		}
	}
}

// TransferAllCargo parks the producing ship until every listed unit has been
// handed to consumers at the waypoint.
func (b *Broker) TransferAllCargo(ctx context.Context, ship string, waypoint shared.WaypointSymbol, cargo map[string]int64) error {
	if len(cargo) == 0 {
		return nil
	}
	remaining := make(map[string]int64, len(cargo))
	for good, units := range cargo {
		if units > 0 {
			remaining[good] = units
		}
	}
	p := &producer{ship: ship, waypoint: waypoint, cargo: remaining, done: make(chan error, 1)}
	select {
	case b.producers <- p:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-p.done:
		if err != nil {
			return fmt.Errorf("transfer from %s at %s: %w", ship, waypoint, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ReceiveCargo parks the consuming ship until its free space is filled, and
// returns what it received per good.
func (b *Broker) ReceiveCargo(ctx context.Context, ship string, waypoint shared.WaypointSymbol, space int64) (map[string]int64, error) {
	if space <= 0 {
		return map[string]int64{}, nil
	}
	c := &consumer{ship: ship, waypoint: waypoint, space: space, received: map[string]int64{}, done: make(chan error, 1)}
	select {
	case b.consumers <- c:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case err := <-c.done:
		if err != nil {
			return nil, fmt.Errorf("receive into %s at %s: %w", ship, waypoint, err)
		}
		return c.received, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
