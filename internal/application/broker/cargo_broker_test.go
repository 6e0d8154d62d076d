package broker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type recordedTransfer struct {
	From, To, Good string
	Units          int64
}

type fakeActor struct {
	mu        sync.Mutex
	transfers []recordedTransfer
}

func (f *fakeActor) TransferCargo(_ context.Context, fromShip, toShip, good string, units int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transfers = append(f.transfers, recordedTransfer{From: fromShip, To: toShip, Good: good, Units: units})
	return nil
}

func TestBrokerPairsProducerAndConsumer(t *testing.T) {
	actor := &fakeActor{}
	b := NewBroker(actor)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	g, gctx := errgroup.WithContext(ctx)
	var received map[string]int64
	g.Go(func() error {
		return b.TransferAllCargo(gctx, "DRONE-1", "X1-S-ASTEROID", map[string]int64{"IRON_ORE": 15})
	})
	g.Go(func() error {
		var err error
		received, err = b.ReceiveCargo(gctx, "SHUTTLE-1", "X1-S-ASTEROID", 40)
		return err
	})

	// The consumer has spare space left, so it stays parked after the
	// producer drains. Feed it a second producer to fill up.
	g.Go(func() error {
		return b.TransferAllCargo(gctx, "DRONE-2", "X1-S-ASTEROID", map[string]int64{"IRON_ORE": 25})
	})

	require.NoError(t, g.Wait())
	assert.Equal(t, map[string]int64{"IRON_ORE": 40}, received)

	actor.mu.Lock()
	defer actor.mu.Unlock()
	var total int64
	for _, tr := range actor.transfers {
		assert.Equal(t, "SHUTTLE-1", tr.To)
		total += tr.Units
	}
	assert.Equal(t, int64(40), total)
}

func TestBrokerMatchesByWaypoint(t *testing.T) {
	actor := &fakeActor{}
	b := NewBroker(actor)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	producerDone := make(chan error, 1)
	go func() {
		producerDone <- b.TransferAllCargo(ctx, "DRONE-1", "X1-S-ASTEROID", map[string]int64{"IRON_ORE": 10})
	}()

	// Consumer at a different waypoint must not be paired.
	otherCtx, otherCancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer otherCancel()
	_, err := b.ReceiveCargo(otherCtx, "SHUTTLE-1", "X1-S-ELSEWHERE", 40)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// Consumer at the right waypoint drains the producer.
	received, err := b.ReceiveCargo(ctx, "SHUTTLE-2", "X1-S-ASTEROID", 10)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"IRON_ORE": 10}, received)
	assert.NoError(t, <-producerDone)
}

func TestBrokerReleasesPartiesOnShutdown(t *testing.T) {
	b := NewBroker(&fakeActor{})

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- b.Run(ctx) }()

	producerErr := make(chan error, 1)
	go func() {
		producerErr <- b.TransferAllCargo(context.Background(), "DRONE-1", "X1-S-ASTEROID", map[string]int64{"IRON_ORE": 10})
	}()

	// Give the producer time to park, then shut down.
	time.Sleep(50 * time.Millisecond)
	cancel()

	assert.Error(t, <-producerErr)
	assert.ErrorIs(t, <-runDone, context.Canceled)
}
