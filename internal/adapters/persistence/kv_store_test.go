package persistence_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whyando/spacetraders/internal/adapters/persistence"
	"github.com/whyando/spacetraders/test/helpers"
)

type fleetState struct {
	Era string `json:"era"`
}

func TestKVStoreRoundTrip(t *testing.T) {
	db := helpers.NewTestDB(t)
	store := persistence.NewKVStore(db)
	ctx := context.Background()

	_, ok, err := persistence.GetValue[fleetState](ctx, store, "CALLSIGN/state")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, persistence.SetValue(ctx, store, "CALLSIGN/state", fleetState{Era: "StartingSystem1"}))

	got, ok, err := persistence.GetValue[fleetState](ctx, store, "CALLSIGN/state")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "StartingSystem1", got.Era)
}

func TestKVStoreOverwrites(t *testing.T) {
	db := helpers.NewTestDB(t)
	store := persistence.NewKVStore(db)
	ctx := context.Background()

	require.NoError(t, persistence.SetValue(ctx, store, "CALLSIGN/ship_assignments", map[string]string{"probe-1": "SHIP-1"}))
	require.NoError(t, persistence.SetValue(ctx, store, "CALLSIGN/ship_assignments", map[string]string{"probe-1": "SHIP-2"}))

	got, ok, err := persistence.GetValue[map[string]string](ctx, store, "CALLSIGN/ship_assignments")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, map[string]string{"probe-1": "SHIP-2"}, got)
}
