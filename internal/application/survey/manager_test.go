package survey

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whyando/spacetraders/internal/adapters/persistence"
	"github.com/whyando/spacetraders/internal/domain/fleet"
	"github.com/whyando/spacetraders/internal/domain/shared"
	"github.com/whyando/spacetraders/test/helpers"
)

func deposits(goods ...string) []fleet.SurveyDeposit {
	out := make([]fleet.SurveyDeposit, 0, len(goods))
	for _, g := range goods {
		out = append(out, fleet.SurveyDeposit{Symbol: g})
	}
	return out
}

func TestBestSurveyForPicksHighestYield(t *testing.T) {
	clock := shared.NewMockClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	repo := persistence.NewSurveyRepository(helpers.NewTestDB(t))
	manager := NewManager(repo, clock)
	ctx := context.Background()

	expires := clock.Now().Add(time.Hour)
	err := manager.InsertSurveys(ctx, []fleet.Survey{
		{Signature: "SIG-1", Symbol: "X1-S-ASTEROID", Deposits: deposits("IRON_ORE", "ICE_WATER"), Expiration: expires},
		{Signature: "SIG-2", Symbol: "X1-S-ASTEROID", Deposits: deposits("IRON_ORE", "IRON_ORE", "ICE_WATER"), Expiration: expires},
		{Signature: "SIG-3", Symbol: "X1-S-OTHER", Deposits: deposits("IRON_ORE"), Expiration: expires},
	})
	require.NoError(t, err)

	key, best, ok := manager.BestSurveyFor("X1-S-ASTEROID", "IRON_ORE")
	require.True(t, ok)
	assert.NotEmpty(t, key)
	assert.Equal(t, "SIG-2", best.Signature)

	_, _, ok = manager.BestSurveyFor("X1-S-ASTEROID", "GOLD_ORE")
	assert.False(t, ok)
}

func TestBestSurveyForSkipsExpired(t *testing.T) {
	clock := shared.NewMockClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	repo := persistence.NewSurveyRepository(helpers.NewTestDB(t))
	manager := NewManager(repo, clock)
	ctx := context.Background()

	err := manager.InsertSurveys(ctx, []fleet.Survey{
		{Signature: "SIG-1", Symbol: "X1-S-ASTEROID", Deposits: deposits("IRON_ORE"), Expiration: clock.Now().Add(10 * time.Minute)},
	})
	require.NoError(t, err)

	clock.Advance(11 * time.Minute)

	_, _, ok := manager.BestSurveyFor("X1-S-ASTEROID", "IRON_ORE")
	assert.False(t, ok)
	assert.Equal(t, 0, manager.ActiveCount())
}

func TestRemoveSurveyPurgesPoolAndStore(t *testing.T) {
	clock := shared.NewMockClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	db := helpers.NewTestDB(t)
	repo := persistence.NewSurveyRepository(db)
	manager := NewManager(repo, clock)
	ctx := context.Background()

	err := manager.InsertSurveys(ctx, []fleet.Survey{
		{Signature: "SIG-1", Symbol: "X1-S-ASTEROID", Deposits: deposits("IRON_ORE"), Expiration: clock.Now().Add(time.Hour)},
	})
	require.NoError(t, err)

	key, _, ok := manager.BestSurveyFor("X1-S-ASTEROID", "IRON_ORE")
	require.True(t, ok)
	require.NoError(t, manager.RemoveSurvey(ctx, key))

	_, _, ok = manager.BestSurveyFor("X1-S-ASTEROID", "IRON_ORE")
	assert.False(t, ok)

	stored, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestLoadRestoresUnexpiredSurveys(t *testing.T) {
	clock := shared.NewMockClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	db := helpers.NewTestDB(t)
	repo := persistence.NewSurveyRepository(db)
	ctx := context.Background()

	first := NewManager(repo, clock)
	err := first.InsertSurveys(ctx, []fleet.Survey{
		{Signature: "SIG-1", Symbol: "X1-S-ASTEROID", Deposits: deposits("IRON_ORE"), Expiration: clock.Now().Add(time.Hour)},
		{Signature: "SIG-2", Symbol: "X1-S-ASTEROID", Deposits: deposits("IRON_ORE"), Expiration: clock.Now().Add(-time.Hour)},
	})
	require.NoError(t, err)

	second := NewManager(repo, clock)
	require.NoError(t, second.Load(ctx))
	assert.Equal(t, 1, second.ActiveCount())
}
