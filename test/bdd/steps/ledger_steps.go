package steps

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"

	"github.com/whyando/spacetraders/internal/domain/ledger"
)

type ledgerContext struct {
	ledger *ledger.Ledger
}

func (lc *ledgerContext) reset() {
	lc.ledger = ledger.NewLedger()
}

func (lc *ledgerContext) anAgentBalanceOf(credits int) error {
	lc.ledger.SetCredits(int64(credits))
	return nil
}

func (lc *ledgerContext) aReservationUnder(amount int, key string) error {
	lc.ledger.ReserveCredits(key, int64(amount))
	return nil
}

func (lc *ledgerContext) goodsBoughtUnder(value int, key string) error {
	lc.ledger.RegisterGoodsChange(key, int64(value))
	return nil
}

func (lc *ledgerContext) reservationReleased(key string) error {
	lc.ledger.ReleaseReservation(key)
	return nil
}

func (lc *ledgerContext) effectiveReservedShouldBe(expected int) error {
	got := lc.ledger.EffectiveReservedCredits()
	if got != int64(expected) {
		return fmt.Errorf("expected effective reserved %d, got %d", expected, got)
	}
	return nil
}

func (lc *ledgerContext) availableCreditsShouldBe(expected int) error {
	got := lc.ledger.AvailableCredits()
	if got != int64(expected) {
		return fmt.Errorf("expected available credits %d, got %d", expected, got)
	}
	return nil
}

// InitializeLedgerScenario registers credit reservation steps.
func InitializeLedgerScenario(ctx *godog.ScenarioContext) {
	lc := &ledgerContext{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		lc.reset()
		return ctx, nil
	})

	ctx.Step(`^an agent balance of (\d+) credits$`, lc.anAgentBalanceOf)
	ctx.Step(`^a reservation of (\d+) credits under "([^"]*)"$`, lc.aReservationUnder)
	ctx.Step(`^goods worth (\d+) credits bought under "([^"]*)"$`, lc.goodsBoughtUnder)
	ctx.Step(`^the reservation under "([^"]*)" is released$`, lc.reservationReleased)
	ctx.Step(`^the effective reserved credits should be (\d+)$`, lc.effectiveReservedShouldBe)
	ctx.Step(`^the available credits should be (-?\d+)$`, lc.availableCreditsShouldBe)
}
