package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReserveCreditsOverwrites(t *testing.T) {
	l := NewLedger()
	l.SetCredits(100_000)

	l.ReserveCredits("fuel", 10_000)
	l.ReserveCredits("fuel", 4_000)

	assert.Equal(t, int64(4_000), l.EffectiveReservedCredits())
	assert.Equal(t, int64(96_000), l.AvailableCredits())
}

func TestAvailableCreditsSumsKeys(t *testing.T) {
	l := NewLedger()
	l.SetCredits(350_000)

	l.ReserveCredits("logistics/SHIP-1", 200_000)
	l.ReserveCredits("logistics/SHIP-2", 200_000)

	assert.Equal(t, int64(-50_000), l.AvailableCredits())
}

func TestGoodsChangeReducesEffectiveReservation(t *testing.T) {
	l := NewLedger()
	l.SetCredits(50_000)
	l.ReserveCredits("logistics/SHIP-1", 40_000)

	// Buying 30k worth of cargo spends reserved cash, not free cash.
	l.RegisterGoodsChange("logistics/SHIP-1", 30_000)
	l.SetCredits(20_000)
	assert.Equal(t, int64(10_000), l.EffectiveReservedCredits())
	assert.Equal(t, int64(10_000), l.AvailableCredits())

	// Selling the cargo restores the reservation to cash form.
	l.RegisterGoodsChange("logistics/SHIP-1", -30_000)
	l.SetCredits(55_000)
	assert.Equal(t, int64(40_000), l.EffectiveReservedCredits())
	assert.Equal(t, int64(15_000), l.AvailableCredits())
}

func TestGoodsValueNeverExceedsReservation(t *testing.T) {
	l := NewLedger()
	l.SetCredits(100_000)
	l.ReserveCredits("logistics/SHIP-1", 10_000)

	l.RegisterGoodsChange("logistics/SHIP-1", 25_000)

	// Over-bought goods cannot make the key reserve negative cash.
	assert.Equal(t, int64(0), l.EffectiveReservedCredits())
	assert.Equal(t, int64(100_000), l.AvailableCredits())
}

func TestReleaseReservation(t *testing.T) {
	l := NewLedger()
	l.SetCredits(100_000)
	l.ReserveCredits("jumpgate", 500_000)

	l.ReleaseReservation("jumpgate")

	assert.Equal(t, int64(0), l.EffectiveReservedCredits())
	assert.Equal(t, map[string]int64{}, l.Reservations())
}
