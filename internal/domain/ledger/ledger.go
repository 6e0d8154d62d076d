package ledger

import (
	"log"
	"sync"
)

type entry struct {
	reserved   int64
	goodsValue int64
}

// Ledger earmarks the agent's credits for future needs so that ship
// purchases never spend money a trading schedule is counting on.
//
// Reservations are keyed (fuel float, jumpgate fund, per-ship trading
// capital) and overwritten, never accumulated. When a ship converts reserved
// credits into goods the goods' value is registered against the key, which
// lowers the key's effective reservation; the credits are gone from the
// agent balance but the value still exists as cargo.
type Ledger struct {
	mu      sync.Mutex
	credits int64
	entries map[string]*entry
}

func NewLedger() *Ledger {
	return &Ledger{entries: map[string]*entry{}}
}

// SetCredits mirrors the agent's current credit balance.
func (l *Ledger) SetCredits(credits int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.credits = credits
}

func (l *Ledger) Credits() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.credits
}

// ReserveCredits sets the reservation for a key, replacing any prior amount.
func (l *Ledger) ReserveCredits(key string, amount int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.entries[key]
	if e == nil {
		e = &entry{}
		l.entries[key] = e
	}
	if e.reserved != amount {
		log.Printf("[ledger] reserve %s: %d -> %d", key, e.reserved, amount)
	}
	e.reserved = amount
}

// ReleaseReservation drops a key entirely.
func (l *Ledger) ReleaseReservation(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, key)
}

// RegisterGoodsChange records credits converted to or from cargo under a
// key. Positive delta means goods were bought (credits became cargo).
func (l *Ledger) RegisterGoodsChange(key string, valueDelta int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.entries[key]
	if e == nil {
		e = &entry{}
		l.entries[key] = e
	}
	e.goodsValue += valueDelta
	if e.goodsValue < 0 {
		e.goodsValue = 0
	}
}

// EffectiveReservedCredits is the sum over keys of the credits still needed
// in cash form. Goods already bought count toward their key's reservation.
func (l *Ledger) EffectiveReservedCredits() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.effectiveReservedLocked()
}

func (l *Ledger) effectiveReservedLocked() int64 {
	var total int64
	for _, e := range l.entries {
		remaining := e.reserved - e.goodsValue
		if remaining > 0 {
			total += remaining
		}
	}
	return total
}

// AvailableCredits is the balance minus effective reservations. May be
// negative when reservations outrun the balance.
func (l *Ledger) AvailableCredits() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.credits - l.effectiveReservedLocked()
}

// Reservations returns a snapshot of raw reserved amounts per key.
func (l *Ledger) Reservations() map[string]int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]int64, len(l.entries))
	for k, e := range l.entries {
		out[k] = e.reserved
	}
	return out
}
