package market

import (
	"time"

	"github.com/whyando/spacetraders/internal/domain/shared"
)

// TradeType classifies how a market participates in a good's trade.
type TradeType string

const (
	TradeImport   TradeType = "IMPORT"
	TradeExport   TradeType = "EXPORT"
	TradeExchange TradeType = "EXCHANGE"
)

// Supply is the ordinal inventory label of a trade good.
type Supply string

const (
	SupplyScarce   Supply = "SCARCE"
	SupplyLimited  Supply = "LIMITED"
	SupplyModerate Supply = "MODERATE"
	SupplyHigh     Supply = "HIGH"
	SupplyAbundant Supply = "ABUNDANT"
)

var supplyRank = map[Supply]int{
	SupplyScarce:   0,
	SupplyLimited:  1,
	SupplyModerate: 2,
	SupplyHigh:     3,
	SupplyAbundant: 4,
}

// AtLeast reports s >= other on the supply ordering.
func (s Supply) AtLeast(other Supply) bool { return supplyRank[s] >= supplyRank[other] }

// AtMost reports s <= other on the supply ordering.
func (s Supply) AtMost(other Supply) bool { return supplyRank[s] <= supplyRank[other] }

// Activity is the ordinal market-dynamism label of a trade good.
type Activity string

const (
	ActivityRestricted Activity = "RESTRICTED"
	ActivityWeak       Activity = "WEAK"
	ActivityGrowing    Activity = "GROWING"
	ActivityStrong     Activity = "STRONG"
)

// TradeGood is one good's row in a market snapshot.
type TradeGood struct {
	Symbol        string    `json:"symbol"`
	Type          TradeType `json:"type"`
	Supply        Supply    `json:"supply"`
	Activity      *Activity `json:"activity,omitempty"`
	TradeVolume   int64     `json:"tradeVolume"`
	PurchasePrice int64     `json:"purchasePrice"`
	SellPrice     int64     `json:"sellPrice"`
}

// Market is one sampled market payload.
type Market struct {
	Symbol     shared.WaypointSymbol `json:"symbol"`
	TradeGoods []TradeGood           `json:"tradeGoods"`
}

// Good looks up a good in the snapshot, or nil.
func (m *Market) Good(symbol string) *TradeGood {
	for i := range m.TradeGoods {
		if m.TradeGoods[i].Symbol == symbol {
			return &m.TradeGoods[i]
		}
	}
	return nil
}

// MarketRemote is the market's static shape: what it imports/exports/exchanges.
// Visible from anywhere, unlike prices which require a ship on site.
type MarketRemote struct {
	Symbol   shared.WaypointSymbol `json:"symbol"`
	Imports  []string              `json:"imports"`
	Exports  []string              `json:"exports"`
	Exchange []string              `json:"exchange"`
}

// IsPureExchange reports whether the market neither imports nor exports;
// typically fuel stops not worth a refresh visit.
func (m *MarketRemote) IsPureExchange() bool {
	return len(m.Imports) == 0 && len(m.Exports) == 0
}

func (m *MarketRemote) DoesImport(good string) bool {
	for _, g := range m.Imports {
		if g == good {
			return true
		}
	}
	return false
}

func (m *MarketRemote) DoesExport(good string) bool {
	for _, g := range m.Exports {
		if g == good {
			return true
		}
	}
	return false
}

// WithTimestamp pairs a snapshot with its observation time. A snapshot is
// authoritative when fresher than the cached one.
type WithTimestamp[T any] struct {
	Timestamp time.Time `json:"timestamp"`
	Data      T         `json:"data"`
}
