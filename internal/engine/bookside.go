package engine

import (
	"fmt"

	"github.com/skuldlabs/clob/internal/common"
	"github.com/tidwall/btree"
)

// priceLevels is the ordered price→PriceLevel map backed by
// github.com/tidwall/btree, giving O(log P) best-price lookups where P is
// the number of distinct resting prices.
//
// Both sides use the same ascending-by-price comparator; "best" is then
// simply Max() for bids and Min() for asks.
type priceLevels = btree.BTreeG[*PriceLevel]

func newPriceLevels() *priceLevels {
	return btree.NewBTreeG(func(a, b *PriceLevel) bool {
		return a.Price < b.Price
	})
}

// BookSide is one side (bid or ask) of the book: the ordered map of price
// levels plus its running aggregates.
type BookSide struct {
	Side      common.Side
	prices    *priceLevels
	Volume    uint64 // Σ PriceLevel.Volume
	Total     uint64 // Σ price·quantity across every resting order (notional)
	NumOrders uint64 // count of resting orders
}

func NewBookSide(side common.Side) *BookSide {
	return &BookSide{
		Side:   side,
		prices: newPriceLevels(),
	}
}

// AddOrder inserts or appends order onto its price level and bumps the
// side's aggregates. Returns the stored order (a copy; orders are value
// types once resting).
func (s *BookSide) AddOrder(order common.Order) common.Order {
	level, ok := s.prices.Get(&PriceLevel{Price: order.Price})
	if !ok {
		level = NewPriceLevel(order.Price)
		s.prices.Set(level)
	}
	level.Append(order)
	s.Volume += order.Quantity
	s.Total += order.Price * order.Quantity
	s.NumOrders++
	return order
}

// RemoveOrder deletes order from its price level, drops the level if it's
// now empty, and adjusts aggregates. In non-silent mode it emits the
// acknowledge-cancel event. In both modes it then emits the
// best-price-change event when the removed order's price was at (or past)
// the side's best, per emitBestPriceChange; removing a worse-priced order
// emits none. The silent path is used mid-match, where the trade event
// itself already reports the maker, so no separate cancel-ack is needed —
// but the best-price-change still fires, even when the side empties
// entirely.
//
// The best-price-change event reports the *removed* order's quantity, not
// the new depth at the resulting best price.
func (s *BookSide) RemoveOrder(order common.Order, sink Sink, silent bool) (common.Order, bool) {
	level, ok := s.prices.Get(&PriceLevel{Price: order.Price})
	if !ok {
		return common.Order{}, false
	}
	removed, ok := level.Remove(order.ID)
	if !ok {
		return common.Order{}, false
	}

	if !silent {
		sink.Emit(fmt.Sprintf("A, %d, %d", removed.UserID, removed.ID))
	}

	s.Volume -= removed.Quantity
	s.Total -= removed.Price * removed.Quantity
	s.NumOrders--
	if level.IsEmpty() {
		s.prices.Delete(level)
	}

	s.emitBestPriceChange(sink, removed.Price, removed.Quantity)
	return removed, true
}

// emitBestPriceChange implements the "B" event rule for a mutation that
// removed quantity at price: it fires only when price was at (or past) the
// side's current best.
func (s *BookSide) emitBestPriceChange(sink Sink, price, quantity uint64) {
	code, best := "B", s.MaxPrice()
	if s.Side == common.Sell {
		code, best = "S", s.MinPrice()
	}

	crossed := price < best
	if s.Side == common.Sell {
		crossed = price > best
	}
	if crossed {
		return
	}

	if s.Volume == 0 {
		sink.Emit(fmt.Sprintf("B, %s, -, -", code))
		return
	}
	sink.Emit(fmt.Sprintf("B, %s, %d, %d", code, best, quantity))
}

// DecreaseVolumeAndTotal adjusts the side's aggregates for a partial fill
// of a resting head order whose quantity was trimmed via PriceLevel.UpdateHead
// (which only touches level-local volume). order carries the *traded*
// quantity and the level's price.
func (s *BookSide) DecreaseVolumeAndTotal(order common.Order) {
	s.Volume -= order.Quantity
	s.Total -= order.Price * order.Quantity
}

func (s *BookSide) MaxPriceQueue() (*PriceLevel, bool) {
	return s.prices.Max()
}

func (s *BookSide) MinPriceQueue() (*PriceLevel, bool) {
	return s.prices.Min()
}

// MaxPrice returns the largest resting price on this side, or 0 if empty.
func (s *BookSide) MaxPrice() uint64 {
	if level, ok := s.prices.Max(); ok {
		return level.Price
	}
	return 0
}

// MinPrice returns the smallest resting price on this side, or
// math.MaxUint64 if empty.
func (s *BookSide) MinPrice() uint64 {
	if level, ok := s.prices.Min(); ok {
		return level.Price
	}
	return sentinelMaxPrice
}

// Flush clears every level and resets aggregates — a full book reset.
func (s *BookSide) Flush() {
	s.prices = newPriceLevels()
	s.Volume = 0
	s.Total = 0
	s.NumOrders = 0
}

// Levels returns every resting price level in ascending price order, for
// tests and diagnostics.
func (s *BookSide) Levels() []*PriceLevel {
	out := make([]*PriceLevel, 0, s.prices.Len())
	s.prices.Scan(func(level *PriceLevel) bool {
		out = append(out, level)
		return true
	})
	return out
}
