// Package engine implements the per-symbol central-limit-order-book
// matching engine: two price-ordered BookSides, the PriceLevel FIFO
// queues within them, and the matching algorithm that executes incoming
// orders against the resting book while emitting a deterministic event
// stream.
package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/skuldlabs/clob/internal/common"
)

var (
	// ErrOrderAlreadyExists is returned (via InProcessOrder.Err, not as a
	// Go error) when a New command reuses a currently-resting id.
	ErrOrderAlreadyExists = errors.New("order already exists")
	// ErrTradingNotEnabled is returned (via InProcessOrder.Err) when a
	// crossing limit order arrives before trading has been enabled.
	ErrTradingNotEnabled = errors.New("trading is not enabled")
)

// InProcessOrder is the per-command summary returned by AddLimitOrder and
// AddMarketOrder.
type InProcessOrder struct {
	// Done lists every order fully consumed during this call: maker
	// orders fully filled, plus — when the incoming order itself fully
	// fills — a synthetic aggregate record of the incoming order at its
	// weighted average fill price.
	Done []common.Order
	// Partial is the resting remainder of either the incoming order or
	// the trimmed resting maker head, if any (at most one).
	Partial *common.Order
	// PartialQuantityProcessed is the quantity matched against Partial.
	PartialQuantityProcessed uint64
	// QuantityLeft is the unfilled remainder of the incoming order.
	QuantityLeft uint64
	// Err, when non-nil, describes a non-fatal command-level rejection:
	// duplicate id or trading disabled. It is never set alongside a
	// partial fill — those failure modes are refused before any match.
	Err error
}

// Book owns both sides of a single symbol's order book, an id→order index
// for O(1) cancel lookup, and the event sink commands are reported
// through.
type Book struct {
	Symbol         string
	Bids           *BookSide
	Asks           *BookSide
	TradingEnabled bool

	orders map[uint64]common.Order
	sink   Sink
}

// NewBook constructs an empty book for symbol. A nil sink defaults to
// writing events to stdout.
func NewBook(symbol string, tradingEnabled bool, sink Sink) *Book {
	if sink == nil {
		sink = defaultSink{}
	}
	return &Book{
		Symbol:         symbol,
		Bids:           NewBookSide(common.Buy),
		Asks:           NewBookSide(common.Sell),
		TradingEnabled: tradingEnabled,
		orders:         make(map[uint64]common.Order),
		sink:           sink,
	}
}

// Flush resets the book to ground state: both sides cleared, the id index
// emptied. Aggregates return to zero and best-price queries return their
// sentinels.
func (b *Book) Flush() {
	b.Bids.Flush()
	b.Asks.Flush()
	b.orders = make(map[uint64]common.Order)
}

func (b *Book) log(msg string) { b.sink.Emit(msg) }

// AddLimitOrder accepts a new limit order. It may execute immediately
// (fully or partially) against the opposite side, rest on the book, or
// both in sequence.
func (b *Book) AddLimitOrder(side common.Side, size, price, userID, id uint64, tif common.TimeInForce) InProcessOrder {
	result := InProcessOrder{QuantityLeft: size}

	if _, exists := b.orders[id]; exists {
		result.Err = ErrOrderAlreadyExists
		return result
	}

	opposite := b.opposite(side)
	crosses := crossFunc(side)
	quantityLeft := size

	for quantityLeft > 0 {
		if opposite.NumOrders == 0 {
			break
		}
		best, ok := b.bestOpposite(side)
		if !ok {
			break
		}
		if !crosses(price, best.Price) {
			break
		}
		if !b.TradingEnabled {
			result.Err = ErrTradingNotEnabled
			b.log(fmt.Sprintf("R, %d, %d", userID, id))
			return result
		}

		// TODO(FOK): if tif == common.FOK and the opposite side cannot
		// fully satisfy size at this limit price, break here without
		// trading instead of partially filling.

		b.log(fmt.Sprintf("A, %d, %d", userID, id))
		processed := b.processQueue(side, quantityLeft, userID, id)
		result.Done = append(result.Done, processed.Done...)
		result.Partial = processed.Partial
		result.PartialQuantityProcessed = processed.PartialQuantityProcessed
		quantityLeft = processed.QuantityLeft
		result.QuantityLeft = quantityLeft
	}

	if quantityLeft > 0 {
		newOrder := common.New(id, userID, side, common.Limit, tif, price, quantityLeft)
		if len(result.Done) > 0 {
			result.PartialQuantityProcessed = size - quantityLeft
			partial := newOrder
			result.Partial = &partial
		}

		b.log(fmt.Sprintf("A, %d, %d", userID, id))
		own := b.sideOf(side)
		priorBest := b.bestOwnPrice(side)
		stored := own.AddOrder(newOrder)
		b.orders[id] = stored

		if price > priorBest && side == common.Buy || price < priorBest && side == common.Sell {
			b.log(fmt.Sprintf("B, %s, %d, %d", sideCode(side), price, quantityLeft))
		} else if price == priorBest {
			level := b.bestOwnLevel(side)
			b.log(fmt.Sprintf("B, %s, %d, %d", sideCode(side), price, level.Volume))
		}
	} else {
		result.Done = append(result.Done, b.aggregateFill(id, userID, side, tif, size, result))
	}

	// TODO(IOC): if tif == common.IOC and result.QuantityLeft > 0, cancel
	// the just-rested remainder instead of leaving it resting.

	return result
}

// AddMarketOrder accepts a new market order: no price bound, never rests.
// If liquidity runs out, QuantityLeft reports what went unfilled.
//
// Unlike AddLimitOrder, a market order never checks TradingEnabled — it
// always executes against whatever liquidity is available.
func (b *Book) AddMarketOrder(side common.Side, size, userID, id uint64) InProcessOrder {
	result := InProcessOrder{QuantityLeft: size}
	opposite := b.opposite(side)
	quantityLeft := size

	for quantityLeft > 0 {
		if opposite.NumOrders == 0 {
			break
		}
		if _, ok := b.bestOpposite(side); !ok {
			break
		}

		b.log(fmt.Sprintf("A, %d, %d", userID, id))
		processed := b.processQueue(side, quantityLeft, userID, id)
		result.Done = append(result.Done, processed.Done...)
		result.Partial = processed.Partial
		result.PartialQuantityProcessed = processed.PartialQuantityProcessed
		quantityLeft = processed.QuantityLeft
	}
	result.QuantityLeft = quantityLeft
	if quantityLeft == 0 {
		filled := b.aggregateFill(id, userID, side, common.GTC, size, result)
		filled.OrderType = common.Market
		result.Done = append(result.Done, filled)
	}
	return result
}

// CancelOrderUser removes the order with the given id, if it currently
// rests, regardless of userID — the caller identity is not validated.
func (b *Book) CancelOrderUser(userID, id uint64) (common.Order, bool) {
	order, ok := b.orders[id]
	if !ok {
		return common.Order{}, false
	}
	delete(b.orders, id)

	side := b.sideOf(order.Side)
	return side.RemoveOrder(order, b.sink, false)
}

// cancelInternal removes order without emitting an acknowledge-cancel
// event — used mid-match, where the trade event already reports the
// maker. The side's best-price-change event still fires.
func (b *Book) cancelInternal(id uint64) (common.Order, bool) {
	order, ok := b.orders[id]
	if !ok {
		return common.Order{}, false
	}
	delete(b.orders, id)

	side := b.sideOf(order.Side)
	return side.RemoveOrder(order, b.sink, true)
}

// processQueue consumes resting liquidity at the opposite side's best price
// level until quantityToTrade is exhausted or that level empties, emitting
// one Trade event per maker counterparty and a best-price-change event after
// a head trim. Moving on to the next level (and, for limit orders, checking
// it against the limit price) is left to the caller's loop.
func (b *Book) processQueue(side common.Side, quantityToTrade, userID, id uint64) InProcessOrder {
	result := InProcessOrder{QuantityLeft: quantityToTrade}
	opposite := b.opposite(side)
	level, ok := b.bestOpposite(side)
	if !ok {
		return result
	}

	for result.QuantityLeft > 0 && !level.IsEmpty() {
		head, ok := level.Head()
		if !ok {
			break
		}

		if result.QuantityLeft < head.Quantity {
			trimmed := head
			trimmed.Quantity = head.Quantity - result.QuantityLeft
			trimmed.UpdatedAt = time.Now()
			tradedQty := result.QuantityLeft

			b.log(fmt.Sprintf("T, %d, %d, %d, %d, %d, %d",
				userID, id, head.UserID, head.ID, head.Price, tradedQty))

			level.UpdateHead(head, trimmed)
			b.orders[trimmed.ID] = trimmed
			opposite.DecreaseVolumeAndTotal(common.Order{Price: head.Price, Quantity: tradedQty})

			result.Partial = &trimmed
			result.PartialQuantityProcessed = tradedQty

			// Reports the remaining volume at this price level, not the
			// traded amount.
			b.log(fmt.Sprintf("B, %s, %d, %d", sideCode(opposite.Side), level.Price, level.Volume))

			result.QuantityLeft = 0
		} else {
			result.QuantityLeft -= head.Quantity

			b.log(fmt.Sprintf("T, %d, %d, %d, %d, %d, %d",
				userID, id, head.UserID, head.ID, head.Price, head.Quantity))

			if filled, ok := b.cancelInternal(head.ID); ok {
				result.Done = append(result.Done, filled)
			}
		}
	}

	return result
}

// aggregateFill builds the synthetic "fully filled" record appended to
// Done when the incoming order's quantity left reaches zero: price is the
// integer-division weighted average fill price across every trade plus
// any partial.
func (b *Book) aggregateFill(id, userID uint64, side common.Side, tif common.TimeInForce, size uint64, result InProcessOrder) common.Order {
	var totalQuantity, totalPrice uint64
	for _, o := range result.Done {
		totalQuantity += o.Quantity
		totalPrice += o.Price * o.Quantity
	}
	if result.PartialQuantityProcessed > 0 && result.Partial != nil {
		totalQuantity += result.PartialQuantityProcessed
		totalPrice += result.Partial.Price * result.PartialQuantityProcessed
	}
	avgPrice := uint64(0)
	if totalQuantity > 0 {
		avgPrice = totalPrice / totalQuantity
	}
	return common.New(id, userID, side, common.Limit, tif, avgPrice, totalQuantity)
}

func (b *Book) opposite(side common.Side) *BookSide {
	if side == common.Buy {
		return b.Asks
	}
	return b.Bids
}

func (b *Book) sideOf(side common.Side) *BookSide {
	if side == common.Buy {
		return b.Bids
	}
	return b.Asks
}

// bestOpposite returns the best-priced level on the opposite side: the
// minimum ask for an incoming buy, the maximum bid for an incoming sell.
func (b *Book) bestOpposite(side common.Side) (*PriceLevel, bool) {
	if side == common.Buy {
		return b.Asks.MinPriceQueue()
	}
	return b.Bids.MaxPriceQueue()
}

func (b *Book) bestOwnPrice(side common.Side) uint64 {
	if side == common.Buy {
		return b.Bids.MaxPrice()
	}
	return b.Asks.MinPrice()
}

func (b *Book) bestOwnLevel(side common.Side) *PriceLevel {
	var level *PriceLevel
	var ok bool
	if side == common.Buy {
		level, ok = b.Bids.MaxPriceQueue()
	} else {
		level, ok = b.Asks.MinPriceQueue()
	}
	if !ok {
		return &PriceLevel{}
	}
	return level
}

// crossFunc returns the crossing predicate for side: a buy crosses when
// its price is at or above the opposite best; a sell crosses when its
// price is at or below the opposite best.
func crossFunc(side common.Side) func(price, bestPrice uint64) bool {
	if side == common.Buy {
		return func(price, bestPrice uint64) bool { return price >= bestPrice }
	}
	return func(price, bestPrice uint64) bool { return price <= bestPrice }
}

func sideCode(side common.Side) string {
	if side == common.Buy {
		return "B"
	}
	return "S"
}

// defaultSink writes events to stdout when no Sink is supplied at
// construction.
type defaultSink struct{}

func (defaultSink) Emit(message string) { fmt.Println(message) }
