package engine

import "github.com/skuldlabs/clob/internal/common"

// PriceLevel holds every resting order at one price, in strict arrival
// order. The head of Orders is always the next order to trade.
//
// Backed by a plain slice rather than container/list, so a partial-fill
// head mutation is an index write instead of a node splice.
type PriceLevel struct {
	Price  uint64
	Volume uint64
	Orders []common.Order
}

func NewPriceLevel(price uint64) *PriceLevel {
	return &PriceLevel{Price: price}
}

// Append pushes an order to the tail of the queue.
func (pl *PriceLevel) Append(order common.Order) {
	pl.Volume += order.Quantity
	pl.Orders = append(pl.Orders, order)
}

// Head returns the first (next-to-trade) order, if any.
func (pl *PriceLevel) Head() (common.Order, bool) {
	if len(pl.Orders) == 0 {
		return common.Order{}, false
	}
	return pl.Orders[0], true
}

// UpdateHead replaces the head order in place with newOrder, adjusting
// volume by the quantity delta. newOrder.ID must equal oldOrder.ID — it is
// the same resting order, partially consumed.
func (pl *PriceLevel) UpdateHead(oldOrder, newOrder common.Order) {
	if len(pl.Orders) == 0 || pl.Orders[0].ID != oldOrder.ID || newOrder.ID != oldOrder.ID {
		panic("engine: UpdateHead precondition violated: new.id must equal old.id at the queue head")
	}
	pl.Volume -= oldOrder.Quantity
	pl.Volume += newOrder.Quantity
	pl.Orders[0] = newOrder
}

// Remove deletes the order with the given id from anywhere in the level,
// in O(depth). Returns the removed order, or false if no such order rests
// here.
func (pl *PriceLevel) Remove(id uint64) (common.Order, bool) {
	for i, o := range pl.Orders {
		if o.ID == id {
			pl.Volume -= o.Quantity
			pl.Orders = append(pl.Orders[:i], pl.Orders[i+1:]...)
			return o, true
		}
	}
	return common.Order{}, false
}

func (pl *PriceLevel) Len() int { return len(pl.Orders) }

func (pl *PriceLevel) IsEmpty() bool { return len(pl.Orders) == 0 }
