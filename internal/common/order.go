// Package common holds the value types shared by the matching engine and
// its collaborators: sides, order types, time-in-force, and the Order
// record itself.
package common

import (
	"fmt"
	"time"
)

// Side identifies which side of the book an order belongs to.
type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "B"
	}
	return "S"
}

// OrderType distinguishes limit orders, which may rest on the book, from
// market orders, which never do.
type OrderType int

const (
	Limit OrderType = iota
	Market
)

func (t OrderType) String() string {
	if t == Limit {
		return "Limit"
	}
	return "Market"
}

// TimeInForce is accepted on input but only GTC is honored by the matching
// algorithm; the rest are reserved hooks for callers that want to extend
// the engine's order-lifetime semantics later.
type TimeInForce int

const (
	GTC TimeInForce = iota // Good till cancelled.
	IOC                    // Immediate or cancel.
	GTD                    // Good till date.
	FOK                    // Fill or kill.
)

func (t TimeInForce) String() string {
	switch t {
	case GTC:
		return "GTC"
	case IOC:
		return "IOC"
	case GTD:
		return "GTD"
	case FOK:
		return "FOK"
	default:
		return "UNKNOWN"
	}
}

// Order is an immutable-by-convention record. The only field ever mutated
// on a resting order is Quantity (on a partial fill of the resting head),
// which also bumps UpdatedAt.
type Order struct {
	ID          uint64
	UserID      uint64
	Side        Side
	OrderType   OrderType
	TimeInForce TimeInForce
	Price       uint64 // Non-negative; market orders carry 0.
	Quantity    uint64 // Strictly positive while resting.
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// New constructs an order with both timestamps set to now.
func New(id, userID uint64, side Side, orderType OrderType, tif TimeInForce, price, quantity uint64) Order {
	now := time.Now()
	return Order{
		ID:          id,
		UserID:      userID,
		Side:        side,
		OrderType:   orderType,
		TimeInForce: tif,
		Price:       price,
		Quantity:    quantity,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (o Order) String() string {
	return fmt.Sprintf(
		"Order{id=%d user=%d side=%s type=%s tif=%s price=%d qty=%d}",
		o.ID, o.UserID, o.Side, o.OrderType, o.TimeInForce, o.Price, o.Quantity,
	)
}
