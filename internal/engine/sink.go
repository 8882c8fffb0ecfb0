package engine

import "math"

// Sink is the engine's one-way event emitter. It is a capability consumed
// by the engine, not produced by it: inject a Sink at construction (see
// NewBook), or the engine defaults to writing to stdout through its own
// defaultSink. A Sink must never block the engine and must
// never retry — delivery is at-most-once from the engine's viewpoint.
//
// Implementations live in internal/sink; this interface is declared here,
// next to its only caller, per Go convention (accept interfaces).
type Sink interface {
	Emit(message string)
}

// sentinelMaxPrice is reported by BookSide.MinPrice when the ask side is
// empty, so it never wins a price comparison against a real ask.
const sentinelMaxPrice uint64 = math.MaxUint64
