// Package sink provides the two event-sink realizations the matching
// engine can be constructed with: a channel to an external consumer, or
// a line writer for stdout. Both satisfy engine.Sink (one method,
// Emit(string)) structurally — there is no explicit interface assertion
// needed.
package sink

import (
	"fmt"
	"io"
)

// ChannelSink delivers events to a channel, typically the single-consumer
// channel a multi-symbol host fans every engine's output into. Emit never
// blocks: a full or closed channel silently drops the message, since the
// engine must remain responsive to its next command and has no fallback
// on sink failure.
type ChannelSink struct {
	events chan<- string
}

func NewChannelSink(events chan<- string) *ChannelSink {
	return &ChannelSink{events: events}
}

func (s *ChannelSink) Emit(message string) {
	defer func() {
		// A send on a closed channel panics; treat it the same as a full
		// channel — a silently dropped event.
		_ = recover()
	}()
	select {
	case s.events <- message:
	default:
	}
}

// StdoutSink writes one event per line to the io.Writer it is built with
// (typically os.Stdout). The CLI's host does not use it — every engine
// there gets a ChannelSink — and a Book built with a nil sink writes
// through the engine package's own stdout writer, not through StdoutSink.
type StdoutSink struct {
	w io.Writer
}

func NewStdoutSink(w io.Writer) *StdoutSink {
	return &StdoutSink{w: w}
}

func (s *StdoutSink) Emit(message string) {
	fmt.Fprintln(s.w, message)
}
