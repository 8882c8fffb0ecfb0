// Package host dispatches a single command stream across one matching
// engine per symbol, fanning every engine's output into one consumer so
// the process as a whole behaves like a single ordered event stream on
// stdout even though symbols trade concurrently with each other.
package host

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	tomb "gopkg.in/tomb.v2"

	"github.com/skuldlabs/clob/internal/common"
	"github.com/skuldlabs/clob/internal/engine"
	"github.com/skuldlabs/clob/internal/parser"
	"github.com/skuldlabs/clob/internal/sink"
)

// warmupFlushes is how many flush commands must be observed before a
// newly created engine starts with trading enabled. Replay streams can
// use this to seed resting liquidity across several flush-delimited
// batches before any crossing order is allowed to actually trade.
const warmupFlushes = 10

// outputBuffer bounds the shared event channel every engine's sink
// writes into. A full buffer is dropped by the sink, never blocked on.
const outputBuffer = 4096

// dispatchedCommand pairs a parsed command with the flush-gate count
// observed synchronously by dispatch, at the command's actual position
// in the input stream. apply must use this stamped count rather than
// reading Host.flushCount live: by the time an actor goroutine gets
// scheduled, the single reading goroutine may already have processed
// several more flushes, which would make trading_enabled depend on
// scheduling instead of stream position.
type dispatchedCommand struct {
	cmd        parser.Command
	flushCount int
}

// Host owns every symbol's engine and the plumbing around it: a shared
// output channel, the flush-gate counter, and the per-symbol actor
// registry that applies commands to engines.
type Host struct {
	mu         sync.Mutex
	books      map[string]*engine.Book
	flushCount int

	output chan string
	pool   *WorkerPool
	log    zerolog.Logger
}

// NewHost constructs a host with no resident engines. log receives
// structured diagnostics (sink drops are not logged individually — they
// are silent by design — but actor lifecycle and parse failures are).
func NewHost(log zerolog.Logger) *Host {
	h := &Host{
		books:  make(map[string]*engine.Book),
		output: make(chan string, outputBuffer),
		log:    log,
	}
	h.pool = NewWorkerPool(h.apply)
	return h
}

// Run reads commands from r until EOF or a strict-mode parse failure,
// dispatching each to its engine and streaming resulting events to w.
// It returns the first parse error encountered in strict mode, or nil on
// a clean EOF or when ignoreErrors is set. sessionID tags (as batch_id)
// the diagnostic lines that Run and its parser log for this call; the
// "engine created" lines from bookFor go through the host's own logger
// and do not carry it. An empty string gets a generated one, so callers
// that don't care about cross-process correlation can just pass "".
func (h *Host) Run(ctx context.Context, r io.Reader, w io.Writer, ignoreErrors bool, sessionID string) error {
	t, ctx := tomb.WithContext(ctx)

	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	blog := h.log.With().Str("batch_id", sessionID).Logger()

	finish := make(chan struct{})
	drained := make(chan struct{})
	t.Go(func() error { return h.consume(t, w, finish, drained) })

	reader := parser.NewReader(r, ignoreErrors, blog)
	var readErr error

ReadLoop:
	for {
		select {
		case <-ctx.Done():
			break ReadLoop
		default:
		}

		cmd, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			blog.Error().Err(err).Msg("malformed command, aborting")
			readErr = err
			break
		}
		h.dispatch(t, cmd)
	}

	// Every command read so far has been handed to an actor; wait for
	// them to finish applying it, then let the consumer drain whatever
	// they wrote to the output channel before tearing it down. Only the
	// consumer goroutine ever writes to w, so there is no race on it.
	h.pool.Wait()
	close(finish)
	<-drained

	t.Kill(nil)
	if waitErr := t.Wait(); waitErr != nil && readErr == nil {
		return waitErr
	}
	return readErr
}

// dispatch stamps cmd with the flush count observed right now, in the
// single reading goroutine, at cmd's true position in the stream — then
// hands it to the actor pool. Snapshotting here (rather than letting the
// asynchronous actor read Host.flushCount later) is what keeps the
// warm-up gate deterministic regardless of goroutine scheduling.
func (h *Host) dispatch(t *tomb.Tomb, cmd parser.Command) {
	switch cmd.Kind {
	case parser.New:
		h.mu.Lock()
		flushCount := h.flushCount
		h.mu.Unlock()
		h.pool.Submit(t, cmd.Symbol, dispatchedCommand{cmd: cmd, flushCount: flushCount})
	case parser.Cancel:
		h.pool.Broadcast(t, dispatchedCommand{cmd: cmd})
	case parser.Flush:
		h.mu.Lock()
		h.flushCount++
		h.mu.Unlock()
		h.pool.Broadcast(t, dispatchedCommand{cmd: cmd})
	}
}

// apply is the WorkerFunction every actor goroutine runs commands
// through. It is only ever called by the single actor goroutine owning
// symbol, so no locking is needed around that symbol's engine.
func (h *Host) apply(_ *tomb.Tomb, symbol string, task dispatchedCommand) {
	cmd := task.cmd
	switch cmd.Kind {
	case parser.New:
		book := h.bookFor(symbol, task.flushCount)
		if cmd.Price == 0 {
			book.AddMarketOrder(cmd.Side, cmd.Quantity, cmd.UserID, cmd.UserOrderID)
		} else {
			book.AddLimitOrder(cmd.Side, cmd.Quantity, cmd.Price, cmd.UserID, cmd.UserOrderID, common.GTC)
		}
	case parser.Cancel:
		book := h.bookForIfExists(symbol)
		if book != nil {
			book.CancelOrderUser(cmd.UserID, cmd.UserOrderID)
		}
	case parser.Flush:
		h.forgetBook(symbol)
	}
}

// bookFor returns symbol's engine, creating it (gated on flushCount, as
// snapshotted by dispatch at the New command's actual stream position)
// if this is the first reference.
func (h *Host) bookFor(symbol string, flushCount int) *engine.Book {
	h.mu.Lock()
	defer h.mu.Unlock()

	if book, ok := h.books[symbol]; ok {
		return book
	}
	tradingEnabled := flushCount >= warmupFlushes
	book := engine.NewBook(symbol, tradingEnabled, sink.NewChannelSink(h.output))
	h.books[symbol] = book
	h.log.Info().Str("symbol", symbol).Bool("trading_enabled", tradingEnabled).Msg("engine created")
	return book
}

// bookForIfExists returns symbol's engine without creating one — a
// cancel broadcast reaching an actor whose symbol has no book (for
// example, after a flush) would otherwise create a useless empty engine.
func (h *Host) bookForIfExists(symbol string) *engine.Book {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.books[symbol]
}

// forgetBook discards symbol's engine entirely, mirroring the reference
// implementation's order_books.clear() on every flush: the next New
// command for this symbol builds a fresh engine under whatever the
// trading-enabled gate says at that later point, rather than resetting
// the existing engine's aggregates in place.
func (h *Host) forgetBook(symbol string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.books, symbol)
}

// consume is the sole writer to w for the lifetime of a Run call. On
// finish it drains whatever remains buffered in the output channel,
// signals drained, and returns — by construction nothing sends to
// output after finish is closed, so the drain loop terminates.
func (h *Host) consume(t *tomb.Tomb, w io.Writer, finish <-chan struct{}, drained chan<- struct{}) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case <-finish:
			for {
				select {
				case msg := <-h.output:
					fmt.Fprintln(w, msg)
				default:
					close(drained)
					return nil
				}
			}
		case msg := <-h.output:
			fmt.Fprintln(w, msg)
		}
	}
}
