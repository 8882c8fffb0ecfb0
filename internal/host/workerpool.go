package host

import (
	"sync"

	tomb "gopkg.in/tomb.v2"
)

// queueDepth bounds how many pending commands a single symbol's actor
// will buffer before Submit starts applying backpressure to the reader.
const queueDepth = 256

// WorkerFunction is invoked by an actor's goroutine once per command, in
// strict per-symbol arrival order.
type WorkerFunction func(t *tomb.Tomb, symbol string, task dispatchedCommand)

// WorkerPool is a registry of per-symbol actors rather than a fixed-size
// pool draining a shared queue: every symbol gets exactly one goroutine,
// so commands for that symbol are always applied in the order Submit
// received them, while distinct symbols run concurrently with each
// other. New actors are spun up lazily on first reference.
type WorkerPool struct {
	mu      sync.Mutex
	workers map[string]*symbolWorker
	work    WorkerFunction
	pending sync.WaitGroup
}

type symbolWorker struct {
	queue chan dispatchedCommand
}

// NewWorkerPool builds an empty registry. work is called once per
// command, on the actor goroutine that owns the command's symbol.
func NewWorkerPool(work WorkerFunction) *WorkerPool {
	return &WorkerPool{
		workers: make(map[string]*symbolWorker),
		work:    work,
	}
}

// Submit enqueues task for symbol, starting a new actor goroutine under t
// if this is the first command seen for that symbol.
func (p *WorkerPool) Submit(t *tomb.Tomb, symbol string, task dispatchedCommand) {
	p.mu.Lock()
	w, ok := p.workers[symbol]
	if !ok {
		w = &symbolWorker{queue: make(chan dispatchedCommand, queueDepth)}
		p.workers[symbol] = w
		t.Go(func() error { return p.run(t, symbol, w) })
	}
	p.mu.Unlock()

	p.pending.Add(1)
	select {
	case w.queue <- task:
	case <-t.Dying():
		p.pending.Done()
	}
}

// Broadcast enqueues task on every actor currently registered. Used for
// commands that carry no symbol (cancel, flush) and must reach every
// resident engine. It does not wait for delivery to complete; a future
// Submit for a symbol not yet registered at broadcast time cannot be
// targeted by it, which is correct — there is nothing on that symbol yet
// for the broadcast command to affect.
func (p *WorkerPool) Broadcast(t *tomb.Tomb, task dispatchedCommand) {
	p.mu.Lock()
	workers := make([]*symbolWorker, 0, len(p.workers))
	for _, w := range p.workers {
		workers = append(workers, w)
	}
	p.mu.Unlock()

	for _, w := range workers {
		p.pending.Add(1)
		select {
		case w.queue <- task:
		case <-t.Dying():
			p.pending.Done()
			return
		}
	}
}

// Wait blocks until every command so far handed to Submit or Broadcast has
// been applied by its actor. Callers must stop submitting before calling
// Wait, or it may return before a late submission is accounted for.
func (p *WorkerPool) Wait() {
	p.pending.Wait()
}

func (p *WorkerPool) run(t *tomb.Tomb, symbol string, w *symbolWorker) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case task := <-w.queue:
			p.work(t, symbol, task)
			p.pending.Done()
		}
	}
}
