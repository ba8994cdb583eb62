package engine

import (
	"context"
	"sync"

	"github.com/tamaskk/foodybackend-sub000/core"
)

type DispatchMode int

const (
	DispatchSync DispatchMode = iota
	DispatchAsync
)

const (
	DefaultQueueSize = 2048
	DefaultWorkers   = 4
)

type subscription struct {
	id  int64
	typ core.EventType
	fn  func(context.Context, core.Event)
}

// EventBus provides thread-safe pub/sub with sync and async dispatch.
type EventBus struct {
	mode         DispatchMode
	mu           sync.RWMutex
	subs         map[core.EventType]map[int64]subscription
	nextID       int64
	asyncQueue   chan core.Event
	asyncWorkers int
	inflight     sync.WaitGroup
	workers      sync.WaitGroup
	closeOnce    sync.Once
	closed       chan struct{}
}

// BusOption tunes an EventBus.
type BusOption func(*EventBus)

// WithQueueSize sets the async queue capacity.
func WithQueueSize(n int) BusOption {
	return func(e *EventBus) {
		if n > 0 {
			e.asyncQueue = make(chan core.Event, n)
		}
	}
}

// WithWorkers sets the number of async workers.
func WithWorkers(n int) BusOption {
	return func(e *EventBus) {
		if n > 0 {
			e.asyncWorkers = n
		}
	}
}

func NewEventBus(mode DispatchMode, opts ...BusOption) *EventBus {
	eb := &EventBus{
		mode:         mode,
		subs:         make(map[core.EventType]map[int64]subscription),
		asyncQueue:   make(chan core.Event, DefaultQueueSize),
		asyncWorkers: DefaultWorkers,
		closed:       make(chan struct{}),
	}
	for _, o := range opts {
		o(eb)
	}
	if mode == DispatchAsync {
		eb.startWorkers()
	}
	return eb
}

func (e *EventBus) startWorkers() {
	for i := 0; i < e.asyncWorkers; i++ {
		e.workers.Add(1)
		go func() {
			defer e.workers.Done()
			for {
				select {
				case ev := <-e.asyncQueue:
					e.dispatchSync(context.Background(), ev)
					e.inflight.Done()
				case <-e.closed:
					return
				}
			}
		}()
	}
}

// Close drains queued events, then stops the async workers. Events
// published after Close are dispatched synchronously.
func (e *EventBus) Close() {
	e.closeOnce.Do(func() {
		e.inflight.Wait()
		close(e.closed)
		e.workers.Wait()
	})
}

// Drain blocks until every event published so far has been handled.
func (e *EventBus) Drain() { e.inflight.Wait() }

// Subscribe registers a handler for an event type. Returns unsubscribe func.
func (e *EventBus) Subscribe(typ core.EventType, handler func(context.Context, core.Event)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	id := e.nextID
	if e.subs[typ] == nil {
		e.subs[typ] = make(map[int64]subscription)
	}
	e.subs[typ][id] = subscription{id: id, typ: typ, fn: handler}
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if m := e.subs[typ]; m != nil {
			delete(m, id)
		}
	}
}

// Publish sends an event to subscribers. In async mode it never blocks the
// caller: when the queue is full the event is handled on its own goroutine.
func (e *EventBus) Publish(ctx context.Context, ev core.Event) {
	if e.mode != DispatchAsync || e.isClosed() {
		e.dispatchSync(ctx, ev)
		return
	}
	e.inflight.Add(1)
	select {
	case e.asyncQueue <- ev:
	default:
		go func() {
			defer e.inflight.Done()
			e.dispatchSync(context.WithoutCancel(ctx), ev)
		}()
	}
}

func (e *EventBus) isClosed() bool {
	select {
	case <-e.closed:
		return true
	default:
		return false
	}
}

func (e *EventBus) dispatchSync(ctx context.Context, ev core.Event) {
	e.mu.RLock()
	subs := e.subs[ev.Type]
	// copy to avoid holding lock during callbacks
	handlers := make([]func(context.Context, core.Event), 0, len(subs))
	for _, s := range subs {
		handlers = append(handlers, s.fn)
	}
	e.mu.RUnlock()
	for _, h := range handlers {
		h(ctx, ev)
	}
}
