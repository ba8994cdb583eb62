package engine

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tamaskk/foodybackend-sub000/core"
)

func TestEventBusSync(t *testing.T) {
	bus := NewEventBus(DispatchSync)
	count := 0
	bus.Subscribe(core.EventActionRecorded, func(ctx context.Context, e core.Event) { count++ })
	bus.Publish(context.Background(), core.NewActionRecorded(core.UserID("u"), "recipes_saved", 1))
	if count != 1 {
		t.Fatalf("want 1 got %d", count)
	}
}

func TestEventBusAsync(t *testing.T) {
	bus := NewEventBus(DispatchAsync)
	defer bus.Close()
	ch := make(chan struct{})
	bus.Subscribe(core.EventActionRecorded, func(ctx context.Context, e core.Event) { close(ch) })
	bus.Publish(context.Background(), core.NewActionRecorded(core.UserID("u"), "recipes_saved", 1))
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("timeout")
	}
}

func TestEventBusFullQueueDoesNotDrop(t *testing.T) {
	bus := NewEventBus(DispatchAsync, WithQueueSize(1), WithWorkers(1))
	var handled atomic.Int64
	release := make(chan struct{})
	bus.Subscribe(core.EventActionRecorded, func(ctx context.Context, e core.Event) {
		<-release
		handled.Add(1)
	})
	for i := 0; i < 50; i++ {
		bus.Publish(context.Background(), core.NewActionRecorded("u", "likes_given", 1))
	}
	close(release)
	bus.Close()
	if got := handled.Load(); got != 50 {
		t.Fatalf("want 50 handled got %d", got)
	}
}

func TestEventBusUnsubscribe(t *testing.T) {
	bus := NewEventBus(DispatchSync)
	count := 0
	unsub := bus.Subscribe(core.EventLevelUp, func(ctx context.Context, e core.Event) { count++ })
	unsub()
	bus.Publish(context.Background(), core.NewLevelUp("u", 2, 10))
	if count != 0 {
		t.Fatalf("handler ran after unsubscribe")
	}
}

func TestEventBusAfterCloseDispatchesInline(t *testing.T) {
	bus := NewEventBus(DispatchAsync)
	bus.Close()
	count := 0
	bus.Subscribe(core.EventLevelUp, func(ctx context.Context, e core.Event) { count++ })
	bus.Publish(context.Background(), core.NewLevelUp("u", 2, 10))
	if count != 1 {
		t.Fatalf("want inline dispatch after close, got %d", count)
	}
}
