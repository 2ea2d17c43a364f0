package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusDeliversToAllSubscribers(t *testing.T) {
	bus := NewBus(BusConfig{BufferSize: 8})

	var mu sync.Mutex
	received := map[string]int{}
	done := make(chan struct{}, 2)

	for _, name := range []string{"a", "b"} {
		name := name
		bus.Subscribe(func(ctx context.Context, event Event) {
			mu.Lock()
			received[name]++
			mu.Unlock()
			done <- struct{}{}
		})
	}

	bus.Start(context.Background())
	defer bus.Stop()

	require.NoError(t, bus.Publish(Event{Name: "task.completed", Payload: "t-1"}))

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("event was not delivered to every subscriber")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, received["a"])
	assert.Equal(t, 1, received["b"])
}

func TestBusRejectsPublishBeforeStart(t *testing.T) {
	bus := NewBus(BusConfig{})
	err := bus.Publish(Event{Name: "task.queued"})
	require.Error(t, err)
}

func TestBusStampsPublishedTime(t *testing.T) {
	bus := NewBus(BusConfig{BufferSize: 1})

	got := make(chan Event, 1)
	bus.Subscribe(func(ctx context.Context, event Event) {
		got <- event
	})

	bus.Start(context.Background())
	defer bus.Stop()

	require.NoError(t, bus.Publish(Event{Name: "task.failed"}))

	select {
	case event := <-got:
		assert.False(t, event.Published.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestBusSubscribeAfterStart(t *testing.T) {
	bus := NewBus(BusConfig{BufferSize: 1})
	bus.Start(context.Background())
	defer bus.Stop()

	got := make(chan Event, 1)
	bus.Subscribe(func(ctx context.Context, event Event) {
		got <- event
	})

	require.NoError(t, bus.Publish(Event{Name: "task.queued", Payload: "t-9"}))

	select {
	case event := <-got:
		assert.Equal(t, "t-9", event.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("late subscriber missed the event")
	}
}

func TestBusStopIsIdempotent(t *testing.T) {
	bus := NewBus(BusConfig{BufferSize: 1})

	// stop before start is a no-op
	bus.Stop()

	bus.Subscribe(func(ctx context.Context, event Event) {})
	bus.Start(context.Background())
	bus.Stop()
	bus.Stop()
}
