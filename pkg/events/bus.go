package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event is a single published notification.
type Event struct {
	Name      string
	Payload   interface{}
	Published time.Time
}

// Handler consumes a delivered event.
type Handler func(context.Context, Event)

// BusConfig tunes delivery behaviour.
type BusConfig struct {
	BufferSize int
	Logger     *zap.Logger
}

// Bus is an in-process publish/subscribe primitive. Each subscriber owns a
// buffered channel drained by a dedicated goroutine, so publishing never
// blocks on a handler.
type Bus struct {
	bufferSize int
	logger     *zap.Logger

	mu          sync.Mutex
	subscribers []chan Event
	pending     []pendingSub
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	started     bool
}

// NewBus builds an event bus with the provided configuration.
func NewBus(cfg BusConfig) *Bus {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 64
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Bus{
		bufferSize: cfg.BufferSize,
		logger:     cfg.Logger,
	}
}

// Subscribe registers a handler. Must be called before Start.
func (b *Bus) Subscribe(handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.bufferSize)
	b.subscribers = append(b.subscribers, ch)

	if b.started {
		b.wg.Add(1)
		go b.deliver(ch, handler)
		return
	}

	// deferred until Start wires the context
	b.pending = append(b.pending, pendingSub{ch: ch, handler: handler})
}

type pendingSub struct {
	ch      chan Event
	handler Handler
}

// Start begins delivery to all registered subscribers. Safe to call once.
func (b *Bus) Start(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return
	}
	b.ctx, b.cancel = context.WithCancel(ctx)
	for _, sub := range b.pending {
		b.wg.Add(1)
		go b.deliver(sub.ch, sub.handler)
	}
	b.pending = nil
	b.started = true
	b.logger.Sugar().Infow("event bus started", "subscribers", len(b.subscribers))
}

// Stop cancels delivery goroutines and waits for them to exit.
func (b *Bus) Stop() {
	b.mu.Lock()
	if !b.started {
		b.mu.Unlock()
		return
	}
	b.cancel()
	b.mu.Unlock()
	b.wg.Wait()
	b.logger.Sugar().Infow("event bus stopped")
}

// Publish fans the event out to every subscriber.
func (b *Bus) Publish(event Event) error {
	b.mu.Lock()
	ctx := b.ctx
	started := b.started
	subscribers := b.subscribers
	b.mu.Unlock()

	if !started {
		return fmt.Errorf("event bus not started")
	}
	if event.Published.IsZero() {
		event.Published = time.Now().UTC()
	}

	for _, ch := range subscribers {
		select {
		case <-ctx.Done():
			return fmt.Errorf("event bus stopped: %w", ctx.Err())
		case ch <- event:
		}
	}
	return nil
}

func (b *Bus) deliver(ch chan Event, handler Handler) {
	defer b.wg.Done()
	for {
		select {
		case <-b.ctx.Done():
			return
		case event := <-ch:
			handler(b.ctx, event)
		}
	}
}
