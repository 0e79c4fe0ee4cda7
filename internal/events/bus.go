// Package events carries domain events from the service layer to
// in-process subscribers and external consumers. Publication is
// fire-and-forget: a failing subscriber never affects the write that
// produced the event.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/terra-clan/challenge-engine/internal/models"
)

// Bus is the event publication port
type Bus interface {
	Publish(ctx context.Context, event models.DomainEvent) error
}

// Handler consumes a single domain event
type Handler func(ctx context.Context, event models.DomainEvent)

// Dispatcher is an in-process bus with per-type subscriber lists.
// Handlers run synchronously in publication order; panics are recovered
// so one bad subscriber cannot take down the publisher.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[models.EventType][]Handler
	all      []Handler
}

// NewDispatcher creates an empty dispatcher
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[models.EventType][]Handler)}
}

// Subscribe registers a handler for one event type
func (d *Dispatcher) Subscribe(eventType models.EventType, h Handler) {
	d.mu.Lock()
	d.handlers[eventType] = append(d.handlers[eventType], h)
	d.mu.Unlock()
}

// SubscribeAll registers a handler for every event type
func (d *Dispatcher) SubscribeAll(h Handler) {
	d.mu.Lock()
	d.all = append(d.all, h)
	d.mu.Unlock()
}

// Publish delivers the event to matching subscribers
func (d *Dispatcher) Publish(ctx context.Context, event models.DomainEvent) error {
	d.mu.RLock()
	targets := make([]Handler, 0, len(d.handlers[event.Type])+len(d.all))
	targets = append(targets, d.handlers[event.Type]...)
	targets = append(targets, d.all...)
	d.mu.RUnlock()

	for _, h := range targets {
		d.deliver(ctx, h, event)
	}
	return nil
}

func (d *Dispatcher) deliver(ctx context.Context, h Handler, event models.DomainEvent) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("event handler panicked",
				"event_type", event.Type,
				"event_id", event.ID,
				"panic", r,
			)
		}
	}()
	h(ctx, event)
}

// RedisPublisher forwards events to a Redis pub/sub channel for
// consumers outside the process
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

// NewRedisPublisher creates a publisher on the given channel
func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	if channel == "" {
		channel = "challenge.events"
	}
	return &RedisPublisher{client: client, channel: channel}
}

// Publish serializes the event and publishes it
func (p *RedisPublisher) Publish(ctx context.Context, event models.DomainEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event %s: %w", event.ID, err)
	}

	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event %s: %w", event.ID, err)
	}
	return nil
}

// Fanout publishes to several buses, logging individual failures instead
// of propagating them
type Fanout struct {
	buses []Bus
}

// NewFanout combines buses into one
func NewFanout(buses ...Bus) *Fanout {
	return &Fanout{buses: buses}
}

// Publish delivers the event to every bus
func (f *Fanout) Publish(ctx context.Context, event models.DomainEvent) error {
	for _, b := range f.buses {
		if err := b.Publish(ctx, event); err != nil {
			slog.Error("event publication failed",
				"event_type", event.Type,
				"event_id", event.ID,
				"error", err,
			)
		}
	}
	return nil
}
