// Package events provides the synchronous in-process event bus. Node
// operations publish domain events after persisting; listeners (embedding
// indexer, automation runner, parent timestamp updater) subscribe by
// event id.
package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"antbox-backend/internal/domain"
	"antbox-backend/pkg/observability"
)

// Handler processes one domain event. A non-nil error is logged by the bus
// and never surfaces to the publisher.
type Handler interface {
	Handle(ctx context.Context, event domain.DomainEvent) error
	Name() string
}

// HandlerFunc adapts a named function to the Handler interface.
type HandlerFunc struct {
	HandlerName string
	Fn          func(ctx context.Context, event domain.DomainEvent) error
}

func (h HandlerFunc) Handle(ctx context.Context, event domain.DomainEvent) error {
	return h.Fn(ctx, event)
}

func (h HandlerFunc) Name() string { return h.HandlerName }

// Bus dispatches events synchronously to subscribers registered for the
// event's id. Publish returns after every subscriber has run; subscriber
// failures are isolated so one broken listener cannot block node writes.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]Handler
	logger      *zap.Logger
	metrics     *observability.Collector
}

// NewBus creates an event bus with no subscribers.
func NewBus(logger *zap.Logger, metrics *observability.Collector) *Bus {
	return &Bus{
		subscribers: make(map[string][]Handler),
		logger:      logger,
		metrics:     metrics,
	}
}

// Subscribe registers a handler for an event id. The same handler may
// subscribe to several ids.
func (b *Bus) Subscribe(eventID string, handler Handler) error {
	if eventID == "" {
		return fmt.Errorf("event id cannot be empty")
	}
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventID] = append(b.subscribers[eventID], handler)

	b.logger.Info("subscribed event handler",
		zap.String("handler", handler.Name()),
		zap.String("eventId", eventID),
	)
	return nil
}

// Unsubscribe removes handlers registered under the same name for an
// event id.
func (b *Bus) Unsubscribe(eventID string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	kept := b.subscribers[eventID][:0]
	for _, h := range b.subscribers[eventID] {
		if h.Name() != handler.Name() {
			kept = append(kept, h)
		}
	}
	if len(kept) == 0 {
		delete(b.subscribers, eventID)
		return
	}
	b.subscribers[eventID] = kept
}

// Publish delivers the event to every subscriber of its id, in subscription
// order, on the caller's goroutine. It always returns nil: delivery problems
// are the subscribers' to report, not the publisher's to handle.
func (b *Bus) Publish(ctx context.Context, event domain.DomainEvent) error {
	if event == nil {
		return nil
	}

	eventID := event.EventID()
	b.mu.RLock()
	handlers := make([]Handler, len(b.subscribers[eventID]))
	copy(handlers, b.subscribers[eventID])
	b.mu.RUnlock()

	if b.metrics != nil {
		b.metrics.EventsPublished.WithLabelValues(eventID).Inc()
	}

	for _, handler := range handlers {
		start := time.Now()
		err := b.invoke(ctx, handler, event)
		if err != nil {
			if b.metrics != nil {
				b.metrics.SubscriberErrors.WithLabelValues(handler.Name()).Inc()
			}
			b.logger.Error("event handler failed",
				zap.String("handler", handler.Name()),
				zap.String("eventId", eventID),
				zap.String("aggregateId", event.AggregateID()),
				zap.Error(err),
				zap.Duration("duration", time.Since(start)),
			)
			continue
		}
		b.logger.Debug("event handler succeeded",
			zap.String("handler", handler.Name()),
			zap.String("eventId", eventID),
			zap.Duration("duration", time.Since(start)),
		)
	}
	return nil
}

// invoke runs a single handler, converting panics into errors so a
// misbehaving subscriber cannot take down the publishing operation.
func (b *Bus) invoke(ctx context.Context, handler Handler, event domain.DomainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return handler.Handle(ctx, event)
}
