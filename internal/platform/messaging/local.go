package messaging

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"campus/internal/shared/events"
)

// ErrNoSubscribers is returned by LocalBus.Publish when nothing in the process
// listens on the topic. The outbox relay then keeps the row pending.
var ErrNoSubscribers = errors.New("local bus: no subscribers for topic")

// LocalBus is an in-process publish/subscribe bus, selected with
// EVENT_BUS=local and used by tests to observe relayed events.
type LocalBus struct {
	mu          sync.RWMutex
	subscribers map[string][]chan events.Envelope
	logger      *slog.Logger
}

func NewLocalBus(logger *slog.Logger) *LocalBus {
	return &LocalBus{
		subscribers: make(map[string][]chan events.Envelope),
		logger:      logger,
	}
}

func (b *LocalBus) Publish(ctx context.Context, topic string, event events.Envelope) error {
	b.mu.RLock()
	subs := append([]chan events.Envelope(nil), b.subscribers[topic]...)
	b.mu.RUnlock()
	if len(subs) == 0 {
		return ErrNoSubscribers
	}

	for _, sub := range subs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sub <- event:
		default:
			if b.logger != nil {
				b.logger.Warn("dropping event for slow subscriber",
					"event", "local_bus_publish_drop",
					"module", "internal/platform/messaging",
					"layer", "platform",
					"topic", topic,
					"event_id", event.EventID,
				)
			}
		}
	}
	return nil
}

func (b *LocalBus) Subscribe(
	ctx context.Context,
	topic string,
	handler func(context.Context, events.Envelope) error,
) {
	ch := make(chan events.Envelope, 128)

	b.mu.Lock()
	b.subscribers[topic] = append(b.subscribers[topic], ch)
	b.mu.Unlock()

	go func() {
		for {
			select {
			case <-ctx.Done():
				b.removeSubscriber(topic, ch)
				return
			case event := <-ch:
				if err := handler(ctx, event); err != nil && b.logger != nil {
					b.logger.Error("local subscriber failed",
						"event", "local_bus_consume_failed",
						"module", "internal/platform/messaging",
						"layer", "platform",
						"topic", topic,
						"event_id", event.EventID,
						"event_type", event.EventType,
						"error", err.Error(),
					)
				}
			}
		}
	}()
}

func (b *LocalBus) removeSubscriber(topic string, target chan events.Envelope) {
	b.mu.Lock()
	defer b.mu.Unlock()

	items := b.subscribers[topic]
	filtered := make([]chan events.Envelope, 0, len(items))
	for _, item := range items {
		if item != target {
			filtered = append(filtered, item)
		}
	}
	b.subscribers[topic] = filtered
}
