package events

import (
	"log/slog"
	"sync"
	"time"
)

// Topic names the ordered streams the engine publishes.
type Topic string

const (
	TopicLog          Topic = "log"
	TopicStatus       Topic = "status"
	TopicNewCandidate Topic = "new_candidate"
	TopicLeap         Topic = "evolution_leap"
	TopicParetoUpdate Topic = "pareto_update"
)

// Event is one message on a topic. Payload is topic-specific and must be
// JSON-serializable for transport bridges.
type Event struct {
	Topic   Topic     `json:"topic"`
	Payload any       `json:"payload"`
	Time    time.Time `json:"time"`
}

// LogPayload carries log events.
type LogPayload struct {
	Message string `json:"message"`
	Level   string `json:"level"`
}

// StatusPayload carries progress updates for a live indicator.
type StatusPayload struct {
	Text       string `json:"text"`
	Generation int    `json:"generation"`
	Total      int    `json:"total"`
}

// Subscription is one independent consumer. Events arrive on C in publish
// order; when the buffer fills, the oldest buffered event is dropped so a
// slow consumer can never stall the loop.
type Subscription struct {
	C chan Event

	bus  *Bus
	once sync.Once
}

// Close detaches the subscription from the bus.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.remove(s)
		close(s.C)
	})
}

// Bus is a topic-ordered broadcast channel between the engine and its
// observers. A single publish lock preserves per-topic ordering for every
// subscriber.
type Bus struct {
	log *slog.Logger

	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

func NewBus(log *slog.Logger) *Bus {
	if log == nil {
		log = slog.Default()
	}
	return &Bus{log: log, subs: make(map[*Subscription]struct{})}
}

// Subscribe registers a consumer with the given buffer size.
func (b *Bus) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = 64
	}
	sub := &Subscription{C: make(chan Event, buffer), bus: b}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// Publish delivers the event to every subscriber without blocking.
func (b *Bus) Publish(topic Topic, payload any) {
	event := Event{Topic: topic, Payload: payload, Time: time.Now()}

	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		select {
		case sub.C <- event:
		default:
			// drop the oldest so recent events win
			select {
			case <-sub.C:
			default:
			}
			select {
			case sub.C <- event:
			default:
			}
		}
	}
}

// Log publishes onto the log topic and mirrors the message to the process
// logger.
func (b *Bus) Log(level, message string) {
	switch level {
	case "error":
		b.log.Error(message)
	case "warn":
		b.log.Warn(message)
	default:
		b.log.Info(message)
	}
	b.Publish(TopicLog, LogPayload{Message: message, Level: level})
}

func (b *Bus) remove(sub *Subscription) {
	b.mu.Lock()
	delete(b.subs, sub)
	b.mu.Unlock()
}

// SubscriberCount is used by tests and the status surface.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
