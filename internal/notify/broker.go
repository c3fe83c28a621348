// Package notify fans committed change events out to live subscribers.
package notify

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"Mansoor88-6/team-time-tracker/internal/models"
)

// DefaultBuffer is used when Subscribe is given a non-positive buffer.
const DefaultBuffer = 64

// Broker delivers every published event to all current subscribers.
// Publish never blocks: a subscriber that cannot keep up is disconnected and
// must refetch a snapshot before subscribing again.
type Broker struct {
	logger *zap.Logger
	now    func() time.Time

	mu     sync.Mutex
	seq    int64
	nextID int
	subs   map[int]chan models.ChangeEvent
	closed bool
}

func NewBroker(logger *zap.Logger) *Broker {
	return &Broker{
		logger: logger,
		now:    time.Now,
		subs:   make(map[int]chan models.ChangeEvent),
	}
}

// Publish stamps event with the next sequence number and delivers it.
// It returns the stamped event.
func (b *Broker) Publish(event models.ChangeEvent) models.ChangeEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	event.Seq = b.seq
	if event.Timestamp.IsZero() {
		event.Timestamp = b.now().UTC()
	}
	if b.closed {
		return event
	}

	for id, ch := range b.subs {
		select {
		case ch <- event:
		default:
			delete(b.subs, id)
			close(ch)
			b.logger.Warn("Dropped slow subscriber",
				zap.Int("subscriber", id),
				zap.Int64("seq", event.Seq),
			)
		}
	}
	return event
}

// Subscribe registers a subscriber. The returned channel is closed when the
// subscriber is cancelled, falls behind, or the broker closes.
func (b *Broker) Subscribe(buffer int) (<-chan models.ChangeEvent, func()) {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	ch := make(chan models.ChangeEvent, buffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	b.logger.Debug("Subscriber added", zap.Int("subscriber", id))

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}
	return ch, cancel
}

// Seq returns the sequence number of the last published event.
func (b *Broker) Seq() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.seq
}

// Subscribers returns the number of connected subscribers.
func (b *Broker) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close disconnects every subscriber. Later publishes are stamped but not delivered.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
	b.logger.Info("Change broker closed")
}
