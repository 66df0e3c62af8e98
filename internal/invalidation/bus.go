package invalidation

import (
	"context"
	"sync"
	"time"
)

// Event is one invalidation as seen by subscribers.
type Event struct {
	Tags []string  `json:"tags,omitempty"`
	All  bool      `json:"all,omitempty"`
	At   time.Time `json:"at"`
}

type subscriber struct {
	ch     chan Event
	lagged bool
}

// Bus is the in-process invalidation transport. Sessions and websocket clients
// subscribe to it. A subscriber whose buffer is full misses the event and receives
// an All event next, so it never keeps stale state silently.
type Bus struct {
	mu   sync.Mutex
	subs map[uint64]*subscriber
	next uint64
	now  func() time.Time
}

func NewBus() *Bus {
	return &Bus{subs: make(map[uint64]*subscriber), now: time.Now}
}

func (b *Bus) Name() string { return "bus" }

// Subscribe returns a channel of events that is closed once ctx is done.
func (b *Bus) Subscribe(ctx context.Context, buffer int) <-chan Event {
	if buffer < 1 {
		buffer = 1
	}
	sub := &subscriber{ch: make(chan Event, buffer)}

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = sub
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, id)
		close(sub.ch)
		b.mu.Unlock()
	}()
	return sub.ch
}

// Subscribers returns the number of active subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *Bus) Invalidate(_ context.Context, tags Set) error {
	b.publish(Event{Tags: tags.Strings()})
	return nil
}

func (b *Bus) InvalidateAll(_ context.Context) error {
	b.publish(Event{All: true})
	return nil
}

func (b *Bus) publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ev.At = b.now().UTC()
	for _, sub := range b.subs {
		out := ev
		if sub.lagged {
			out = Event{All: true, At: ev.At}
		}
		select {
		case sub.ch <- out:
			sub.lagged = false
		default:
			sub.lagged = true
		}
	}
}
