package feed

import (
	"context"
	"log"
	"os"
	"sync"

	"github.com/commitly/commitly/models"
)

// Change-feed event names follow the collection/document convention of the
// remote store: "profiles.documents.<id>.create" etc.
const (
	// Channel is the collection path the profile change feed is published on.
	Channel = "commitly.profiles"
)

// Event is one change-feed message. Payload carries the full document after
// the mutation; consumers must treat it as the latest known state, not a
// delta. Delivery is at-least-once and not strictly ordered.
type Event struct {
	Events  []string       `json:"events"`
	Payload models.Profile `json:"payload"`
}

// Handler receives change events. Handlers run on the bus's delivery
// goroutine and should return quickly.
type Handler func(Event)

// Bus is a push-based change feed for the profile collection.
type Bus interface {
	Publish(ctx context.Context, ev Event) error
	// Subscribe registers a handler and returns a cancel function that tears
	// the subscription down. Callers must invoke cancel exactly once.
	Subscribe(h Handler) (cancel func())
}

// SubscribeToProfileUpdates delivers change payloads for a single user's
// document. Events carrying another userId are discarded.
func SubscribeToProfileUpdates(bus Bus, userID string, onChange func(models.Profile)) (unsubscribe func()) {
	return bus.Subscribe(func(ev Event) {
		if ev.Payload.UserID != userID {
			return
		}
		onChange(ev.Payload)
	})
}

// MemoryBus is an in-process Bus. It backs tests and deployments without a
// redis transport configured.
type MemoryBus struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Event
	logger *log.Logger
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		subs:   make(map[int]chan Event),
		logger: log.New(os.Stdout, "feed: ", log.LstdFlags|log.Lmsgprefix),
	}
}

func (b *MemoryBus) Publish(ctx context.Context, ev Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			// slow consumer; the transport is at-least-once, not lossless
			b.logger.Printf("Dropping change event for slow subscriber %d", id)
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(h Handler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	ch := make(chan Event, 16)
	b.subs[id] = ch
	b.mu.Unlock()

	go func() {
		for ev := range ch {
			h(ev)
		}
	}()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if ch, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
	}
}
