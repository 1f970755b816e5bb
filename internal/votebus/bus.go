// Package votebus propagates vote-state changes inside one process so
// every rendered surface stays consistent after a local vote or unvote.
// It carries no durable state and makes no cross-process guarantee;
// reloads fall back to reading the ledger through the API.
package votebus

import "sync"

type Action string

const (
	ActionVote   Action = "vote"
	ActionUnvote Action = "unvote"
)

// Event is one vote-state change, delivered to subscribers in publish order.
type Event struct {
	AlbumID string `json:"albumId"`
	Action  Action `json:"action"`
}

type subscriber struct {
	id uint64
	fn func(Event)
}

// Bus is an explicit observer registry. It is handed to components that
// publish or subscribe; there is no package-level ambient instance.
type Bus struct {
	mu     sync.Mutex
	nextID uint64
	subs   []subscriber
}

func New() *Bus {
	return &Bus{}
}

// Subscription is the handle returned by Subscribe. After Unsubscribe
// returns, the callback is never invoked again.
type Subscription struct {
	bus  *Bus
	id   uint64
	once sync.Once
}

// Subscribe registers a callback for every subsequent event. Callbacks run
// on the publisher's goroutine and must not call back into the bus.
func (b *Bus) Subscribe(fn func(Event)) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	sub := &Subscription{bus: b, id: b.nextID}
	b.subs = append(b.subs, subscriber{id: sub.id, fn: fn})
	return sub
}

// Publish delivers the event to every live subscriber, in subscription
// order, before returning. Delivery happens under the bus lock, which is
// what makes "nothing after Unsubscribe" hold: Unsubscribe cannot complete
// mid-delivery, and once it returns the callback is out of the registry.
func (b *Bus) Publish(albumID string, action Action) {
	b.mu.Lock()
	defer b.mu.Unlock()
	event := Event{AlbumID: albumID, Action: action}
	for _, sub := range b.subs {
		sub.fn(event)
	}
}

func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		defer s.bus.mu.Unlock()
		for i, sub := range s.bus.subs {
			if sub.id == s.id {
				s.bus.subs = append(s.bus.subs[:i], s.bus.subs[i+1:]...)
				break
			}
		}
	})
}
