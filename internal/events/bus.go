// Package events carries change notifications between the session store, the
// cart store and the checkout watcher of one device. Notifications carry no
// state: subscribers pull the current values from the stores they depend on.
package events

import "sync"

type Topic string

const (
	// IdentityChanged fires after the session resolved, gained or lost a user.
	IdentityChanged Topic = "identity.changed"
	// LogoutRequested fires before a logout clears the credential.
	LogoutRequested Topic = "session.logout"
	// CartChanged fires after the active cart was loaded or mutated.
	CartChanged Topic = "cart.changed"
)

type Handler func(Topic)

// Bus dispatches synchronously in subscription order.
type Bus struct {
	mu   sync.Mutex
	next int
	subs []subscription
}

type subscription struct {
	id      int
	topics  map[Topic]struct{}
	handler Handler
}

func New() *Bus {
	return &Bus{}
}

// Subscribe registers h for the given topics (all topics when none are given)
// and returns a function that removes the subscription.
func (b *Bus) Subscribe(h Handler, topics ...Topic) func() {
	set := make(map[Topic]struct{}, len(topics))
	for _, t := range topics {
		set[t] = struct{}{}
	}
	b.mu.Lock()
	b.next++
	id := b.next
	b.subs = append(b.subs, subscription{id: id, topics: set, handler: h})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, s := range b.subs {
				if s.id == id {
					b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Publish invokes matching handlers outside the bus lock so handlers may
// publish in turn.
func (b *Bus) Publish(t Topic) {
	if b == nil {
		return
	}
	b.mu.Lock()
	snapshot := make([]subscription, len(b.subs))
	copy(snapshot, b.subs)
	b.mu.Unlock()

	for _, s := range snapshot {
		if len(s.topics) > 0 {
			if _, ok := s.topics[t]; !ok {
				continue
			}
		}
		s.handler(t)
	}
}
