package checkout

import (
	"sync"

	"bahri-storefront/internal/domain"
	"bahri-storefront/internal/events"
)

type cartReader interface {
	Snapshot() (domain.Cart, error)
}

type identityReader interface {
	Identity() domain.Identity
}

// Watcher keeps the latest quote for a device, recomputing it whenever the
// cart or the identity changes.
type Watcher struct {
	calc     Calculator
	cart     cartReader
	identity identityReader

	mu         sync.Mutex
	useLoyalty bool
	latest     domain.Quote
	listeners  map[int]func(domain.Quote)
	nextID     int

	unsubscribe func()
}

func NewWatcher(calc Calculator, bus *events.Bus, cart cartReader, identity identityReader) *Watcher {
	w := &Watcher{
		calc:      calc,
		cart:      cart,
		identity:  identity,
		listeners: make(map[int]func(domain.Quote)),
	}
	w.unsubscribe = bus.Subscribe(func(events.Topic) { w.Recompute() }, events.CartChanged, events.IdentityChanged)
	w.Recompute()
	return w
}

func (w *Watcher) Close() {
	w.unsubscribe()
}

// Recompute pulls the current cart and identity and refreshes the quote.
func (w *Watcher) Recompute() domain.Quote {
	c, _ := w.cart.Snapshot()
	id := w.identity.Identity()

	w.mu.Lock()
	q := w.calc.Quote(c.Subtotal(), id, w.useLoyalty)
	w.latest = q
	listeners := make([]func(domain.Quote), 0, len(w.listeners))
	for _, fn := range w.listeners {
		listeners = append(listeners, fn)
	}
	w.mu.Unlock()

	for _, fn := range listeners {
		fn(q)
	}
	return q
}

// SetUseLoyalty flips the loyalty toggle and returns the new quote.
func (w *Watcher) SetUseLoyalty(on bool) domain.Quote {
	w.mu.Lock()
	w.useLoyalty = on
	w.mu.Unlock()
	return w.Recompute()
}

func (w *Watcher) UseLoyalty() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.useLoyalty
}

func (w *Watcher) Latest() domain.Quote {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.latest
}

// OnChange registers fn to receive every recomputed quote.
func (w *Watcher) OnChange(fn func(domain.Quote)) func() {
	w.mu.Lock()
	w.nextID++
	id := w.nextID
	w.listeners[id] = fn
	w.mu.Unlock()
	return func() {
		w.mu.Lock()
		delete(w.listeners, id)
		w.mu.Unlock()
	}
}
