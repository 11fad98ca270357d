// Package cart keeps the device's active cart in step with its identity and
// persists every mutation under the identity's cart key.
package cart

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"bahri-storefront/internal/domain"
	"bahri-storefront/internal/events"
	"bahri-storefront/internal/storage"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type identitySource interface {
	Current() (domain.Identity, bool)
}

type Option func(*Store)

func WithPolicy(p SwitchPolicy) Option {
	return func(s *Store) {
		if p != nil {
			s.policy = p
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Store holds the active cart. Every mutation bumps the cart version by one
// and is written to storage before it becomes visible.
type Store struct {
	local    *storage.Local
	bus      *events.Bus
	identity identitySource
	policy   SwitchPolicy
	logger   *zap.Logger

	mu     sync.Mutex
	cart   domain.Cart
	loaded bool

	unsubscribe func()
}

// New subscribes the store to identity changes. If the identity is already
// resolved the matching cart is loaded immediately.
func New(local *storage.Local, bus *events.Bus, identity identitySource, opts ...Option) *Store {
	s := &Store{
		local:    local,
		bus:      bus,
		identity: identity,
		policy:   DiscardOnSwitch{},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.unsubscribe = bus.Subscribe(s.handle, events.IdentityChanged, events.LogoutRequested)
	if _, ready := identity.Current(); ready {
		s.handle(events.IdentityChanged)
	}
	return s
}

// Close detaches the store from the event bus.
func (s *Store) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

func (s *Store) Policy() string {
	return s.policy.Name()
}

func (s *Store) handle(t events.Topic) {
	ctx := context.Background()
	switch t {
	case events.IdentityChanged:
		s.switchTo(ctx)
	case events.LogoutRequested:
		if _, err := s.Clear(ctx); err != nil {
			s.logger.Warn("clear cart on logout", zap.String("device", s.local.Namespace()), zap.Error(err))
		}
	}
}

func (s *Store) switchTo(ctx context.Context) {
	id, ready := s.identity.Current()
	if !ready {
		return
	}
	scope := id.CartScope()

	s.mu.Lock()
	if s.loaded && s.cart.Scope == scope {
		s.mu.Unlock()
		return
	}
	next, err := s.load(ctx, scope)
	if err != nil {
		s.logger.Warn("load cart", zap.String("device", s.local.Namespace()), zap.String("scope", scope), zap.Error(err))
		next = domain.Cart{Scope: scope}
	}
	if s.loaded {
		previous := s.cart
		if merged, adopt := s.policy.Switch(previous.Clone(), next); adopt {
			merged.Scope = scope
			if err := s.adopt(ctx, previous.Scope, merged); err != nil {
				s.logger.Warn("adopt cart", zap.String("device", s.local.Namespace()), zap.String("policy", s.policy.Name()), zap.Error(err))
			} else {
				next = merged
			}
		}
	}
	s.cart = next
	s.loaded = true
	s.mu.Unlock()

	s.logger.Debug("active cart", zap.String("device", s.local.Namespace()), zap.String("scope", scope), zap.Int("items", next.ItemCount()))
	s.bus.Publish(events.CartChanged)
}

func (s *Store) adopt(ctx context.Context, fromScope string, merged domain.Cart) error {
	if err := s.save(ctx, merged); err != nil {
		return err
	}
	return s.local.Remove(ctx, storage.CartKey(fromScope))
}

type persisted struct {
	Version uint64            `json:"version"`
	Lines   []domain.CartLine `json:"lines"`
}

type legacyLine struct {
	ID        json.RawMessage `json:"id"`
	ProductID string          `json:"product_id"`
	Title     string          `json:"title"`
	Price     decimal.Decimal `json:"price"`
	Image     string          `json:"image"`
	Quantity  int             `json:"quantity"`
}

func (l legacyLine) line() domain.CartLine {
	id := l.ProductID
	if id == "" && len(l.ID) > 0 {
		var str string
		if err := json.Unmarshal(l.ID, &str); err == nil {
			id = str
		} else if !bytes.Equal(l.ID, []byte("null")) {
			// numeric ids
			id = string(l.ID)
		}
	}
	return domain.CartLine{ProductID: id, Title: l.Title, Price: l.Price, Image: l.Image, Quantity: l.Quantity}
}

func (s *Store) load(ctx context.Context, scope string) (domain.Cart, error) {
	raw, ok, err := s.local.GetString(ctx, storage.CartKey(scope))
	if err != nil {
		return domain.Cart{}, err
	}
	cart := domain.Cart{Scope: scope}
	if !ok {
		return cart, nil
	}
	trimmed := bytes.TrimSpace([]byte(raw))
	// Carts written by older clients are a bare array of products with a
	// quantity, keyed by id.
	if bytes.HasPrefix(trimmed, []byte("[")) {
		var items []legacyLine
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return domain.Cart{Scope: scope}, fmt.Errorf("decode cart %s: %w", scope, err)
		}
		cart.Lines = make([]domain.CartLine, 0, len(items))
		for _, it := range items {
			cart.Lines = append(cart.Lines, it.line())
		}
	} else {
		var p persisted
		if err := json.Unmarshal(trimmed, &p); err != nil {
			return domain.Cart{Scope: scope}, fmt.Errorf("decode cart %s: %w", scope, err)
		}
		cart.Version, cart.Lines = p.Version, p.Lines
	}
	cart.Lines = normalize(cart.Lines)
	return cart, nil
}

// normalize folds duplicate product lines and drops non-positive quantities
// that a hand-edited or foreign payload might contain.
func normalize(lines []domain.CartLine) []domain.CartLine {
	out := make([]domain.CartLine, 0, len(lines))
	for _, l := range lines {
		if l.ProductID == "" || l.Quantity < 1 {
			continue
		}
		if i := indexOf(out, l.ProductID); i >= 0 {
			out[i].Quantity += l.Quantity
			continue
		}
		out = append(out, l)
	}
	return out
}

func (s *Store) save(ctx context.Context, c domain.Cart) error {
	lines := c.Lines
	if lines == nil {
		lines = []domain.CartLine{}
	}
	return s.local.SetJSON(ctx, storage.CartKey(c.Scope), persisted{Version: c.Version, Lines: lines})
}

// Snapshot returns a copy of the active cart.
func (s *Store) Snapshot() (domain.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return domain.Cart{}, domain.ErrNotReady
	}
	return s.cart.Clone(), nil
}

// ItemCount is zero before the cart is loaded.
func (s *Store) ItemCount() int {
	c, _ := s.Snapshot()
	return c.ItemCount()
}

func (s *Store) Subtotal() decimal.Decimal {
	c, _ := s.Snapshot()
	return c.Subtotal()
}

// MutateOption constrains a mutation.
type MutateOption func(*mutation)

type mutation struct {
	expect    uint64
	hasExpect bool
	scope     string
}

// IfVersion rejects the mutation with domain.ErrStaleVersion unless the
// active cart is still at version v.
func IfVersion(v uint64) MutateOption {
	return func(m *mutation) {
		m.expect = v
		m.hasExpect = true
	}
}

// IfScope rejects the mutation with domain.ErrStaleVersion when the active
// cart no longer belongs to scope, e.g. after the identity switched.
func IfScope(scope string) MutateOption {
	return func(m *mutation) {
		m.scope = scope
	}
}

// AddItem increments the product's line or appends a new line with quantity
// 1, capturing the product's current title, price and image.
func (s *Store) AddItem(ctx context.Context, p domain.Product, opts ...MutateOption) (domain.Cart, error) {
	if strings.TrimSpace(p.ID) == "" {
		return domain.Cart{}, fmt.Errorf("%w: product id required", domain.ErrValidation)
	}
	return s.mutate(ctx, opts, false, func(c *domain.Cart) bool {
		if i := indexOf(c.Lines, p.ID); i >= 0 {
			c.Lines[i].Quantity++
			return true
		}
		c.Lines = append(c.Lines, domain.CartLine{
			ProductID: p.ID,
			Title:     p.Title,
			Price:     p.Price,
			Image:     p.Image,
			Quantity:  1,
		})
		return true
	})
}

// RemoveItem deletes the product's line; absent lines are a no-op.
func (s *Store) RemoveItem(ctx context.Context, productID string, opts ...MutateOption) (domain.Cart, error) {
	return s.mutate(ctx, opts, false, func(c *domain.Cart) bool {
		i := indexOf(c.Lines, productID)
		if i < 0 {
			return false
		}
		c.Lines = append(c.Lines[:i:i], c.Lines[i+1:]...)
		return true
	})
}

// SetQuantity replaces the line's quantity. Quantities below 1 and unknown
// products are no-ops.
func (s *Store) SetQuantity(ctx context.Context, productID string, quantity int, opts ...MutateOption) (domain.Cart, error) {
	return s.mutate(ctx, opts, false, func(c *domain.Cart) bool {
		if quantity < 1 {
			return false
		}
		i := indexOf(c.Lines, productID)
		if i < 0 || c.Lines[i].Quantity == quantity {
			return false
		}
		c.Lines[i].Quantity = quantity
		return true
	})
}

// Clear empties the active cart and removes its persisted entry.
func (s *Store) Clear(ctx context.Context, opts ...MutateOption) (domain.Cart, error) {
	return s.mutate(ctx, opts, true, func(c *domain.Cart) bool {
		if len(c.Lines) == 0 {
			return false
		}
		c.Lines = nil
		return true
	})
}

func (s *Store) mutate(ctx context.Context, opts []MutateOption, remove bool, apply func(*domain.Cart) bool) (domain.Cart, error) {
	var m mutation
	for _, opt := range opts {
		opt(&m)
	}

	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		return domain.Cart{}, domain.ErrNotReady
	}
	if m.scope != "" && m.scope != s.cart.Scope {
		current := s.cart.Clone()
		s.mu.Unlock()
		return current, fmt.Errorf("%w: active cart is %s, expected %s", domain.ErrStaleVersion, current.Scope, m.scope)
	}
	if m.hasExpect && m.expect != s.cart.Version {
		current := s.cart.Clone()
		s.mu.Unlock()
		return current, fmt.Errorf("%w: at %d, expected %d", domain.ErrStaleVersion, current.Version, m.expect)
	}

	next := s.cart.Clone()
	if !apply(&next) {
		s.mu.Unlock()
		return next, nil
	}
	next.Version++

	var err error
	if remove {
		err = s.local.Remove(ctx, storage.CartKey(next.Scope))
	} else {
		err = s.save(ctx, next)
	}
	if err != nil {
		s.mu.Unlock()
		s.logger.Error("persist cart", zap.String("device", s.local.Namespace()), zap.String("scope", next.Scope), zap.Error(err))
		return domain.Cart{}, err
	}
	s.cart = next
	s.mu.Unlock()

	s.bus.Publish(events.CartChanged)
	return next.Clone(), nil
}
