// Package storefront composes one device's session, cart and checkout over a
// shared backend client and storage repository.
package storefront

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"bahri-storefront/internal/backend"
	"bahri-storefront/internal/domain"
	"bahri-storefront/internal/events"
	"bahri-storefront/internal/repository/kv"
	"bahri-storefront/internal/service/cart"
	"bahri-storefront/internal/service/catalog"
	"bahri-storefront/internal/service/checkout"
	"bahri-storefront/internal/service/orders"
	"bahri-storefront/internal/service/session"
	"bahri-storefront/internal/storage"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Options are shared by every device.
type Options struct {
	Backend    *backend.Client
	Repo       kv.Repository
	Calculator checkout.Calculator
	Policy     cart.SwitchPolicy
	Logger     *zap.Logger
}

// Device is the server-side twin of one browser profile.
type Device struct {
	ID       string
	Session  *session.Store
	Cart     *cart.Store
	Quote    *checkout.Watcher
	Checkout *checkout.Submitter
	Catalog  *catalog.Service
	Orders   *orders.Service

	bus      *events.Bus
	redirect *RedirectLatch
}

// authBridge lets the backend client consult the session that is built from
// that same client.
type authBridge struct {
	mu   sync.RWMutex
	sess *session.Store
}

func (b *authBridge) bind(s *session.Store) {
	b.mu.Lock()
	b.sess = s
	b.mu.Unlock()
}

func (b *authBridge) Credential() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.sess == nil {
		return ""
	}
	return b.sess.Credential()
}

func (b *authBridge) Unauthorized(ctx context.Context) {
	b.mu.RLock()
	s := b.sess
	b.mu.RUnlock()
	if s != nil {
		s.Unauthorized(ctx)
	}
}

// Open wires a device and resolves its identity from storage.
func Open(ctx context.Context, id string, opts Options) (*Device, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: device id required", domain.ErrValidation)
	}
	if opts.Backend == nil || opts.Repo == nil {
		return nil, fmt.Errorf("storefront: backend and repository are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("device", id))

	local := storage.NewLocal(opts.Repo, id)
	bus := events.New()
	latch := &RedirectLatch{}
	bridge := &authBridge{}
	client := opts.Backend.WithAuthorizer(bridge)

	sess := session.New(client, local, bus,
		session.WithLogger(logger.Named("session")),
		session.WithRedirector(latch),
	)
	bridge.bind(sess)

	carts := cart.New(local, bus, sess, cart.WithPolicy(opts.Policy), cart.WithLogger(logger.Named("cart")))
	d := &Device{
		ID:       id,
		Session:  sess,
		Cart:     carts,
		Quote:    checkout.NewWatcher(opts.Calculator, bus, carts, sess),
		Checkout: checkout.NewSubmitter(client, carts, sess, logger.Named("checkout")),
		Catalog:  catalog.New(client),
		Orders:   orders.New(client, sess),
		bus:      bus,
		redirect: latch,
	}

	if _, err := sess.Initialize(ctx); err != nil {
		d.Close()
		return nil, fmt.Errorf("initialize session for %s: %w", id, err)
	}
	return d, nil
}

// Close detaches the device's subscribers.
func (d *Device) Close() {
	d.Quote.Close()
	d.Cart.Close()
}

// Redirect reports and consumes a pending redirect to the login view.
func (d *Device) Redirect() bool {
	return d.redirect.Take()
}

// AddBySlug looks the product up in the catalog and adds it to the cart.
func (d *Device) AddBySlug(ctx context.Context, slug string, opts ...cart.MutateOption) (domain.Cart, error) {
	p, err := d.Catalog.Get(ctx, slug)
	if err != nil {
		return domain.Cart{}, err
	}
	return d.Cart.AddItem(ctx, *p, opts...)
}

// Account is the signed-in user's profile together with their orders.
type Account struct {
	User   domain.User    `json:"user"`
	Orders []domain.Order `json:"orders"`
}

// Account refreshes the profile and lists orders concurrently, since
// placing an order changes the point balance.
func (d *Device) Account(ctx context.Context) (Account, error) {
	if d.Session.Identity().IsGuest() {
		return Account{}, domain.ErrUnauthorized
	}
	var (
		acc Account
		id  domain.Identity
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		id = d.Session.RefreshIdentity(gctx)
		return nil
	})
	g.Go(func() error {
		list, err := d.Orders.ListMine(gctx)
		acc.Orders = list
		return err
	})
	if err := g.Wait(); err != nil {
		return Account{}, err
	}
	if id.IsGuest() {
		return Account{}, domain.ErrUnauthorized
	}
	acc.User = *id.User
	if acc.Orders == nil {
		acc.Orders = []domain.Order{}
	}
	return acc, nil
}
