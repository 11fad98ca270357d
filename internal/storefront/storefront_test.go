package storefront

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"bahri-storefront/internal/backend"
	"bahri-storefront/internal/backend/backendtest"
	"bahri-storefront/internal/domain"
	"bahri-storefront/internal/repository/kv"
	"bahri-storefront/internal/service/checkout"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type world struct {
	srv  *backendtest.Server
	repo kv.Repository
	opts Options
}

func newWorld(t *testing.T) *world {
	t.Helper()
	srv := backendtest.New()
	t.Cleanup(srv.Close)
	srv.AddUser(domain.User{
		FirstName: "Leila", LastName: "Trabelsi", Email: "leila@example.com",
		Phone: "+21655555555", Address: "5 avenue Habib", City: "Tunis",
		LoyaltyPoints: decimal.RequireFromString("10.00"),
	}, "hameçon42")
	srv.AddProduct(domain.Product{Title: "Canne carbone", Slug: "canne-carbone", Price: decimal.RequireFromString("120.00"), Stock: 4})
	srv.AddProduct(domain.Product{Title: "Leurre souple", Slug: "leurre-souple", Price: decimal.RequireFromString("6.50"), Stock: 40})

	repo := kv.NewMemory()
	return &world{
		srv:  srv,
		repo: repo,
		opts: Options{Backend: backend.New(srv.URL()), Repo: repo, Calculator: checkout.NewCalculator(checkout.DefaultShippingFee)},
	}
}

func (w *world) open(t *testing.T, id string) *Device {
	t.Helper()
	d, err := Open(context.Background(), id, w.opts)
	require.NoError(t, err)
	t.Cleanup(d.Close)
	return d
}

func TestSignedInCheckoutWithLoyalty(t *testing.T) {
	w := newWorld(t)
	d := w.open(t, "dev-1")
	ctx := context.Background()

	_, err := d.Session.Login(ctx, "leila@example.com", "hameçon42")
	require.NoError(t, err)
	_, err = d.AddBySlug(ctx, "leurre-souple")
	require.NoError(t, err)
	_, err = d.AddBySlug(ctx, "leurre-souple")
	require.NoError(t, err)

	q := d.Quote.SetUseLoyalty(true)
	assert.True(t, q.Subtotal.Equal(decimal.RequireFromString("13.00")))
	assert.True(t, q.LoyaltyDeduction.Equal(decimal.RequireFromString("10.00")))
	assert.True(t, q.Total.Equal(decimal.RequireFromString("10.00")))

	conf, err := d.Checkout.Submit(ctx, checkout.Submission{UseLoyalty: true})
	require.NoError(t, err)
	assert.Equal(t, q.Total.StringFixed(2), conf.Total)
	assert.Zero(t, d.Cart.ItemCount())

	placed := w.srv.Orders()
	require.Len(t, placed, 1)
	assert.Equal(t, "Leila Trabelsi", placed[0].Request.FullName)
	assert.Equal(t, "Tunis", placed[0].Request.City)

	acc, err := d.Account(ctx)
	require.NoError(t, err)
	assert.True(t, acc.User.LoyaltyPoints.IsZero(), "points spent on the order")
	require.Len(t, acc.Orders, 1)
	assert.True(t, d.Session.Identity().LoyaltyBalance().IsZero())
}

func TestGuestCartStaysWithGuest(t *testing.T) {
	w := newWorld(t)
	d := w.open(t, "dev-1")
	ctx := context.Background()

	_, err := d.AddBySlug(ctx, "canne-carbone")
	require.NoError(t, err)
	_, err = d.Session.Login(ctx, "leila@example.com", "hameçon42")
	require.NoError(t, err)
	assert.Zero(t, d.Cart.ItemCount())

	require.NoError(t, d.Session.Logout(ctx))
	assert.Equal(t, 1, d.Cart.ItemCount())
}

func TestExpiredCredentialRedirectsOnce(t *testing.T) {
	w := newWorld(t)
	d := w.open(t, "dev-1")
	ctx := context.Background()

	_, err := d.Session.Login(ctx, "leila@example.com", "hameçon42")
	require.NoError(t, err)
	w.srv.RevokeTokens()

	_, err = d.Account(ctx)
	require.Error(t, err)
	assert.True(t, d.Session.Identity().IsGuest())
	assert.Empty(t, d.Session.Credential())
	assert.True(t, d.Redirect())
	assert.False(t, d.Redirect(), "redirect is consumed")

	// Later calls go out without a credential and cannot expire anything.
	d.Session.RefreshIdentity(ctx)
	_, err = d.Orders.ListMine(ctx)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Equal(t, 1, d.redirect.Total())
}

func TestSessionSurvivesReopen(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	first := w.open(t, "dev-1")
	_, err := first.Session.Login(ctx, "leila@example.com", "hameçon42")
	require.NoError(t, err)
	_, err = first.AddBySlug(ctx, "canne-carbone")
	require.NoError(t, err)
	first.Close()

	again := w.open(t, "dev-1")
	id := again.Session.Identity()
	require.False(t, id.IsGuest())
	assert.Equal(t, "leila@example.com", id.User.Email)
	assert.Equal(t, 1, again.Cart.ItemCount())

	other := w.open(t, "dev-2")
	assert.True(t, other.Session.Identity().IsGuest())
	assert.Zero(t, other.Cart.ItemCount())
}

func TestAddBySlugUnknownProduct(t *testing.T) {
	w := newWorld(t)
	d := w.open(t, "dev-1")
	_, err := d.AddBySlug(context.Background(), "epuisette")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAccountRequiresUser(t *testing.T) {
	w := newWorld(t)
	d := w.open(t, "dev-1")
	_, err := d.Account(context.Background())
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
}

func TestOpenValidates(t *testing.T) {
	_, err := Open(context.Background(), " ", Options{})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = Open(context.Background(), "dev", Options{})
	assert.Error(t, err)
}

func TestRegistryOpensOnce(t *testing.T) {
	w := newWorld(t)
	reg := NewRegistry(w.opts)
	defer reg.Close()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		devices []*Device
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := reg.Get(context.Background(), "dev-1")
			if err != nil {
				t.Errorf("get: %v", err)
				return
			}
			mu.Lock()
			devices = append(devices, d)
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, devices, 10)
	for _, d := range devices {
		assert.Same(t, devices[0], d)
	}
	assert.Equal(t, 1, reg.Len())
}

func TestRegistryEvictsLeastRecentlyUsed(t *testing.T) {
	w := newWorld(t)
	reg := NewRegistry(w.opts, WithMaxDevices(2))
	defer reg.Close()
	ctx := context.Background()

	first, err := reg.Get(ctx, "dev-1")
	require.NoError(t, err)
	_, err = first.AddBySlug(ctx, "leurre-souple")
	require.NoError(t, err)

	for _, id := range []string{"dev-2", "dev-3", "dev-4"} {
		_, err := reg.Get(ctx, id)
		require.NoError(t, err)
		assert.LessOrEqual(t, reg.Len(), 2)
	}

	reopened, err := reg.Get(ctx, "dev-1")
	require.NoError(t, err)
	assert.NotSame(t, first, reopened)
	assert.Equal(t, 1, reopened.Cart.ItemCount())
}

func TestRegistryEvictsIdleDevices(t *testing.T) {
	w := newWorld(t)
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	reg := NewRegistry(w.opts, WithIdleTimeout(10*time.Minute), withClock(func() time.Time { return now }))
	defer reg.Close()
	ctx := context.Background()

	_, err := reg.Get(ctx, "idle")
	require.NoError(t, err)
	now = now.Add(6 * time.Minute)
	_, err = reg.Get(ctx, "busy")
	require.NoError(t, err)

	now = now.Add(6 * time.Minute)
	_, err = reg.Get(ctx, "busy")
	require.NoError(t, err)

	assert.Equal(t, 1, reg.EvictIdle())
	assert.Equal(t, 1, reg.Len())

	now = now.Add(11 * time.Minute)
	assert.Equal(t, 1, reg.EvictIdle())
	assert.Zero(t, reg.Len())
}

func TestRegistrySharedCatalog(t *testing.T) {
	w := newWorld(t)
	reg := NewRegistry(w.opts)
	defer reg.Close()

	p, err := reg.Catalog().Get(context.Background(), "canne-carbone")
	require.NoError(t, err)
	assert.Equal(t, "Canne carbone", p.Title)
	assert.Zero(t, reg.Len())
}
