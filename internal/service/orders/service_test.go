package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"bahri-storefront/internal/domain"
)

type stubAPI struct {
	orders []domain.Order
	err    error
	calls  int
}

func (s *stubAPI) MyOrders(context.Context) ([]domain.Order, error) {
	s.calls++
	return s.orders, s.err
}

type stubIdentity struct {
	id domain.Identity
}

func (s stubIdentity) Identity() domain.Identity { return s.id }

func TestListMineRequiresUser(t *testing.T) {
	api := &stubAPI{}
	svc := New(api, stubIdentity{id: domain.Guest()})
	if _, err := svc.ListMine(context.Background()); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if api.calls != 0 {
		t.Fatalf("guest must not reach the backend")
	}
}

func TestListMineNewestFirst(t *testing.T) {
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	api := &stubAPI{orders: []domain.Order{
		{ID: "o-1", CreatedAt: base},
		{ID: "o-3", CreatedAt: base.Add(48 * time.Hour)},
		{ID: "o-2", CreatedAt: base.Add(24 * time.Hour)},
	}}
	svc := New(api, stubIdentity{id: domain.Authenticated(domain.User{ID: "u-1"})})

	got, err := svc.ListMine(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	ids := []string{got[0].ID, got[1].ID, got[2].ID}
	if ids[0] != "o-3" || ids[1] != "o-2" || ids[2] != "o-1" {
		t.Fatalf("unexpected order %v", ids)
	}
}

func TestListMinePassesErrors(t *testing.T) {
	api := &stubAPI{err: domain.ErrUnavailable}
	svc := New(api, stubIdentity{id: domain.Authenticated(domain.User{ID: "u-1"})})
	if _, err := svc.ListMine(context.Background()); !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
