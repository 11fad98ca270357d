package orders

import (
	"context"
	"sort"

	"bahri-storefront/internal/domain"
)

type ordersAPI interface {
	MyOrders(ctx context.Context) ([]domain.Order, error)
}

type identityReader interface {
	Identity() domain.Identity
}

type Service struct {
	api      ordersAPI
	identity identityReader
}

func New(api ordersAPI, identity identityReader) *Service {
	return &Service{api: api, identity: identity}
}

// ListMine returns the signed-in user's orders, newest first. Guests get
// domain.ErrUnauthorized without a backend call.
func (s *Service) ListMine(ctx context.Context) ([]domain.Order, error) {
	if s.identity.Identity().IsGuest() {
		return nil, domain.ErrUnauthorized
	}
	out, err := s.api.MyOrders(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
