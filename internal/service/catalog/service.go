package catalog

import (
	"context"
	"fmt"
	"strings"

	"bahri-storefront/internal/backend"
	"bahri-storefront/internal/domain"
	"golang.org/x/sync/singleflight"
)

type catalogAPI interface {
	Products(ctx context.Context, f backend.ProductFilter) ([]domain.Product, error)
	Product(ctx context.Context, slug string) (*domain.Product, error)
	Categories(ctx context.Context) ([]domain.Category, error)
}

type Service struct {
	api   catalogAPI
	group singleflight.Group
}

func New(api catalogAPI) *Service {
	return &Service{api: api}
}

// List filters by category slug and free-text search; both are optional.
func (s *Service) List(ctx context.Context, category, search string) ([]domain.Product, error) {
	return s.api.Products(ctx, backend.ProductFilter{
		Category: strings.TrimSpace(category),
		Search:   strings.TrimSpace(search),
	})
}

// Get resolves a product by slug. Concurrent lookups of the same slug share
// one backend call.
func (s *Service) Get(ctx context.Context, slug string) (*domain.Product, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, fmt.Errorf("%w: slug required", domain.ErrValidation)
	}
	v, err, _ := s.group.Do("product:"+slug, func() (interface{}, error) {
		return s.api.Product(ctx, slug)
	})
	if err != nil {
		return nil, err
	}
	p := *v.(*domain.Product)
	return &p, nil
}

func (s *Service) Categories(ctx context.Context) ([]domain.Category, error) {
	v, err, _ := s.group.Do("categories", func() (interface{}, error) {
		return s.api.Categories(ctx)
	})
	if err != nil {
		return nil, err
	}
	cats := v.([]domain.Category)
	return append([]domain.Category(nil), cats...), nil
}
