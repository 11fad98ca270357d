package backend

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"bahri-storefront/internal/domain"
)

// AuthResponse is returned by login, external-provider login and registration.
type AuthResponse struct {
	Message string        `json:"message,omitempty"`
	User    domain.User   `json:"user"`
	Tokens  domain.Tokens `json:"tokens"`
}

// ProductFilter narrows the public product list.
type ProductFilter struct {
	Category string
	Search   string
}

func (c *Client) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	var out AuthResponse
	in := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/users/login/", nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GoogleLogin exchanges a Google identity assertion; the backend verifies it.
func (c *Client) GoogleLogin(ctx context.Context, credential string) (*AuthResponse, error) {
	var out AuthResponse
	in := map[string]string{"credential": credential}
	if err := c.do(ctx, http.MethodPost, "/users/google-login/", nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Register(ctx context.Context, in domain.Registration) (*AuthResponse, error) {
	var out AuthResponse
	if err := c.do(ctx, http.MethodPost, "/users/register/", nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Profile(ctx context.Context) (*domain.User, error) {
	var out domain.User
	if err := c.do(ctx, http.MethodGet, "/users/profile/", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateProfile(ctx context.Context, in domain.ProfileFields) (*domain.User, error) {
	var out domain.User
	if err := c.do(ctx, http.MethodPut, "/users/profile/update/", nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateOrder(ctx context.Context, in domain.OrderRequest) (*domain.OrderConfirmation, error) {
	var out domain.OrderConfirmation
	if err := c.do(ctx, http.MethodPost, "/orders/create/", nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) MyOrders(ctx context.Context) ([]domain.Order, error) {
	var out []domain.Order
	if err := c.do(ctx, http.MethodGet, "/orders/my-orders/", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Products(ctx context.Context, f ProductFilter) ([]domain.Product, error) {
	q := url.Values{}
	if v := strings.TrimSpace(f.Category); v != "" {
		q.Set("category", v)
	}
	if v := strings.TrimSpace(f.Search); v != "" {
		q.Set("search", v)
	}
	var out []domain.Product
	if err := c.do(ctx, http.MethodGet, "/products/", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Product(ctx context.Context, slug string) (*domain.Product, error) {
	var out domain.Product
	if err := c.do(ctx, http.MethodGet, "/products/"+url.PathEscape(slug)+"/", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Categories(ctx context.Context) ([]domain.Category, error) {
	var out []domain.Category
	if err := c.do(ctx, http.MethodGet, "/products/categories/", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
