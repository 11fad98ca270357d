package backend

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bahri-storefront/internal/backend/backendtest"
	"bahri-storefront/internal/domain"
	"github.com/shopspring/decimal"
)

type stubAuthorizer struct {
	token        string
	unauthorized int
}

func (s *stubAuthorizer) Credential() string { return s.token }

func (s *stubAuthorizer) Unauthorized(context.Context) { s.unauthorized++ }

func TestClientOmitsAuthorizationWithoutCredential(t *testing.T) {
	fake := backendtest.New()
	defer fake.Close()
	fake.AddProduct(domain.Product{Title: "Canne Carbone", Price: decimal.RequireFromString("120.00")})

	auth := &stubAuthorizer{}
	c := New(fake.URL()).WithAuthorizer(auth)
	products, err := c.Products(context.Background(), ProductFilter{})
	if err != nil {
		t.Fatalf("Products: %v", err)
	}
	if len(products) != 1 || products[0].Title != "Canne Carbone" {
		t.Fatalf("unexpected products %+v", products)
	}

	reqs := fake.Requests()
	if len(reqs) != 1 || reqs[0].HasAuthHeader {
		t.Fatalf("expected no Authorization header, got %+v", reqs)
	}
}

func TestClientSendsBearerCredential(t *testing.T) {
	fake := backendtest.New()
	defer fake.Close()
	u := fake.AddUser(domain.User{Email: "sami@example.com", FirstName: "Sami"}, "Secret123")

	auth := &stubAuthorizer{token: fake.IssueToken(u.ID, time.Hour)}
	c := New(fake.URL()).WithAuthorizer(auth)

	got, err := c.Profile(context.Background())
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if got.ID != u.ID {
		t.Fatalf("unexpected profile %+v", got)
	}
	reqs := fake.Requests()
	if reqs[0].Authorization != "Bearer "+auth.token {
		t.Fatalf("unexpected Authorization %q", reqs[0].Authorization)
	}
}

func TestClientReportsUnauthorized(t *testing.T) {
	fake := backendtest.New()
	defer fake.Close()
	u := fake.AddUser(domain.User{Email: "sami@example.com"}, "Secret123")
	auth := &stubAuthorizer{token: fake.IssueToken(u.ID, -time.Minute)}
	c := New(fake.URL()).WithAuthorizer(auth)

	_, err := c.MyOrders(context.Background())
	if !IsUnauthorized(err) {
		t.Fatalf("expected unauthorized error, got %v", err)
	}
	if auth.unauthorized != 1 {
		t.Fatalf("expected one Unauthorized callback, got %d", auth.unauthorized)
	}
}

func TestClientLoginInvalidCredentialsMessage(t *testing.T) {
	fake := backendtest.New()
	defer fake.Close()
	fake.AddUser(domain.User{Email: "sami@example.com"}, "Secret123")

	_, err := New(fake.URL()).Login(context.Background(), "sami@example.com", "wrong")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		t.Fatalf("expected 401 APIError, got %v", err)
	}
	if apiErr.Message != "Identifiants invalides" {
		t.Fatalf("unexpected message %q", apiErr.Message)
	}
}

func TestClientValidationMessageFromFieldErrors(t *testing.T) {
	fake := backendtest.New()
	defer fake.Close()
	fake.AddUser(domain.User{Email: "taken@example.com"}, "Secret123")

	_, err := New(fake.URL()).Register(context.Background(), domain.Registration{Email: "taken@example.com", Password: "Secret123"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if msg := MessageOf(err, "fallback"); msg != "email: Cet email est déjà utilisé." {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestClientTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url).Categories(context.Background())
	if !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if MessageOf(err, "fallback") != "fallback" {
		t.Fatalf("transport errors must use the fallback message")
	}
}

func TestErrorMessageShapes(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{name: "error key", body: `{"error":"Panier vide"}`, want: "Panier vide"},
		{name: "detail key", body: `{"detail":"Token expired"}`, want: "Token expired"},
		{name: "field list", body: `{"quantity":["too small"],"email":["bad"]}`, want: "email: bad; quantity: too small"},
		{name: "not json", body: `<html>`, want: "Bad Request"},
		{name: "empty", body: ``, want: "Bad Request"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := errorMessage([]byte(tc.body), http.StatusBadRequest); got != tc.want {
				t.Fatalf("want %q got %q", tc.want, got)
			}
		})
	}
}
