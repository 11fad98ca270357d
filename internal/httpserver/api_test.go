package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"bahri-storefront/internal/backend"
	"bahri-storefront/internal/backend/backendtest"
	"bahri-storefront/internal/domain"
	"bahri-storefront/internal/repository/kv"
	"bahri-storefront/internal/storefront"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type apiRig struct {
	t       *testing.T
	backend *backendtest.Server
	router  *gin.Engine
	devices *storefront.Registry
	product domain.Product
}

func newAPIRig(t *testing.T, opts ...storefront.RegistryOption) *apiRig {
	t.Helper()
	srv := backendtest.New()
	t.Cleanup(srv.Close)
	srv.AddUser(domain.User{
		FirstName: "Sami", LastName: "Ben Ali", Email: "sami@example.com",
		Phone: "+21622000000", Address: "12 rue du Port", City: "Bizerte",
		LoyaltyPoints: decimal.RequireFromString("4.00"),
	}, "moulinet")
	p := srv.AddProduct(domain.Product{Title: "Moulinet 3000", Slug: "moulinet-3000", Price: decimal.RequireFromString("49.90"), Stock: 3})

	reg := storefront.NewRegistry(storefront.Options{Backend: backend.New(srv.URL()), Repo: kv.NewMemory()}, opts...)
	t.Cleanup(reg.Close)
	router, err := buildRouter(zap.NewNop(), Deps{Devices: reg, Catalog: reg.Catalog()})
	if err != nil {
		t.Fatalf("build router: %v", err)
	}
	return &apiRig{t: t, backend: srv, router: router, devices: reg, product: p}
}

func (r *apiRig) do(method, path, device, body string) *httptest.ResponseRecorder {
	r.t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if device != "" {
		req.Header.Set(deviceHeader, device)
	}
	rec := httptest.NewRecorder()
	r.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
}

func TestGuestCartFlow(t *testing.T) {
	rig := newAPIRig(t)

	rec := rig.do(http.MethodPost, "/cart/items", "phone", `{"slug":"moulinet-3000"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("add: expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	rec = rig.do(http.MethodPost, "/cart/items", "phone", `{"slug":"moulinet-3000"}`)
	var view cartView
	decode(t, rec, &view)
	if view.ItemCount != 2 || view.Version != 2 || view.Scope != domain.GuestScope {
		t.Fatalf("unexpected cart %+v", view)
	}
	if !view.Subtotal.Equal(decimal.RequireFromString("99.80")) {
		t.Fatalf("unexpected subtotal %s", view.Subtotal)
	}

	rec = rig.do(http.MethodPut, "/cart/items/"+rig.product.ID, "phone", `{"quantity":0}`)
	decode(t, rec, &view)
	if view.ItemCount != 2 {
		t.Fatalf("quantity below 1 must be ignored, got %+v", view)
	}

	rec = rig.do(http.MethodPut, "/cart/items/"+rig.product.ID, "phone", `{"quantity":5,"expected_version":1}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("stale version: expected 409, got %d body=%s", rec.Code, rec.Body.String())
	}

	rec = rig.do(http.MethodGet, "/cart", "laptop", "")
	decode(t, rec, &view)
	if view.ItemCount != 0 {
		t.Fatalf("devices must not share carts, got %+v", view)
	}

	rec = rig.do(http.MethodDelete, "/cart", "phone", "")
	decode(t, rec, &view)
	if view.ItemCount != 0 || len(view.Lines) != 0 {
		t.Fatalf("expected empty cart, got %+v", view)
	}
}

func TestAddItemUnknownSlug(t *testing.T) {
	rig := newAPIRig(t)
	rec := rig.do(http.MethodPost, "/cart/items", "phone", `{"slug":"epuisette"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d body=%s", rec.Code, rec.Body.String())
	}
	rec = rig.do(http.MethodPost, "/cart/items", "phone", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestLoginQuoteAndCheckout(t *testing.T) {
	rig := newAPIRig(t)

	rec := rig.do(http.MethodPost, "/session/login", "phone", `{"email":"sami@example.com","password":"nope"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad password: expected 401, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "redirect") {
		t.Fatalf("failed login must not redirect: %s", rec.Body.String())
	}

	rec = rig.do(http.MethodPost, "/session/login", "phone", `{"email":"sami@example.com","password":"moulinet"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	var sess sessionView
	decode(t, rec, &sess)
	if !sess.Authenticated || sess.Identity.User.Email != "sami@example.com" || sess.ExpiresAt == nil {
		t.Fatalf("unexpected session %+v", sess)
	}

	rig.do(http.MethodPost, "/cart/items", "phone", `{"slug":"moulinet-3000"}`)

	rec = rig.do(http.MethodGet, "/checkout/quote?use_loyalty=true", "phone", "")
	var q domain.Quote
	decode(t, rec, &q)
	if !q.Total.Equal(decimal.RequireFromString("52.90")) || !q.PointsToEarn.Equal(decimal.RequireFromString("2.50")) {
		t.Fatalf("unexpected quote %+v", q)
	}

	rec = rig.do(http.MethodPost, "/checkout", "phone", `{"use_loyalty":true}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("checkout: expected 201, got %d body=%s", rec.Code, rec.Body.String())
	}
	var conf domain.OrderConfirmation
	decode(t, rec, &conf)
	if conf.Total != "52.90" {
		t.Fatalf("backend total %s differs from preview", conf.Total)
	}

	rec = rig.do(http.MethodGet, "/orders", "phone", "")
	var orders []domain.Order
	decode(t, rec, &orders)
	if len(orders) != 1 || orders[0].ID != conf.OrderID {
		t.Fatalf("unexpected orders %+v", orders)
	}

	rec = rig.do(http.MethodGet, "/cart", "phone", "")
	var view cartView
	decode(t, rec, &view)
	if view.ItemCount != 0 {
		t.Fatalf("cart must be cleared after order, got %+v", view)
	}
}

func TestGuestCheckoutValidation(t *testing.T) {
	rig := newAPIRig(t)

	rec := rig.do(http.MethodPost, "/checkout", "phone", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty cart: expected 400, got %d", rec.Code)
	}

	rig.do(http.MethodPost, "/cart/items", "phone", `{"slug":"moulinet-3000"}`)
	rec = rig.do(http.MethodPost, "/checkout", "phone", `{"contact":{"full_name":"Guest"}}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing fields: expected 400, got %d", rec.Code)
	}
	if len(rig.backend.Orders()) != 0 {
		t.Fatalf("invalid checkout must not reach the backend")
	}

	rig.backend.FailOrders(http.StatusBadRequest, "Stock insuffisant")
	rec = rig.do(http.MethodPost, "/checkout", "phone",
		`{"contact":{"full_name":"Guest","email":"g@example.com","phone":"1","address":"quai","city":"Sfax"}}`)
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "Stock insuffisant") {
		t.Fatalf("expected backend message, got %d body=%s", rec.Code, rec.Body.String())
	}
	rec = rig.do(http.MethodGet, "/cart", "phone", "")
	var view cartView
	decode(t, rec, &view)
	if view.ItemCount != 1 {
		t.Fatalf("failed order must keep the cart, got %+v", view)
	}
}

func TestExpiredSessionRedirects(t *testing.T) {
	rig := newAPIRig(t)
	rig.do(http.MethodPost, "/session/login", "phone", `{"email":"sami@example.com","password":"moulinet"}`)
	rig.backend.RevokeTokens()

	rec := rig.do(http.MethodPost, "/session/refresh", "phone", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d body=%s", rec.Code, rec.Body.String())
	}
	var body map[string]string
	decode(t, rec, &body)
	if body["redirect"] != loginPath {
		t.Fatalf("expected redirect hint, got %v", body)
	}

	rec = rig.do(http.MethodGet, "/session", "phone", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("redirect must be reported once, got %d", rec.Code)
	}
	var sess sessionView
	decode(t, rec, &sess)
	if sess.Authenticated {
		t.Fatalf("session must be cleared")
	}
}

func TestRedirectHintStaysWithFailingRequest(t *testing.T) {
	rig := newAPIRig(t)
	rig.do(http.MethodPost, "/session/login", "phone", `{"email":"sami@example.com","password":"moulinet"}`)
	rig.do(http.MethodPost, "/cart/items", "phone", `{"slug":"moulinet-3000"}`)
	rig.backend.RevokeTokens()

	// Another request on the same device runs into the expired credential.
	d, err := rig.devices.Get(context.Background(), "phone")
	if err != nil {
		t.Fatalf("get device: %v", err)
	}
	if _, err := d.Orders.ListMine(context.Background()); err == nil {
		t.Fatalf("expected revoked credential to fail")
	}

	rec := rig.do(http.MethodGet, "/cart", "phone", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unrelated request must succeed, got %d body=%s", rec.Code, rec.Body.String())
	}

	rig.do(http.MethodPost, "/session/login", "phone", `{"email":"sami@example.com","password":"moulinet"}`)
	rig.backend.RevokeTokens()
	rec = rig.do(http.MethodGet, "/orders", "phone", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d body=%s", rec.Code, rec.Body.String())
	}
	var body map[string]string
	decode(t, rec, &body)
	if body["redirect"] != loginPath {
		t.Fatalf("failing request must carry the redirect, got %v", body)
	}
}

func TestCheckoutFollowsQuoteLoyaltyToggle(t *testing.T) {
	rig := newAPIRig(t)
	rig.do(http.MethodPost, "/session/login", "phone", `{"email":"sami@example.com","password":"moulinet"}`)
	rig.do(http.MethodPost, "/cart/items", "phone", `{"slug":"moulinet-3000"}`)

	rec := rig.do(http.MethodGet, "/checkout/quote?use_loyalty=true", "phone", "")
	var q domain.Quote
	decode(t, rec, &q)

	rec = rig.do(http.MethodPost, "/checkout", "phone", `{}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("checkout: expected 201, got %d body=%s", rec.Code, rec.Body.String())
	}
	var conf domain.OrderConfirmation
	decode(t, rec, &conf)
	if conf.Total != q.Total.StringFixed(2) {
		t.Fatalf("order total %s differs from previewed %s", conf.Total, q.Total.StringFixed(2))
	}
}

func TestHeaderlessRequestsStayBounded(t *testing.T) {
	rig := newAPIRig(t, storefront.WithMaxDevices(8))

	for i := 0; i < 50; i++ {
		rig.do(http.MethodGet, "/products", "", "")
	}
	if n := rig.devices.Len(); n != 0 {
		t.Fatalf("catalog reads opened %d devices", n)
	}

	for i := 0; i < 50; i++ {
		if rec := rig.do(http.MethodGet, "/cart", "", ""); rec.Code != http.StatusOK {
			t.Fatalf("cart: expected 200, got %d", rec.Code)
		}
	}
	if n := rig.devices.Len(); n > 8 {
		t.Fatalf("expected at most 8 open devices, got %d", n)
	}
}

func TestAccountRequiresSignIn(t *testing.T) {
	rig := newAPIRig(t)
	rec := rig.do(http.MethodGet, "/account", "phone", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestCatalogRoutes(t *testing.T) {
	rig := newAPIRig(t)

	rec := rig.do(http.MethodGet, "/products?search=moulinet", "phone", "")
	var list []domain.Product
	decode(t, rec, &list)
	if len(list) != 1 || list[0].Slug != "moulinet-3000" {
		t.Fatalf("unexpected products %+v", list)
	}

	rec = rig.do(http.MethodGet, "/products/canne", "phone", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	rec = rig.do(http.MethodGet, "/categories", "phone", "")
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("unexpected categories %d %s", rec.Code, rec.Body.String())
	}
}
