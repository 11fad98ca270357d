package httpserver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"bahri-storefront/internal/domain"
	"bahri-storefront/internal/storefront"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type stubDevices struct {
	device *storefront.Device
	err    error
	ids    []string
}

func (s *stubDevices) Get(_ context.Context, id string) (*storefront.Device, error) {
	s.ids = append(s.ids, id)
	return s.device, s.err
}

type stubCatalog struct {
	products []domain.Product
}

func (s stubCatalog) List(context.Context, string, string) ([]domain.Product, error) {
	return s.products, nil
}

func (s stubCatalog) Get(_ context.Context, slug string) (*domain.Product, error) {
	for _, p := range s.products {
		if p.Slug == slug {
			return &p, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s stubCatalog) Categories(context.Context) ([]domain.Category, error) {
	return nil, nil
}

func middlewareRouter(devices deviceSource) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(deviceMiddleware(devices, zap.NewNop()))
	router.GET("/test", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func TestDeviceMiddleware_UsesHeader(t *testing.T) {
	devices := &stubDevices{}
	router := middlewareRouter(devices)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(deviceHeader, "tablet-7")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if len(devices.ids) != 1 || devices.ids[0] != "tablet-7" {
		t.Fatalf("unexpected device lookups: %v", devices.ids)
	}
	if got := rec.Header().Get(deviceHeader); got != "tablet-7" {
		t.Fatalf("expected header echoed, got %q", got)
	}
}

func TestDeviceMiddleware_IssuesID(t *testing.T) {
	devices := &stubDevices{}
	router := middlewareRouter(devices)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	issued := rec.Header().Get(deviceHeader)
	if _, err := uuid.Parse(issued); err != nil {
		t.Fatalf("expected a uuid device id, got %q", issued)
	}
	if len(devices.ids) != 1 || devices.ids[0] != issued {
		t.Fatalf("expected lookup of issued id, got %v", devices.ids)
	}
}

func TestDeviceMiddleware_InvalidID(t *testing.T) {
	devices := &stubDevices{}
	router := middlewareRouter(devices)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(deviceHeader, strings.Repeat("x", maxDeviceIDLength+1))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
	if len(devices.ids) != 0 {
		t.Fatalf("expected no lookup, got %v", devices.ids)
	}
}

func TestDeviceMiddleware_Error(t *testing.T) {
	router := middlewareRouter(&stubDevices{err: errors.New("boom")})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rec.Code)
	}
}

func TestBuildRouter_RequiresDevices(t *testing.T) {
	if _, err := buildRouter(zap.NewNop(), Deps{}); err == nil {
		t.Fatalf("expected error without device source")
	}
	if _, err := buildRouter(zap.NewNop(), Deps{Devices: &stubDevices{}}); err == nil {
		t.Fatalf("expected error without catalog")
	}
}

func TestCatalogRoutesSkipDevices(t *testing.T) {
	devices := &stubDevices{}
	router, err := buildRouter(zap.NewNop(), Deps{Devices: devices, Catalog: stubCatalog{products: []domain.Product{{ID: "p1", Slug: "jig-40g"}}}})
	if err != nil {
		t.Fatalf("build router: %v", err)
	}
	for _, path := range []string{"/products", "/products/jig-40g", "/categories"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d body=%s", path, rec.Code, rec.Body.String())
		}
		if rec.Header().Get(deviceHeader) != "" {
			t.Fatalf("%s: catalog reads must not issue a device id", path)
		}
	}
	if len(devices.ids) != 0 {
		t.Fatalf("catalog reads opened devices: %v", devices.ids)
	}
}

func TestReadyz(t *testing.T) {
	cases := []struct {
		name    string
		storage Pinger
		want    int
	}{
		{"not configured", nil, http.StatusServiceUnavailable},
		{"unreachable", PingFunc(func(context.Context) error { return errors.New("down") }), http.StatusServiceUnavailable},
		{"ready", PingFunc(func(context.Context) error { return nil }), http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router, err := buildRouter(zap.NewNop(), Deps{Devices: &stubDevices{}, Catalog: stubCatalog{}, Storage: tc.storage})
			if err != nil {
				t.Fatalf("build router: %v", err)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d body=%s", tc.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	router, err := buildRouter(zap.NewNop(), Deps{Devices: &stubDevices{}, Catalog: stubCatalog{}, CORSOrigins: []string{"https://shop.example"}})
	if err != nil {
		t.Fatalf("build router: %v", err)
	}
	req := httptest.NewRequest(http.MethodOptions, "/cart", nil)
	req.Header.Set("Origin", "https://shop.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", deviceHeader)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://shop.example" {
		t.Fatalf("unexpected allow origin %q (status %d)", got, rec.Code)
	}
}
