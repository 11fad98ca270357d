// Package backendtest runs an in-process fake of the shop's REST backend for
// tests: bcrypt-checked logins, HS256 bearer tokens, a product catalog and
// server-side order totals.
package backendtest

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"bahri-storefront/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

var (
	shippingCost = decimal.RequireFromString("7.00")
	earnRate     = decimal.RequireFromString("0.05")
)

// Request is a recorded inbound call.
type Request struct {
	Method        string
	Path          string
	Authorization string
	HasAuthHeader bool
}

// PlacedOrder is an order accepted by the fake with its authoritative totals.
type PlacedOrder struct {
	ID           string
	UserID       string
	Request      domain.OrderRequest
	ItemsTotal   decimal.Decimal
	PointsUsed   decimal.Decimal
	FinalTotal   decimal.Decimal
	PointsToEarn decimal.Decimal
	CreatedAt    time.Time
}

type account struct {
	user         domain.User
	passwordHash []byte
}

type Server struct {
	httpServer *httptest.Server
	secret     []byte
	accessTTL  time.Duration

	mu          sync.Mutex
	accounts    map[string]*account // by email
	products    map[string]domain.Product
	categories  []domain.Category
	orders      []PlacedOrder
	requests    []Request
	failOrders  *failure
	failProfile *failure
	revoked     bool
	nextID      int
}

type failure struct {
	status  int
	message string
}

// New starts the fake. Callers must Close it.
func New() *Server {
	s := &Server{
		secret:    []byte("backendtest-secret"),
		accessTTL: time.Hour,
		accounts:  make(map[string]*account),
		products:  make(map[string]domain.Product),
	}
	gin.SetMode(gin.TestMode)
	s.httpServer = httptest.NewServer(s.routes())
	return s
}

func (s *Server) URL() string {
	return s.httpServer.URL
}

func (s *Server) Close() {
	s.httpServer.Close()
}

// AddUser registers an account; the returned user carries the assigned id.
func (s *Server) AddUser(u domain.User, password string) domain.User {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == "" {
		s.nextID++
		u.ID = fmt.Sprintf("user-%d", s.nextID)
	}
	s.accounts[strings.ToLower(u.Email)] = &account{user: u, passwordHash: hash}
	return u
}

// User returns the stored profile for email.
func (s *Server) User(email string) (domain.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[strings.ToLower(email)]
	if !ok {
		return domain.User{}, false
	}
	return acc.user, true
}

// SetPoints overwrites a user's loyalty balance.
func (s *Server) SetPoints(email string, points decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acc, ok := s.accounts[strings.ToLower(email)]; ok {
		acc.user.LoyaltyPoints = points
	}
}

func (s *Server) AddProduct(p domain.Product) domain.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		s.nextID++
		p.ID = fmt.Sprintf("prod-%d", s.nextID)
	}
	if p.Slug == "" {
		p.Slug = strings.ReplaceAll(strings.ToLower(p.Title), " ", "-")
	}
	s.products[p.ID] = p
	if p.Category != nil {
		found := false
		for _, c := range s.categories {
			if c.Slug == p.Category.Slug {
				found = true
			}
		}
		if !found {
			s.categories = append(s.categories, *p.Category)
		}
	}
	return p
}

// FailOrders makes order creation answer status with message until cleared
// with FailOrders(0, "").
func (s *Server) FailOrders(status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		s.failOrders = nil
		return
	}
	s.failOrders = &failure{status: status, message: message}
}

// FailProfile makes the profile endpoint answer status until cleared.
func (s *Server) FailProfile(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		s.failProfile = nil
		return
	}
	s.failProfile = &failure{status: status, message: http.StatusText(status)}
}

// RevokeTokens makes every bearer token invalid from now on.
func (s *Server) RevokeTokens() {
	s.mu.Lock()
	s.revoked = true
	s.mu.Unlock()
}

func (s *Server) Orders() []PlacedOrder {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PlacedOrder, len(s.orders))
	copy(out, s.orders)
	return out
}

func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// IssueToken signs an access token for userID that expires after ttl
// (negative ttl yields an already expired token).
func (s *Server) IssueToken(userID string, ttl time.Duration) string {
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(ttl).Unix(),
		"iat":     time.Now().Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		panic(err)
	}
	return signed
}

var errNoToken = errors.New("no token")

// authenticate resolves the bearer user. errNoToken means no header was sent.
func (s *Server) authenticate(c *gin.Context) (*account, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return nil, errNoToken
	}
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return nil, errors.New("token prefix must be Bearer")
	}
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid claims")
	}
	userID, _ := claims["user_id"].(string)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.revoked {
		return nil, errors.New("token revoked")
	}
	for _, acc := range s.accounts {
		if acc.user.ID == userID {
			return acc, nil
		}
	}
	return nil, errors.New("user not found")
}

func (s *Server) tokensFor(u domain.User) domain.Tokens {
	return domain.Tokens{
		Access:  s.IssueToken(u.ID, s.accessTTL),
		Refresh: s.IssueToken(u.ID, 30*24*time.Hour),
	}
}
