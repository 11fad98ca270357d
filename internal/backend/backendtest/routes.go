package backendtest

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"bahri-storefront/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

func (s *Server) routes() http.Handler {
	r := gin.New()
	r.Use(s.record)

	r.POST("/users/login/", s.login)
	r.POST("/users/google-login/", s.googleLogin)
	r.POST("/users/register/", s.register)
	r.GET("/users/profile/", s.requireUser, s.profile)
	r.PUT("/users/profile/update/", s.requireUser, s.updateProfile)
	r.POST("/orders/create/", s.optionalUser, s.createOrder)
	r.GET("/orders/my-orders/", s.requireUser, s.myOrders)
	r.GET("/products/", s.listProducts)
	r.GET("/products/categories/", s.listCategories)
	r.GET("/products/:slug/", s.getProduct)
	return r
}

func (s *Server) record(c *gin.Context) {
	header, present := c.Request.Header["Authorization"]
	rec := Request{Method: c.Request.Method, Path: c.Request.URL.Path, HasAuthHeader: present}
	if present && len(header) > 0 {
		rec.Authorization = header[0]
	}
	s.mu.Lock()
	s.requests = append(s.requests, rec)
	s.mu.Unlock()
	c.Next()
}

const userKey = "backendtest.user"

func (s *Server) requireUser(c *gin.Context) {
	acc, err := s.authenticate(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Authentication credentials were not provided or are invalid."})
		return
	}
	c.Set(userKey, acc)
	c.Next()
}

func (s *Server) optionalUser(c *gin.Context) {
	acc, err := s.authenticate(c)
	if err != nil && !errors.Is(err, errNoToken) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": err.Error()})
		return
	}
	if acc != nil {
		c.Set(userKey, acc)
	}
	c.Next()
}

func currentAccount(c *gin.Context) *account {
	v, ok := c.Get(userKey)
	if !ok {
		return nil
	}
	return v.(*account)
}

func (s *Server) login(c *gin.Context) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&in); err != nil || in.Email == "" || in.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"email": []string{"This field is required."}})
		return
	}
	s.mu.Lock()
	acc, ok := s.accounts[strings.ToLower(in.Email)]
	s.mu.Unlock()
	if !ok || bcrypt.CompareHashAndPassword(acc.passwordHash, []byte(in.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Identifiants invalides"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": acc.user, "tokens": s.tokensFor(acc.user)})
}

// googleLogin accepts credentials of the form "google:<email>".
func (s *Server) googleLogin(c *gin.Context) {
	var in struct {
		Credential string `json:"credential"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "credential required"})
		return
	}
	email, ok := strings.CutPrefix(in.Credential, "google:")
	if !ok || email == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Token Google invalide"})
		return
	}
	u, exists := s.User(email)
	if !exists {
		u = s.AddUser(domain.User{Email: email, FirstName: "Google", LastName: "User"}, "unused-"+email)
	}
	c.JSON(http.StatusOK, gin.H{"user": u, "tokens": s.tokensFor(u)})
}

func (s *Server) register(c *gin.Context) {
	var in domain.Registration
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if len(in.Password) < 6 {
		c.JSON(http.StatusBadRequest, gin.H{"password": []string{"Ensure this field has at least 6 characters."}})
		return
	}
	if _, exists := s.User(in.Email); exists {
		c.JSON(http.StatusBadRequest, gin.H{"email": []string{"Cet email est déjà utilisé."}})
		return
	}
	u := s.AddUser(domain.User{
		Email:     in.Email,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Phone:     in.Phone,
		Address:   in.Address,
		City:      in.City,
	}, in.Password)
	c.JSON(http.StatusCreated, gin.H{"message": "Inscription réussie", "user": u, "tokens": s.tokensFor(u)})
}

func (s *Server) profile(c *gin.Context) {
	s.mu.Lock()
	fail := s.failProfile
	s.mu.Unlock()
	if fail != nil {
		c.JSON(fail.status, gin.H{"error": fail.message})
		return
	}
	acc := currentAccount(c)
	s.mu.Lock()
	u := acc.user
	s.mu.Unlock()
	c.JSON(http.StatusOK, u)
}

func (s *Server) updateProfile(c *gin.Context) {
	var in domain.ProfileFields
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	acc := currentAccount(c)
	s.mu.Lock()
	defer s.mu.Unlock()
	if in.FirstName != "" {
		acc.user.FirstName = in.FirstName
	}
	if in.LastName != "" {
		acc.user.LastName = in.LastName
	}
	if in.Phone != "" {
		acc.user.Phone = in.Phone
	}
	if in.Address != "" {
		acc.user.Address = in.Address
	}
	if in.City != "" {
		acc.user.City = in.City
	}
	c.JSON(http.StatusOK, acc.user)
}

func (s *Server) createOrder(c *gin.Context) {
	s.mu.Lock()
	fail := s.failOrders
	s.mu.Unlock()
	if fail != nil {
		c.JSON(fail.status, gin.H{"error": fail.message})
		return
	}

	var in domain.OrderRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	required := map[string]string{
		"full_name": in.FullName, "email": in.Email, "phone": in.Phone, "address": in.Address, "city": in.City,
	}
	for _, field := range []string{"full_name", "email", "phone", "address", "city"} {
		if required[field] == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Le champ %s est obligatoire", field)})
			return
		}
	}
	if len(in.Items) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Panier vide"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	itemsTotal := decimal.Zero
	matched := 0
	for _, item := range in.Items {
		if item.Quantity < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"quantity": []string{"Ensure this value is greater than or equal to 1."}})
			return
		}
		p, ok := s.products[item.ProductID]
		if !ok {
			continue
		}
		matched++
		itemsTotal = itemsTotal.Add(p.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	if matched == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Produits introuvables"})
		return
	}

	order := PlacedOrder{Request: in, ItemsTotal: itemsTotal, PointsUsed: decimal.Zero, PointsToEarn: decimal.Zero, CreatedAt: time.Now().UTC()}
	acc := currentAccount(c)
	if acc != nil {
		order.UserID = acc.user.ID
		order.PointsToEarn = itemsTotal.Mul(earnRate)
		if in.UseLoyalty && acc.user.LoyaltyPoints.IsPositive() {
			order.PointsUsed = decimal.Min(acc.user.LoyaltyPoints, itemsTotal)
		}
	}
	order.FinalTotal = itemsTotal.Add(shippingCost).Sub(order.PointsUsed)
	if order.FinalTotal.IsNegative() {
		order.FinalTotal = decimal.Zero
	}
	s.nextID++
	order.ID = fmt.Sprintf("order-%d", s.nextID)
	s.orders = append(s.orders, order)
	if acc != nil && order.PointsUsed.IsPositive() {
		acc.user.LoyaltyPoints = acc.user.LoyaltyPoints.Sub(order.PointsUsed)
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":               "Commande créée",
		"order_id":              order.ID,
		"total":                 order.FinalTotal.StringFixed(2),
		"points_earned_pending": order.PointsToEarn.StringFixed(2),
	})
}

func (s *Server) myOrders(c *gin.Context) {
	acc := currentAccount(c)
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Order, 0)
	for i := len(s.orders) - 1; i >= 0; i-- {
		o := s.orders[i]
		if o.UserID != acc.user.ID {
			continue
		}
		items := make([]domain.OrderItem, 0, len(o.Request.Items))
		for _, it := range o.Request.Items {
			p := s.products[it.ProductID]
			items = append(items, domain.OrderItem{
				Title:    p.Title,
				Quantity: it.Quantity,
				Price:    p.Price,
				Total:    p.Price.Mul(decimal.NewFromInt(int64(it.Quantity))),
				Image:    p.Image,
			})
		}
		out = append(out, domain.Order{
			ID:          o.ID,
			TotalAmount: o.FinalTotal,
			ClientName:  o.Request.FullName,
			Status:      "PENDING",
			CreatedAt:   o.CreatedAt,
			Email:       o.Request.Email,
			Phone:       o.Request.Phone,
			Address:     o.Request.Address,
			City:        o.Request.City,
			Items:       items,
		})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) listProducts(c *gin.Context) {
	category := c.Query("category")
	search := strings.ToLower(c.Query("search"))
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if category != "" && (p.Category == nil || p.Category.Slug != category) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(p.Title), search) {
			continue
		}
		out = append(out, p)
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) listCategories(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Category, len(s.categories))
	copy(out, s.categories)
	c.JSON(http.StatusOK, out)
}

func (s *Server) getProduct(c *gin.Context) {
	slug := c.Param("slug")
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.products {
		if p.Slug == slug {
			c.JSON(http.StatusOK, p)
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "Produit introuvable"})
}
