package httpserver

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Deps are the collaborators the router needs.
type Deps struct {
	Devices     deviceSource
	Catalog     catalogReader
	Storage     Pinger
	CORSOrigins []string
}

// buildRouter wires routes for the storefront API.
func buildRouter(logger *zap.Logger, deps Deps) (*gin.Engine, error) {
	if deps.Devices == nil {
		return nil, errors.New("httpserver: device source is required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("httpserver: catalog is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.LoggerWithWriter(zap.NewStdLog(logger.Named("http")).Writer()), gin.Recovery())
	if len(deps.CORSOrigins) > 0 {
		router.Use(cors.New(corsConfig(deps.CORSOrigins)))
	}

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(deps.Storage))

	h := &handlers{logger: logger, catalog: deps.Catalog}

	// Browsing is anonymous and never opens a device.
	router.GET("/products", h.listProducts)
	router.GET("/products/:slug", h.getProduct)
	router.GET("/categories", h.listCategories)

	api := router.Group("/", deviceMiddleware(deps.Devices, logger))

	api.GET("/session", h.getSession)
	api.POST("/session/login", h.login)
	api.POST("/session/google", h.googleLogin)
	api.POST("/session/register", h.register)
	api.POST("/session/logout", h.logout)
	api.POST("/session/refresh", h.refresh)
	api.PUT("/session/profile", h.updateProfile)

	api.GET("/cart", h.getCart)
	api.POST("/cart/items", h.addItem)
	api.PUT("/cart/items/:productId", h.setQuantity)
	api.DELETE("/cart/items/:productId", h.removeItem)
	api.DELETE("/cart", h.clearCart)

	api.GET("/checkout/quote", h.quote)
	api.POST("/checkout", h.submit)

	api.GET("/orders", h.listOrders)
	api.GET("/account", h.account)

	return router, nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", deviceHeader},
		ExposeHeaders: []string{deviceHeader},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}
