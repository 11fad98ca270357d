package httpserver

import (
	"context"
	"net/http"
	"strings"

	"bahri-storefront/internal/domain"
	"github.com/gin-gonic/gin"
)

type catalogReader interface {
	List(ctx context.Context, category, search string) ([]domain.Product, error)
	Get(ctx context.Context, slug string) (*domain.Product, error)
	Categories(ctx context.Context) ([]domain.Category, error)
}

func (h *handlers) listProducts(c *gin.Context) {
	category := strings.TrimSpace(c.Query("category"))
	search := strings.TrimSpace(c.Query("search"))
	list, err := h.catalog.List(c.Request.Context(), category, search)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if list == nil {
		list = []domain.Product{}
	}
	respond(c, http.StatusOK, list)
}

func (h *handlers) getProduct(c *gin.Context) {
	p, err := h.catalog.Get(c.Request.Context(), c.Param("slug"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond(c, http.StatusOK, p)
}

func (h *handlers) listCategories(c *gin.Context) {
	list, err := h.catalog.Categories(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	if list == nil {
		list = []domain.Category{}
	}
	respond(c, http.StatusOK, list)
}
