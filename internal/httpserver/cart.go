package httpserver

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"bahri-storefront/internal/domain"
	"bahri-storefront/internal/service/cart"
	"github.com/gin-gonic/gin"
)

type addItemRequest struct {
	Product         *domain.Product `json:"product"`
	Slug            string          `json:"slug"`
	ExpectedVersion *uint64         `json:"expected_version"`
}

type setQuantityRequest struct {
	Quantity        int     `json:"quantity"`
	ExpectedVersion *uint64 `json:"expected_version"`
}

func versionOption(v *uint64) []cart.MutateOption {
	if v == nil {
		return nil
	}
	return []cart.MutateOption{cart.IfVersion(*v)}
}

// queryVersion reads ?expected_version for mutations without a body.
func queryVersion(c *gin.Context) ([]cart.MutateOption, error) {
	raw := strings.TrimSpace(c.Query("expected_version"))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, errors.New("expected_version must be a non-negative integer")
	}
	return []cart.MutateOption{cart.IfVersion(v)}, nil
}

func (h *handlers) getCart(c *gin.Context) {
	snapshot, err := deviceFrom(c).Cart.Snapshot()
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond(c, http.StatusOK, toCartView(snapshot))
}

func (h *handlers) addItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	d := deviceFrom(c)
	opts := versionOption(req.ExpectedVersion)

	var (
		updated domain.Cart
		err     error
	)
	switch {
	case req.Product != nil:
		updated, err = d.Cart.AddItem(c.Request.Context(), *req.Product, opts...)
	case strings.TrimSpace(req.Slug) != "":
		updated, err = d.AddBySlug(c.Request.Context(), strings.TrimSpace(req.Slug), opts...)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "product or slug is required"})
		return
	}
	h.writeMutation(c, updated, err)
}

func (h *handlers) setQuantity(c *gin.Context) {
	var req setQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	updated, err := deviceFrom(c).Cart.SetQuantity(c.Request.Context(), c.Param("productId"), req.Quantity, versionOption(req.ExpectedVersion)...)
	h.writeMutation(c, updated, err)
}

func (h *handlers) removeItem(c *gin.Context) {
	opts, err := queryVersion(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	updated, err := deviceFrom(c).Cart.RemoveItem(c.Request.Context(), c.Param("productId"), opts...)
	h.writeMutation(c, updated, err)
}

func (h *handlers) clearCart(c *gin.Context) {
	opts, err := queryVersion(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	updated, err := deviceFrom(c).Cart.Clear(c.Request.Context(), opts...)
	h.writeMutation(c, updated, err)
}

// writeMutation answers a stale version with the current cart so the client
// can rebase.
func (h *handlers) writeMutation(c *gin.Context, updated domain.Cart, err error) {
	if errors.Is(err, domain.ErrStaleVersion) {
		respond(c, http.StatusConflict, gin.H{"error": err.Error(), "cart": toCartView(updated)})
		return
	}
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond(c, http.StatusOK, toCartView(updated))
}
