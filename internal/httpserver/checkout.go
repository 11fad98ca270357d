package httpserver

import (
	"net/http"
	"strconv"

	"bahri-storefront/internal/domain"
	"bahri-storefront/internal/service/checkout"
	"github.com/gin-gonic/gin"
)

type submitRequest struct {
	UseLoyalty *bool                   `json:"use_loyalty"`
	Contact    domain.ShippingInfo     `json:"contact"`
	Override   *domain.AddressOverride `json:"override"`
}

func (h *handlers) quote(c *gin.Context) {
	w := deviceFrom(c).Quote
	raw := c.Query("use_loyalty")
	if raw == "" {
		respond(c, http.StatusOK, w.Recompute())
		return
	}
	on, err := strconv.ParseBool(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "use_loyalty must be a boolean"})
		return
	}
	respond(c, http.StatusOK, w.SetUseLoyalty(on))
}

func (h *handlers) submit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	d := deviceFrom(c)
	// Without an explicit choice the order follows the previewed quote.
	useLoyalty := d.Quote.UseLoyalty()
	if req.UseLoyalty != nil {
		useLoyalty = *req.UseLoyalty
	}
	conf, err := d.Checkout.Submit(c.Request.Context(), checkout.Submission{
		UseLoyalty: useLoyalty,
		Contact:    req.Contact,
		Override:   req.Override,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond(c, http.StatusCreated, conf)
}

func (h *handlers) listOrders(c *gin.Context) {
	list, err := deviceFrom(c).Orders.ListMine(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	if list == nil {
		list = []domain.Order{}
	}
	respond(c, http.StatusOK, list)
}

func (h *handlers) account(c *gin.Context) {
	acc, err := deviceFrom(c).Account(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond(c, http.StatusOK, acc)
}
