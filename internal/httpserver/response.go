package httpserver

import (
	"errors"
	"net/http"

	"bahri-storefront/internal/domain"
	"bahri-storefront/internal/service/checkout"
	"bahri-storefront/internal/service/session"
	"bahri-storefront/internal/storefront"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const loginPath = "/login"

type handlers struct {
	logger  *zap.Logger
	catalog catalogReader
}

type cartView struct {
	Scope     string            `json:"scope"`
	Version   uint64            `json:"version"`
	Lines     []domain.CartLine `json:"lines"`
	ItemCount int               `json:"item_count"`
	Subtotal  decimal.Decimal   `json:"subtotal"`
}

func toCartView(c domain.Cart) cartView {
	lines := c.Lines
	if lines == nil {
		lines = []domain.CartLine{}
	}
	return cartView{
		Scope:     c.Scope,
		Version:   c.Version,
		Lines:     lines,
		ItemCount: c.ItemCount(),
		Subtotal:  c.Subtotal(),
	}
}

// respond writes v unless the session expired while serving this request, in
// which case the client is told to send the user to login.
func respond(c *gin.Context, status int, v interface{}) {
	if storefront.RedirectRequested(c.Request.Context()) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session expired", "redirect": loginPath})
		return
	}
	c.JSON(status, v)
}

func (h *handlers) writeError(c *gin.Context, err error) {
	var authErr *session.AuthError
	if errors.As(err, &authErr) {
		status := http.StatusBadRequest
		switch authErr.Kind {
		case session.AuthInvalidCredentials:
			status = http.StatusUnauthorized
		case session.AuthNetwork:
			status = http.StatusBadGateway
		case session.AuthStorage:
			status = http.StatusInternalServerError
		}
		c.JSON(status, gin.H{"error": authErr.Message, "kind": authErr.Kind.String()})
		return
	}

	var submitErr *checkout.SubmitError
	if errors.As(err, &submitErr) {
		body := gin.H{"error": submitErr.Message}
		status := statusOf(err, http.StatusBadGateway)
		if status == http.StatusUnauthorized || storefront.RedirectRequested(c.Request.Context()) {
			status = http.StatusUnauthorized
			body["redirect"] = loginPath
		}
		c.JSON(status, body)
		return
	}

	status := statusOf(err, http.StatusInternalServerError)
	switch {
	case status == http.StatusUnauthorized:
		c.JSON(status, gin.H{"error": "sign in required", "redirect": loginPath})
	case status == http.StatusInternalServerError:
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(status, gin.H{"error": "internal error"})
	default:
		c.JSON(status, gin.H{"error": err.Error()})
	}
}

func statusOf(err error, fallback int) int {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrEmptyCart):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrStaleVersion), errors.Is(err, domain.ErrInProgress):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNotReady):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrUnavailable):
		return http.StatusBadGateway
	}
	return fallback
}
