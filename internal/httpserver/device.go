package httpserver

import (
	"context"
	"net/http"
	"strings"

	"bahri-storefront/internal/storefront"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	deviceHeader      = "X-Device-ID"
	maxDeviceIDLength = 64
)

type deviceSource interface {
	Get(ctx context.Context, id string) (*storefront.Device, error)
}

type ctxKey string

const deviceCtxKey ctxKey = "device"

// deviceMiddleware resolves the caller's device from X-Device-ID, issuing a
// new id when the header is absent.
func deviceMiddleware(devices deviceSource, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(deviceHeader))
		if id == "" {
			id = uuid.NewString()
		}
		if len(id) > maxDeviceIDLength || strings.ContainsAny(id, "/\\ ") {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid device id"})
			return
		}
		c.Header(deviceHeader, id)

		d, err := devices.Get(c.Request.Context(), id)
		if err != nil {
			logger.Error("open device", zap.String("device", id), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "device unavailable"})
			return
		}
		ctx := storefront.TrackRedirect(context.WithValue(c.Request.Context(), deviceCtxKey, d))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func deviceFrom(c *gin.Context) *storefront.Device {
	d, _ := c.Request.Context().Value(deviceCtxKey).(*storefront.Device)
	return d
}
