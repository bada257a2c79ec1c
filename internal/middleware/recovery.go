package middleware

import (
	"io"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "github.com/charlesng35/ftpstore/pkg/errors"
	"github.com/charlesng35/ftpstore/pkg/logger"
	"github.com/charlesng35/ftpstore/pkg/response"
)

// Recovery answers a panicking handler with INTERNAL_ERROR. gin's own stack dump is
// discarded; the panic value goes to the structured log instead.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, recovered any) {
		logger.WithModule("http").Error("panic",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Any("error", recovered),
		)
		c.Abort()
		response.Error(c, apperrors.ErrInternal)
	})
}

// NotFoundHandler answers unknown routes with ROUTE_NOT_FOUND.
func NotFoundHandler(c *gin.Context) {
	response.Error(c, apperrors.ErrRouteNotFound.WithMessage("route %s not found", c.Request.URL.Path))
}
