package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"bookvocab/internal/apperr"
)

const (
	RequestIDHeader = "X-Request-Id"

	requestIDKey = "RequestID"
	loggerKey    = "logger"
)

// RequestID reuses the caller's X-Request-Id or mints one, and attaches a
// request-scoped logger to the context.
func RequestID(base *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Writer.Header().Set(RequestIDHeader, requestID)
		c.Set(requestIDKey, requestID)
		c.Set(loggerKey, base.With("request_id", requestID))
		c.Next()
	}
}

// RequestLogger logs one line per request once the handler chain finishes.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		level := slog.LevelInfo
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		loggerFrom(c).Log(c.Request.Context(), level, "http_request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		)
	}
}

// Recovery turns a panic into a 500 envelope.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				loggerFrom(c).Error("panic recovered",
					"method", c.Request.Method,
					"path", c.FullPath(),
					"reason", fmt.Sprintf("%v", r),
					"stack", string(debug.Stack()),
				)
				Abort(c, apperr.Internal("panic", fmt.Errorf("%v", r)))
			}
		}()
		c.Next()
	}
}

// Abort writes the error envelope for err and stops the chain.
func Abort(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindInternal {
		loggerFrom(c).Error("request failed", "error", err)
	}
	c.AbortWithStatusJSON(apperr.HTTPStatus(kind), gin.H{
		"success":   false,
		"message":   apperr.PublicMessage(err),
		"data":      nil,
		"errorCode": apperr.CodeOf(err),
	})
}

// Logger returns the request-scoped logger set by RequestID.
func Logger(c *gin.Context) *slog.Logger {
	return loggerFrom(c)
}

func loggerFrom(c *gin.Context) *slog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if l, ok := v.(*slog.Logger); ok {
			return l
		}
	}
	return slog.Default()
}
