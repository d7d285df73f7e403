package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"bookvocab/internal/apperr"
	"bookvocab/internal/middleware"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

func Health(store Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := store.Ping(ctx); err != nil {
			middleware.Logger(c).Error("health check failed", "error", err)
			c.JSON(http.StatusServiceUnavailable, envelope{
				Success:   false,
				Message:   "Database unavailable",
				ErrorCode: apperr.CodeInternal,
			})
			return
		}
		respondOK(c, http.StatusOK, "API is healthy", gin.H{"status": "ok"})
	}
}
