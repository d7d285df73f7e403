package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"bookvocab/internal/apperr"
	"bookvocab/internal/auth"
	"bookvocab/internal/middleware"
)

// envelope is the body shape of every JSON response.
type envelope struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Data      any    `json:"data"`
	ErrorCode string `json:"errorCode,omitempty"`
}

func respondOK(c *gin.Context, status int, message string, data any) {
	c.JSON(status, envelope{Success: true, Message: message, Data: data})
}

func respondError(c *gin.Context, err error) {
	middleware.Abort(c, err)
}

// bindJSON binds and validates the body, writing a 400 envelope on failure.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		middleware.Logger(c).Debug("request body rejected", "error", err)
		respondError(c, apperr.Validation(strings.Join(auth.ValidationMessages(err), "; "), err))
		return false
	}
	return true
}
