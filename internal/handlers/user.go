package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"bookvocab/internal/apperr"
	"bookvocab/internal/auth"
	"bookvocab/internal/middleware"
)

func GetMe(svc *auth.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := middleware.UserID(c)
		if !ok {
			respondError(c, apperr.Unauthorized("Authentication required"))
			return
		}

		user, err := svc.CurrentUser(c.Request.Context(), userID)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, http.StatusOK, "User retrieved successfully", user.ToDTO())
	}
}
