package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"bookvocab/internal/auth"
)

func Register(svc *auth.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req auth.RegisterInput
		if !bindJSON(c, &req) {
			return
		}

		user, err := svc.Register(c.Request.Context(), req)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, http.StatusCreated, "User registered successfully", user.ToDTO())
	}
}

func Login(svc *auth.Manager, cookies CookieConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req auth.LoginInput
		if !bindJSON(c, &req) {
			return
		}

		res, err := svc.Login(c.Request.Context(), req, refreshCookie(c))
		if err != nil {
			respondError(c, err)
			return
		}

		cookies.setAuthCookies(c, res.AccessToken, res.RefreshToken)
		respondOK(c, http.StatusOK, "Login successful", res.User.ToDTO())
	}
}

// Refresh drops the client's cookies up front so a rejected token is never
// kept by the browser.
func Refresh(svc *auth.Manager, cookies CookieConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		presented := refreshCookie(c)
		if presented != "" {
			cookies.clearAuthCookies(c)
		}

		pair, err := svc.Refresh(c.Request.Context(), presented)
		if err != nil {
			respondError(c, err)
			return
		}

		cookies.setAuthCookies(c, pair.AccessToken, pair.RefreshToken)
		respondOK(c, http.StatusOK, "Token refreshed successfully", nil)
	}
}

func Logout(svc *auth.Manager, cookies CookieConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		presented := refreshCookie(c)
		cookies.clearAuthCookies(c)

		if err := svc.Logout(c.Request.Context(), presented); err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, http.StatusOK, "Logged out successfully", nil)
	}
}
