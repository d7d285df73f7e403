package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"bookvocab/internal/middleware"
)

const RefreshCookie = "refreshToken"

// CookieConfig controls the auth cookies. Production deployments serve the
// API cross-site, so they need Secure and SameSite=None.
type CookieConfig struct {
	Secure     bool
	AccessTTL  int
	RefreshTTL int
}

func NewCookieConfig(production bool, accessTTL, refreshTTL int) CookieConfig {
	return CookieConfig{Secure: production, AccessTTL: accessTTL, RefreshTTL: refreshTTL}
}

func (cc CookieConfig) sameSite() http.SameSite {
	if cc.Secure {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}

func (cc CookieConfig) setAuthCookies(c *gin.Context, access, refresh string) {
	c.SetSameSite(cc.sameSite())
	c.SetCookie(middleware.AccessCookie, access, cc.AccessTTL, "/", "", cc.Secure, true)
	c.SetCookie(RefreshCookie, refresh, cc.RefreshTTL, "/", "", cc.Secure, true)
}

func (cc CookieConfig) clearAuthCookies(c *gin.Context) {
	c.SetSameSite(cc.sameSite())
	c.SetCookie(middleware.AccessCookie, "", -1, "/", "", cc.Secure, true)
	c.SetCookie(RefreshCookie, "", -1, "/", "", cc.Secure, true)
}

func refreshCookie(c *gin.Context) string {
	v, err := c.Cookie(RefreshCookie)
	if err != nil {
		return ""
	}
	return v
}
