package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"bookvocab/internal/apperr"
)

const (
	// AccessCookie carries the access token for browser clients.
	AccessCookie = "accessToken"

	userIDKey = "userId"
)

// Authenticator resolves an access token to a user id.
type Authenticator interface {
	Authenticate(accessToken string) (string, error)
}

// UserAuth validates the access token from the Authorization header, falling
// back to the access cookie, and injects the userId into the context.
func UserAuth(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := loggerFrom(c)

		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			raw, _ = c.Cookie(AccessCookie)
		}
		if strings.TrimSpace(raw) == "" {
			log.Debug("missing access token")
			Abort(c, apperr.Unauthorized("Authentication required"))
			return
		}

		userID, err := auth.Authenticate(raw)
		if err != nil {
			log.Debug("access token rejected", "error", err)
			Abort(c, err)
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

// UserID returns the id stored by UserAuth.
func UserID(c *gin.Context) (string, bool) {
	id := c.GetString(userIDKey)
	return id, id != ""
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	tok := strings.TrimSpace(parts[1])
	return tok, tok != ""
}
