package handlers

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"bookvocab/internal/apperr"
	"bookvocab/internal/auth"
	"bookvocab/internal/middleware"
)

// RouterDeps wires the HTTP surface. Nil limiters disable rate limiting.
type RouterDeps struct {
	Auth          *auth.Manager
	Store         Pinger
	Logger        *slog.Logger
	Cookies       CookieConfig
	ClientOrigins []string
	LoginLimiter  middleware.Limiter
	SignupLimiter middleware.Limiter
}

var registerBindingOnce sync.Once

func registerBindingValidators() {
	registerBindingOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			if err := auth.RegisterValidators(v); err != nil {
				panic(err)
			}
		}
	})
}

func NewRouter(d RouterDeps) *gin.Engine {
	registerBindingValidators()
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}

	r := gin.New()
	r.Use(middleware.RequestID(log), middleware.Recovery(), middleware.RequestLogger())
	if len(d.ClientOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     d.ClientOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
			ExposeHeaders:    []string{middleware.RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.GET("/health", Health(d.Store))

	authGroup := r.Group("/auth")
	{
		authGroup.POST("/register", limited("register", d.SignupLimiter, Register(d.Auth))...)
		authGroup.POST("/login", limited("login", d.LoginLimiter, Login(d.Auth, d.Cookies))...)
		authGroup.POST("/refresh", Refresh(d.Auth, d.Cookies))
		authGroup.POST("/logout", Logout(d.Auth, d.Cookies))
	}

	users := r.Group("/users")
	users.Use(middleware.UserAuth(d.Auth))
	{
		users.GET("/me", GetMe(d.Auth))
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, envelope{Success: false, Message: "Route not found", ErrorCode: apperr.CodeNotFound})
	})
	return r
}

func limited(action string, l middleware.Limiter, h gin.HandlerFunc) []gin.HandlerFunc {
	if l == nil {
		return []gin.HandlerFunc{h}
	}
	return []gin.HandlerFunc{middleware.RateLimit(action, l), h}
}
