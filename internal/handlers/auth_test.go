package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"bookvocab/internal/apperr"
	"bookvocab/internal/auth"
	"bookvocab/internal/logger"
	"bookvocab/internal/middleware"
	"bookvocab/internal/session"
	"bookvocab/internal/store"
	"bookvocab/internal/token"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type response struct {
	Success   bool            `json:"success"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
	ErrorCode string          `json:"errorCode"`
}

type server struct {
	t      *testing.T
	router *gin.Engine
	mem    *store.MemoryStore
}

func newServer(t *testing.T, mutate ...func(*RouterDeps)) *server {
	t.Helper()
	codec, err := token.NewCodec(token.Config{
		AccessSecret:  []byte("access-secret"),
		RefreshSecret: []byte("refresh-secret"),
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
		Issuer:        "bookvocab",
	})
	require.NoError(t, err)

	mem := store.NewMemoryStore()
	mgr := auth.NewManager(auth.Deps{
		Users:    mem,
		Hasher:   auth.NewBcryptHasher(bcrypt.MinCost),
		Codec:    codec,
		Sessions: session.NewWhitelists(mem),
		Logger:   logger.Discard(),
	})
	deps := RouterDeps{
		Auth:    mgr,
		Store:   mem,
		Logger:  logger.Discard(),
		Cookies: NewCookieConfig(false, mgr.AccessTTL(), mgr.RefreshTTL()),
	}
	for _, m := range mutate {
		m(&deps)
	}
	return &server{t: t, router: NewRouter(deps), mem: mem}
}

func (s *server) do(method, path string, body any, cookies ...*http.Cookie) (*httptest.ResponseRecorder, response) {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var resp response
	require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return rec, resp
}

func (s *server) register(username, email string) {
	s.t.Helper()
	rec, _ := s.do(http.MethodPost, "/auth/register", gin.H{
		"username": username, "email": email, "password": "Passw0rd!",
	})
	require.Equal(s.t, http.StatusCreated, rec.Code)
}

func (s *server) login(email string, cookies ...*http.Cookie) (access, refresh *http.Cookie) {
	s.t.Helper()
	rec, _ := s.do(http.MethodPost, "/auth/login", gin.H{"email": email, "password": "Passw0rd!"}, cookies...)
	require.Equal(s.t, http.StatusOK, rec.Code)
	return cookieNamed(s.t, rec, middleware.AccessCookie), cookieNamed(s.t, rec, RefreshCookie)
}

func cookieNamed(t *testing.T, rec *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	var found *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			found = c
		}
	}
	require.NotNil(t, found, "cookie %s not set", name)
	return found
}

func TestRegisterEndpoint(t *testing.T) {
	s := newServer(t)

	rec, resp := s.do(http.MethodPost, "/auth/register", gin.H{
		"username": "reader", "email": "Reader@Example.com", "password": "Passw0rd!",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, resp.Success)
	var dto map[string]any
	require.NoError(t, json.Unmarshal(resp.Data, &dto))
	assert.Equal(t, "reader", dto["username"])
	assert.Equal(t, "reader@example.com", dto["email"])
	assert.NotContains(t, dto, "passwordHash")
	assert.NotContains(t, dto, "refreshToken")

	rec, resp = s.do(http.MethodPost, "/auth/register", gin.H{
		"username": "other", "email": "reader@example.com", "password": "Passw0rd!",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, apperr.CodeConflict, resp.ErrorCode)

	rec, resp = s.do(http.MethodPost, "/auth/register", gin.H{
		"username": "x!", "email": "nope", "password": "short",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperr.CodeValidation, resp.ErrorCode)
	assert.Contains(t, resp.Message, "Invalid email")
}

func TestLoginSetsCookies(t *testing.T) {
	s := newServer(t)
	s.register("reader", "reader@example.com")

	rec, resp := s.do(http.MethodPost, "/auth/login", gin.H{"email": "reader@example.com", "password": "Passw0rd!"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Login successful", resp.Message)

	access := cookieNamed(t, rec, middleware.AccessCookie)
	refresh := cookieNamed(t, rec, RefreshCookie)
	for _, c := range []*http.Cookie{access, refresh} {
		assert.True(t, c.HttpOnly)
		assert.False(t, c.Secure)
		assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
		assert.Equal(t, "/", c.Path)
	}
	assert.Equal(t, 900, access.MaxAge)
	assert.Equal(t, 7*24*3600, refresh.MaxAge)
}

func TestLoginBadCredentials(t *testing.T) {
	s := newServer(t)
	s.register("reader", "reader@example.com")

	rec, resp := s.do(http.MethodPost, "/auth/login", gin.H{"email": "reader@example.com", "password": "Wrong0ne!"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid email or password", resp.Message)
	assert.Equal(t, apperr.CodeUnauthorized, resp.ErrorCode)
	assert.Empty(t, rec.Result().Cookies())
}

func TestProductionCookies(t *testing.T) {
	s := newServer(t, func(d *RouterDeps) { d.Cookies.Secure = true })
	s.register("reader", "reader@example.com")

	access, refresh := s.login("reader@example.com")
	for _, c := range []*http.Cookie{access, refresh} {
		assert.True(t, c.Secure)
		assert.Equal(t, http.SameSiteNoneMode, c.SameSite)
	}
}

func TestMeRequiresAccessToken(t *testing.T) {
	s := newServer(t)
	s.register("reader", "reader@example.com")
	access, refresh := s.login("reader@example.com")

	rec, resp := s.do(http.MethodGet, "/users/me", nil, access)
	require.Equal(t, http.StatusOK, rec.Code)
	var dto map[string]any
	require.NoError(t, json.Unmarshal(resp.Data, &dto))
	assert.Equal(t, "reader", dto["username"])

	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+refresh.Value)
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, resp = s.do(http.MethodGet, "/users/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, resp.Success)
}

func TestRefreshEndpoint(t *testing.T) {
	s := newServer(t)
	s.register("reader", "reader@example.com")
	_, refresh := s.login("reader@example.com")

	rec, resp := s.do(http.MethodPost, "/auth/refresh", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "No refresh token provided", resp.Message)
	assert.Equal(t, apperr.CodeInvalidToken, resp.ErrorCode)

	rec, resp = s.do(http.MethodPost, "/auth/refresh", nil, refresh)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "null", string(resp.Data))
	rotated := cookieNamed(t, rec, RefreshCookie)
	assert.NotEqual(t, refresh.Value, rotated.Value)
	assert.Positive(t, rotated.MaxAge)

	rec, resp = s.do(http.MethodPost, "/auth/refresh", nil, refresh)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid or expired refresh token", resp.Message)
	assert.Negative(t, cookieNamed(t, rec, RefreshCookie).MaxAge, "rejected cookie is cleared")

	rec, _ = s.do(http.MethodPost, "/auth/refresh", nil, rotated)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "reuse revoked the rotated token too")
}

func TestTwoDevicesReuseScenario(t *testing.T) {
	s := newServer(t)
	s.register("reader", "reader@example.com")
	_, rtA := s.login("reader@example.com")
	_, rtB := s.login("reader@example.com")

	rec, _ := s.do(http.MethodPost, "/auth/refresh", nil, rtA)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = s.do(http.MethodPost, "/auth/refresh", nil, rtA)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = s.do(http.MethodPost, "/auth/refresh", nil, rtB)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutEndpoint(t *testing.T) {
	s := newServer(t)
	s.register("reader", "reader@example.com")
	_, rtA := s.login("reader@example.com")
	_, rtB := s.login("reader@example.com")

	rec, resp := s.do(http.MethodPost, "/auth/logout", nil, rtA)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Logged out successfully", resp.Message)
	assert.Negative(t, cookieNamed(t, rec, RefreshCookie).MaxAge)
	assert.Negative(t, cookieNamed(t, rec, middleware.AccessCookie).MaxAge)

	rec, _ = s.do(http.MethodPost, "/auth/logout", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = s.do(http.MethodPost, "/auth/refresh", nil, rtB)
	assert.Equal(t, http.StatusOK, rec.Code, "other device unaffected")
}

type downStore struct{}

func (downStore) Ping(context.Context) error { return errors.New("no reachable servers") }

func TestHealth(t *testing.T) {
	s := newServer(t)
	rec, resp := s.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)

	s = newServer(t, func(d *RouterDeps) { d.Store = downStore{} })
	rec, resp = s.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.False(t, resp.Success)
}

func TestLoginRateLimited(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	s := newServer(t, func(d *RouterDeps) {
		d.LoginLimiter = middleware.NewRedisRateLimiter(client, 2, 15*time.Minute)
	})
	s.register("reader", "reader@example.com")

	body := gin.H{"email": "reader@example.com", "password": "Wrong0ne!"}
	for i := 0; i < 2; i++ {
		rec, _ := s.do(http.MethodPost, "/auth/login", body)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec, resp := s.do(http.MethodPost, "/auth/login", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, apperr.CodeRateLimited, resp.ErrorCode)

	rec, _ = s.do(http.MethodPost, "/auth/register", gin.H{
		"username": "second", "email": "second@example.com", "password": "Passw0rd!",
	})
	assert.Equal(t, http.StatusCreated, rec.Code, "register has its own limiter")
}

func TestUnknownRoute(t *testing.T) {
	s := newServer(t)
	rec, resp := s.do(http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, apperr.CodeNotFound, resp.ErrorCode)
}
