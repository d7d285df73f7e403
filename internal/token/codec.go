// Package token signs and verifies the two JWT kinds used for sessions.
//
// Access and refresh tokens are signed with different secrets, so a token of
// one kind never verifies as the other.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

type Claims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

type Codec struct {
	cfg Config
	now func() time.Time
}

type Option func(*Codec)

// WithClock replaces time.Now for signing and verification.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		c.now = now
	}
}

func NewCodec(cfg Config, opts ...Option) (*Codec, error) {
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		return nil, errors.New("token: access and refresh secrets are required")
	}
	if string(cfg.AccessSecret) == string(cfg.RefreshSecret) {
		return nil, errors.New("token: access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("token: ttl must be positive")
	}
	c := &Codec{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Codec) AccessTTL() time.Duration  { return c.cfg.AccessTTL }
func (c *Codec) RefreshTTL() time.Duration { return c.cfg.RefreshTTL }

func (c *Codec) SignAccess(userID string) (string, error) {
	return c.sign(userID, c.cfg.AccessSecret, c.cfg.AccessTTL)
}

// SignRefresh issues a refresh token. Every call yields a distinct string
// because each token carries its own jti.
func (c *Codec) SignRefresh(userID string) (string, error) {
	return c.sign(userID, c.cfg.RefreshSecret, c.cfg.RefreshTTL)
}

func (c *Codec) VerifyAccess(raw string) (Claims, error) {
	return c.verify(raw, c.cfg.AccessSecret)
}

func (c *Codec) VerifyRefresh(raw string) (Claims, error) {
	return c.verify(raw, c.cfg.RefreshSecret)
}

// DecodeUnsafe recovers the user id from a refresh token whose time-based
// claims may no longer hold. The signature is still checked against the
// refresh secret. The result must never be used to authorize a request; it
// only identifies whose sessions to revoke after a reuse.
func (c *Codec) DecodeUnsafe(raw string) (string, bool) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(
		raw,
		claims,
		keyFunc(c.cfg.RefreshSecret),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil || strings.TrimSpace(claims.UserID) == "" {
		return "", false
	}
	return claims.UserID, true
}

func (c *Codec) sign(userID string, secret []byte, ttl time.Duration) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", errors.New("token: empty user id")
	}
	now := c.now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("token: sign: %w", err)
	}
	return signed, nil
}

func (c *Codec) verify(raw string, secret []byte) (Claims, error) {
	if strings.TrimSpace(raw) == "" {
		return Claims{}, ErrInvalidToken
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	}
	if c.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.cfg.Issuer))
	}

	claims := Claims{}
	tok, err := jwt.ParseWithClaims(raw, &claims, keyFunc(secret), opts...)
	if err != nil || !tok.Valid {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if strings.TrimSpace(claims.UserID) == "" {
		return Claims{}, fmt.Errorf("%w: missing userId", ErrInvalidToken)
	}
	return claims, nil
}

func keyFunc(secret []byte) jwt.Keyfunc {
	return func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}
}
