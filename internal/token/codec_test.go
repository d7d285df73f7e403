package token

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		AccessSecret:  []byte("access-secret"),
		RefreshSecret: []byte("refresh-secret"),
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
		Issuer:        "bookvocab",
	}
}

func newTestCodec(t *testing.T, opts ...Option) *Codec {
	t.Helper()
	c, err := NewCodec(testConfig(), opts...)
	require.NoError(t, err)
	return c
}

func TestNewCodecValidatesConfig(t *testing.T) {
	cfg := testConfig()
	cfg.RefreshSecret = cfg.AccessSecret
	_, err := NewCodec(cfg)
	assert.Error(t, err)

	cfg = testConfig()
	cfg.AccessSecret = nil
	_, err = NewCodec(cfg)
	assert.Error(t, err)

	cfg = testConfig()
	cfg.RefreshTTL = 0
	_, err = NewCodec(cfg)
	assert.Error(t, err)
}

func TestSignAndVerifyRoundTrip(t *testing.T) {
	c := newTestCodec(t)

	access, err := c.SignAccess("user-1")
	require.NoError(t, err)
	claims, err := c.VerifyAccess(access)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)

	refresh, err := c.SignRefresh("user-1")
	require.NoError(t, err)
	claims, err = c.VerifyRefresh(refresh)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
}

func TestKindsDoNotCrossVerify(t *testing.T) {
	c := newTestCodec(t)

	access, err := c.SignAccess("user-1")
	require.NoError(t, err)
	refresh, err := c.SignRefresh("user-1")
	require.NoError(t, err)

	_, err = c.VerifyRefresh(access)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = c.VerifyAccess(refresh)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefreshTokensAreUnique(t *testing.T) {
	c := newTestCodec(t, WithClock(func() time.Time { return time.Unix(1_700_000_000, 0) }))

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		tok, err := c.SignRefresh("user-1")
		require.NoError(t, err)
		require.False(t, seen[tok], "duplicate refresh token issued")
		seen[tok] = true
	}
}

func TestExpiredTokenIsRejected(t *testing.T) {
	past := time.Now().Add(-8 * 24 * time.Hour)
	signer := newTestCodec(t, WithClock(func() time.Time { return past }))
	verifier := newTestCodec(t)

	refresh, err := signer.SignRefresh("user-1")
	require.NoError(t, err)

	_, err = verifier.VerifyRefresh(refresh)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestDecodeUnsafeIgnoresExpiry(t *testing.T) {
	past := time.Now().Add(-30 * 24 * time.Hour)
	signer := newTestCodec(t, WithClock(func() time.Time { return past }))
	c := newTestCodec(t)

	refresh, err := signer.SignRefresh("user-7")
	require.NoError(t, err)

	userID, ok := c.DecodeUnsafe(refresh)
	assert.True(t, ok)
	assert.Equal(t, "user-7", userID)
}

func TestDecodeUnsafeRequiresRefreshSignature(t *testing.T) {
	c := newTestCodec(t)

	access, err := c.SignAccess("user-1")
	require.NoError(t, err)
	_, ok := c.DecodeUnsafe(access)
	assert.False(t, ok, "access token must not decode with the refresh secret")

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UserID: "victim"}).SignedString([]byte("attacker"))
	require.NoError(t, err)
	_, ok = c.DecodeUnsafe(forged)
	assert.False(t, ok)

	_, ok = c.DecodeUnsafe("not-a-jwt")
	assert.False(t, ok)
}

func TestVerifyRejectsTamperedAndEmpty(t *testing.T) {
	c := newTestCodec(t)

	_, err := c.VerifyAccess("")
	assert.ErrorIs(t, err, ErrInvalidToken)

	access, err := c.SignAccess("user-1")
	require.NoError(t, err)
	parts := strings.Split(access, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))
	_, err = c.VerifyAccess(tampered)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsNoneAlgorithm(t *testing.T) {
	c := newTestCodec(t)
	claims := Claims{
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "bookvocab",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = c.VerifyAccess(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSignRejectsEmptyUser(t *testing.T) {
	c := newTestCodec(t)
	_, err := c.SignAccess(" ")
	assert.Error(t, err)
}
