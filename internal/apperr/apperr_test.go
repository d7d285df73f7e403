package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfUnwrapsWrappedErrors(t *testing.T) {
	err := fmt.Errorf("login: %w", Unauthorized("Invalid email or password"))
	assert.Equal(t, KindUnauthorized, KindOf(err))
	assert.True(t, Is(err, KindUnauthorized))
	assert.False(t, Is(nil, KindUnauthorized))
}

func TestKindOfDefaultsToInternal(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
}

func TestPublicMessageHidesInternalCause(t *testing.T) {
	err := Internal("store failed", errors.New("connection refused 10.0.0.3"))
	assert.Equal(t, "Internal server error", PublicMessage(err))
	assert.ErrorContains(t, err, "connection refused")

	assert.Equal(t, "User with this email already exists", PublicMessage(Conflict("User with this email already exists")))
	assert.Equal(t, "Internal server error", PublicMessage(errors.New("raw")))
}

func TestHTTPMapping(t *testing.T) {
	cases := map[Kind]struct {
		status int
		code   string
	}{
		KindValidation:   {http.StatusBadRequest, CodeValidation},
		KindUnauthorized: {http.StatusUnauthorized, CodeUnauthorized},
		KindNotFound:     {http.StatusNotFound, CodeNotFound},
		KindConflict:     {http.StatusConflict, CodeConflict},
		KindRateLimited:  {http.StatusTooManyRequests, CodeRateLimited},
		KindInternal:     {http.StatusInternalServerError, CodeInternal},
	}
	for kind, want := range cases {
		assert.Equal(t, want.status, HTTPStatus(kind), kind)
		assert.Equal(t, want.code, Code(kind), kind)
	}
}

func TestUnwrapExposesCause(t *testing.T) {
	cause := errors.New("duplicate key")
	err := New(KindConflict, "conflict", cause)
	assert.ErrorIs(t, err, cause)
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeInvalidToken, CodeOf(InvalidToken("Invalid or expired token", nil)))
	assert.Equal(t, CodeUnauthorized, CodeOf(Unauthorized("Invalid email or password")))
	assert.Equal(t, CodeConflict, CodeOf(fmt.Errorf("wrap: %w", Conflict("taken"))))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
}

func TestValidationKeepsMessageAndCause(t *testing.T) {
	cause := errors.New("Key: 'RegisterInput.Email' failed")
	err := Validation("Invalid email", cause)
	assert.Equal(t, KindValidation, KindOf(err))
	assert.Equal(t, "Invalid email", PublicMessage(err))
	assert.Equal(t, CodeValidation, CodeOf(err))
	assert.ErrorIs(t, err, cause)
}
