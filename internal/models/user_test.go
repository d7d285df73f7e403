package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"bookvocab/internal/session"
)

func TestUserJSONHidesSecrets(t *testing.T) {
	u := User{
		ID:            primitive.NewObjectID(),
		Username:      "reader",
		Email:         "reader@example.com",
		PasswordHash:  "$2a$10$hash",
		RefreshTokens: session.Whitelist{"rt-1"},
	}
	body, err := json.Marshal(u)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "hash")
	assert.NotContains(t, string(body), "rt-1")
}

func TestToDTO(t *testing.T) {
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	u := User{
		ID:        primitive.NewObjectID(),
		Username:  "reader",
		Email:     "reader@example.com",
		CreatedAt: created,
		UpdatedAt: created.Add(time.Hour),
	}
	dto := u.ToDTO()
	assert.Equal(t, u.ID.Hex(), dto.ID)
	assert.Equal(t, "2024-03-01T10:00:00Z", dto.CreatedAt)
	assert.Equal(t, "2024-03-01T11:00:00Z", dto.UpdatedAt)
}

func TestUserDecodesLegacySingleToken(t *testing.T) {
	raw, err := bson.Marshal(bson.M{
		"username":     "reader",
		"email":        "reader@example.com",
		"refreshToken": "legacy-token",
	})
	require.NoError(t, err)

	var u User
	require.NoError(t, bson.Unmarshal(raw, &u))
	assert.Equal(t, session.Whitelist{"legacy-token"}, u.RefreshTokens)
}

func TestUserEncodesEmptyWhitelistAsArray(t *testing.T) {
	raw, err := bson.Marshal(User{Username: "reader"})
	require.NoError(t, err)

	val := bson.Raw(raw).Lookup("refreshToken")
	assert.Equal(t, bson.TypeArray, val.Type)
}
