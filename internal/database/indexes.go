package database

import (
	"context"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	EmailIndexName        = "idx_email_unique"
	UsernameIndexName     = "idx_username_unique"
	RefreshTokenIndexName = "idx_refresh_token"
)

// EnsureUserIndexes creates the unique email and username indexes and the
// multikey index used to find the owner of a refresh token.
func EnsureUserIndexes(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	indexes := db.Collection("users").Indexes()

	models := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "email", Value: 1}},
			Options: options.Index().
				SetName(EmailIndexName).
				SetUnique(true),
		},
		{
			// strength 2 compares case-insensitively, so "marko" == "Marko"
			Keys: bson.D{{Key: "username", Value: 1}},
			Options: options.Index().
				SetName(UsernameIndexName).
				SetUnique(true).
				SetCollation(&options.Collation{Locale: "en", Strength: 2}),
		},
		{
			Keys:    bson.D{{Key: "refreshToken", Value: 1}},
			Options: options.Index().SetName(RefreshTokenIndexName),
		},
	}

	slog.Info("EnsureUserIndexes: creating user indexes")
	names, err := indexes.CreateMany(ctx, models)
	if err != nil {
		slog.Error("EnsureUserIndexes: index error", "error", err)
		return err
	}
	slog.Info("EnsureUserIndexes: user indexes ready", "indexes", names)
	return nil
}
