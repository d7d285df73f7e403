package cmd

import (
	"context"
	"fmt"

	"bookvocab/internal/auth"
	"bookvocab/internal/config"
	"bookvocab/internal/database"
	"bookvocab/internal/session"
	"bookvocab/internal/store"
	"bookvocab/internal/token"
)

// app holds the wired core shared by every subcommand.
type app struct {
	backend store.Backend
	auth    *auth.Manager
	close   func(context.Context) error
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	backend, closeFn, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}

	codec, err := token.NewCodec(token.Config{
		AccessSecret:  []byte(cfg.JWT.AccessSecret),
		RefreshSecret: []byte(cfg.JWT.RefreshSecret),
		AccessTTL:     cfg.JWT.AccessTokenTTL,
		RefreshTTL:    cfg.JWT.RefreshTokenTTL,
		Issuer:        cfg.JWT.Issuer,
	})
	if err != nil {
		_ = closeFn(ctx)
		return nil, err
	}

	mgr := auth.NewManager(auth.Deps{
		Users:    backend,
		Hasher:   auth.NewBcryptHasher(cfg.BcryptCost),
		Codec:    codec,
		Sessions: session.NewWhitelists(backend),
		Logger:   log,
	})
	return &app{backend: backend, auth: mgr, close: closeFn}, nil
}

func openBackend(ctx context.Context, cfg config.Config) (store.Backend, func(context.Context) error, error) {
	if cfg.StoreDriver == config.DriverMemory {
		log.Warn("using in-memory store, data is lost on exit")
		return store.NewMemoryStore(), func(context.Context) error { return nil }, nil
	}

	client, err := database.Connect(ctx, cfg.MongoURI)
	if err != nil {
		return nil, nil, fmt.Errorf("mongo connect: %w", err)
	}
	db := client.Database(cfg.DBName)
	log.Info("mongodb connected", "db", db.Name())

	if err := database.EnsureUserIndexes(db); err != nil {
		log.Warn("user index warning", "error", err)
	}
	return store.NewMongoStore(db), client.Disconnect, nil
}
