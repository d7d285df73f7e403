package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"bookvocab/internal/config"
	"bookvocab/internal/handlers"
	"bookvocab/internal/middleware"
)

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.AppEnv
		if servePort != "" {
			cfg.Port = servePort
		}
		if cfg.IsProduction() {
			gin.SetMode(gin.ReleaseMode)
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		a, err := newApp(ctx, cfg)
		cancel()
		if err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := a.close(ctx); err != nil {
				log.Warn("store close failed", "error", err)
			}
		}()

		deps := handlers.RouterDeps{
			Auth:          a.auth,
			Store:         a.backend,
			Logger:        log,
			Cookies:       handlers.NewCookieConfig(cfg.IsProduction(), a.auth.AccessTTL(), a.auth.RefreshTTL()),
			ClientOrigins: cfg.ClientOrigins,
		}
		if cfg.RateLimit.Enabled {
			rdb := redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			defer rdb.Close()
			if err := rdb.Ping(cmd.Context()).Err(); err != nil {
				log.Warn("redis unreachable, rate limiter will fail open", "addr", cfg.Redis.Addr, "error", err)
			}
			deps.LoginLimiter = middleware.NewRedisRateLimiter(rdb, cfg.RateLimit.LoginMax, cfg.RateLimit.LoginWindow)
			deps.SignupLimiter = middleware.NewRedisRateLimiter(rdb, cfg.RateLimit.RegisterMax, cfg.RateLimit.RegisterWindow)
		}

		server := &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           handlers.NewRouter(deps),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		done := make(chan error, 1)
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				done <- fmt.Errorf("server failed: %w", err)
				return
			}
			done <- nil
		}()
		log.Info("server listening", "port", cfg.Port, "env", cfg.Env, "store", cfg.StoreDriver)

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			log.Info("shutting down", "signal", sig.String())
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				return fmt.Errorf("server shutdown failed: %w", err)
			}
			return nil
		case err := <-done:
			return err
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&servePort, "port", "p", "", "Port to listen on (overrides PORT)")
}
