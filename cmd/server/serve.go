package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"logitrack/internal/api/middleware"
	"logitrack/internal/api/routes"
	"logitrack/internal/config"
	"logitrack/internal/websocket"
	"logitrack/pkg/jwt"
	"logitrack/pkg/log"
	"logitrack/pkg/ratelimit"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and websocket invalidation server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(false)
		if err != nil {
			return err
		}
		if port, _ := cmd.Flags().GetString("port"); port != "" {
			cfg.Port = port
		}
		return serve(cmd.Context(), cfg)
	},
}

func init() {
	serveCmd.Flags().String("port", "", "listen port (overrides PORT)")
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger := log.WithComponent("server")

	verifier, err := jwt.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer)
	if err != nil {
		return fmt.Errorf("JWT_SECRET is required to serve: %w", err)
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	limiter := newLimiter(ctx, a, cfg)
	defer limiter.Close()

	ws := websocket.NewManager(a.svc, a.cache, cfg.AllowedOrigins)
	if err := ws.Start(); err != nil {
		return fmt.Errorf("failed to start websocket manager: %w", err)
	}
	defer ws.Stop()

	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger())
	router.Use(cors.New(corsConfig(cfg.AllowedOrigins)))

	routes.SetupRoutes(router, routes.Deps{
		Service:     a.svc,
		Store:       a.db,
		StoreDriver: cfg.StoreDriver,
		Redis:       a.redis,
		Verifier:    verifier,
		Limiter:     limiter,
		WebSocket:   ws,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("port", cfg.Port).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	logger.Info().Msg("Server stopped")
	return nil
}

// newLimiter prefers the Redis limiter so replicas share buckets.
func newLimiter(ctx context.Context, a *app, cfg *config.Config) ratelimit.RateLimiter {
	rc := ratelimit.DefaultConfig()
	rc.Enabled = cfg.RateLimitEnabled

	if a.redis == nil {
		return ratelimit.NewMemoryRateLimiter(rc)
	}
	limiter := ratelimit.NewRedisRateLimiter(a.redis.GetClient(), rc)
	if err := limiter.LoadCustomLimits(ctx); err != nil {
		logger := log.WithComponent("server")
		logger.Warn().Err(err).Msg("Failed to load custom rate limits")
	}
	return limiter
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "Upgrade", "Connection", "Sec-WebSocket-Key", "Sec-WebSocket-Version", "Sec-WebSocket-Protocol"},
		ExposeHeaders: []string{"Content-Length", "Retry-After", "X-RateLimit-Limit", "X-RateLimit-Burst"},
	}

	// wildcard origin for development
	if len(origins) == 1 && origins[0] == "*" {
		c.AllowAllOrigins = true
		c.AllowCredentials = false // cannot use credentials with AllowAllOrigins
	} else {
		c.AllowOrigins = origins
		c.AllowCredentials = true
	}
	return c
}
