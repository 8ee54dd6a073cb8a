package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sat-prep/backend/internal/cache"
	"github.com/sat-prep/backend/internal/config"
	"github.com/sat-prep/backend/internal/server"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd)
	},
}

func init() {
	serveCmd.Flags().String("port", "", "Port to listen on (overrides PORT)")
}

func runServe(cmd *cobra.Command) error {
	cfg := loadConfig(cmd)
	if cmd.Flags().Lookup("port") != nil {
		if p, _ := cmd.Flags().GetString("port"); p != "" {
			cfg.Port = p
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	filterCache, closeCache := newCache(ctx, cfg)
	defer closeCache()

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      server.NewRouter(cfg, db, filterCache),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[server] starting on :%s (cors origins %v)", cfg.Port, cfg.CORSOrigins)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Printf("[server] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newCache prefers Redis when configured and reachable, and falls back to an
// in-process cache otherwise.
func newCache(ctx context.Context, cfg *config.Config) (cache.Cache, func()) {
	if cfg.RedisAddr == "" {
		log.Printf("[cache] REDIS_ADDR not set, using in-memory cache")
		return cache.NewMemory(), func() {}
	}

	rc := cache.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rc.Ping(pingCtx); err != nil {
		log.Printf("[cache] redis at %s unreachable, using in-memory cache: %v", cfg.RedisAddr, err)
		rc.Close()
		return cache.NewMemory(), func() {}
	}
	log.Printf("[cache] using redis at %s", cfg.RedisAddr)
	return rc, func() { rc.Close() }
}
