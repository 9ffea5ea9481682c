package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"timepon/engine/internal/api"
	"timepon/engine/internal/auth"
	"timepon/engine/internal/config"
	"timepon/engine/internal/docstore"
	"timepon/engine/internal/gc"
	"timepon/engine/internal/logging"
	"timepon/engine/internal/ratelimit"
	"timepon/engine/internal/service"
)

func main() {
	// Load .env file if present (ignored if missing)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	logging.Setup(cfg.Server.LogLevel, cfg.Server.LogFormat == "console", os.Stderr)

	retention := docstore.Retention{
		docstore.Rooms:     cfg.GC.RoomRetention,
		docstore.RateLimit: cfg.GC.RateLimitRetention,
	}.Bounded()

	store, err := openStore(cfg, retention)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Store.Backend).Msg("open document store")
	}
	defer store.Close()

	var locks docstore.KeyLocker = docstore.NoLocker{}
	if cfg.Store.SerializeWrites {
		locks = docstore.NewLocker()
	}
	clock := clockwork.NewRealClock()

	rooms := service.New(store, service.Options{
		Locks:  locks,
		Clock:  clock,
		Policy: auth.Policy{AllowClaim: cfg.Auth.AllowClaim},
	})
	limiter := ratelimit.New(store, locks, clock, nil)
	sweeper := gc.New(store, clock, cfg.GC.OneIn, retention)

	h := api.NewHandlers(rooms, limiter, sweeper, api.Network{
		TrustProxy: cfg.Server.TrustProxy,
		PublicURL:  cfg.Server.PublicURL,
	}, store)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.NewRouter(h),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigc
		log.Info().Msg("shutdown signal received; stopping server...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()

	log.Info().Str("addr", addr).Str("store", store.Name()).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("server error")
		os.Exit(1)
	}

	// let an in-flight sweep finish before the store closes
	sweeper.Wait()
}

func openStore(cfg config.Config, retention docstore.Retention) (docstore.Backend, error) {
	switch cfg.Store.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, err
		}
		return docstore.NewRedis(client, cfg.Redis.Prefix, retention), nil
	default:
		return docstore.NewFS(cfg.Store.DataDir, cfg.Store.LockTimeout)
	}
}
