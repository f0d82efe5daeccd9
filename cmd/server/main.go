// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/naijaplay/internal/cache"
	"github.com/jason-s-yu/naijaplay/internal/config"
	"github.com/jason-s-yu/naijaplay/internal/database"
	"github.com/jason-s-yu/naijaplay/internal/gateway"
	"github.com/jason-s-yu/naijaplay/internal/handlers"
	"github.com/jason-s-yu/naijaplay/internal/room"
	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg := config.Load()
	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb = cache.NewClient(cfg.RedisURL, cfg.RedisDB)
		defer rdb.Close()
	}
	store := room.NewStore(ctx, rdb, logger)

	gw := gateway.New(store, logger, gateway.Options{
		QueueTimeout:  cfg.QueueTimeout,
		StatsInterval: cfg.StatsInterval,
		OutboxSize:    cfg.OutboxSize,
	})
	defer gw.Close()

	var profiles handlers.ProfileLookup
	if cfg.DatabaseURL != "" {
		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.WithError(err).Warn("Profile database unavailable, using presented profiles")
		} else {
			defer pool.Close()
			profiles = database.NewProfileStore(pool)
		}
	}
	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET not set, auth tokens are ignored")
	}

	g, gctx := errgroup.WithContext(ctx)

	routerCfg := handlers.RouterConfig{
		Shutdown:       gctx,
		Profiles:       handlers.NewProfileResolver(cfg.JWTSecret, profiles, logger),
		AllowedOrigins: cfg.AllowedOrigins,
	}

	if fs, ok := store.(*room.FallbackStore); ok {
		routerCfg.Store = fs
		bus := cache.NewListingBus(rdb, uuid.NewString())
		gw.Rooms().SetListingBus(bus)
		g.Go(func() error {
			err := bus.Subscribe(gctx, func() { gw.Rooms().RefreshListing(gctx) })
			if err != nil && gctx.Err() == nil {
				logger.WithError(err).Warn("Listing bus stopped, listings stay local")
			}
			return nil
		})
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handlers.NewRouter(logger, gw, routerCfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		logger.Infof("Running on %s (%s)", cfg.Addr, cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return gw.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.WithError(err).Fatal("server exited")
	}
}

func newLogger(cfg config.Config) *logrus.Logger {
	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if cfg.IsProduction() {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}
