package main

import (
	"context"
	"fmt"
	"time"

	"github.com/coder/quartz"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/okeynet/okeyd/cmd/okeyd/shared"
	"github.com/okeynet/okeyd/internal/config"
	"github.com/okeynet/okeyd/internal/fairness"
	"github.com/okeynet/okeyd/internal/leaderboard"
	"github.com/okeynet/okeyd/internal/registry"
	"github.com/okeynet/okeyd/internal/room"
	"github.com/okeynet/okeyd/internal/server"
	"github.com/okeynet/okeyd/internal/settle"
	"github.com/okeynet/okeyd/internal/store"
)

// ServerCmd runs the game server.
type ServerCmd struct {
	Config string `kong:"type='path',help='Path to HCL config file'"`
	Addr   string `kong:"help='Listen address override (host:port)'"`
	DB     string `kong:"help='SQLite database path override'"`
	Debug  bool   `kong:"help='Enable debug logging'"`
	JSON   bool   `kong:"name='json',help='Structured JSON log output'"`
}

func (c *ServerCmd) Run() error {
	cfg := config.Default()
	if c.Config != "" {
		loaded, err := config.Load(c.Config)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if c.DB != "" {
		cfg.Store.Path = c.DB
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	addr := cfg.Addr()
	if c.Addr != "" {
		addr = c.Addr
	}

	level, err := zerolog.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.Server.LogLevel, err)
	}
	if c.Debug {
		level = zerolog.DebugLevel
	}
	logger := shared.SetupLogger(level)
	if c.JSON {
		logger = shared.SetupStructuredLogger(level)
	}

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	var lbStore leaderboard.Store
	if cfg.Leaderboard.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Leaderboard.RedisAddr,
			Password: cfg.Leaderboard.RedisPassword,
			DB:       cfg.Leaderboard.RedisDB,
		})
		defer client.Close()
		lbStore = leaderboard.NewRedisStore(client)
		logger.Info().Str("redis_addr", cfg.Leaderboard.RedisAddr).Msg("Using Redis leaderboard")
	} else {
		lbStore = leaderboard.NewMemoryStore()
		logger.Info().Msg("Using in-memory leaderboard")
	}
	projection := leaderboard.NewProjection(lbStore, st.Users(), logger)

	clock := quartz.NewReal()
	reg := registry.New(clock)
	hub := server.NewHub(logger)
	manager := room.NewManager(room.Deps{
		Registry:    reg,
		Store:       st,
		Pipeline:    settle.New(st, clock, logger),
		Leaderboard: projection,
		Sender:      hub,
		Clock:       clock,
		Nonces:      &fairness.NonceSource{},
		Logger:      logger,
	})
	defer manager.Close()

	if err := projection.SyncFromStore(context.Background()); err != nil {
		logger.Warn().Err(err).Msg("Initial leaderboard sync failed")
	}

	srv := server.New(addr, manager, reg, hub, logger)

	logger.Info().
		Str("addr", addr).
		Str("db", cfg.Store.Path).
		Str("version", version).
		Msg("Starting okeyd")

	ctx := shared.SetupSignalHandler(logger)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(ctx) })
	if cfg.Leaderboard.ReconcileSeconds > 0 {
		interval := time.Duration(cfg.Leaderboard.ReconcileSeconds) * time.Second
		reconciler := leaderboard.NewReconciler(projection, clock, interval, logger)
		g.Go(func() error { return reconciler.Run(ctx) })
	}
	return g.Wait()
}
