package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"realm-server/internal/auth"
	"realm-server/internal/character"
	"realm-server/internal/gamedata"
	"realm-server/internal/gateway"
	"realm-server/internal/middleware"
	"realm-server/internal/savequeue"
	"realm-server/internal/server"
	"realm-server/internal/shared/config"
	"realm-server/internal/shared/cookies"
	"realm-server/internal/shared/database"
	"realm-server/internal/shared/logger"
	"realm-server/internal/shared/redis"
	"realm-server/internal/zone"
)

func main() {
	if err := config.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize configuration: %v\n", err)
		os.Exit(1)
	}
	logger.Init()

	if err := run(); err != nil {
		slog.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.GlobalConfig
	log := slog.With("component", "main")
	log.Info("Starting realm server", "environment", cfg.Server.Environment, "port", cfg.Server.Port)

	db, err := database.Connect()
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := db.RunMigrations(cfg.Database.MigrationsPath); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	rdb, err := redis.Connect()
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer rdb.Close()

	data, err := gamedata.Load(cfg.Game.DataPath)
	if err != nil {
		return fmt.Errorf("failed to load game data: %w", err)
	}
	defs, err := zone.LoadDefinitions(cfg.Game.ZonesPath, data, cfg.Game.DefaultClass)
	if err != nil {
		return fmt.Errorf("failed to load zones: %w", err)
	}

	repo := character.NewRepository(db, slog.With("component", "character_repository"))
	characters := character.NewService(repo, slog.With("component", "character_service"))

	queue := savequeue.New(rdb, cfg.Redis.SaveQueueKey)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if n, err := queue.Replay(ctx, characters); err != nil {
		log.Warn("Pending save replay incomplete", "replayed", n, "error", err)
	} else if n > 0 {
		log.Info("Pending saves replayed", "count", n)
	}
	go queue.Run(ctx, characters, cfg.Game.SaveQueueFlushInterval)

	manager := zone.NewManager(defs, zone.Config{
		TickRate:               cfg.Game.TickRate,
		MaxInputsPerTick:       cfg.Game.MaxInputsPerTick,
		BatchSaveIntervalTicks: cfg.Game.BatchSaveIntervalTicks,
		InventoryCapacity:      cfg.Game.InventoryCapacity,
		SaveRetries:            cfg.Game.SaveRetries,
		SaveRetryBackoff:       cfg.Game.SaveRetryBackoff,
		Seed:                   uint64(cfg.Game.Seed),
	}, data, characters, queue)
	manager.Start(ctx)

	tokens, err := auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenExpiration)
	if err != nil {
		return fmt.Errorf("failed to set up tokens: %w", err)
	}

	ws := gateway.NewHandler(manager, gateway.Config{
		AllowedOrigin:    cfg.Frontend.URL,
		RateLimitEnabled: cfg.RateLimit.Enabled,
		InputsPerSecond:  cfg.RateLimit.InputsPerSecond,
		InputBurst:       cfg.RateLimit.BurstSize,
	})

	limiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		BurstSize:         cfg.RateLimit.RequestBurst,
		Enabled:           cfg.RateLimit.Enabled,
		TrustProxy:        cfg.RateLimit.TrustProxy,
	})
	defer limiter.Stop()

	routes := server.NewRoutes(server.Options{
		DB:      db,
		Redis:   rdb,
		Zones:   manager,
		Players: characters,
		Gateway: ws,
		Tokens:  tokens,
		Limiter: limiter,
		Cookie: cookies.Options{
			FrontendURL: cfg.Frontend.URL,
			Secure:      cfg.IsProduction(),
		},
		DevLogin: !cfg.IsProduction(),
	})
	corsMiddleware := middleware.NewCORS(cfg.Frontend)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      corsMiddleware.Middleware(routes.Setup()),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-stop:
		log.Info("Shutdown signal received", "signal", sig.String())
	case err := <-serveErr:
		if err != nil {
			log.Error("HTTP server failed", "error", err)
		}
	}

	return shutdown(srv, manager, ws, cancel, cfg.Server.ShutdownTimeout)
}

// shutdown stops accepting connections, saves every session, hangs up the
// websockets, and only then stops the zone loops and the save queue flusher.
func shutdown(srv *http.Server, manager *zone.Manager, ws *gateway.Handler, cancel context.CancelFunc, timeout time.Duration) error {
	log := slog.With("component", "main", "operation", "shutdown")
	ctx, done := context.WithTimeout(context.Background(), timeout)
	defer done()

	if err := srv.Shutdown(ctx); err != nil {
		log.Warn("HTTP server shutdown incomplete", "error", err)
	}

	saveErr := manager.Shutdown(ctx)
	if saveErr != nil {
		log.Error("Zone shutdown incomplete", "error", saveErr)
	}

	if err := ws.Close(ctx); err != nil {
		log.Warn("Websocket connections still open", "error", err)
	}

	cancel()
	manager.Wait()
	log.Info("Server stopped")
	return saveErr
}
