package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/dukerupert/shoplist/internal/config"
	"github.com/dukerupert/shoplist/internal/database"
	"github.com/dukerupert/shoplist/internal/logging"
	"github.com/dukerupert/shoplist/internal/server"
	"github.com/dukerupert/shoplist/internal/session"
)

func main() {
	cfg := config.MustLoad()
	logger := logging.Setup(cfg.Log.Level, nil)

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.Database.Path, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	sessions, err := openSessions(cfg.Session)
	if err != nil {
		logger.Error("failed to open session store", "backend", cfg.Session.Backend, "error", err)
		os.Exit(1)
	}
	defer sessions.Close()

	srv, err := server.New(db, sessions, cfg.Server, logger)
	if err != nil {
		logger.Error("failed to build server", "error", err)
		os.Exit(1)
	}

	// Cancelled on shutdown so open websocket connections, which Shutdown
	// does not track, are closed too. Drain then waits for their intents
	// before the deferred closes of the session store and database run.
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	go srv.ConnectLimiter().RunSweeper(baseCtx)

	httpServer := &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           srv.Router(),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}

	go func() {
		logger.Info("shopping list running", "addr", cfg.Server.Address(), "db", cfg.Database.Path, "sessions", cfg.Session.Backend)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	cancelBase()
	if err := srv.Drain(ctx); err != nil {
		logger.Error("websocket clients still running", "error", err)
	}
}

func openSessions(cfg config.SessionConfig) (session.Store, error) {
	opts := session.Options{Window: cfg.RecoveryWindow}
	if !cfg.UsesRedis() {
		return session.NewMemoryStore(opts), nil
	}
	return session.NewRedisStore(session.RedisConfig{
		Addr:      cfg.RedisAddress(),
		Password:  cfg.RedisPassword,
		DB:        cfg.RedisDB,
		KeyPrefix: cfg.KeyPrefix,
	}, opts)
}
