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

	"github.com/mama165/sdk-go/logs"
	"github.com/vedran77/blink/internal/config"
	"github.com/vedran77/blink/internal/database"
	"github.com/vedran77/blink/internal/realtime"
	postgresrepo "github.com/vedran77/blink/internal/repository/postgres"
	"github.com/vedran77/blink/internal/service"
	"github.com/vedran77/blink/internal/transport/http/handlers"
	"github.com/vedran77/blink/internal/transport/http/middleware"
	"github.com/vedran77/blink/internal/transport/ws"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logs.GetLoggerFromString(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database
	pool, err := database.Connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := database.EnsureSchema(ctx, pool); err != nil {
		return err
	}
	log.Info("Connected to database", "host", cfg.DBHost, "name", cfg.DBName)

	// Realtime
	listener := realtime.NewListener(pool, log)
	hub := ws.NewHub(log)
	stopRelay, err := ws.Relay(ctx, listener, hub)
	if err != nil {
		return err
	}
	defer stopRelay()

	// Repositories
	profileRepo := postgresrepo.NewProfileRepo(pool)

	// Services
	nicknameService := service.NewNicknameService(profileRepo, log)
	profileService := service.NewProfileService(profileRepo, nicknameService)

	// Handlers
	nicknameHandler := handlers.NewNicknameHandler(nicknameService, log)
	profileHandler := handlers.NewProfileHandler(profileService, log)

	// Auth middleware
	auth := middleware.Auth(cfg.JWTSecret)

	// Routes
	mux := http.NewServeMux()

	// Public
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "ok"}`))
	})
	mux.HandleFunc("GET /realtime", ws.ServeWS(hub, cfg.JWTSecret, log))
	mux.HandleFunc("GET /api/v1/nicknames/check", nicknameHandler.Check)

	// Protected - Profile
	mux.Handle("GET /api/v1/profile", auth(http.HandlerFunc(profileHandler.Get)))
	mux.Handle("PUT /api/v1/profile", auth(http.HandlerFunc(profileHandler.Put)))

	addr := fmt.Sprintf(":%s", cfg.ServerPort)
	server := &http.Server{Addr: addr, Handler: mux}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return listener.Run(gctx) })
	g.Go(func() error { return hub.Run(gctx) })
	g.Go(func() error {
		log.Info("Starting server", "address", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("Server stopped cleanly")
	return nil
}
