package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"park_api/internal/api"
	"park_api/internal/api/middleware"
	"park_api/internal/config"
	"park_api/internal/repository/postgresql"
	"park_api/internal/service"
)

func main() {
	cfg := config.Load()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	db, err := postgresql.NewDB(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("could not connect to the database")
	}
	defer db.Close()
	log.Info().Str("host", cfg.DBHost).Str("db", cfg.DBName).Msg("database connected")

	if cfg.MigrateOnStart {
		if err := postgresql.Migrate(cfg); err != nil {
			log.Fatal().Err(err).Msg("could not apply migrations")
		}
		log.Info().Msg("migrations applied")
	}

	userRepo := postgresql.NewPgUserRepository(db)
	clientRepo := postgresql.NewPgClientRepository(db)
	spotRepo := postgresql.NewPgSpotRepository(db)
	sessionRepo := postgresql.NewPgSessionRepository(db)

	authService := service.NewAuthService(userRepo, cfg.JWTSecret, cfg.JWTExpiration)
	clientService := service.NewClientService(clientRepo)
	parkingService := service.NewParkingService(spotRepo, sessionRepo, clientRepo, cfg.Billing)

	authMw := middleware.NewAuthMiddleware(authService)
	router := api.SetupRouter(authService, parkingService, clientService, authMw)

	server := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	go func() {
		log.Info().Str("port", cfg.ServerPort).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server stopped unexpectedly")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server stopped")
}
