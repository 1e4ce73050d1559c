// Command server runs the 404 redirect backend: the HTTP API consumed by the
// storefront edge script and the embedded admin UI.
//
//	@title          Redirect Backend API
//	@version        1.0
//	@description    Multi-tenant 404 tracking and redirect resolution service.
//	@BasePath       /api/v1
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	_ "github.com/seowizzard/go-redirect-backend/docs"
	"github.com/seowizzard/go-redirect-backend/internal/config"
	httpapi "github.com/seowizzard/go-redirect-backend/internal/http"
	"github.com/seowizzard/go-redirect-backend/internal/observability"
	"github.com/seowizzard/go-redirect-backend/internal/repo"
	"github.com/seowizzard/go-redirect-backend/internal/services"
	"github.com/seowizzard/go-redirect-backend/internal/shopify"
	"github.com/seowizzard/go-redirect-backend/internal/sysutil"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	// Local development convenience; missing .env is not an error.
	_ = godotenv.Load()

	cfg := config.MustLoad()
	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	gin.SetMode(cfg.GinMode)

	ctx := context.Background()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown failed")
		}
	}()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("failed to open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}

	src := shopify.NewSource(cfg.Shopify.AdminToken, cfg.Shopify.APIVersion)

	engine := gin.New()
	httpapi.RegisterRoutes(engine, db, src, services.LogMailer{}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("bye")
}
