package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/fintrack/auth-service/internal/audit"
	"github.com/fintrack/auth-service/internal/config"
	"github.com/fintrack/auth-service/internal/cookies"
	"github.com/fintrack/auth-service/internal/events"
	"github.com/fintrack/auth-service/internal/httpserver"
	"github.com/fintrack/auth-service/internal/logging"
	"github.com/fintrack/auth-service/internal/middleware"
	"github.com/fintrack/auth-service/internal/repo"
	"github.com/fintrack/auth-service/internal/service"
	"github.com/fintrack/auth-service/internal/store"
	"github.com/fintrack/auth-service/internal/sweeper"
	"github.com/fintrack/auth-service/internal/tokens"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)

	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second
	e.Use(middleware.RequestLogger(logger))

	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := config.InitDB(initCtx, cfg)
	cancel()
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}

	issuer := &tokens.Issuer{
		AccessSecret:  cfg.JWTAccessSecret,
		RefreshSecret: cfg.JWTRefreshSecret,
		AccessTTL:     cfg.AccessTokenTTL,
		RefreshTTL:    cfg.RefreshTokenTTL,
	}

	cookieMgr := &cookies.Manager{
		Production: cfg.IsProduction(),
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
	}

	tokenStore := store.NewGormStore(db, cfg.RefreshTokenTTL)

	producer := events.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	defer producer.Close()

	var indexer *audit.Indexer
	if cfg.ESURL != "" {
		esClient, err := audit.NewClient(cfg.ESURL, cfg.ESUser, cfg.ESPassword)
		if err != nil {
			logger.Warn("elasticsearch unavailable, audit indexing disabled", "error", err)
		} else {
			indexer = audit.NewIndexer(esClient)
		}
	}

	svc := &service.AuthService{
		Users:  &repo.UserRepo{DB: db},
		Store:  tokenStore,
		Issuer: issuer,
		Events: producer,
		Audit:  indexer,
	}

	httpserver.Register(e, &httpserver.Deps{
		AuthHandler: &httpserver.AuthHTTP{Svc: svc, Cookies: cookieMgr},
		AuthMW:      middleware.NewAuthMiddleware(issuer, cookieMgr),
		DB:          db,
	})

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go sweeper.New(tokenStore, cfg.SweepInterval, logger).Run(sweepCtx)

	go func() {
		if err := e.Start(cfg.ServerAddr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("echo start: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	stopSweep()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("echo shutdown", "error", err)
	}
}
