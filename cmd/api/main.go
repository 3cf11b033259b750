package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"civica.org/internal/accesslog"
	"civica.org/internal/config"
	"civica.org/internal/httpapi"
	"civica.org/internal/limiter"
	"civica.org/internal/notify"
	"civica.org/internal/obs"
	"civica.org/internal/project"
	"civica.org/internal/session"
	"civica.org/internal/store/pg"
	"civica.org/internal/token"
)

var version = "0.3.0"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(ctx)
	if err != nil {
		obs.InitLogger(obs.LogOptions{})
		obs.Logger().Fatal().Err(err).Msg("configuration load failed")
	}

	logger := obs.InitLogger(obs.LogOptions{
		Level:  cfg.LogLevel,
		Pretty: cfg.Env == "development",
	})
	obs.Init()

	if cfg.JWTSecret == "" {
		if cfg.Env != "development" {
			logger.Fatal().Msg("CIVICA_JWT_SECRET is required outside development")
		}
		cfg.JWTSecret = "civica-dev-secret"
	}

	store, err := pg.Open(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("database open failed")
	}
	defer func() { _ = store.Close() }()

	sessions, err := session.NewManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.SessionTTL)
	if err != nil {
		logger.Fatal().Err(err).Msg("session manager init failed")
	}

	// Notification delivery: log-only sender, redis-backed duplicate
	// suppression when redis answers, none when it does not.
	var suppressor notify.Suppressor
	if client, err := notify.Connect(ctx, cfg.Redis.Addr, cfg.Redis.DB); err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, notification suppression disabled")
	} else {
		suppressor = notify.NewRedisSuppressor(client, 0)
		defer func() { _ = client.Close() }()
	}
	dispatcher := notify.NewDispatcher(0, notify.LogSender{Log: logger}, suppressor, logger)
	dispatcher.Start(ctx)

	recorder := accesslog.NewRecorder(store.AccessLog())

	api := httpapi.New(httpapi.Deps{
		Identities: store.Identities(),
		Projects:   store.Projects(),
		Members:    store.Memberships(),
		Content:    store.Content(),
		Roles:      project.NewService(store.Projects(), store.Memberships()),
		Tokens:     token.NewService(store.Tokens()),
		Sessions:   sessions,
		Limiter:    limiter.New(store.AccessLog()),
		Recorder:   recorder,
		Notifier:   dispatcher,
		Config:     cfg,
		Logger:     logger,
		ReadyProbe: httpapi.ReadyProbe{DB: store.DB()},
		Version:    version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info().Str("version", version).Str("addr", srv.Addr).Msg("starting civica-api")

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("listen failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	logger.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	cancel()
	logger.Info().Msg("stopped")
}
