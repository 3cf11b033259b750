package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"civica.org/internal/config"
	"civica.org/internal/obs"
	"civica.org/internal/store/pg"
	"civica.org/internal/sweep"
	"civica.org/internal/token"
)

func main() {
	once := flag.Bool("once", false, "run all sweep jobs once and exit")
	flag.Parse()

	ctx := context.Background()
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

	store, err := pg.Open(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("database open failed")
	}
	defer func() { _ = store.Close() }()

	runner, err := sweep.NewRunner(sweep.Config{
		AnonymizeAfter: cfg.Retention.AnonymizeAfter,
		PurgeAfter:     cfg.Retention.PurgeAfter,
		RetentionSpec:  cfg.Retention.CronSpec,
		TokenSpec:      cfg.Tokens.SweepCronSpec,
	}, store.AccessLog(), token.NewService(store.Tokens()), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("sweep runner init failed")
	}

	if *once {
		runner.RunOnce(ctx)
		return
	}

	runner.Start()
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	runner.Stop()
}
