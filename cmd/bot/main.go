package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quizbot/internal/auth"
	"quizbot/internal/bot"
	"quizbot/internal/broadcast"
	"quizbot/internal/config"
	pprofsvc "quizbot/internal/observability/pprof"
	"quizbot/internal/storage"
	"quizbot/internal/sweeper"
	"quizbot/internal/transport/telegram"
	"quizbot/pkg/logx"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config file (yaml or json)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfgPath); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfgPath string) error {
	cfgMgr := config.NewManager(cfgPath)
	cfg, err := cfgMgr.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File:    logx.FileConfig{Enabled: cfg.Logging.File.Enabled, Path: cfg.Logging.File.Path},
	})
	defer logSvc.Close()
	cfgMgr.SetLogger(log.With(logx.String("comp", "config")))

	busyTimeout, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, 5*time.Second)
	if err != nil {
		return err
	}
	db, err := storage.Open(storage.Config{Path: cfg.Storage.Path, BusyTimeout: busyTimeout}, log.With(logx.String("comp", "storage")))
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer db.Close()

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return err
	}
	adapter, err := telegram.New(telegram.Config{
		Token:          cfg.Telegram.Token,
		PollTimeout:    pollTimeout,
		SendRatePerSec: cfg.Telegram.SendRatePerSec,
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		return fmt.Errorf("telegram adapter: %w", err)
	}

	cacheTTL, err := config.ParseDurationOrDefault("auth.cache_ttl", cfg.Auth.CacheTTL, auth.DefaultTTL)
	if err != nil {
		return err
	}
	resolver := auth.NewResolver(db, auth.NewCache(), cacheTTL, log.With(logx.String("comp", "auth")))

	dispCfg, err := broadcastConfig(cfg.Broadcast)
	if err != nil {
		return err
	}
	dispatcher := broadcast.NewDispatcher(dispCfg, adapter, log.With(logx.String("comp", "broadcast")))

	tokenValidity, err := config.ParseDurationOrDefault("quiz.token_validity", cfg.Quiz.TokenValidity, 24*time.Hour)
	if err != nil {
		return err
	}
	b := bot.New(adapter, db, resolver, dispatcher, bot.Settings{
		OwnerUserIDs:     cfg.Telegram.OwnerUserIDs,
		TokenPrice:       int64(cfg.Quiz.TokenPrice),
		PointsPerCorrect: int64(cfg.Quiz.PointsPerCorrect),
		TokenValidity:    tokenValidity,
	}, log.With(logx.String("comp", "bot")))

	if err := b.Start(ctx); err != nil {
		return fmt.Errorf("start bot: %w", err)
	}

	prof := pprofsvc.New(pprofsvc.Config{
		Enabled: cfg.Pprof.Enabled,
		Addr:    cfg.Pprof.Addr,
		Token:   cfg.Pprof.Token,
	}, log.With(logx.String("comp", "pprof")))
	if err := prof.Start(ctx); err != nil {
		_ = b.Stop(context.Background())
		return fmt.Errorf("start pprof: %w", err)
	}

	var sw *sweeper.Sweeper
	if cfg.Sweeper.Enabled {
		sw = sweeper.New(sweeper.Config{Schedule: cfg.Sweeper.Schedule}, db, log.With(logx.String("comp", "sweeper")))
		if err := sw.Start(); err != nil {
			_ = b.Stop(context.Background())
			return fmt.Errorf("start sweeper: %w", err)
		}
	}

	// Hot-reload: log level/sinks and the auth cache TTL follow the file.
	// Everything else (token, storage path) needs a restart.
	updates := cfgMgr.Subscribe(1)
	go func() {
		for next := range updates {
			logSvc.Apply(logx.Config{
				Level:   next.Logging.Level,
				Console: next.Logging.Console,
				File:    logx.FileConfig{Enabled: next.Logging.File.Enabled, Path: next.Logging.File.Path},
			})
			if ttl, terr := config.ParseDurationOrDefault("auth.cache_ttl", next.Auth.CacheTTL, auth.DefaultTTL); terr == nil {
				resolver.SetTTL(ttl)
			}
			log.Info("configuration reloaded")
		}
	}()
	go func() {
		if werr := cfgMgr.Watch(ctx); werr != nil && ctx.Err() == nil {
			log.Warn("config watch stopped", logx.Err(werr))
		}
	}()

	log.Info("quizbot running", logx.String("config", cfgPath))
	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	cfgMgr.Unsubscribe(updates)
	if sw != nil {
		if err := sw.Stop(shutdownCtx); err != nil {
			log.Warn("sweeper stop", logx.Err(err))
		}
	}
	if err := b.Stop(shutdownCtx); err != nil {
		log.Warn("bot stop", logx.Err(err))
	}
	if err := prof.Stop(shutdownCtx); err != nil {
		log.Warn("pprof stop", logx.Err(err))
	}
	return nil
}

func broadcastConfig(bc *config.BroadcastConfig) (broadcast.Config, error) {
	if bc == nil {
		return broadcast.Config{}, nil
	}
	pause, err := config.ParseDurationOrDefault("broadcast.batch_pause", bc.BatchPause, 0)
	if err != nil {
		return broadcast.Config{}, err
	}
	extra, err := config.ParseDurationOrDefault("broadcast.flood_extra", bc.FloodExtra, 0)
	if err != nil {
		return broadcast.Config{}, err
	}
	return broadcast.Config{
		Concurrency:    bc.Concurrency,
		BatchSize:      bc.BatchSize,
		BatchPause:     pause,
		FloodExtra:     extra,
		MaxRetries:     bc.MaxRetries,
		MaxDiagnostics: bc.MaxDiagnostics,
	}, nil
}
