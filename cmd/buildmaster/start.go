package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/mattjoyce/buildmaster/internal/api"
	"github.com/mattjoyce/buildmaster/internal/config"
	"github.com/mattjoyce/buildmaster/internal/events"
	"github.com/mattjoyce/buildmaster/internal/lock"
	"github.com/mattjoyce/buildmaster/internal/log"
	"github.com/mattjoyce/buildmaster/internal/scripts"
	"github.com/mattjoyce/buildmaster/internal/storage"
	"github.com/mattjoyce/buildmaster/internal/supervisor"
)

func runStart(ctx context.Context, configPath string) error {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.SourcePath == "" {
		fmt.Fprintln(os.Stderr, "No config file found, using defaults")
	}

	log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)
	logger := log.WithComponent("main")
	logger.Info("buildmaster starting", "version", version, "config", cfg.SourcePath)

	pidLock, err := lock.AcquirePIDLock(cfg.Service.PIDFile)
	if err != nil {
		return fmt.Errorf("acquire PID lock %s: %w", cfg.Service.PIDFile, err)
	}
	defer pidLock.Release()
	logger.Info("acquired PID lock", "path", pidLock.Path())

	dir, err := scripts.Open(cfg.Scripts.Dir)
	if err != nil {
		return err
	}

	opts, err := supervisorOptions(cfg)
	if err != nil {
		return err
	}

	hub := events.NewHub(256)
	defer hub.Close()
	publisher := events.NewPublisher(hub)
	observers := supervisor.Observers{publisher}

	// history stays a nil interface when disabled; the API reports 404.
	var history api.HistoryReader
	if cfg.History.Enabled {
		db, err := storage.OpenSQLite(ctx, cfg.History.Path)
		if err != nil {
			return fmt.Errorf("open history database: %w", err)
		}
		defer db.Close()
		h := storage.NewHistory(db)
		observers = append(observers, h)
		history = h
		logger.Info("deployment history enabled", "path", cfg.History.Path)
	}

	registry := supervisor.NewRegistry(dir, opts,
		supervisor.WithObserver(observers),
		supervisor.WithLogger(log.WithComponent("registry")),
	)
	defer registry.Teardown()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Scripts.Watch {
		if err := dir.Watch(ctx, publisher.ScriptChanged); err != nil {
			return fmt.Errorf("watch scripts: %w", err)
		}
		logger.Info("watching scripts directory", "dir", dir.Root())
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Scripts.Autostart {
		g.Go(func() error { return registry.Preload(gctx) })
	}

	server := api.New(api.Config{Listen: cfg.API.Listen}, registry, history, hub, log.WithComponent("api"))
	g.Go(func() error {
		if err := server.Start(gctx); err != nil {
			return fmt.Errorf("api: %w", err)
		}
		return nil
	})

	logger.Info("buildmaster running (press Ctrl+C to stop)", "scripts", dir.Root(), "listen", cfg.API.Listen)
	if err := g.Wait(); err != nil {
		logger.Error("component failed", "error", err)
		return err
	}
	logger.Info("buildmaster stopping")
	return nil
}

// supervisorOptions maps the output and supervisor config sections onto
// builder options.
func supervisorOptions(cfg *config.Config) (supervisor.Options, error) {
	opts := supervisor.DefaultOptions()

	sig, err := supervisor.SignalByName(cfg.Supervisor.StopSignal)
	if err != nil {
		return opts, fmt.Errorf("supervisor.stop_signal: %w", err)
	}
	opts.StopSignal = sig
	opts.KillGrace = cfg.Supervisor.KillGrace
	opts.Ordering = supervisor.Ordering(cfg.Output.Ordering)
	if cfg.Output.ChannelBuffer > 0 {
		opts.ChannelBuffer = cfg.Output.ChannelBuffer
	}
	if cfg.Output.MaxLineBytes > 0 {
		opts.MaxLineBytes = cfg.Output.MaxLineBytes
	}
	opts.Workdir = cfg.ScriptsWorkdir()
	return opts, nil
}
