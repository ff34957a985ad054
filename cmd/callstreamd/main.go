// Copyright (c) 2015-2026 TetraOps
//
// Licensed under GPL-2.0. See LICENSE.md.

// Command callstreamd runs the call stream server: the LogApi collector,
// the recording persister, the media manager with its HTTP command
// listener, and optionally the tracer.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/tetraops/callstream/config"
	"github.com/tetraops/callstream/internal/alarm"
	"github.com/tetraops/callstream/internal/bus"
	"github.com/tetraops/callstream/internal/collector"
	"github.com/tetraops/callstream/internal/media"
	"github.com/tetraops/callstream/internal/persistence"
	"github.com/tetraops/callstream/internal/tracer"
	"github.com/tetraops/callstream/pkg/commons"
	"github.com/tetraops/callstream/pkg/connectors"
)

func main() {
	configPath := flag.String("config", "",
		"configuration file (defaults to CALLSTREAMSERVER_CONF_FILE)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := commons.NewApplicationLogger(
		commons.Name("callstream"),
		commons.Path(cfg.WorkPath),
		commons.Level(cfg.LogLevel),
		commons.Console(true),
	)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	postgres, err := connectors.NewPostgresConnector(cfg.Persistence.PgConnInfo, logger)
	if err != nil {
		return err
	}
	defer postgres.Close()

	eventBus := bus.New(logger)
	defer eventBus.Close()

	col, err := collector.New(cfg.Collector, cfg.WorkPath, eventBus, logger)
	if err != nil {
		return err
	}

	notifier := alarm.New(cfg.HTTPDHome, cfg.Apli, logger)
	store := persistence.NewStore(postgres, logger)
	persister := persistence.New(cfg.Persistence, cfg.Basic.MP3Mode, store, notifier,
		eventBus, logger)

	mediaManager, err := media.New(cfg.Media, media.NewVoiceSource(postgres), eventBus, logger)
	if err != nil {
		return err
	}

	var redis connectors.RedisConnector
	if cfg.Tracer.JSONPublisher != "" {
		redis, err = connectors.NewRedisConnector(cfg.Tracer.JSONPublisher, logger)
		if err != nil {
			return err
		}
		defer redis.Close()
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error { return col.Run(ctx) })
	group.Go(func() error { return persister.Run(ctx) })
	group.Go(func() error { return mediaManager.Run(ctx) })
	group.Go(func() error {
		return media.Serve(ctx, cfg.Media.CommandListenerEndpoint, mediaManager, logger)
	})
	if redis != nil {
		tr := tracer.New(cfg.Tracer, redis, eventBus, logger)
		group.Go(func() error { return tr.Run(ctx) })
	}

	logger.Info("call stream server started",
		"log_server_endpoint", cfg.Collector.LogServerEndpoint.Addr(),
		"command_listener", cfg.Media.CommandListenerEndpoint)

	return group.Wait()
}
