// Copyright 2022-2026 aquova et al.

// Command leah is a Mattermost curation bot. It relays art posted in
// listening channels to a verification channel, publishes approved posts
// into a gallery, lets members self-publish curated posts into a showcase,
// and supports reversible removal of showcase reposts.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/aquova/leah/pkg/admin"
	"github.com/aquova/leah/pkg/catalog"
	"github.com/aquova/leah/pkg/curator"
	"github.com/aquova/leah/pkg/gateway"
)

// Version is filled at build time with -ldflags.
var Version = "unknown"

func main() {
	configPath := flag.String("config", "config.yaml", "path to the config file")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()
	if !*debug {
		log = log.Level(zerolog.InfoLevel)
	}

	cfg, err := curator.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	cat, err := catalog.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load string catalog")
	}
	if cfg.StringsPath != "" {
		if err := cat.LoadFile(cfg.StringsPath); err != nil {
			log.Fatal().Err(err).Msg("Failed to load strings override")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	gw := gateway.New(cfg, log)
	err = gw.Connect(ctx)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Mattermost")
	}

	dispatcher := curator.NewDispatcher(log, cfg, gw, cat)
	gw.SetHandler(dispatcher)
	if err := gw.Listen(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start event loop")
	}

	ops := admin.New(cfg.AdminAddr, log, cat, cfg.StringsPath, Version)
	go func() {
		if err := ops.Start(); err != nil {
			log.Error().Err(err).Msg("Ops API error")
		}
	}()

	log.Info().Str("version", Version).Msg("leah is running")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info().Msg("Shutting down")
	gw.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := ops.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Ops API shutdown failed")
	}
}
