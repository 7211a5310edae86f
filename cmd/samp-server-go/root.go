package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/samp-server-go/netcore/gamemode"
	"github.com/samp-server-go/netcore/internal/config"
	"github.com/samp-server-go/netcore/internal/logging"
	"github.com/samp-server-go/netcore/server"
	"github.com/samp-server-go/netcore/world"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// newGameModeFactory returns the server.GameModeFactory this build wires
// in: one gamemode.GameMode per accepted connection, bound to that
// connection's own World. Neither is ever shared across connections.
func newGameModeFactory(log *logrus.Logger) server.GameModeFactory {
	return func(w *world.World) (server.GameMode, error) {
		return gamemode.New(w, log)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:     "samp-server-go",
		Short:   "A UDP game server implementing the core's connection and replication model",
		Version: Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yml", "path to the server configuration file")
	return cmd
}

func run(configPath string) error {
	logging.Banner("samp-server-go", Version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	log := buildLogger(cfg.Log)

	runID := uuid.New()
	log.WithFields(logging.Fields{"run_id": runID, "map": cfg.World.Map}).Info("configuration loaded")

	srvCfg, err := toServerConfig(cfg)
	if err != nil {
		return fmt.Errorf("translating server config: %w", err)
	}

	logging.Section("Starting server")
	srv, err := server.New(srvCfg, newGameModeFactory(log), log)
	if err != nil {
		return fmt.Errorf("constructing server: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run(ctx)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server exited: %w", err)
		}
		return nil
	case sig := <-sigCh:
		log.WithField("signal", sig).Warn("received shutdown signal")
		srv.Stop()
		<-errCh
		log.Info("server stopped")
		return nil
	}
}

func buildLogger(cfg config.LogConfig) *logrus.Logger {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log := logging.New(level)
	if cfg.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	return log
}

func toServerConfig(cfg *config.ServerConfig) (server.Config, error) {
	tick, err := time.ParseDuration(cfg.Network.TickInterval)
	if err != nil {
		return server.Config{}, fmt.Errorf("network.tick_interval: %w", err)
	}
	idle, err := time.ParseDuration(cfg.Network.IdleTimeout)
	if err != nil {
		return server.Config{}, fmt.Errorf("network.idle_timeout: %w", err)
	}
	return server.Config{
		Listen:         cfg.Network.Listen,
		InboundQueue:   cfg.Network.InboundQueue,
		SendQueue:      cfg.Network.SendQueue,
		TickInterval:   tick,
		HandshakeRate:  cfg.Network.HandshakeRate,
		HandshakeBurst: cfg.Network.HandshakeBurst,
		IdleTimeout:    idle,
		MapName:        cfg.World.Map,
		GameName:       cfg.World.GameName,
	}, nil
}
