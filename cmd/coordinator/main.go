package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rudransh-shrivastava/peer-link/internal/config"
	"github.com/rudransh-shrivastava/peer-link/internal/coordinator"
	"github.com/rudransh-shrivastava/peer-link/internal/logger"
	"github.com/rudransh-shrivastava/peer-link/internal/transport"
)

func main() {
	configPath := flag.String("config", "peer-link.yaml", "path to config file")
	flag.Parse()

	log := logger.NewLogger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	coord := coordinator.New(coordinator.Options{
		Config: coordinator.Config{
			RequestTTL:       cfg.Server.RequestTTL.Std(),
			SignalingTTL:     cfg.Server.SignalingTTL.Std(),
			HeartbeatTimeout: cfg.Server.HeartbeatTimeout.Std(),
			JanitorInterval:  cfg.Server.JanitorInterval.Std(),
		},
		Logger: log,
	})

	srv, err := transport.NewServer(transport.Config{
		Addr:   cfg.Server.Addr,
		Path:   cfg.Server.Path,
		Logger: log,
	}, coord)
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go coord.Run(ctx)

	if err := srv.Start(ctx); err != nil && err != context.Canceled {
		log.Error(err)
		os.Exit(1)
	}
}
