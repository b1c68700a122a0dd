// Command bridged runs the bridge engine: the HTTP API and the confirmation
// watcher over the configured store and network adapters.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/ClipFinance/bridge-engine/api"
	"github.com/ClipFinance/bridge-engine/bridge"
	"github.com/ClipFinance/bridge-engine/chainmanager"
	"github.com/ClipFinance/bridge-engine/chains"
	"github.com/ClipFinance/bridge-engine/config"
	"github.com/ClipFinance/bridge-engine/pairs"
	"github.com/ClipFinance/bridge-engine/storage"
	"github.com/ClipFinance/bridge-engine/watcher"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Version will be set at build time
var Version = "development"

func main() {
	configPath := flag.String("config", os.Getenv("BRIDGE_CONFIG"), "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to create logger")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Fatal("Bridge daemon stopped with error")
	}
}

func run(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	logger.WithFields(logrus.Fields{
		"version":   Version,
		"goVersion": runtime.Version(),
		"os":        runtime.GOOS,
		"arch":      runtime.GOARCH,
		"storage":   cfg.Storage.Driver,
	}).Info("Starting bridge daemon")

	store, err := storage.Open(ctx, cfg.Storage, logger)
	if err != nil {
		return errors.Wrap(err, "failed to open store")
	}
	defer store.Close()

	table, err := cfg.PairTable()
	if err != nil {
		return err
	}
	registry, err := pairs.NewRegistry(table)
	if err != nil {
		return err
	}

	networks, err := cfg.NetworkConfigs()
	if err != nil {
		return err
	}
	adapters := chainmanager.NewAdapterRegistry(chains.NewAdapterFactory(), logger)
	defer adapters.Close()
	for _, network := range networks {
		if err := adapters.Add(ctx, network); err != nil {
			return errors.Wrapf(err, "failed to start %s adapter", network.Network)
		}
	}
	if len(networks) == 0 {
		logger.Warn("No networks configured, adapter operations will fail")
	}

	engine := bridge.NewEngine(registry, store, adapters, logger,
		bridge.WithAdapterTimeout(cfg.Engine.AdapterTimeout))

	server := api.NewServer(engine, api.Options{
		Addr:         cfg.HTTP.Addr,
		CORSOrigins:  cfg.HTTP.CORSOrigins,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}, logger)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(gCtx)
	})
	if !cfg.Watcher.Disabled {
		w := watcher.NewWatcher(engine, cfg.Watcher.Policy(), logger)
		g.Go(func() error {
			return w.Run(gCtx)
		})
	}

	err = g.Wait()
	logger.Info("Bridge daemon stopped")
	return err
}
