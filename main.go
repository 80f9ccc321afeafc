package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"wifitap/internal/config"
	"wifitap/internal/logging"
	"wifitap/internal/tap"
)

func main() {
	var (
		ifaceFlag  = flag.String("interface", "", "monitor-mode interface to capture on (overrides config)")
		configPath = flag.String("config", "/etc/wifi-tap/config.json", "path to the tap's JSON configuration file")
		logLevel   = flag.String("log-level", "", "override configured log level (debug|info|warn|error)")
		logFormat  = flag.String("log-format", "", "override log output format (json|text)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if *ifaceFlag != "" {
		cfg.Interface = *ifaceFlag
	}

	logger := logging.NewLogger(cfg, *logLevel, *logFormat)
	logger.Info("tap starting",
		"tap_uuid", cfg.TapUUID,
		"interface", cfg.Interface,
		"node_host", cfg.NodeHost,
		"node_port", cfg.NodePort,
		"version", tap.Version,
	)

	instance, err := tap.New(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize tap", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received shutdown signal", "signal", sig.String())
		cancel()
	}()

	if err := instance.Run(ctx); err != nil {
		logger.Error("tap run failed", "error", err)
		os.Exit(1)
	}

	logger.Info("tap shutdown complete")
}
