// Market-data gateway — connects to one or more exchange feeds, parses
// live order-book updates from heterogeneous wire formats, maintains a
// per-symbol Level-2 order book, and publishes lock-free snapshots for
// readers.
//
// Architecture:
//
//	main.go                    — entry point: loads config, wires venues, waits for SIGINT/SIGTERM
//	internal/config            — YAML + MDG_* env var configuration
//	internal/transport         — secure-websocket and persistent-TCP FeedClient variants
//	internal/parser            — JSON book-frame and tag-value (FIX-like) record parsers
//	internal/queue             — bounded SPSC ring buffer, one per side per venue
//	internal/obtainer          — owns one venue's transport, queues, and reconnect loop
//	internal/book              — per-symbol bid/ask price-level maps
//	internal/snapshot          — double-buffered wait-free snapshot publish
//	internal/consumer          — aggregates obtainers for a symbol, drains queues, publishes
//	internal/reader            — read-only accessor handed to visualisers/strategy consumers
package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"mdgateway/internal/config"
	"mdgateway/internal/consumer"
	"mdgateway/internal/obtainer"
	"mdgateway/internal/reader"
	"mdgateway/internal/snapshot"
	"mdgateway/internal/transport"
)

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("MDG_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	obtainers := make([]*obtainer.Obtainer, 0, len(cfg.Venues))
	for _, vc := range cfg.Venues {
		kind := transport.KindWebSocket
		if vc.Kind == "tcp" {
			kind = transport.KindTCP
		}

		topts := transport.Options{ConnectTimeout: vc.ConnectTimeout, Logger: logger}

		var client transport.FeedClient
		if kind == transport.KindWebSocket {
			client = transport.NewWSClient(topts)
		} else {
			client = transport.NewTCPClient(topts, "GATEWAY", vc.Name, vc.Market)
		}

		ob := obtainer.New(obtainer.Config{
			Host:                 vc.Host,
			Port:                 vc.Port,
			Market:               vc.Market,
			Kind:                 kind,
			Logger:               logger,
			MaxReconnectAttempts: vc.MaxReconnectAttempts,
		}, client)
		obtainers = append(obtainers, ob)
	}

	cons := consumer.New(cfg.Publish.Symbol, obtainers, logger)
	cons.SetPublishLevels(cfg.Publish.Levels)
	cons.SetPublishPeriod(cfg.Publish.Period)

	view := snapshot.New()
	cons.AttachView(view)
	_ = reader.New(view) // handed to visualiser/strategy processes outside the gateway core

	cons.Start()

	logger.Info("market-data gateway started",
		"symbol", cfg.Publish.Symbol,
		"venues", len(cfg.Venues),
		"publish_period", cfg.Publish.Period,
		"publish_levels", cfg.Publish.Levels,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	cons.Stop()
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
