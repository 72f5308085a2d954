// Package main implements the chimed daemon: an always-on scheduled
// audio-playback service.
//
// Usage:
//
//	chimed [options]
//
// Options:
//
//	--db=PATH         Path to the sqlite database (default: /var/lib/chimed/chimed.db)
//	--settings=PATH   Path to the settings YAML file (default: /etc/chimed/settings.yaml)
//	--lock=PATH       Path to the single-instance lock file (default: /run/chimed/chimed.lock)
//	--log-level=LEVEL Log level: debug, info, warn, error (default: info)
//	--help            Show this help message
//
// The daemon acquires a single-instance lock, opens its sqlite store,
// starts the Audio Service and the Scheduler Engine, and blocks until
// SIGINT or SIGTERM.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	// tzdata is embedded so the Time Calculator's DST handling works on
	// minimal container images that ship no system zoneinfo database.
	_ "time/tzdata"

	"github.com/mbowers-oss/chimed/internal/lock"
	"github.com/mbowers-oss/chimed/internal/playback"
	"github.com/mbowers-oss/chimed/internal/scheduler"
	"github.com/mbowers-oss/chimed/internal/settings"
	"github.com/mbowers-oss/chimed/internal/store"
)

// Build information (set by ldflags).
var (
	Version = "dev"
	Commit  = "unknown"
)

var (
	dbPath       = flag.String("db", "/var/lib/chimed/chimed.db", "Path to the sqlite database")
	settingsPath = flag.String("settings", settings.DefaultSettingsPath, "Path to the settings YAML file")
	lockPath     = flag.String("lock", "/run/chimed/chimed.lock", "Path to the single-instance lock file")
	logLevel     = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	showHelp     = flag.Bool("help", false, "Show help message")
)

func main() {
	flag.Parse()

	if *showHelp {
		printUsage()
		os.Exit(0)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLogLevel(*logLevel)}))
	logger.Info("starting chimed", "version", Version, "commit", Commit)

	fl, err := lock.New(*lockPath)
	if err != nil {
		logger.Error("failed to create lock", "error", err)
		os.Exit(1)
	}
	if err := fl.Acquire(10 * time.Second); err != nil {
		logger.Error("another chimed instance appears to be running", "lock", *lockPath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = fl.Release() }()

	st, err := store.Open(*dbPath)
	if err != nil {
		logger.Error("failed to open database", "path", *dbPath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = st.Close() }()

	settingsStore, err := settings.NewStore(
		settings.WithYAMLFile(*settingsPath),
		settings.WithEnvPrefix("CHIMED"),
	)
	if err != nil {
		logger.Error("failed to load settings", "path", *settingsPath, "error", err)
		os.Exit(1)
	}

	audio, err := playback.NewService(playback.Config{Logger: logger})
	if err != nil {
		logger.Error("failed to start audio service", "error", err)
		os.Exit(1)
	}

	engine := scheduler.New(scheduler.Config{
		Store:    st,
		Audio:    scheduler.NewServiceController(audio),
		Settings: func() *settings.Settings { s, _ := settingsStore.Load(); return s },
		Logger:   logger,
	})

	if err := engine.Start(); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		err := settingsStore.Watch(ctx, func(event string, err error) {
			if err != nil {
				logger.Warn("settings watch", "event", event, "error", err)
				return
			}
			logger.Info("settings watch", "event", event)
		})
		if err != nil {
			logger.Warn("settings file watch disabled", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig.String())
	cancel()

	if err := engine.Stop(); err != nil {
		logger.Error("scheduler stop failed", "error", err)
	}

	logger.Info("shutdown complete")
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

func printUsage() {
	fmt.Println("chimed - scheduled audio-playback daemon")
	fmt.Println()
	flag.PrintDefaults()
}
