package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/rnProCoder/ControlledBrowsing/internal/control/common/clock"
	"github.com/rnProCoder/ControlledBrowsing/internal/control/common/log"
	"github.com/rnProCoder/ControlledBrowsing/internal/control/config"
	"github.com/rnProCoder/ControlledBrowsing/internal/control/gateways/httpapi"
	"github.com/rnProCoder/ControlledBrowsing/internal/control/repos/matchindex"
	"github.com/rnProCoder/ControlledBrowsing/internal/control/repos/rules"
	boltstore "github.com/rnProCoder/ControlledBrowsing/internal/control/repos/rules/bolt"
	"github.com/rnProCoder/ControlledBrowsing/internal/control/repos/rules/memory"
	"github.com/rnProCoder/ControlledBrowsing/internal/control/repos/seed"
	"github.com/rnProCoder/ControlledBrowsing/internal/control/services/engine"
	"github.com/rnProCoder/ControlledBrowsing/internal/control/services/recorder"
)

const (
	version = "0.1.0-dev"
	appName = "browsectld"
)

// Application holds all the components of the browsing-control service.
type Application struct {
	config   *config.AppConfig
	server   *httpapi.Server
	recorder *recorder.Recorder
	closeFn  func() error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	if err := log.Configure(cfg.Env, cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "Logging configuration error: %v\n", err)
		os.Exit(1)
	}

	log.Info(map[string]any{
		"version":   version,
		"env":       cfg.Env,
		"log_level": cfg.LogLevel,
		"port":      cfg.Port,
		"store":     cfg.Store,
	}, "Starting browsing-control server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := buildApplication(ctx, cfg)
	if err != nil {
		log.Fatal(map[string]any{"error": err}, "Failed to build application")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info(map[string]any{"signal": sig.String()}, "Shutdown signal received")
		cancel()
	}()

	if err := app.Run(ctx); err != nil {
		log.Fatal(map[string]any{"error": err}, "Server failed")
	}

	log.Info(nil, "Browsing-control server stopped gracefully")
}

// buildApplication constructs all components and wires them together.
func buildApplication(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	clk := clock.RealClock{}
	logger := log.GetLogger()

	store, closeFn, err := buildStore(cfg, clk)
	if err != nil {
		return nil, fmt.Errorf("failed to build store: %w", err)
	}

	if cfg.SeedDir != "" {
		data, err := seed.LoadDirectory(cfg.SeedDir)
		if err != nil {
			return nil, fmt.Errorf("failed to load seed directory: %w", err)
		}
		if err := seed.Apply(ctx, data, store, logger); err != nil {
			return nil, fmt.Errorf("failed to apply seed: %w", err)
		}
	}

	var index *matchindex.Index
	if cfg.DisableCache {
		log.Info(map[string]any{"disabled": true}, "Match index disabled")
	} else {
		index, err = matchindex.New(int(cfg.CacheSize), cfg.BloomFPRate)
		if err != nil {
			return nil, fmt.Errorf("failed to create match index: %w", err)
		}
		snapshot, err := store.ListWebsiteRules(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read rules for match index: %w", err)
		}
		index.Rebuild(snapshot)
		// rule mutations through this store keep the index coherent
		store = rules.WithIndex(store, index, logger)
		log.Info(map[string]any{
			"size":    cfg.CacheSize,
			"fp_rate": cfg.BloomFPRate,
			"rules":   len(snapshot),
		}, "Match index configured")
	}

	engineOpts := engine.Options{Source: store, Logger: logger}
	if index != nil {
		engineOpts.Index = index
	}
	eng := engine.New(engineOpts)

	rec := recorder.New(recorder.Options{Store: store, Logger: logger})

	if cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	server := httpapi.New(httpapi.Options{
		Addr:     fmt.Sprintf(":%d", cfg.Port),
		Engine:   eng,
		Store:    store,
		Recorder: rec,
		Logger:   logger,
	})

	return &Application{
		config:   cfg,
		server:   server,
		recorder: rec,
		closeFn:  closeFn,
	}, nil
}

// buildStore creates the configured store backend. The returned close
// function releases backend resources on shutdown.
func buildStore(cfg *config.AppConfig, clk clock.Clock) (rules.Store, func() error, error) {
	switch cfg.Store {
	case "bolt":
		s, err := boltstore.New(cfg.DBPath, clk)
		if err != nil {
			return nil, nil, err
		}
		log.Info(map[string]any{"path": cfg.DBPath}, "Bolt store opened")
		return s, s.Close, nil
	default:
		log.Info(nil, "In-memory store configured")
		return memory.New(clk), func() error { return nil }, nil
	}
}

// Run starts the HTTP server and blocks until context is cancelled.
func (app *Application) Run(ctx context.Context) error {
	app.recorder.Start(ctx)

	log.Info(map[string]any{"port": app.config.Port}, "HTTP API started")
	err := app.server.Run(ctx)

	// drain queued activity records before releasing the store
	app.recorder.Stop()
	if closeErr := app.closeFn(); closeErr != nil {
		log.Warn(map[string]any{"error": closeErr}, "Error closing store")
	}
	return err
}
