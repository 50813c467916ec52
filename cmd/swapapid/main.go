// Package main provides the swapapid daemon - the JSON API in front of a
// swap engine.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/klingon-exchange/swapapi/internal/api"
	"github.com/klingon-exchange/swapapi/internal/coins"
	"github.com/klingon-exchange/swapapi/internal/config"
	"github.com/klingon-exchange/swapapi/internal/engine"
	"github.com/klingon-exchange/swapapi/internal/engine/local"
	"github.com/klingon-exchange/swapapi/internal/engine/rpcclient"
	"github.com/klingon-exchange/swapapi/internal/storage"
	"github.com/klingon-exchange/swapapi/pkg/logging"
)

var (
	version = "0.1.0-dev"
	commit  = "unknown"
)

func main() {
	// Parse flags
	var (
		dataDir     = flag.String("data-dir", "~/.swapapi", "Data directory")
		configFile  = flag.String("config", "", "Config file path (default: <data-dir>/config.yaml)")
		envFile     = flag.String("env-file", ".env", "Environment file with SWAPAPI_* overrides")
		apiAddr     = flag.String("api", "", "API listen address, overrides config")
		engineMode  = flag.String("engine", "", "Engine mode (local, rpc), overrides config")
		engineURL   = flag.String("engine-url", "", "Engine JSON-RPC URL, overrides config")
		corsOrigins = flag.String("cors", "", "Allowed CORS origins (comma-separated), overrides config")
		logLevel    = flag.String("log-level", "", "Log level (debug, info, warn, error), overrides config")
		showVersion = flag.Bool("version", false, "Show version and exit")
	)
	flag.Parse()

	// Set up logging (initial, may be overridden by config)
	log := logging.New(&logging.Config{
		Level:      "info",
		TimeFormat: time.TimeOnly,
	})
	logging.SetDefault(log)

	if *showVersion {
		log.Infof("swapapid %s (commit: %s)", version, commit)
		os.Exit(0)
	}

	if err := config.LoadEnvFile(*envFile); err != nil {
		log.Fatal("Failed to load env file", "error", err)
	}

	// Load or create config file
	configPath := config.ConfigPath(*dataDir)
	var cfg *config.Config
	var err error
	if *configFile != "" {
		configPath = config.ExpandPath(*configFile)
		cfg, err = config.LoadConfigFile(configPath)
	} else {
		cfg, err = config.LoadConfig(*dataDir)
	}
	if err != nil {
		log.Fatal("Failed to load config", "error", err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		log.Fatal("Invalid environment override", "error", err)
	}

	// CLI flags take precedence over config file and environment
	if *apiAddr != "" {
		cfg.API.Addr = *apiAddr
	}
	if *engineMode != "" {
		cfg.Engine.Mode = config.EngineMode(strings.ToLower(*engineMode))
	}
	if *engineURL != "" {
		cfg.Engine.URL = *engineURL
	}
	if *corsOrigins != "" {
		cfg.API.CORSOrigins = parseList(*corsOrigins)
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid config", "error", err)
	}

	// Update logging with config level
	log = logging.New(&logging.Config{
		Level:      cfg.Logging.Level,
		TimeFormat: time.TimeOnly,
	})
	logging.SetDefault(log)

	log.Info("Config loaded", "path", configPath)

	registry := coins.DefaultRegistry()

	// Initialize engine
	var eng engine.Engine
	switch cfg.Engine.Mode {
	case config.EngineRPC:
		eng = rpcclient.New(&rpcclient.Config{
			URL:     cfg.Engine.URL,
			User:    cfg.Engine.User,
			Pass:    cfg.Engine.Pass,
			Timeout: cfg.Engine.Timeout,
		})
		log.Info("Using remote engine", "url", cfg.Engine.URL)

	default:
		dataPath := config.ExpandPath(cfg.Storage.DataDir)
		store, err := storage.New(&storage.Config{DataDir: dataPath})
		if err != nil {
			log.Fatal("Failed to initialize storage", "error", err)
		}
		defer store.Close()
		log.Info("Storage initialized", "path", store.Path())

		eng, err = local.New(store, registry, &local.Config{Balances: cfg.Local.Balances})
		if err != nil {
			log.Fatal("Failed to initialize local engine", "error", err)
		}
		log.Info("Using local engine")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start API server
	server := api.NewServer(eng, registry, api.Options{
		PageLimit:        cfg.API.PageLimit,
		StrictCoinFilter: cfg.API.StrictCoinFilter,
		CORSOrigins:      cfg.API.CORSOrigins,
	})
	if err := server.Start(cfg.API.Addr); err != nil {
		log.Fatal("Failed to start API server", "error", err)
	}

	printBanner(log, cfg, server.Addr())

	// Start status ticker
	go func() {
		ticker := time.NewTicker(60 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				log.Info("Status", "ws_clients", server.WSHub().ClientCount())
			}
		}
	}()

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	log.Info("Shutting down...")

	cancel()

	if err := server.Stop(); err != nil {
		log.Error("Error stopping API server", "error", err)
	}

	log.Info("Goodbye!")
}

func printBanner(log *logging.Logger, cfg *config.Config, addr string) {
	log.Info("")
	log.Info("=================================================")
	log.Info("  Swap API")
	log.Infof("  Version: %s", version)
	log.Info("=================================================")
	log.Info("")
	log.Infof("  API: http://%s%s", addr, api.PathPrefix)
	log.Infof("  WS:  ws://%s/ws", addr)
	log.Info("")
	log.Infof("  Engine: %s", cfg.Engine.Mode)
	log.Infof("  Data dir: %s", config.ExpandPath(cfg.Storage.DataDir))
	log.Info("")
	log.Info("=================================================")
	log.Info("")
}

func parseList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
