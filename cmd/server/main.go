package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/yegors/airship-atc/internal/api"
	"github.com/yegors/airship-atc/internal/avoidance"
	"github.com/yegors/airship-atc/internal/config"
	"github.com/yegors/airship-atc/internal/pilot"
	"github.com/yegors/airship-atc/internal/route"
	"github.com/yegors/airship-atc/internal/simulation"
	"github.com/yegors/airship-atc/internal/storage/sqlite"
	"github.com/yegors/airship-atc/internal/templating"
	"github.com/yegors/airship-atc/internal/websocket"
	"github.com/yegors/airship-atc/pkg/logger"
)

var (
	// Version is injected at build time
	Version = "dev"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file (optional - will search in configs/ and root directory)")
	flag.Parse()

	cfg, err := config.LoadWithFallback(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting airship ATC server",
		logger.String("version", Version),
		logger.String("config_path", *configPath),
		logger.Int("routes", len(cfg.Routes)))

	// Event storage
	if dir := filepath.Dir(cfg.Storage.SQLitePath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Error("Failed to create database directory", logger.Error(err), logger.String("path", dir))
			os.Exit(1)
		}
	}
	eventStorage, err := sqlite.NewEventStorage(cfg.Storage.SQLitePath, cfg.Storage.MaxEventsInAPI, log)
	if err != nil {
		log.Error("Failed to create SQLite storage", logger.Error(err))
		os.Exit(1)
	}
	defer eventStorage.Close()

	chatStorage, err := sqlite.NewChatStorage(eventStorage.GetDB(), log)
	if err != nil {
		log.Error("Failed to create chat storage", logger.Error(err))
		os.Exit(1)
	}

	phrasebook, err := templating.NewEngine(cfg.Templating.PhrasebookPath, log)
	if err != nil {
		log.Error("Failed to load phrasebook", logger.Error(err))
		os.Exit(1)
	}

	network, err := route.FromConfig(cfg)
	if err != nil {
		log.Error("Failed to build route network", logger.Error(err))
		os.Exit(1)
	}

	var initialOverride *float32
	if v := cfg.Airships.SpeedOverride; v != nil {
		f := float32(*v)
		initialOverride = &f
	}
	override := avoidance.NewSharedOverride(initialOverride)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wsServer := websocket.NewServer(cfg.Server.CORSAllowedOrigins, log)
	go wsServer.Run(ctx)

	recorder := simulation.NewRecorder(eventStorage, chatStorage, log)
	recorder.Start(ctx)

	airshipPilot := pilot.New(pilot.NewConfig(cfg), network, override, log)
	sim := simulation.NewService(cfg, network, airshipPilot, phrasebook, simulation.MultiSink{
		recorder,
		websocket.NewPublisher(wsServer),
	}, log)
	wsServer.SetSnapshotSource(sim.Snapshot)

	if err := sim.Spawn(); err != nil {
		log.Error("Failed to spawn airships", logger.Error(err))
		os.Exit(1)
	}
	if err := sim.Start(ctx); err != nil {
		log.Error("Failed to start simulation", logger.Error(err))
		os.Exit(1)
	}

	handler := api.NewHandler(sim, network, eventStorage, chatStorage, override, log)
	router := api.NewRouter(handler, wsServer.HandleConnection, cfg.Server, log)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Routes(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSecs) * time.Second,
	}

	go func() {
		log.Info("Starting HTTP server", logger.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", logger.String("addr", server.Addr), logger.Error(err))
			cancel()
		}
	}()

	// SIGHUP reloads the phrasebook, SIGINT/SIGTERM shut down
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

wait:
	for {
		select {
		case sig := <-sigCh:
			if sig != syscall.SIGHUP {
				break wait
			}
			if err := phrasebook.Reload(); err != nil {
				log.Error("Failed to reload phrasebook", logger.Error(err))
			} else {
				log.Info("Phrasebook reloaded", logger.Int("phrases", len(phrasebook.Keys())))
			}
		case <-ctx.Done():
			break wait
		}
	}

	log.Info("Shutting down server...")

	log.Info("Stopping simulation...")
	sim.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", logger.Error(err))
	} else {
		log.Info("HTTP server shutdown complete")
	}

	log.Info("Flushing event recorder...")
	recorder.Close()

	cancel()
	log.Info("Server fully stopped", logger.String("run_id", sim.RunID()))
}
