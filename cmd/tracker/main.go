// Package main runs the encounter tracker: the commander behind an HTTP API,
// a websocket player view and a gRPC health endpoint.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cory-johannsen/tracker/internal/api"
	"github.com/cory-johannsen/tracker/internal/config"
	"github.com/cory-johannsen/tracker/internal/game/commander"
	"github.com/cory-johannsen/tracker/internal/game/dice"
	"github.com/cory-johannsen/tracker/internal/game/encounter"
	"github.com/cory-johannsen/tracker/internal/game/persistent"
	"github.com/cory-johannsen/tracker/internal/game/rules"
	"github.com/cory-johannsen/tracker/internal/game/savedencounter"
	"github.com/cory-johannsen/tracker/internal/game/statblock"
	"github.com/cory-johannsen/tracker/internal/observability"
	"github.com/cory-johannsen/tracker/internal/server"
	"github.com/cory-johannsen/tracker/internal/storage/postgres"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "", "path to configuration file; empty uses defaults and environment")
	dbAttempts := flag.Int("db-attempts", 5, "database connection attempts before giving up")
	healthInterval := flag.Duration("health-interval", 15*time.Second, "database health check interval")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting tracker",
		zap.String("http_addr", cfg.HTTP.Addr()),
		zap.String("grpc_addr", cfg.GRPC.Addr()),
		zap.String("library_backend", cfg.Tracker.LibraryBackend),
	)

	// Library backends
	var (
		characters persistent.Store
		saved      savedencounter.Store
		pool       *postgres.Pool
	)
	switch cfg.Tracker.LibraryBackend {
	case config.BackendPostgres:
		dbStart := time.Now()
		pool, err = postgres.NewPool(ctx, cfg.Database,
			postgres.WithConnectRetry(*dbAttempts, time.Second),
			postgres.WithLogger(logger),
		)
		if err != nil {
			logger.Fatal("connecting to database", zap.Error(err))
		}
		defer pool.Close()
		version, dirty, err := pool.SchemaVersion(ctx)
		if err != nil {
			logger.Fatal("checking schema version; run cmd/migrate first", zap.Error(err))
		}
		if dirty {
			logger.Fatal("database schema is dirty", zap.Int64("version", version))
		}
		logger.Info("database connected",
			zap.String("host", cfg.Database.Host),
			zap.Int64("schema_version", version),
			zap.Duration("elapsed", time.Since(dbStart)),
		)
		characters = postgres.NewPersistentCharacterRepository(pool.DB())
		saved = postgres.NewSavedEncounterRepository(pool.DB())
	default:
		characters = persistent.NewMemoryStore()
		saved = savedencounter.NewMemoryStore()
	}

	// Stat block library
	var blocks []statblock.StatBlock
	if cfg.Tracker.StatBlocksDir != "" {
		blocks, err = statblock.LoadDir(cfg.Tracker.StatBlocksDir)
		if err != nil {
			logger.Fatal("loading stat blocks", zap.String("dir", cfg.Tracker.StatBlocksDir), zap.Error(err))
		}
	}
	library, err := statblock.NewLibrary(blocks)
	if err != nil {
		logger.Fatal("building stat block library", zap.Error(err))
	}
	logger.Info("stat block library loaded", zap.Int("count", library.Len()))

	// Rules
	baseRules := rules.NewDefaultRules(dice.NewRoller(dice.NewCryptoSource(), logger))
	var activeRules rules.Rules = baseRules
	if cfg.Tracker.RulesScript != "" {
		scripted, err := rules.NewScriptedRules(baseRules, cfg.Tracker.RulesScript, cfg.Tracker.RulesInstructionLimit, logger)
		if err != nil {
			logger.Fatal("loading rules script", zap.String("path", cfg.Tracker.RulesScript), zap.Error(err))
		}
		defer scripted.Close()
		activeRules = scripted
		logger.Info("rules script loaded", zap.String("path", cfg.Tracker.RulesScript))
	}

	enc := encounter.New(activeRules, logger,
		encounter.WithRollMonsterHP(cfg.Tracker.RollMonsterHP),
		encounter.WithAutoGroupInitiative(cfg.Tracker.AutoGroupInitiative),
	)

	hub := api.NewHub(cfg.HTTP.AllowedOrigins, logger)
	cmd := commander.New(enc, characters, saved, api.RequestConfirmer{}, hub, commander.Settings{
		AutoRollInitiative: encounter.RollMode(cfg.Tracker.AutoRollInitiative),
		ConfirmDestructive: cfg.Tracker.ConfirmDestructive,
	}, logger)

	if cfg.Logging.Format == "json" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(api.NewHandler(cmd, library, characters, hub, logger), logger)

	httpSvc := server.NewHTTPService(cfg.HTTP, router, logger)
	healthSvc := server.NewHealthService(cfg.GRPC.Addr(), logger)
	if pool != nil {
		go healthSvc.Watch(ctx, *healthInterval, func(ctx context.Context) error {
			return pool.Health(ctx, 2*time.Second)
		})
	}

	lifecycle := server.NewLifecycle(logger)
	lifecycle.Add("grpc-health", healthSvc)
	lifecycle.Add("http", &server.FuncService{
		StartFn: httpSvc.Start,
		StopFn: func() {
			hub.Close()
			httpSvc.Stop()
		},
	})

	logger.Info("tracker initialized", zap.Duration("startup", time.Since(start)))

	if err := lifecycle.Run(ctx); err != nil {
		logger.Error("tracker stopped with error", zap.Error(err))
	}
}
