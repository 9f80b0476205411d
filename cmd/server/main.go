package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/Ravindra162/prepAI-sub000/internal/config"
	"github.com/Ravindra162/prepAI-sub000/internal/interviewer"
	"github.com/Ravindra162/prepAI-sub000/internal/jobs"
	"github.com/Ravindra162/prepAI-sub000/internal/routers"
	"github.com/Ravindra162/prepAI-sub000/internal/store"
)

// initRegistry connects the redis session registry. Failure is non-fatal: the
// gateway runs without cross-instance session visibility.
func initRegistry(cfg *config.Config, logger *zap.Logger) *store.Registry {
	registry := store.NewRegistry(cfg.RedisAddr)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := registry.Ping(ctx); err != nil {
		logger.Warn("redis unavailable, session registry disabled", zap.Error(err))
		_ = registry.Close()
		return nil
	}
	return registry
}

// initArchive connects postgres. Failure is non-fatal: interviews simply are
// not archived.
func initArchive(cfg *config.Config, logger *zap.Logger) *store.Archive {
	if cfg.PostgresDSN == "" {
		logger.Info("POSTGRES_DSN not set, interview archive disabled")
		return nil
	}
	db, err := gorm.Open(postgres.Open(cfg.PostgresDSN), &gorm.Config{})
	if err != nil {
		logger.Warn("postgres unavailable, interview archive disabled", zap.Error(err))
		return nil
	}
	archive, err := store.NewArchive(db)
	if err != nil {
		logger.Warn("archive migration failed, interview archive disabled", zap.Error(err))
		return nil
	}
	return archive
}

// devProvider picks Gemini when a key is configured, the deterministic script
// otherwise.
func devProvider(logger *zap.Logger) func() interviewer.Provider {
	if os.Getenv("GEMINI_API_KEY") != "" {
		return func() interviewer.Provider {
			g, err := interviewer.NewGemini(context.Background())
			if err != nil {
				logger.Warn("gemini init failed, falling back to scripted interviewer", zap.Error(err))
				return interviewer.NewScripted()
			}
			return g
		}
	}
	return func() interviewer.Provider { return interviewer.NewScripted() }
}

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}
	logger.Info("Configuration loaded",
		zap.String("port", cfg.Port),
		zap.Bool("devMode", cfg.DevMode))

	registry := initRegistry(cfg, logger)
	if registry != nil {
		defer registry.Close()
	}
	archive := initArchive(cfg, logger)

	maintenance := jobs.NewMaintenanceJob(archive, registry, &jobs.MaintenanceConfig{
		ExportSchedule: cfg.ExportSchedule,
		ExportDir:      cfg.ExportDir,
		PruneMaxAge:    cfg.PruneMaxAge,
	}, logger)
	if err := maintenance.Start(); err != nil {
		logger.Error("Failed to start maintenance jobs", zap.Error(err))
	}
	defer maintenance.Stop()

	// In dev mode the gateway hosts its own interview backend and points the
	// channel at itself.
	if cfg.DevMode {
		cfg.BackendURL = "ws://localhost:" + cfg.Port + "/interview"
		logger.Info("dev mode: built-in interviewer enabled",
			zap.String("backendUrl", cfg.BackendURL))
	}

	var devBackend http.Handler
	if cfg.DevMode {
		devBackend = interviewer.NewServer(devProvider(logger), logger)
	}
	router := routers.New(cfg, registry, archive, devBackend, logger)

	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info("interview gateway starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)
	<-shutdownChan

	logger.Info("interview gateway shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
