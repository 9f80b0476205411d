// Package jobs runs the gateway's scheduled maintenance: archive exports and
// stale session pruning.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/Ravindra162/prepAI-sub000/internal/store"
)

// MaintenanceConfig contains the schedules and limits for background jobs.
type MaintenanceConfig struct {
	ExportSchedule string // cron schedule for archive exports
	ExportDir      string
	PruneMaxAge    time.Duration // registry entries idle longer than this are removed
}

// MaintenanceJob exports completed interviews to JSONL and prunes abandoned
// registry entries. Either store may be nil; the matching job is skipped.
type MaintenanceJob struct {
	archive  *store.Archive
	registry *store.Registry
	config   *MaintenanceConfig
	log      *zap.Logger
	cron     *cron.Cron
}

func NewMaintenanceJob(archive *store.Archive, registry *store.Registry, config *MaintenanceConfig, log *zap.Logger) *MaintenanceJob {
	return &MaintenanceJob{
		archive:  archive,
		registry: registry,
		config:   config,
		log:      log,
		cron:     cron.New(),
	}
}

// Start schedules both jobs. Pruning runs every ten minutes regardless of the
// export schedule.
func (mj *MaintenanceJob) Start() error {
	if mj.archive != nil {
		_, err := mj.cron.AddFunc(mj.config.ExportSchedule, func() {
			if err := mj.RunExport(); err != nil {
				mj.log.Error("archive export failed", zap.Error(err))
			}
		})
		if err != nil {
			return fmt.Errorf("schedule archive export: %w", err)
		}
	}

	if mj.registry != nil {
		_, err := mj.cron.AddFunc("*/10 * * * *", func() {
			if err := mj.RunPrune(); err != nil {
				mj.log.Error("session prune failed", zap.Error(err))
			}
		})
		if err != nil {
			return fmt.Errorf("schedule session prune: %w", err)
		}
	}

	mj.cron.Start()
	mj.log.Info("maintenance jobs started",
		zap.String("exportSchedule", mj.config.ExportSchedule),
		zap.Duration("pruneMaxAge", mj.config.PruneMaxAge))
	return nil
}

func (mj *MaintenanceJob) Stop() {
	if mj.cron != nil {
		mj.cron.Stop()
	}
}

// RunExport writes unexported archives to a JSONL file. Public so an admin
// endpoint or test can trigger it outside the schedule.
func (mj *MaintenanceJob) RunExport() error {
	path, n, err := mj.archive.ExportJSONL(mj.config.ExportDir)
	if err != nil {
		return err
	}
	if n == 0 {
		mj.log.Info("archive export: nothing to export")
		return nil
	}
	mj.log.Info("archive export complete", zap.String("file", path), zap.Int("records", n))
	return nil
}

// RunPrune deletes registry entries that have not been touched within
// PruneMaxAge. These belong to sessions whose gateway died without cleanup.
func (mj *MaintenanceJob) RunPrune() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stale, err := mj.registry.Stale(ctx, mj.config.PruneMaxAge)
	if err != nil {
		return err
	}
	for _, entry := range stale {
		if err := mj.registry.Delete(ctx, entry.SessionID); err != nil {
			mj.log.Warn("prune delete failed",
				zap.String("session", entry.SessionID), zap.Error(err))
			continue
		}
		mj.log.Info("pruned stale session",
			zap.String("session", entry.SessionID),
			zap.Time("lastUpdate", entry.UpdatedAt))
	}
	return nil
}
