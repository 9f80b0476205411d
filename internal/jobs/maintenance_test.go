package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Ravindra162/prepAI-sub000/internal/models"
	"github.com/Ravindra162/prepAI-sub000/internal/store"
)

func newTestJob(t *testing.T) (*MaintenanceJob, *store.Archive, *store.Registry, *miniredis.Miniredis, string) {
	t.Helper()

	dsn := fmt.Sprintf("file:%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	archive, err := store.NewArchive(db)
	if err != nil {
		t.Fatalf("new archive: %v", err)
	}

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	registry := store.NewRegistryWithClient(client)

	dir := t.TempDir()
	job := NewMaintenanceJob(archive, registry, &MaintenanceConfig{
		ExportSchedule: "0 * * * *",
		ExportDir:      dir,
		PruneMaxAge:    time.Hour,
	}, zap.NewNop())
	return job, archive, registry, mr, dir
}

func TestRunExportWritesFile(t *testing.T) {
	job, archive, _, _, dir := newTestJob(t)

	err := archive.Save(&store.InterviewArchive{
		SessionID:      "s-1",
		CandidateName:  "Ada",
		CandidateEmail: "ada@example.com",
		Language:       "python",
		StartedAt:      time.Now().Add(-time.Hour),
		CompletedAt:    time.Now(),
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	if err := job.RunExport(); err != nil {
		t.Fatalf("export: %v", err)
	}
	files, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read export dir: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("expected one export file, got %d", len(files))
	}
}

func TestRunExportEmptyIsNoop(t *testing.T) {
	job, _, _, _, dir := newTestJob(t)

	if err := job.RunExport(); err != nil {
		t.Fatalf("export: %v", err)
	}
	files, _ := os.ReadDir(dir)
	if len(files) != 0 {
		t.Fatalf("no file should be written when there is nothing to export")
	}
}

func TestRunPruneRemovesOnlyStale(t *testing.T) {
	job, _, registry, mr, _ := newTestJob(t)
	ctx := context.Background()

	// A stale entry is written straight into redis with a backdated
	// UpdatedAt, since Save always stamps the current time.
	stale := store.RegistryEntry{
		SessionID: "old", Phase: models.PhaseCoding, Language: models.LangPython,
		UpdatedAt: time.Now().Add(-2 * time.Hour),
	}
	raw, err := json.Marshal(stale)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := mr.Set("interview:session:old", string(raw)); err != nil {
		t.Fatalf("seed redis: %v", err)
	}

	fresh := store.RegistryEntry{
		SessionID: "new", Phase: models.PhaseCoding, Language: models.LangPython,
	}
	if err := registry.Save(ctx, fresh); err != nil {
		t.Fatalf("save: %v", err)
	}

	if err := job.RunPrune(); err != nil {
		t.Fatalf("prune: %v", err)
	}
	if _, err := registry.Get(ctx, "old"); err != store.ErrSessionNotFound {
		t.Fatalf("stale entry must be pruned, got %v", err)
	}
	if _, err := registry.Get(ctx, "new"); err != nil {
		t.Fatalf("fresh entry must survive: %v", err)
	}
}
