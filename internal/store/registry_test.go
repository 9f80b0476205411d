package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/Ravindra162/prepAI-sub000/internal/models"
)

func setupTestRegistry(t *testing.T) (*miniredis.Miniredis, *Registry) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return mr, NewRegistryWithClient(client)
}

func sampleEntry(id string) RegistryEntry {
	return RegistryEntry{
		SessionID: id,
		Candidate: models.Candidate{Name: "Ada", Email: "ada@example.com"},
		Phase:     models.PhaseIntroduction,
		Language:  models.LangPython,
		StartedAt: time.Now(),
	}
}

func TestRegistrySaveAndGet(t *testing.T) {
	_, reg := setupTestRegistry(t)
	ctx := context.Background()

	if err := reg.Save(ctx, sampleEntry("s-1")); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := reg.Get(ctx, "s-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Candidate.Name != "Ada" || got.Phase != models.PhaseIntroduction {
		t.Fatalf("wrong entry: %+v", got)
	}
	if got.UpdatedAt.IsZero() {
		t.Fatalf("save must stamp UpdatedAt")
	}
}

func TestRegistryGetMissing(t *testing.T) {
	_, reg := setupTestRegistry(t)
	if _, err := reg.Get(context.Background(), "nope"); err != ErrSessionNotFound {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestRegistryUpdatePhase(t *testing.T) {
	_, reg := setupTestRegistry(t)
	ctx := context.Background()

	if err := reg.Save(ctx, sampleEntry("s-1")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := reg.UpdatePhase(ctx, "s-1", models.PhaseCoding); err != nil {
		t.Fatalf("update phase: %v", err)
	}
	got, err := reg.Get(ctx, "s-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Phase != models.PhaseCoding {
		t.Fatalf("phase not updated: %q", got.Phase)
	}

	if err := reg.UpdatePhase(ctx, "ghost", models.PhaseCoding); err != ErrSessionNotFound {
		t.Fatalf("expected ErrSessionNotFound for missing session, got %v", err)
	}
}

func TestRegistryDelete(t *testing.T) {
	_, reg := setupTestRegistry(t)
	ctx := context.Background()

	if err := reg.Save(ctx, sampleEntry("s-1")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := reg.Delete(ctx, "s-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := reg.Get(ctx, "s-1"); err != ErrSessionNotFound {
		t.Fatalf("expected ErrSessionNotFound after delete, got %v", err)
	}
}

func TestRegistryListAndStale(t *testing.T) {
	mr, reg := setupTestRegistry(t)
	ctx := context.Background()

	for _, id := range []string{"s-1", "s-2", "s-3"} {
		if err := reg.Save(ctx, sampleEntry(id)); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}
	entries, err := reg.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}

	stale, err := reg.Stale(ctx, time.Minute)
	if err != nil {
		t.Fatalf("stale: %v", err)
	}
	if len(stale) != 0 {
		t.Fatalf("fresh entries must not be stale: %d", len(stale))
	}
	_ = mr
}

func TestRegistryEntriesExpire(t *testing.T) {
	mr, reg := setupTestRegistry(t)
	ctx := context.Background()

	if err := reg.Save(ctx, sampleEntry("s-1")); err != nil {
		t.Fatalf("save: %v", err)
	}
	mr.FastForward(sessionTTL + time.Minute)
	if _, err := reg.Get(ctx, "s-1"); err != ErrSessionNotFound {
		t.Fatalf("expected expiry, got %v", err)
	}
}
