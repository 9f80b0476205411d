package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestArchive(t *testing.T) *Archive {
	t.Helper()

	dsn := fmt.Sprintf("file:%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	a, err := NewArchive(db)
	if err != nil {
		t.Fatalf("new archive: %v", err)
	}
	return a
}

func sampleArchive(sessionID string, completed time.Time) *InterviewArchive {
	return &InterviewArchive{
		SessionID:      sessionID,
		CandidateName:  "Ada",
		CandidateEmail: "ada@example.com",
		Language:       "python",
		ProblemID:      1,
		ProblemTitle:   "Two Sum",
		FinalCode:      "def two_sum(): pass",
		Score:          7.5,
		Summary:        "Solid approach.",
		PassedTests:    3,
		TotalTests:     4,
		StartedAt:      completed.Add(-30 * time.Minute),
		CompletedAt:    completed,
	}
}

func TestArchiveSaveAndLookup(t *testing.T) {
	a := newTestArchive(t)

	if err := a.Save(sampleArchive("s-1", time.Now())); err != nil {
		t.Fatalf("save: %v", err)
	}
	rec, err := a.BySession("s-1")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if rec.Score != 7.5 || rec.ProblemTitle != "Two Sum" {
		t.Fatalf("wrong record: %+v", rec)
	}

	if _, err := a.BySession("missing"); err != ErrSessionNotFound {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestArchiveDuplicateSessionRejected(t *testing.T) {
	a := newTestArchive(t)

	if err := a.Save(sampleArchive("s-1", time.Now())); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := a.Save(sampleArchive("s-1", time.Now())); err == nil {
		t.Fatalf("duplicate session id must be rejected by the unique index")
	}
}

func TestArchiveRecentOrder(t *testing.T) {
	a := newTestArchive(t)
	base := time.Now().Add(-time.Hour)

	for i := 0; i < 3; i++ {
		rec := sampleArchive(fmt.Sprintf("s-%d", i), base.Add(time.Duration(i)*time.Minute))
		if err := a.Save(rec); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	recs, err := a.Recent(2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("limit not applied: %d", len(recs))
	}
	if recs[0].SessionID != "s-2" || recs[1].SessionID != "s-1" {
		t.Fatalf("wrong order: %s %s", recs[0].SessionID, recs[1].SessionID)
	}
}

func TestArchiveExportJSONL(t *testing.T) {
	a := newTestArchive(t)
	dir := t.TempDir()

	for i := 0; i < 2; i++ {
		if err := a.Save(sampleArchive(fmt.Sprintf("s-%d", i), time.Now())); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	path, n, err := a.ExportJSONL(dir)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if n != 2 || path == "" {
		t.Fatalf("expected 2 exported records, got %d (%q)", n, path)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open export: %v", err)
	}
	defer f.Close()
	var lines int
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec InterviewArchive
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("line %d not valid json: %v", lines+1, err)
		}
		lines++
	}
	if lines != 2 {
		t.Fatalf("expected 2 jsonl lines, got %d", lines)
	}

	// Second export has nothing left.
	path, n, err = a.ExportJSONL(dir)
	if err != nil {
		t.Fatalf("re-export: %v", err)
	}
	if n != 0 || path != "" {
		t.Fatalf("everything should already be exported, got %d (%q)", n, path)
	}
}
