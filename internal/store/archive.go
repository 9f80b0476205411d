package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/gorm"
)

// InterviewArchive is the durable record of a finished interview.
type InterviewArchive struct {
	gorm.Model
	SessionID      string     `gorm:"uniqueIndex;not null" json:"session_id"`
	CandidateName  string     `gorm:"not null" json:"candidate_name"`
	CandidateEmail string     `gorm:"index;not null" json:"candidate_email"`
	Language       string     `gorm:"not null" json:"language"`
	ProblemID      int        `json:"problem_id"`
	ProblemTitle   string     `json:"problem_title"`
	FinalCode      string     `gorm:"type:text" json:"final_code"`
	Transcript     string     `gorm:"type:text" json:"transcript"`
	Score          float64    `json:"score"`
	Summary        string     `gorm:"type:text" json:"summary"`
	HintsUsed      int        `json:"hints_used"`
	PassedTests    int        `json:"passed_tests"`
	TotalTests     int        `json:"total_tests"`
	StartedAt      time.Time  `gorm:"not null" json:"started_at"`
	CompletedAt    time.Time  `gorm:"not null;index" json:"completed_at"`
	Exported       bool       `gorm:"not null;default:false;index" json:"exported"`
	ExportedAt     *time.Time `json:"exported_at"`
}

// Archive stores completed interviews for later review and export.
type Archive struct {
	db *gorm.DB
}

func NewArchive(db *gorm.DB) (*Archive, error) {
	if err := db.AutoMigrate(&InterviewArchive{}); err != nil {
		return nil, fmt.Errorf("migrate interview archive: %w", err)
	}
	return &Archive{db: db}, nil
}

func (a *Archive) Save(rec *InterviewArchive) error {
	if err := a.db.Create(rec).Error; err != nil {
		return fmt.Errorf("archive session %s: %w", rec.SessionID, err)
	}
	return nil
}

func (a *Archive) BySession(sessionID string) (*InterviewArchive, error) {
	var rec InterviewArchive
	err := a.db.Where("session_id = ?", sessionID).First(&rec).Error
	if err == gorm.ErrRecordNotFound {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup archive %s: %w", sessionID, err)
	}
	return &rec, nil
}

// Recent returns the newest completed interviews, most recent first.
func (a *Archive) Recent(limit int) ([]InterviewArchive, error) {
	var recs []InterviewArchive
	q := a.db.Order("completed_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list recent archives: %w", err)
	}
	return recs, nil
}

// Unexported returns records not yet written to an export file.
func (a *Archive) Unexported(limit int) ([]InterviewArchive, error) {
	var recs []InterviewArchive
	q := a.db.Where("exported = ?", false).Order("completed_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list unexported archives: %w", err)
	}
	return recs, nil
}

func (a *Archive) markExported(ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	now := time.Now()
	err := a.db.Model(&InterviewArchive{}).
		Where("id IN ?", ids).
		Updates(map[string]any{"exported": true, "exported_at": &now}).Error
	if err != nil {
		return fmt.Errorf("mark exported: %w", err)
	}
	return nil
}

// ExportJSONL writes all unexported records to a timestamped JSONL file under
// dir and marks them exported. Returns the file path and record count; an
// empty path means there was nothing to export.
func (a *Archive) ExportJSONL(dir string) (string, int, error) {
	recs, err := a.Unexported(0)
	if err != nil {
		return "", 0, err
	}
	if len(recs) == 0 {
		return "", 0, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("interviews_%s.jsonl", time.Now().Format("20060102_150405")))
	f, err := os.Create(path)
	if err != nil {
		return "", 0, fmt.Errorf("create export file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	ids := make([]uint, 0, len(recs))
	for _, rec := range recs {
		line, err := json.Marshal(rec)
		if err != nil {
			return "", 0, fmt.Errorf("encode archive %s: %w", rec.SessionID, err)
		}
		if _, err := w.Write(append(line, '\n')); err != nil {
			return "", 0, fmt.Errorf("write export file: %w", err)
		}
		ids = append(ids, rec.ID)
	}
	if err := w.Flush(); err != nil {
		return "", 0, fmt.Errorf("flush export file: %w", err)
	}

	if err := a.markExported(ids); err != nil {
		return "", 0, err
	}
	return path, len(recs), nil
}
