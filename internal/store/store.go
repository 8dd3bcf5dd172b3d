package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"pestma/internal/pipeline"
)

var ErrNotFound = errors.New("analysis not found")

// AnalysisStore persists pipeline runs in SQLite via Gorm.
type AnalysisStore struct {
	db *gorm.DB
}

// Analysis is the read model returned to callers.
type Analysis struct {
	ID          string                  `json:"id"`
	Description string                  `json:"description"`
	HasImage    bool                    `json:"has_image"`
	Result      pipeline.PipelineResult `json:"result"`
	DurationMs  int64                   `json:"duration_ms"`
	CreatedAt   time.Time               `json:"created_at"`
}

// Stats aggregates stored runs for the stats endpoint.
type Stats struct {
	Total           int64          `json:"total"`
	Degraded        int64          `json:"degraded"`
	WithImage       int64          `json:"with_image"`
	AvgConfidence   float64        `json:"avg_confidence"`
	TopDiagnoses    map[string]int `json:"top_diagnoses"`
	StatusBreakdown map[string]int `json:"status_breakdown"`
}

// Open creates the store, migrating the schema on first use. The DSN enables
// WAL so HTTP reads do not block writes.
func Open(path string) (*AnalysisStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("store: path is empty")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	if err := db.AutoMigrate(&AnalysisModel{}); err != nil {
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL: a little parallelism for reads, low lock contention.
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &AnalysisStore{db: db}, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func (s *AnalysisStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Save records one completed run and returns its generated ID.
func (s *AnalysisStore) Save(ctx context.Context, in pipeline.CaseInput, result pipeline.PipelineResult, duration time.Duration) (string, error) {
	blob, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("store: encode result: %w", err)
	}
	m := AnalysisModel{
		ID:               uuid.NewString(),
		Description:      in.Description,
		HasImage:         in.HasImage(),
		DiagnosisStatus:  string(result.Diagnosis.Status),
		ValidationStatus: string(result.Validation.Status),
		AdvisoryStatus:   string(result.Advisory.Status),
		Diagnosis:        result.Diagnosis.Record.Diagnosis,
		Confidence:       result.Validation.Record.AdjustedConfidence,
		Result:           blob,
		DurationMs:       duration.Milliseconds(),
		CreatedAt:        time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return "", fmt.Errorf("store: save analysis: %w", err)
	}
	return m.ID, nil
}

// Get loads one run by ID.
func (s *AnalysisStore) Get(ctx context.Context, id string) (Analysis, error) {
	var m AnalysisModel
	err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Analysis{}, ErrNotFound
	}
	if err != nil {
		return Analysis{}, fmt.Errorf("store: get analysis: %w", err)
	}
	return toAnalysis(m)
}

// List returns the most recent runs, newest first.
func (s *AnalysisStore) List(ctx context.Context, limit int) ([]Analysis, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var models []AnalysisModel
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("store: list analyses: %w", err)
	}
	out := make([]Analysis, 0, len(models))
	for _, m := range models {
		a, err := toAnalysis(m)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// Stats aggregates over all stored runs.
func (s *AnalysisStore) Stats(ctx context.Context) (Stats, error) {
	db := s.db.WithContext(ctx)
	st := Stats{TopDiagnoses: map[string]int{}, StatusBreakdown: map[string]int{}}

	if err := db.Model(&AnalysisModel{}).Count(&st.Total).Error; err != nil {
		return Stats{}, fmt.Errorf("store: stats: %w", err)
	}
	if st.Total == 0 {
		return st, nil
	}
	if err := db.Model(&AnalysisModel{}).
		Where("diagnosis_status <> ? OR validation_status <> ? OR advisory_status <> ?",
			string(pipeline.StatusOk), string(pipeline.StatusOk), string(pipeline.StatusOk)).
		Count(&st.Degraded).Error; err != nil {
		return Stats{}, fmt.Errorf("store: stats: %w", err)
	}
	if err := db.Model(&AnalysisModel{}).Where("has_image = ?", true).Count(&st.WithImage).Error; err != nil {
		return Stats{}, fmt.Errorf("store: stats: %w", err)
	}
	var avg sql.NullFloat64
	if err := db.Model(&AnalysisModel{}).Select("AVG(confidence)").Scan(&avg).Error; err != nil {
		return Stats{}, fmt.Errorf("store: stats: %w", err)
	}
	if avg.Valid {
		st.AvgConfidence = avg.Float64
	}

	type row struct {
		Name  string
		Count int
	}
	var diagnoses []row
	if err := db.Model(&AnalysisModel{}).
		Select("diagnosis AS name, COUNT(*) AS count").
		Where("diagnosis <> ''").
		Group("diagnosis").
		Order("count DESC").
		Limit(10).
		Scan(&diagnoses).Error; err != nil {
		return Stats{}, fmt.Errorf("store: stats: %w", err)
	}
	for _, r := range diagnoses {
		st.TopDiagnoses[r.Name] = r.Count
	}

	var statuses []row
	if err := db.Model(&AnalysisModel{}).
		Select("diagnosis_status AS name, COUNT(*) AS count").
		Group("diagnosis_status").
		Scan(&statuses).Error; err != nil {
		return Stats{}, fmt.Errorf("store: stats: %w", err)
	}
	for _, r := range statuses {
		st.StatusBreakdown[r.Name] = r.Count
	}
	return st, nil
}

func toAnalysis(m AnalysisModel) (Analysis, error) {
	var result pipeline.PipelineResult
	if len(m.Result) > 0 {
		if err := json.Unmarshal(m.Result, &result); err != nil {
			return Analysis{}, fmt.Errorf("store: decode analysis %s: %w", m.ID, err)
		}
	}
	return Analysis{
		ID:          m.ID,
		Description: m.Description,
		HasImage:    m.HasImage,
		Result:      result,
		DurationMs:  m.DurationMs,
		CreatedAt:   m.CreatedAt,
	}, nil
}
