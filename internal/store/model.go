package store

import (
	"time"

	"gorm.io/datatypes"
)

// AnalysisModel is the persisted form of one pipeline run. The three outcome
// statuses are lifted into columns so stats queries never parse JSON; the full
// PipelineResult lives in Result.
type AnalysisModel struct {
	ID               string         `gorm:"primaryKey;size:36"`
	Description      string         `gorm:"type:text"`
	HasImage         bool           `gorm:"index"`
	DiagnosisStatus  string         `gorm:"size:32;index"`
	ValidationStatus string         `gorm:"size:32"`
	AdvisoryStatus   string         `gorm:"size:32"`
	Diagnosis        string         `gorm:"size:256"`
	Confidence       float64
	Result           datatypes.JSON `gorm:"type:json"`
	DurationMs       int64
	CreatedAt        time.Time `gorm:"index"`
}

func (AnalysisModel) TableName() string { return "analyses" }
