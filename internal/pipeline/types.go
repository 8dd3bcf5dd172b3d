package pipeline

import (
	"errors"
	"strings"
)

// ErrInvalidInput is the orchestrator's only hard failure: a case with nothing
// to analyze. Every other failure mode degrades into a fallback record.
var ErrInvalidInput = errors.New("invalid case input: empty description and no image")

// CaseInput is the immutable case a caller submits. All three stages read it;
// none mutates it.
type CaseInput struct {
	Description string
	Image       []byte
	ImageMIME   string
}

func (c CaseInput) HasImage() bool {
	return len(c.Image) > 0
}

func (c CaseInput) Validate() error {
	if strings.TrimSpace(c.Description) == "" && !c.HasImage() {
		return ErrInvalidInput
	}
	return nil
}

// DiagnosisRecord is the diagnoser's structured verdict. RawModelText always
// carries the unparsed model output, fallback or not.
type DiagnosisRecord struct {
	Diagnosis    string   `json:"diagnosis"`
	Confidence   float64  `json:"confidence"`
	Evidence     []string `json:"evidence"`
	RawModelText string   `json:"raw_model_text"`
}

// ValidationRecord is the validator's critique of the diagnosis.
type ValidationRecord struct {
	Agreement          string   `json:"agreement"` // agree | partial | disagree
	AdjustedConfidence float64  `json:"adjusted_confidence"`
	Concerns           []string `json:"concerns"`
	RawModelText       string   `json:"raw_model_text"`
}

// AdvisoryReport is the terminal artifact handed back to the caller.
type AdvisoryReport struct {
	Summary         string   `json:"summary"`
	Recommendations []string `json:"recommendations"`
	MonitoringPlan  string   `json:"monitoring_plan"`
	SafetyNotes     string   `json:"safety_notes"`
	RawModelText    string   `json:"raw_model_text"`
}

// Status tags how a stage's record came to be.
type Status string

const (
	// StatusOk: the model answered and its output validated.
	StatusOk Status = "ok"
	// StatusRecovered: the model answered but extraction failed; the record
	// is a fallback and Note names the extractor failure.
	StatusRecovered Status = "recovered"
	// StatusModelUnavailable: transport error or timeout; fallback record,
	// empty raw text.
	StatusModelUnavailable Status = "model_unavailable"
)

// Outcome wraps a stage result. A stage always returns one; errors never
// cross the stage boundary.
type Outcome[R any] struct {
	Status Status `json:"status"`
	Note   string `json:"note,omitempty"`
	Record R      `json:"record"`
}

func (o Outcome[R]) Degraded() bool {
	return o.Status != StatusOk
}

// PipelineResult is the complete three-part result of one run. It contains no
// timestamps or generated IDs so identical inputs against a deterministic
// model yield identical results.
type PipelineResult struct {
	Diagnosis  Outcome[DiagnosisRecord]  `json:"diagnosis"`
	Validation Outcome[ValidationRecord] `json:"validation"`
	Advisory   Outcome[AdvisoryReport]   `json:"advisory"`
}

// Statuses lists the per-stage outcome tags in pipeline order.
func (r PipelineResult) Statuses() [3]Status {
	return [3]Status{r.Diagnosis.Status, r.Validation.Status, r.Advisory.Status}
}

// Degraded reports whether any stage fell back.
func (r PipelineResult) Degraded() bool {
	return r.Diagnosis.Degraded() || r.Validation.Degraded() || r.Advisory.Degraded()
}
