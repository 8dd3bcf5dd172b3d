package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pestma/internal/config"
	"pestma/internal/provider"
)

type stubProvider struct {
	id     string
	vision bool
	calls  []provider.ChatPayload
	reply  func(p provider.ChatPayload) (string, error)
}

func (s *stubProvider) ID() string           { return s.id }
func (s *stubProvider) Enabled() bool        { return true }
func (s *stubProvider) SupportsVision() bool { return s.vision }

func (s *stubProvider) Call(_ context.Context, p provider.ChatPayload) (string, error) {
	s.calls = append(s.calls, p)
	return s.reply(p)
}

type staticPrompts map[string]string

func (m staticPrompts) System(role string) string { return m[role] }

func fixedReply(raw string) func(provider.ChatPayload) (string, error) {
	return func(provider.ChatPayload) (string, error) { return raw, nil }
}

const (
	goodDiagnosis  = `{"diagnosis": "tomato leaf rust", "confidence": 0.85, "evidence": ["orange pustules", "lower leaves first"]}`
	goodValidation = `{"agreement": "agree", "adjusted_confidence": 0.8, "concerns": ["could be early blight"]}`
	goodAdvisory   = `{"summary": "Likely rust.", "recommendations": ["remove affected leaves", "improve airflow"], "monitoring_plan": "recheck weekly", "safety_notes": "wear gloves"}`
)

func testOrchestrator(diag, val, adv *stubProvider) *Orchestrator {
	cfg := config.Default()
	providers := map[Role]provider.ModelProvider{
		RoleDiagnoser: diag,
		RoleValidator: val,
		RoleAdvisor:   adv,
	}
	prompts := staticPrompts{
		"diagnoser": "diagnoser system",
		"validator": "validator system",
		"advisor":   "advisor system",
	}
	return New(cfg, providers, prompts)
}

func TestRunHappyPath(t *testing.T) {
	diag := &stubProvider{id: "diagnoser:test", reply: fixedReply(goodDiagnosis)}
	val := &stubProvider{id: "validator:test", reply: fixedReply(goodValidation)}
	adv := &stubProvider{id: "advisor:test", reply: fixedReply(goodAdvisory)}
	o := testOrchestrator(diag, val, adv)

	result, err := o.Run(context.Background(), CaseInput{Description: "wilting leaves with orange spots"})
	require.NoError(t, err)

	assert.Equal(t, [3]Status{StatusOk, StatusOk, StatusOk}, result.Statuses())
	assert.False(t, result.Degraded())
	assert.Equal(t, "tomato leaf rust", result.Diagnosis.Record.Diagnosis)
	assert.InDelta(t, 0.85, result.Diagnosis.Record.Confidence, 1e-9)
	assert.Equal(t, "agree", result.Validation.Record.Agreement)
	assert.Equal(t, "Likely rust.", result.Advisory.Record.Summary)
	assert.Equal(t, goodAdvisory, result.Advisory.Record.RawModelText)

	// Each stage sees its own system prompt and the case description.
	require.Len(t, diag.calls, 1)
	assert.Equal(t, "diagnoser system", diag.calls[0].System)
	assert.Contains(t, diag.calls[0].User, "wilting leaves with orange spots")
	require.Len(t, val.calls, 1)
	assert.Contains(t, val.calls[0].User, "tomato leaf rust")
	require.Len(t, adv.calls, 1)
	assert.Contains(t, adv.calls[0].User, "tomato leaf rust")
	assert.Contains(t, adv.calls[0].User, "agree")
}

func TestRunRejectsEmptyInput(t *testing.T) {
	diag := &stubProvider{id: "d", reply: fixedReply(goodDiagnosis)}
	o := testOrchestrator(diag, diag, diag)

	_, err := o.Run(context.Background(), CaseInput{Description: "   "})
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.Empty(t, diag.calls, "no model should be called for an invalid case")
}

func TestRunMinimalDescriptionProceeds(t *testing.T) {
	diag := &stubProvider{id: "d", reply: fixedReply(goodDiagnosis)}
	val := &stubProvider{id: "v", reply: fixedReply(goodValidation)}
	adv := &stubProvider{id: "a", reply: fixedReply(goodAdvisory)}
	o := testOrchestrator(diag, val, adv)

	result, err := o.Run(context.Background(), CaseInput{Description: "wilting leaves"})
	require.NoError(t, err)
	assert.False(t, result.Degraded())
}

func TestRunDiagnoserUnavailable(t *testing.T) {
	diag := &stubProvider{id: "d", reply: func(provider.ChatPayload) (string, error) {
		return "", errors.New("connection refused")
	}}
	val := &stubProvider{id: "v", reply: fixedReply(goodValidation)}
	adv := &stubProvider{id: "a", reply: fixedReply(goodAdvisory)}
	o := testOrchestrator(diag, val, adv)

	result, err := o.Run(context.Background(), CaseInput{Description: "yellowing leaves"})
	require.NoError(t, err, "stage failures must not surface as errors")

	assert.Equal(t, StatusModelUnavailable, result.Diagnosis.Status)
	assert.Contains(t, result.Diagnosis.Note, "model unavailable")
	assert.Equal(t, "diagnosis unavailable", result.Diagnosis.Record.Diagnosis)
	assert.Zero(t, result.Diagnosis.Record.Confidence)
	assert.Empty(t, result.Diagnosis.Record.RawModelText)

	// Later stages still ran, fed the fallback record.
	assert.Equal(t, StatusOk, result.Validation.Status)
	require.Len(t, val.calls, 1)
	assert.Contains(t, val.calls[0].User, "diagnosis unavailable")
	assert.Equal(t, StatusOk, result.Advisory.Status)
}

func TestRunRecoversFromBadJSON(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		kind string
	}{
		{"no json", "I refuse to answer in JSON today.", "no_json_found"},
		{"malformed", "{]]{{", "malformed_json"},
		{"schema violation", `{"verdict": "rust"}`, "schema_violation"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			diag := &stubProvider{id: "d", reply: fixedReply(tc.raw)}
			val := &stubProvider{id: "v", reply: fixedReply(goodValidation)}
			adv := &stubProvider{id: "a", reply: fixedReply(goodAdvisory)}
			o := testOrchestrator(diag, val, adv)

			result, err := o.Run(context.Background(), CaseInput{Description: "spots"})
			require.NoError(t, err)

			assert.Equal(t, StatusRecovered, result.Diagnosis.Status)
			assert.Contains(t, result.Diagnosis.Note, tc.kind)
			assert.Equal(t, "diagnosis unavailable", result.Diagnosis.Record.Diagnosis)
			assert.Equal(t, tc.raw, result.Diagnosis.Record.RawModelText,
				"fallback keeps the raw text for auditing")
			assert.True(t, result.Degraded())
		})
	}
}

func TestRunAllStagesDown(t *testing.T) {
	down := func(provider.ChatPayload) (string, error) { return "", errors.New("down") }
	diag := &stubProvider{id: "d", reply: down}
	val := &stubProvider{id: "v", reply: down}
	adv := &stubProvider{id: "a", reply: down}
	o := testOrchestrator(diag, val, adv)

	result, err := o.Run(context.Background(), CaseInput{Description: "spots"})
	require.NoError(t, err)
	assert.Equal(t, [3]Status{StatusModelUnavailable, StatusModelUnavailable, StatusModelUnavailable}, result.Statuses())
	assert.Equal(t, "partial", result.Validation.Record.Agreement)
	assert.Contains(t, result.Advisory.Record.SafetyNotes, "extension service")
}

func TestRunConfidenceClamped(t *testing.T) {
	diag := &stubProvider{id: "d", reply: fixedReply(`{"diagnosis": "rust", "confidence": 1.7, "evidence": []}`)}
	val := &stubProvider{id: "v", reply: fixedReply(`{"agreement": "partial", "adjusted_confidence": -0.3, "concerns": []}`)}
	adv := &stubProvider{id: "a", reply: fixedReply(goodAdvisory)}
	o := testOrchestrator(diag, val, adv)

	result, err := o.Run(context.Background(), CaseInput{Description: "spots"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, result.Diagnosis.Record.Confidence)
	assert.Equal(t, 0.0, result.Validation.Record.AdjustedConfidence)
}

func TestRunImageAttachment(t *testing.T) {
	img := []byte{0xFF, 0xD8, 0xFF}

	t.Run("vision provider gets the image", func(t *testing.T) {
		diag := &stubProvider{id: "d", vision: true, reply: fixedReply(goodDiagnosis)}
		val := &stubProvider{id: "v", reply: fixedReply(goodValidation)}
		adv := &stubProvider{id: "a", reply: fixedReply(goodAdvisory)}
		o := testOrchestrator(diag, val, adv)

		_, err := o.Run(context.Background(), CaseInput{Description: "spots", Image: img, ImageMIME: "image/jpeg"})
		require.NoError(t, err)
		require.Len(t, diag.calls, 1)
		require.Len(t, diag.calls[0].Images, 1)
		assert.Equal(t, img, diag.calls[0].Images[0].Bytes)
		assert.Contains(t, diag.calls[0].User, "IMAGE PROVIDED: yes")
		// The image never travels past the diagnoser.
		assert.Empty(t, val.calls[0].Images)
		assert.Empty(t, adv.calls[0].Images)
	})

	t.Run("text-only provider gets a note instead", func(t *testing.T) {
		diag := &stubProvider{id: "d", vision: false, reply: fixedReply(goodDiagnosis)}
		val := &stubProvider{id: "v", reply: fixedReply(goodValidation)}
		adv := &stubProvider{id: "a", reply: fixedReply(goodAdvisory)}
		o := testOrchestrator(diag, val, adv)

		_, err := o.Run(context.Background(), CaseInput{Description: "spots", Image: img})
		require.NoError(t, err)
		require.Len(t, diag.calls, 1)
		assert.Empty(t, diag.calls[0].Images)
		assert.Contains(t, diag.calls[0].User, "text-only")
	})
}

func TestRunIsIdempotent(t *testing.T) {
	mk := func() *Orchestrator {
		return testOrchestrator(
			&stubProvider{id: "d", reply: fixedReply(goodDiagnosis)},
			&stubProvider{id: "v", reply: fixedReply(goodValidation)},
			&stubProvider{id: "a", reply: fixedReply(goodAdvisory)},
		)
	}
	in := CaseInput{Description: "orange spots on tomato leaves"}

	first, err := mk().Run(context.Background(), in)
	require.NoError(t, err)
	second, err := mk().Run(context.Background(), in)
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b), "same input and model behavior must give byte-identical results")
}

func TestRunStageOptionsApplied(t *testing.T) {
	diag := &stubProvider{id: "d", reply: fixedReply(goodDiagnosis)}
	val := &stubProvider{id: "v", reply: fixedReply(goodValidation)}
	adv := &stubProvider{id: "a", reply: fixedReply(goodAdvisory)}
	o := testOrchestrator(diag, val, adv)

	_, err := o.Run(context.Background(), CaseInput{Description: "spots"})
	require.NoError(t, err)

	assert.InDelta(t, 0.05, diag.calls[0].Temperature, 1e-9)
	assert.Equal(t, 500, diag.calls[0].MaxTokens)
	assert.InDelta(t, 0.2, val.calls[0].Temperature, 1e-9)
	assert.Equal(t, 400, val.calls[0].MaxTokens)
	assert.InDelta(t, 0.15, adv.calls[0].Temperature, 1e-9)
	assert.Equal(t, 400, adv.calls[0].MaxTokens)
}

func TestValidatorPromptExcludesRawText(t *testing.T) {
	diag := &stubProvider{id: "d", reply: fixedReply(goodDiagnosis)}
	val := &stubProvider{id: "v", reply: fixedReply(goodValidation)}
	adv := &stubProvider{id: "a", reply: fixedReply(goodAdvisory)}
	o := testOrchestrator(diag, val, adv)

	_, err := o.Run(context.Background(), CaseInput{Description: "spots"})
	require.NoError(t, err)
	assert.False(t, strings.Contains(val.calls[0].User, "raw_model_text"))
}
