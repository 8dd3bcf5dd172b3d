package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"
)

// User prompt assembly. System prompts come from the prompt registry; the
// builders here only lay out the case material each role consumes. Prior
// records are embedded as indented JSON without raw_model_text, which would
// bloat the context without informing the next agent.

func diagnoserUserPrompt(c CaseInput, imageAttached bool) string {
	var b strings.Builder
	b.WriteString("FORENSIC PLANT ANALYSIS\n\n")
	fmt.Fprintf(&b, "PROBLEM: %s\n", strings.TrimSpace(c.Description))
	if imageAttached {
		b.WriteString("IMAGE PROVIDED: yes - analyze the visual evidence\n")
	} else if c.HasImage() {
		b.WriteString("IMAGE PROVIDED: yes, but this endpoint is text-only; note the missing visual evidence\n")
	} else {
		b.WriteString("IMAGE PROVIDED: no - text-only analysis\n")
	}
	return b.String()
}

func validatorUserPrompt(c CaseInput, diag DiagnosisRecord) string {
	var b strings.Builder
	b.WriteString("PEER REVIEW CHALLENGE\n\n")
	fmt.Fprintf(&b, "ORIGINAL PROBLEM: %s\n\n", strings.TrimSpace(c.Description))
	b.WriteString("DIAGNOSER OUTPUT:\n")
	b.WriteString(promptJSON(diagnosisView(diag)))
	b.WriteString("\n\nChallenge every aspect of this diagnosis with scientific skepticism.\n")
	return b.String()
}

func advisorUserPrompt(c CaseInput, diag DiagnosisRecord, val ValidationRecord) string {
	var b strings.Builder
	b.WriteString("EXTENSION CONSULTATION\n\n")
	fmt.Fprintf(&b, "GROWER'S PROBLEM: %s\n\n", strings.TrimSpace(c.Description))
	b.WriteString("DIAGNOSIS:\n")
	b.WriteString(promptJSON(diagnosisView(diag)))
	b.WriteString("\n\nPEER REVIEW:\n")
	b.WriteString(promptJSON(validationView(val)))
	b.WriteString("\n\nProvide practical, evidence-based recommendations considering both analyses.\n")
	return b.String()
}

type diagnosisPromptView struct {
	Diagnosis  string   `json:"diagnosis"`
	Confidence float64  `json:"confidence"`
	Evidence   []string `json:"evidence"`
}

type validationPromptView struct {
	Agreement          string   `json:"agreement"`
	AdjustedConfidence float64  `json:"adjusted_confidence"`
	Concerns           []string `json:"concerns"`
}

func diagnosisView(r DiagnosisRecord) diagnosisPromptView {
	return diagnosisPromptView{Diagnosis: r.Diagnosis, Confidence: r.Confidence, Evidence: r.Evidence}
}

func validationView(r ValidationRecord) validationPromptView {
	return validationPromptView{Agreement: r.Agreement, AdjustedConfidence: r.AdjustedConfidence, Concerns: r.Concerns}
}

func promptJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}
