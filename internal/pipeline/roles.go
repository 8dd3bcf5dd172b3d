package pipeline

import "pestma/internal/extract"

// Role enumerates the three agents. A closed set: adding a role means adding
// a schema, a prompt builder and a fallback, not registering a plugin.
type Role string

const (
	RoleDiagnoser Role = "diagnoser"
	RoleValidator Role = "validator"
	RoleAdvisor   Role = "advisor"
)

var Roles = []Role{RoleDiagnoser, RoleValidator, RoleAdvisor}

var diagnosisSchema = extract.MustSchema("diagnosis",
	extract.Field{Name: "diagnosis", Kind: extract.FieldText, Required: true},
	extract.Field{Name: "confidence", Kind: extract.FieldNumber, Required: true, Min: 0, Max: 1},
	extract.Field{Name: "evidence", Kind: extract.FieldTextList},
)

var validationSchema = extract.MustSchema("validation",
	extract.Field{Name: "agreement", Kind: extract.FieldText, Required: true, Enum: []string{"agree", "partial", "disagree"}},
	extract.Field{Name: "adjusted_confidence", Kind: extract.FieldNumber, Required: true, Min: 0, Max: 1},
	extract.Field{Name: "concerns", Kind: extract.FieldTextList},
)

var advisorySchema = extract.MustSchema("advisory",
	extract.Field{Name: "summary", Kind: extract.FieldText, Required: true},
	extract.Field{Name: "recommendations", Kind: extract.FieldTextList},
	extract.Field{Name: "monitoring_plan", Kind: extract.FieldText},
	extract.Field{Name: "safety_notes", Kind: extract.FieldText},
)

func decodeDiagnosis(d *extract.Decoded, raw string) DiagnosisRecord {
	return DiagnosisRecord{
		Diagnosis:    d.Text("diagnosis"),
		Confidence:   d.Number("confidence"),
		Evidence:     d.TextList("evidence"),
		RawModelText: raw,
	}
}

func decodeValidation(d *extract.Decoded, raw string) ValidationRecord {
	return ValidationRecord{
		Agreement:          d.Text("agreement"),
		AdjustedConfidence: d.Number("adjusted_confidence"),
		Concerns:           d.TextList("concerns"),
		RawModelText:       raw,
	}
}

func decodeAdvisory(d *extract.Decoded, raw string) AdvisoryReport {
	return AdvisoryReport{
		Summary:         d.Text("summary"),
		Recommendations: d.TextList("recommendations"),
		MonitoringPlan:  d.Text("monitoring_plan"),
		SafetyNotes:     d.Text("safety_notes"),
		RawModelText:    raw,
	}
}

// Fallback records: structurally valid, semantically neutral. Confidence zero,
// agreement "partial" (neither endorsing nor rejecting a diagnosis the
// validator never judged), and advice that only points at a human expert.

func fallbackDiagnosis(raw string) DiagnosisRecord {
	return DiagnosisRecord{
		Diagnosis:    "diagnosis unavailable",
		Confidence:   0,
		Evidence:     []string{},
		RawModelText: raw,
	}
}

func fallbackValidation(raw string) ValidationRecord {
	return ValidationRecord{
		Agreement:          "partial",
		AdjustedConfidence: 0,
		Concerns:           []string{},
		RawModelText:       raw,
	}
}

func fallbackAdvisory(raw string) AdvisoryReport {
	return AdvisoryReport{
		Summary:         "advisory unavailable; this stage could not complete",
		Recommendations: []string{},
		MonitoringPlan:  "",
		SafetyNotes:     "Automated advice could not be produced for this case. Consult a local plant clinic or extension service before applying any treatment.",
		RawModelText:    raw,
	}
}
