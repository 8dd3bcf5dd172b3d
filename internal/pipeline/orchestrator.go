package pipeline

import (
	"context"
	"fmt"
	"time"

	"pestma/internal/config"
	"pestma/internal/logger"
	"pestma/internal/provider"
)

// PromptSource resolves the system prompt for a role. Satisfied by the prompt
// registry; tests pass a literal map.
type PromptSource interface {
	System(role string) string
}

type runState int

const (
	stateAwaitingDiagnosis runState = iota
	stateAwaitingValidation
	stateAwaitingAdvice
	stateComplete
)

func (s runState) String() string {
	switch s {
	case stateAwaitingDiagnosis:
		return "awaiting_diagnosis"
	case stateAwaitingValidation:
		return "awaiting_validation"
	case stateAwaitingAdvice:
		return "awaiting_advice"
	case stateComplete:
		return "complete"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Orchestrator sequences the three stages. It holds no per-run state: one
// CaseInput maps to one full pass through the state machine, and concurrent
// runs share nothing but the providers underneath.
type Orchestrator struct {
	prompts   PromptSource
	diagnoser Stage[DiagnosisRecord]
	validator Stage[ValidationRecord]
	advisor   Stage[AdvisoryReport]
}

// New wires the fixed three-stage pipeline from config and per-role providers.
func New(cfg *config.Config, providers map[Role]provider.ModelProvider, prompts PromptSource) *Orchestrator {
	timeout := time.Duration(cfg.Pipeline.TimeoutSeconds) * time.Second

	diagProvider := providers[RoleDiagnoser]
	o := &Orchestrator{prompts: prompts}
	o.diagnoser = Stage[DiagnosisRecord]{
		Role:     RoleDiagnoser,
		Provider: diagProvider,
		Schema:   diagnosisSchema,
		Options:  cfg.Pipeline.Diagnoser,
		Timeout:  timeout,
		BuildPrompt: func(in StageInputs) provider.ChatPayload {
			attach := in.Case.HasImage() && diagProvider.SupportsVision()
			payload := provider.ChatPayload{User: diagnoserUserPrompt(in.Case, attach)}
			if attach {
				payload.Images = []provider.ImagePayload{{MIME: in.Case.ImageMIME, Bytes: in.Case.Image}}
			}
			return payload
		},
		Decode:   decodeDiagnosis,
		Fallback: fallbackDiagnosis,
	}
	o.validator = Stage[ValidationRecord]{
		Role:     RoleValidator,
		Provider: providers[RoleValidator],
		Schema:   validationSchema,
		Options:  cfg.Pipeline.Validator,
		Timeout:  timeout,
		BuildPrompt: func(in StageInputs) provider.ChatPayload {
			return provider.ChatPayload{User: validatorUserPrompt(in.Case, in.Diagnosis)}
		},
		Decode:   decodeValidation,
		Fallback: fallbackValidation,
	}
	o.advisor = Stage[AdvisoryReport]{
		Role:     RoleAdvisor,
		Provider: providers[RoleAdvisor],
		Schema:   advisorySchema,
		Options:  cfg.Pipeline.Advisor,
		Timeout:  timeout,
		BuildPrompt: func(in StageInputs) provider.ChatPayload {
			return provider.ChatPayload{User: advisorUserPrompt(in.Case, in.Diagnosis, in.Validation)}
		},
		Decode:   decodeAdvisory,
		Fallback: fallbackAdvisory,
	}
	return o
}

// Run executes one case through the pipeline. The only error it can return is
// ErrInvalidInput, raised before the state machine starts; degraded stages
// surface through outcome tags, never as errors. A degraded record is still
// threaded into the next stage: even a fallback diagnosis gives the validator
// something concrete to critique.
func (o *Orchestrator) Run(ctx context.Context, in CaseInput) (PipelineResult, error) {
	if err := in.Validate(); err != nil {
		return PipelineResult{}, err
	}

	var result PipelineResult
	inputs := StageInputs{Case: in}

	for st := stateAwaitingDiagnosis; st != stateComplete; {
		logger.Debugf("pipeline state: %s", st)
		switch st {
		case stateAwaitingDiagnosis:
			inputs.System = o.prompts.System(string(RoleDiagnoser))
			result.Diagnosis = o.diagnoser.Run(ctx, inputs)
			inputs.Diagnosis = result.Diagnosis.Record
			st = stateAwaitingValidation
		case stateAwaitingValidation:
			inputs.System = o.prompts.System(string(RoleValidator))
			result.Validation = o.validator.Run(ctx, inputs)
			inputs.Validation = result.Validation.Record
			st = stateAwaitingAdvice
		case stateAwaitingAdvice:
			inputs.System = o.prompts.System(string(RoleAdvisor))
			result.Advisory = o.advisor.Run(ctx, inputs)
			st = stateComplete
		}
	}

	logger.Infof("pipeline complete: diagnosis=%s validation=%s advisory=%s",
		result.Diagnosis.Status, result.Validation.Status, result.Advisory.Status)
	return result, nil
}
