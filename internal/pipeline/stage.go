package pipeline

import (
	"context"
	"fmt"
	"time"

	"pestma/internal/config"
	"pestma/internal/extract"
	"pestma/internal/logger"
	"pestma/internal/provider"
)

// StageInputs carries everything a role's prompt builder may read. Later
// stages see earlier records regardless of how degraded those records are.
type StageInputs struct {
	Case       CaseInput
	Diagnosis  DiagnosisRecord
	Validation ValidationRecord
	System     string
}

// Stage binds one role to a provider, a schema, and the functions that build
// its prompt, decode its output, and fabricate its fallback. Run never
// returns an error: every failure path terminates in an Outcome.
type Stage[R any] struct {
	Role     Role
	Provider provider.ModelProvider
	Schema   extract.Schema
	Options  config.StageOptions
	Timeout  time.Duration

	BuildPrompt func(in StageInputs) provider.ChatPayload
	Decode      func(d *extract.Decoded, raw string) R
	Fallback    func(raw string) R
}

func (s Stage[R]) Run(ctx context.Context, in StageInputs) Outcome[R] {
	payload := s.BuildPrompt(in)
	payload.System = in.System
	payload.Temperature = s.Options.Temperature
	payload.MaxTokens = s.Options.MaxTokens

	callCtx := ctx
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	logger.LogStageRequest(string(s.Role), s.Provider.ID(), payload.System, payload.User, len(payload.Images))
	raw, err := s.Provider.Call(callCtx, payload)
	if err != nil {
		note := fmt.Sprintf("%s stage could not complete: model unavailable (%v)", s.Role, err)
		logger.Warnf("stage %s: %s", s.Role, note)
		return Outcome[R]{Status: StatusModelUnavailable, Note: note, Record: s.Fallback("")}
	}
	logger.LogStageResponse(string(s.Role), s.Provider.ID(), raw)

	decoded, perr := extract.Parse(raw, s.Schema)
	if perr != nil {
		note := fmt.Sprintf("%s output rejected (%s): %v", s.Role, extract.KindOf(perr), perr)
		logger.Warnf("stage %s: %s; raw snippet: %q", s.Role, note, snippet(raw, 160))
		return Outcome[R]{Status: StatusRecovered, Note: note, Record: s.Fallback(raw)}
	}
	return Outcome[R]{Status: StatusOk, Record: s.Decode(decoded, raw)}
}

func snippet(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
