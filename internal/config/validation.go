package config

import (
	"fmt"
	"strings"
)

func validate(c *Config) error {
	if err := c.Models.validate(); err != nil {
		return err
	}
	if err := c.Pipeline.validate(); err != nil {
		return err
	}
	return nil
}

func (m *ModelsConfig) validate() error {
	for _, role := range []string{"diagnoser", "validator", "advisor"} {
		mc := m.ForRole(role)
		if strings.TrimSpace(mc.Model) == "" {
			return fmt.Errorf("models.%s missing model (can inherit from models.default)", role)
		}
		if strings.TrimSpace(mc.BaseURL) == "" {
			return fmt.Errorf("models.%s missing base_url", role)
		}
		switch strings.ToLower(strings.TrimSpace(mc.Provider)) {
		case "openai", "ollama":
		default:
			return fmt.Errorf("models.%s has unknown provider %q (want openai or ollama)", role, mc.Provider)
		}
	}
	return nil
}

func (p *PipelineConfig) validate() error {
	if p.TimeoutSeconds < 0 {
		return fmt.Errorf("pipeline.timeout_seconds must be >= 0")
	}
	for role, opts := range map[string]StageOptions{
		"diagnoser": p.Diagnoser,
		"validator": p.Validator,
		"advisor":   p.Advisor,
	} {
		if opts.Temperature < 0 || opts.Temperature > 2 {
			return fmt.Errorf("pipeline.%s.temperature out of range [0,2]", role)
		}
		if opts.MaxTokens < 0 {
			return fmt.Errorf("pipeline.%s.max_tokens must be >= 0", role)
		}
	}
	return nil
}
