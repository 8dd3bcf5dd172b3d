package config

import "strings"

// Config is the main configuration carrier for pestma.
type Config struct {
	App      AppConfig      `toml:"app"`
	Server   ServerConfig   `toml:"server"`
	Store    StoreConfig    `toml:"store"`
	Prompt   PromptConfig   `toml:"prompt"`
	Models   ModelsConfig   `toml:"models"`
	Pipeline PipelineConfig `toml:"pipeline"`
}

type AppConfig struct {
	Env          string `toml:"env"`
	LogLevel     string `toml:"log_level"`
	LogPath      string `toml:"log_path"`
	ExchangeLog  string `toml:"exchange_log_path"`
	ExchangeDump bool   `toml:"exchange_dump"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type StoreConfig struct {
	Path string `toml:"path"`
}

type PromptConfig struct {
	// OverridesPath points at an optional YAML file with per-role system
	// prompt overrides; watched for changes when set.
	OverridesPath string `toml:"overrides_path"`
}

// ModelsConfig binds an inference endpoint to each agent role. Default applies
// to any role without its own entry.
type ModelsConfig struct {
	Default   ModelConfig `toml:"default"`
	Diagnoser ModelConfig `toml:"diagnoser"`
	Validator ModelConfig `toml:"validator"`
	Advisor   ModelConfig `toml:"advisor"`
}

type ModelConfig struct {
	Provider       string            `toml:"provider"` // openai | ollama
	BaseURL        string            `toml:"base_url"`
	APIKey         string            `toml:"api_key"`
	Model          string            `toml:"model"`
	Headers        map[string]string `toml:"headers"`
	SupportsVision bool              `toml:"supports_vision"`
}

// ForRole returns the role-specific model entry merged over the default.
func (m ModelsConfig) ForRole(role string) ModelConfig {
	var specific ModelConfig
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "diagnoser":
		specific = m.Diagnoser
	case "validator":
		specific = m.Validator
	case "advisor":
		specific = m.Advisor
	}
	return mergeModel(m.Default, specific)
}

func mergeModel(base, over ModelConfig) ModelConfig {
	out := base
	if strings.TrimSpace(over.Provider) != "" {
		out.Provider = over.Provider
	}
	if strings.TrimSpace(over.BaseURL) != "" {
		out.BaseURL = over.BaseURL
	}
	if strings.TrimSpace(over.APIKey) != "" {
		out.APIKey = over.APIKey
	}
	if strings.TrimSpace(over.Model) != "" {
		out.Model = over.Model
	}
	if len(over.Headers) > 0 {
		out.Headers = over.Headers
	}
	if over.SupportsVision {
		out.SupportsVision = true
	}
	return out
}

type PipelineConfig struct {
	TimeoutSeconds int          `toml:"timeout_seconds"`
	Diagnoser      StageOptions `toml:"diagnoser"`
	Validator      StageOptions `toml:"validator"`
	Advisor        StageOptions `toml:"advisor"`
}

// StageOptions carries per-role sampling parameters passed through to the
// inference endpoint.
type StageOptions struct {
	Temperature float64 `toml:"temperature"`
	MaxTokens   int     `toml:"max_tokens"`
}
