package config

const (
	defaultAppEnv       = "dev"
	defaultAppLogLevel  = "info"
	defaultServerAddr   = ":9980"
	defaultStorePath    = "data/analyses.db"
	defaultModelBaseURL = "http://localhost:11434"
	defaultProvider     = "ollama"
	defaultTimeoutSecs  = 120

	// Sampling defaults per role: the diagnoser runs cold for reproducible
	// forensic output, the validator and advisor slightly warmer.
	defaultDiagnoserTemp      = 0.05
	defaultDiagnoserMaxTokens = 500
	defaultValidatorTemp      = 0.2
	defaultValidatorMaxTokens = 400
	defaultAdvisorTemp        = 0.15
	defaultAdvisorMaxTokens   = 400
)

func (c *Config) applyDefaults() {
	c.App.applyDefaults()
	c.Server.applyDefaults()
	c.Store.applyDefaults()
	c.Models.applyDefaults()
	c.Pipeline.applyDefaults()
}

func (a *AppConfig) applyDefaults() {
	if a.Env == "" {
		a.Env = defaultAppEnv
	}
	if a.LogLevel == "" {
		a.LogLevel = defaultAppLogLevel
	}
}

func (s *ServerConfig) applyDefaults() {
	if s.Addr == "" {
		s.Addr = defaultServerAddr
	}
}

func (s *StoreConfig) applyDefaults() {
	if s.Path == "" {
		s.Path = defaultStorePath
	}
}

func (m *ModelsConfig) applyDefaults() {
	if m.Default.Provider == "" {
		m.Default.Provider = defaultProvider
	}
	if m.Default.BaseURL == "" {
		m.Default.BaseURL = defaultModelBaseURL
	}
}

func (p *PipelineConfig) applyDefaults() {
	if p.TimeoutSeconds == 0 {
		p.TimeoutSeconds = defaultTimeoutSecs
	}
	if p.Diagnoser.Temperature == 0 {
		p.Diagnoser.Temperature = defaultDiagnoserTemp
	}
	if p.Diagnoser.MaxTokens == 0 {
		p.Diagnoser.MaxTokens = defaultDiagnoserMaxTokens
	}
	if p.Validator.Temperature == 0 {
		p.Validator.Temperature = defaultValidatorTemp
	}
	if p.Validator.MaxTokens == 0 {
		p.Validator.MaxTokens = defaultValidatorMaxTokens
	}
	if p.Advisor.Temperature == 0 {
		p.Advisor.Temperature = defaultAdvisorTemp
	}
	if p.Advisor.MaxTokens == 0 {
		p.Advisor.MaxTokens = defaultAdvisorMaxTokens
	}
}
