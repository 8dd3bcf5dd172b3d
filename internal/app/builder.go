package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"pestma/internal/config"
	"pestma/internal/logger"
	"pestma/internal/pipeline"
	promptkit "pestma/internal/prompt"
	"pestma/internal/provider"
	"pestma/internal/store"
	apihttp "pestma/internal/transport/http"
)

// AppBuilder assembles the application. The constructor functions are fields
// so tests can swap in stub providers or an in-memory store.
type AppBuilder struct {
	cfg *config.Config

	providersFn func(*config.Config) (map[pipeline.Role]provider.ModelProvider, error)
	storeFn     func(string) (*store.AnalysisStore, error)
}

type AppBuilderOption func(*AppBuilder)

func WithProviders(fn func(*config.Config) (map[pipeline.Role]provider.ModelProvider, error)) AppBuilderOption {
	return func(b *AppBuilder) { b.providersFn = fn }
}

func WithStore(fn func(string) (*store.AnalysisStore, error)) AppBuilderOption {
	return func(b *AppBuilder) { b.storeFn = fn }
}

func NewAppBuilder(cfg *config.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:         cfg,
		providersFn: buildProviders,
		storeFn:     store.Open,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func buildProviders(cfg *config.Config) (map[pipeline.Role]provider.ModelProvider, error) {
	providers := make(map[pipeline.Role]provider.ModelProvider, len(pipeline.Roles))
	for _, role := range pipeline.Roles {
		p, err := provider.FromConfig(string(role), cfg.Models.ForRole(string(role)))
		if err != nil {
			return nil, err
		}
		providers[role] = p
		logger.Infof("provider ready for %s: %s", role, p.ID())
	}
	return providers, nil
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := b.cfg
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}

	a := &App{cfg: cfg}

	if cfg.App.ExchangeDump {
		if err := setupExchangeDump(a, cfg.App.ExchangeLog); err != nil {
			return nil, err
		}
	}

	registry := promptkit.NewRegistry()
	if cfg.Prompt.OverridesPath != "" {
		if err := registry.LoadOverrides(cfg.Prompt.OverridesPath); err != nil {
			return nil, err
		}
		if err := registry.Watch(); err != nil {
			logger.Warnf("prompt hot reload disabled: %v", err)
		}
	}
	a.prompts = registry

	providers, err := b.providersFn(cfg)
	if err != nil {
		return nil, err
	}
	a.orchestrator = pipeline.New(cfg, providers, registry)

	if cfg.Store.Path != "" {
		st, err := b.storeFn(cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		a.store = st
	}

	server, err := apihttp.NewServer(apihttp.ServerConfig{
		Addr:     cfg.Server.Addr,
		Analyzer: a.orchestrator,
		Store:    a.store,
	})
	if err != nil {
		return nil, err
	}
	a.server = server
	return a, nil
}

// Wire providers. Kept outside the build-tagged files so both the generator
// input (wire.go) and the generated output (wire_gen.go) can see them.

type appBuilderDeps interface {
	Build(context.Context) (*App, error)
}

func provideAppFromBuilder(b appBuilderDeps, ctx context.Context) (*App, error) {
	return b.Build(ctx)
}

func provideAppBuilder(cfg *config.Config) *AppBuilder {
	return NewAppBuilder(cfg)
}

func setupExchangeDump(a *App, path string) error {
	if path == "" {
		path = "logs/exchanges.log"
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("exchange log dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("exchange log: %w", err)
	}
	logger.SetExchangeWriter(f)
	logger.EnableExchangeDump(true)
	a.exchangeFile = f
	return nil
}
