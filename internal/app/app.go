package app

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"pestma/internal/config"
	"pestma/internal/logger"
	"pestma/internal/pipeline"
	"pestma/internal/prompt"
	"pestma/internal/store"
	apihttp "pestma/internal/transport/http"
)

// App holds the assembled service: prompt registry, orchestrator, store and
// HTTP server, ready to run or to drive directly from the CLI.
type App struct {
	cfg          *config.Config
	prompts      *prompt.Registry
	orchestrator *pipeline.Orchestrator
	store        *store.AnalysisStore
	server       *apihttp.Server

	exchangeFile io.Closer
}

// NewApp builds the application from config without starting it.
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// Run serves HTTP until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.server == nil {
		return fmt.Errorf("app not initialized")
	}
	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := a.server.Start(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})
	return group.Wait()
}

// Orchestrator exposes the pipeline for CLI use.
func (a *App) Orchestrator() *pipeline.Orchestrator {
	if a == nil {
		return nil
	}
	return a.orchestrator
}

// Store exposes the analysis store for CLI use. May be nil when persistence
// is disabled.
func (a *App) Store() *store.AnalysisStore {
	if a == nil {
		return nil
	}
	return a.store
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.prompts != nil {
		a.prompts.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
	if a.exchangeFile != nil {
		_ = a.exchangeFile.Close()
	}
}
