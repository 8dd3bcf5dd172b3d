package provider

import (
	"context"
	"fmt"
	"strings"

	"pestma/internal/config"
)

type payloadCaller interface {
	CallWithPayload(ctx context.Context, payload ChatPayload) (string, error)
}

type clientProvider struct {
	id     string
	vision bool
	client payloadCaller
}

func (p *clientProvider) ID() string           { return p.id }
func (p *clientProvider) Enabled() bool        { return p.client != nil }
func (p *clientProvider) SupportsVision() bool { return p.vision }

func (p *clientProvider) Call(ctx context.Context, payload ChatPayload) (string, error) {
	if p.client == nil {
		return "", fmt.Errorf("%w: provider %s has no client", ErrTransport, p.id)
	}
	return p.client.CallWithPayload(ctx, payload)
}

// New wraps a caller into a ModelProvider; exported for stubbing in tests.
func New(id string, vision bool, client payloadCaller) ModelProvider {
	return &clientProvider{id: id, vision: vision, client: client}
}

// FromConfig builds the provider for one role's model entry.
func FromConfig(role string, mc config.ModelConfig) (ModelProvider, error) {
	id := fmt.Sprintf("%s:%s", role, mc.Model)
	switch strings.ToLower(strings.TrimSpace(mc.Provider)) {
	case "openai":
		return New(id, mc.SupportsVision, &OpenAIChatClient{
			BaseURL:      mc.BaseURL,
			APIKey:       mc.APIKey,
			Model:        mc.Model,
			ExtraHeaders: mc.Headers,
		}), nil
	case "ollama":
		return New(id, mc.SupportsVision, &OllamaClient{
			BaseURL: mc.BaseURL,
			Model:   mc.Model,
		}), nil
	default:
		return nil, fmt.Errorf("unknown provider %q for role %s", mc.Provider, role)
	}
}
