package provider

import (
	"context"
	"errors"

	"github.com/studygen/studygen/config"
	openrouter_provider "github.com/studygen/studygen/provider/openrouter"
)

// ErrNotConfigured is returned by New when no API credential is present.
// Callers treat it as a reason to serve fallback content, never as fatal.
var ErrNotConfigured = errors.New("text generation provider not configured")

// Params carries a single text-generation request.
type Params struct {
	Model       string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// TextGenerator is the interface all text-generation backends satisfy.
type TextGenerator interface {
	Generate(ctx context.Context, p Params) (string, error)
}

// New creates the OpenRouter-backed generator from config.
func New(cfg config.OpenRouterConfig) (TextGenerator, error) {
	if cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}
	c := openrouter_provider.NewClient(
		cfg.APIKey,
		cfg.BaseURL,
		cfg.Model,
		cfg.Temperature,
		cfg.MaxTokens,
		cfg.Timeout,
	)
	return openRouterGenerator{c: c}, nil
}

type openRouterGenerator struct {
	c *openrouter_provider.Client
}

func (g openRouterGenerator) Generate(ctx context.Context, p Params) (string, error) {
	return g.c.Complete(ctx, p.Model, p.Prompt, p.Temperature, p.MaxTokens)
}
