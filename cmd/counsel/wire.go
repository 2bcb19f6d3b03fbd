package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MikeSquared-Agency/counsel/internal/agents"
	"github.com/MikeSquared-Agency/counsel/internal/cache"
	"github.com/MikeSquared-Agency/counsel/internal/config"
	"github.com/MikeSquared-Agency/counsel/internal/llm"
	"github.com/MikeSquared-Agency/counsel/internal/orchestrator"
	"github.com/MikeSquared-Agency/counsel/internal/parser"
	"github.com/MikeSquared-Agency/counsel/internal/prompts"
	"github.com/MikeSquared-Agency/counsel/internal/quality"
	"github.com/MikeSquared-Agency/counsel/internal/routing"
	"github.com/MikeSquared-Agency/counsel/internal/synthesis"
)

// engine is everything a pipeline run needs, minus the outer surfaces.
type engine struct {
	cache    *cache.Cache
	registry *llm.Registry
	models   *routing.ModelRouter
	deps     orchestrator.Deps
}

func buildEngine(ctx context.Context, cfg config.Config, logger *slog.Logger) (*engine, error) {
	store := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPass, DB: cfg.RedisDB}, logger)

	var providers []llm.Provider
	if cfg.AnthropicAPIKey != "" {
		providers = append(providers, llm.NewAnthropicProvider(cfg.AnthropicAPIKey, cfg.AnthropicBaseURL))
	}
	if cfg.GoogleAPIKey != "" {
		providers = append(providers, llm.NewGeminiProvider(cfg.GoogleAPIKey, cfg.GeminiBaseURL))
	}
	if !cfg.SkipLocal {
		providers = append(providers, llm.NewOllamaProvider(llm.OllamaConfig{
			BaseURL:           cfg.OllamaURL,
			RequestsPerSecond: cfg.OllamaRPS,
		}))
	}
	registry := llm.NewRegistry(providers...)
	if !registry.Has(llm.KindAnthropic) && !registry.Has(llm.KindGemini) {
		return nil, fmt.Errorf("no cloud provider configured: set ANTHROPIC_API_KEY or GOOGLE_API_KEY")
	}
	logger.Info("providers ready", "kinds", registry.Kinds())

	models := routing.NewModelRouter(cfg.Catalog, registry, logger)
	for agent, model := range cfg.Pins {
		if err := models.Pin(agent, model); err != nil {
			return nil, err
		}
	}

	loader := prompts.NewLoader(cfg.PromptsDir, store, logger)
	p := parser.New(parserProvider(cfg, registry, models, logger), parserModel(cfg, models), logger)

	specialists := agents.NewSpecialists(registry, models, p, loader, store, logger)

	return &engine{
		cache:    store,
		registry: registry,
		models:   models,
		deps: orchestrator.Deps{
			AgentRouter: routing.NewAgentRouter(nil, logger),
			Executor:    agents.NewExecutor(specialists, logger),
			Synthesizer: synthesis.New(registry, models, loader, store, cfg.SynthesisModel, logger),
			Gates:       quality.NewGates(cfg.TimeLimit, logger),
			Marker:      quality.NewMarker(logger),
		},
	}, nil
}

// parserProvider returns the provider behind the parser model, or nil when
// it is not configured, in which case every parse falls back.
func parserProvider(cfg config.Config, registry *llm.Registry, models *routing.ModelRouter, logger *slog.Logger) llm.Provider {
	spec, ok := models.Spec(cfg.ParserModel)
	if !ok {
		logger.Warn("unknown parser model, structured extraction disabled", "model", cfg.ParserModel)
		return nil
	}
	p, err := registry.Get(spec.Provider)
	if err != nil {
		logger.Warn("parser provider unavailable, structured extraction disabled", "model", cfg.ParserModel, "error", err)
		return nil
	}
	return p
}

// parserModel maps the catalog's local entry onto the model actually pulled
// into the Ollama daemon.
func parserModel(cfg config.Config, models *routing.ModelRouter) string {
	if spec, ok := models.Spec(cfg.ParserModel); ok && spec.Provider == llm.KindOllama {
		return cfg.OllamaModel
	}
	return cfg.ParserModel
}

func (e *engine) close() {
	if err := e.cache.Close(); err != nil {
		slog.Warn("failed to close cache", "error", err)
	}
}
