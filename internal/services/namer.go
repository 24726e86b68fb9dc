package services

import (
	"context"

	"github.com/Conceptual-Machines/magda-composer/internal/config"
	"github.com/Conceptual-Machines/magda-composer/internal/llm"
	"github.com/Conceptual-Machines/magda-composer/internal/logger"
	"github.com/Conceptual-Machines/magda-composer/internal/naming"
	"github.com/Conceptual-Machines/magda-composer/internal/observability"
)

// Namer providers
const (
	NamerWords  = "words"
	NamerOpenAI = "openai"
	NamerGemini = "gemini"
)

// NewNamer builds the output namer from config. LLM-backed namers keep the
// embedded word list as fallback, and a misconfigured provider degrades to it.
func NewNamer(ctx context.Context, cfg *config.Config, tracer *observability.LangfuseClient, seed int64) *naming.Namer {
	words := naming.NewListSource(seed)
	if cfg.NamerProvider == "" || cfg.NamerProvider == NamerWords {
		return naming.NewNamer(words, nil)
	}

	factory := llm.NewProviderFactory(cfg.OpenAIAPIKey, cfg.GeminiAPIKey)
	provider, err := factory.GetProvider(ctx, cfg.NamerModel, cfg.NamerProvider)
	if err != nil {
		logger.Warn("LLM namer unavailable, using word list", logger.Fields{
			"provider": cfg.NamerProvider,
			"error":    err.Error(),
		})
		return naming.NewNamer(words, nil)
	}

	logger.Info("LLM namer configured", logger.Fields{"provider": provider.Name(), "model": cfg.NamerModel})
	return naming.NewNamer(naming.NewLLMSource(provider, cfg.NamerModel, tracer), words)
}
