package naming

import (
	"context"
	"fmt"
	"strings"

	"github.com/Conceptual-Machines/magda-composer/internal/llm"
	"github.com/Conceptual-Machines/magda-composer/internal/observability"
	"github.com/Conceptual-Machines/magda-composer/pkg/embedded"
)

// LLMSource asks a language model for title words
type LLMSource struct {
	provider llm.Provider
	model    string
	tracer   *observability.LangfuseClient
}

// NewLLMSource creates a source backed by provider. tracer may be nil.
func NewLLMSource(provider llm.Provider, model string, tracer *observability.LangfuseClient) *LLMSource {
	if tracer == nil {
		tracer = observability.Disabled()
	}
	return &LLMSource{provider: provider, model: model, tracer: tracer}
}

// Words requests n words and splits the answer on whitespace and punctuation
func (s *LLMSource) Words(ctx context.Context, n int) ([]string, error) {
	trace := s.tracer.StartTrace(ctx, "composer.name", map[string]interface{}{"provider": s.provider.Name()})
	defer trace.Finish()

	input := []map[string]any{
		llm.UserMessage(fmt.Sprintf("Give me %d words for the title of a new piece.", n)),
	}
	gen := trace.Generation("title", nil)
	gen.Input(input)
	defer gen.Finish()

	resp, err := s.provider.Generate(ctx, &llm.GenerationRequest{
		Model:        s.model,
		InputArray:   input,
		SystemPrompt: string(embedded.NamerPromptTxt),
	})
	if err != nil {
		gen.SetLevel("ERROR")
		return nil, fmt.Errorf("%s title request failed: %w", s.provider.Name(), err)
	}

	gen.Output(resp.Text)
	gen.LogUsage(s.model, resp.Usage)

	words := strings.FieldsFunc(resp.Text, func(r rune) bool {
		return r == ' ' || r == '\n' || r == '\t' || r == ',' || r == '_' || r == '-'
	})
	if len(words) < n {
		return nil, fmt.Errorf("%w: %q", ErrNotEnoughWords, resp.Text)
	}
	return words[:n], nil
}
