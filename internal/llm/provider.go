package llm

import (
	"context"
)

// Provider defines the interface for LLM providers
type Provider interface {
	// Generate returns the model's plain text answer for a request
	Generate(ctx context.Context, request *GenerationRequest) (*GenerationResponse, error)

	// Name returns the provider name (e.g., "openai", "gemini")
	Name() string
}

// GenerationRequest contains all parameters needed for generation
type GenerationRequest struct {
	Model         string
	InputArray    []map[string]any
	ReasoningMode string
	SystemPrompt  string
}

// GenerationResponse contains the result from the LLM
type GenerationResponse struct {
	Text  string `json:"text"`
	Usage Usage  `json:"usage"`
}

// Usage is the token accounting reported by a provider
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
	TotalTokens  int64 `json:"total_tokens"`
}

// UserMessage builds a single user input item
func UserMessage(content string) map[string]any {
	return map[string]any{"role": userRole, "content": content}
}
