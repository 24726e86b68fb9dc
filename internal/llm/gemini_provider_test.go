package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestGeminiProvider_Name(t *testing.T) {
	provider := &GeminiProvider{client: nil}
	assert.Equal(t, "gemini", provider.Name())
}

func TestGeminiProvider_BuildContents(t *testing.T) {
	provider := &GeminiProvider{client: nil}

	tests := []struct {
		name       string
		inputArray []map[string]any
		wantLen    int
	}{
		{
			name:       "single user message",
			inputArray: []map[string]any{{"role": "user", "content": "test content"}},
			wantLen:    1,
		},
		{
			name:       "developer role converted to user",
			inputArray: []map[string]any{{"role": "developer", "content": "system message"}},
			wantLen:    1,
		},
		{
			name: "invalid message skipped",
			inputArray: []map[string]any{
				{"role": "user", "content": "valid"},
				{"role": "user"},
			},
			wantLen: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			contents := provider.buildGeminiContents(tt.inputArray)
			require.Len(t, contents, tt.wantLen)
			for _, c := range contents {
				assert.Equal(t, "user", c.Role)
			}
		})
	}
}

func TestGeminiProvider_ProcessResponse(t *testing.T) {
	provider := &GeminiProvider{}

	resp, err := provider.processGeminiResponse(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: "  velvet harbor \n"}}},
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     10,
			CandidatesTokenCount: 3,
			TotalTokenCount:      13,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "velvet harbor", resp.Text)
	assert.Equal(t, int64(13), resp.Usage.TotalTokens)

	_, err = provider.processGeminiResponse(&genai.GenerateContentResponse{})
	assert.Error(t, err)

	_, err = provider.processGeminiResponse(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{}}},
	})
	assert.Error(t, err)
}
