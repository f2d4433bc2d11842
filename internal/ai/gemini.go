// Package ai wraps the text-generation model used for trivia questions.
package ai

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Usage holds the token counters reported by the model for one call
type Usage struct {
	PromptTokens     int64
	CandidatesTokens int64
	CachedTokens     int64
	TotalTokens      int64
}

// Generation is the raw model output
type Generation struct {
	Text  string
	Usage *Usage // nil when the model reported no usage
}

// TextGenerator produces text for a prompt
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (*Generation, error)
}

// GeminiGenerator calls a Gemini model and asks for JSON output
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

// NewGeminiGenerator creates a generator for the given model.
func NewGeminiGenerator(ctx context.Context, apiKey, model string) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is not set")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiGenerator{client: client, model: model}, nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (*Generation, error) {
	result, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}

	gen := &Generation{Text: result.Text()}
	if um := result.UsageMetadata; um != nil {
		gen.Usage = &Usage{
			PromptTokens:     int64(um.PromptTokenCount),
			CandidatesTokens: int64(um.CandidatesTokenCount),
			CachedTokens:     int64(um.CachedContentTokenCount),
			TotalTokens:      int64(um.TotalTokenCount),
		}
	}
	return gen, nil
}

// Model returns the model name
func (g *GeminiGenerator) Model() string {
	return g.model
}
