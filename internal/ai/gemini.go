package ai

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// geminiClient is the Generator backed by the Gemini API through the
// official genai SDK.
type geminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient returns a Generator that calls Gemini.
//   - apiKey: your GEMINI_API_KEY
//   - model:  e.g. "gemini-2.0-flash"
func NewGeminiClient(ctx context.Context, apiKey, model string) (Generator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	return &geminiClient{client: client, model: model}, nil
}

func (c *geminiClient) Name() string { return "gemini" }

// Generate runs a single GenerateContent call with the shared system prompt.
func (c *geminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	temperature := float32(0.3)
	result, err := c.client.Models.GenerateContent(ctx,
		c.model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
			Temperature:       &temperature,
			MaxOutputTokens:   maxOutputTokens,
		},
	)
	if err != nil {
		return "", fmt.Errorf("gemini: generate content: %w", err)
	}

	text := stripFences(result.Text())
	if text == "" {
		return "", ErrEmptyOutput
	}
	return text, nil
}
