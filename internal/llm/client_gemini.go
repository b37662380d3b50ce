package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// GeminiClient implements Client over the Google GenAI API.
type GeminiClient struct {
	client *genai.Client
	model  string
	logger *zap.Logger
}

// NewGeminiClient creates a Gemini-backed completion client.
func NewGeminiClient(apiKey, model string, logger *zap.Logger) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiClient{
		client: client,
		model:  model,
		logger: logger.Named("llm"),
	}, nil
}

// Complete sends a prompt and returns the completion.
func (g *GeminiClient) Complete(ctx context.Context, prompt string) (string, error) {
	return g.generate(ctx, "", prompt, false)
}

// CompleteWithSystem sends a prompt with a system instruction.
func (g *GeminiClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return g.generate(ctx, systemPrompt, userPrompt, false)
}

// CompleteJSON requests a JSON object response.
func (g *GeminiClient) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return g.generate(ctx, systemPrompt, userPrompt, true)
}

func (g *GeminiClient) generate(ctx context.Context, systemPrompt, userPrompt string, jsonMode bool) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0.1),
	}
	if systemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}
	if jsonMode {
		cfg.ResponseMIMEType = "application/json"
	}

	start := time.Now()
	out, err := withRetry(ctx, func() (string, bool, error) {
		result, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(userPrompt), cfg)
		if err != nil {
			// The SDK wraps transport and server errors alike; treat them
			// all as transient and let the bounded retry decide.
			return "", true, fmt.Errorf("GenAI generate failed: %w", err)
		}
		text := strings.TrimSpace(result.Text())
		if text == "" {
			return "", false, fmt.Errorf("no completion returned")
		}
		return text, false, nil
	})
	if err != nil {
		g.logger.Error("completion failed",
			zap.String("model", g.model),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return "", err
	}

	g.logger.Debug("completion ok",
		zap.String("model", g.model),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("response_len", len(out)))
	return out, nil
}
