// Package llm wraps the completion service behind a narrow contract: text
// in, free text or JSON out. Every caller in the pipeline is resilient to
// this service failing; clients here retry transient transport errors a
// bounded number of times and then return the error to the caller's
// fallback path.
package llm

import (
	"context"
	"fmt"
	"time"

	"wrdsquery/internal/config"

	"go.uber.org/zap"
)

// Client is the minimal interface components use to call the completion
// service.
type Client interface {
	// Complete sends a prompt and returns the completion.
	Complete(ctx context.Context, prompt string) (string, error)
	// CompleteWithSystem sends a prompt with a system instruction.
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	// CompleteJSON requests a JSON object response.
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// NewFromConfig builds the configured provider's client.
func NewFromConfig(cfg config.LLMConfig, timeout time.Duration, logger *zap.Logger) (Client, error) {
	switch cfg.Provider {
	case "", "openai":
		return NewOpenAIClient(OpenAIConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: timeout,
		}, logger), nil
	case "gemini":
		return NewGeminiClient(cfg.APIKey, cfg.Model, logger)
	default:
		return nil, fmt.Errorf("unknown llm provider: %q", cfg.Provider)
	}
}

const (
	maxAttempts = 3
	backoff     = 2 * time.Second
)

// withRetry runs fn up to maxAttempts times with a fixed backoff between
// attempts. fn reports whether its error is transient; permanent errors
// stop the loop immediately.
func withRetry(ctx context.Context, fn func() (string, bool, error)) (string, error) {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		out, transient, err := fn()
		if err == nil {
			return out, nil
		}
		if !transient {
			return "", err
		}
		lastErr = err
	}
	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}
