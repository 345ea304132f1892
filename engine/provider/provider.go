// Package provider builds the embedding and chat clients named in the
// configuration, so every command switches providers the same way.
package provider

import (
	"context"

	"github.com/ckulkarni13/Mental-Health-Advisor-App/engine/config"
	"github.com/ckulkarni13/Mental-Health-Advisor-App/pkg/gemini"
	"github.com/ckulkarni13/Mental-Health-Advisor-App/pkg/ollama"
	"github.com/ckulkarni13/Mental-Health-Advisor-App/pkg/openai"
)

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Chat completes a prompt and names the model doing it.
type Chat interface {
	Complete(ctx context.Context, messages []openai.Message) (string, error)
	ChatModel() string
}

// NewEmbedder returns the configured embedding client. Queries must be
// embedded by the same provider that filled the collection.
func NewEmbedder(cfg *config.Config) (Embedder, error) {
	if cfg.Embed.Provider == config.ProviderOllama {
		c, err := ollama.New(cfg.OllamaClient())
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	c, err := openai.New(cfg.OpenAIClient())
	if err != nil {
		return nil, err
	}
	return c, nil
}

// NewChat returns the configured chat client and the func that releases it.
func NewChat(ctx context.Context, cfg *config.Config) (Chat, func() error, error) {
	if cfg.Chat.Provider == config.ProviderGemini {
		c, err := gemini.New(ctx, cfg.GeminiClient())
		if err != nil {
			return nil, nil, err
		}
		return c, c.Close, nil
	}
	c, err := openai.New(cfg.OpenAIClient())
	if err != nil {
		return nil, nil, err
	}
	return c, func() error { return nil }, nil
}
