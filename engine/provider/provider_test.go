package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/ckulkarni13/Mental-Health-Advisor-App/engine/config"
	"github.com/ckulkarni13/Mental-Health-Advisor-App/pkg/gemini"
	"github.com/ckulkarni13/Mental-Health-Advisor-App/pkg/ollama"
	"github.com/ckulkarni13/Mental-Health-Advisor-App/pkg/openai"
)

func TestNewEmbedder(t *testing.T) {
	cfg := config.Default()
	if _, err := NewEmbedder(cfg); !errors.Is(err, openai.ErrNoAPIKey) {
		t.Fatalf("err = %v, want ErrNoAPIKey", err)
	}

	cfg.OpenAI.APIKey = "sk-test"
	e, err := NewEmbedder(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := e.(*openai.Client); !ok {
		t.Fatalf("embedder = %T", e)
	}

	cfg = config.Default()
	cfg.Embed.Provider = config.ProviderOllama
	e, err = NewEmbedder(cfg)
	if err != nil {
		t.Fatalf("ollama needs no key: %v", err)
	}
	if _, ok := e.(*ollama.Client); !ok {
		t.Fatalf("embedder = %T", e)
	}
}

func TestNewChat(t *testing.T) {
	cfg := config.Default()
	cfg.OpenAI.APIKey = "sk-test"
	chat, closeChat, err := NewChat(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if chat.ChatModel() != "gpt-4" {
		t.Fatalf("model = %q", chat.ChatModel())
	}
	if err := closeChat(); err != nil {
		t.Fatal(err)
	}

	cfg.Chat.Provider = config.ProviderGemini
	if _, _, err := NewChat(context.Background(), cfg); !errors.Is(err, gemini.ErrNoAPIKey) {
		t.Fatalf("err = %v, want gemini.ErrNoAPIKey", err)
	}
}
