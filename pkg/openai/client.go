// Package openai wraps the embedding and chat-completion endpoints behind a
// rate-limited client that validates what comes back.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/ckulkarni13/Mental-Health-Advisor-App/engine/domain"
)

// Chat roles.
const (
	RoleSystem    = goopenai.ChatMessageRoleSystem
	RoleUser      = goopenai.ChatMessageRoleUser
	RoleAssistant = goopenai.ChatMessageRoleAssistant
)

// ErrNoAPIKey is returned by New when no key is configured.
var ErrNoAPIKey = errors.New("openai: missing API key")

// Message is one chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Config configures a Client.
type Config struct {
	APIKey     string
	BaseURL    string
	EmbedModel string
	ChatModel  string
	// Dimension is the expected embedding length; 0 disables the check.
	Dimension int
	Timeout   time.Duration
	// RequestsPerSecond throttles outgoing calls; 0 means unlimited.
	RequestsPerSecond float64
	Burst             int
	Temperature       float32
	MaxTokens         int
}

// api is the subset of the go-openai client used here.
type api interface {
	CreateEmbeddings(ctx context.Context, conv goopenai.EmbeddingRequestConverter) (goopenai.EmbeddingResponse, error)
	CreateChatCompletion(ctx context.Context, req goopenai.ChatCompletionRequest) (goopenai.ChatCompletionResponse, error)
}

// Client is safe for concurrent use.
type Client struct {
	api     api
	cfg     Config
	limiter *rate.Limiter
}

// New builds a Client talking to the OpenAI API (or a compatible BaseURL).
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrNoAPIKey
	}
	oc := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.Timeout > 0 {
		oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	return newWithAPI(goopenai.NewClientWithConfig(oc), cfg), nil
}

func newWithAPI(a api, cfg Config) *Client {
	if cfg.EmbedModel == "" {
		cfg.EmbedModel = string(goopenai.AdaEmbeddingV2)
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = goopenai.GPT4
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Client{api: a, cfg: cfg, limiter: rate.NewLimiter(limit, burst)}
}

// ChatModel returns the model used for completions.
func (c *Client) ChatModel() string { return c.cfg.ChatModel }

// Embed returns the embedding of text. Empty input, an empty response and a
// vector of the wrong length are errors. No retry happens here.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("openai: embed: %w", domain.ErrEmptyText)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("openai: embed: %w", err)
	}
	resp, err := c.api.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
		Input: []string{text},
		Model: goopenai.EmbeddingModel(c.cfg.EmbedModel),
	})
	if err != nil {
		return nil, fmt.Errorf("openai: embed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("openai: embed: %w: empty response", domain.ErrDimensionMismatch)
	}
	vec := resp.Data[0].Embedding
	if err := domain.ValidateVector(vec, c.cfg.Dimension); err != nil {
		return nil, fmt.Errorf("openai: embed: %w", err)
	}
	return vec, nil
}

// Complete sends messages to the chat model and returns the first choice.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("openai: chat: %w", err)
	}
	msgs := make([]goopenai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		msgs[i] = goopenai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	resp, err := c.api.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:       c.cfg.ChatModel,
		Messages:    msgs,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("openai: chat: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: chat: no choices returned")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
