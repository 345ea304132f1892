// Package gemini answers chat prompts with Google's Gemini models, as an
// alternative to the OpenAI chat model.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/ckulkarni13/Mental-Health-Advisor-App/pkg/openai"
)

// DefaultModel is used when Config.Model is empty.
const DefaultModel = "gemini-1.5-flash"

// ErrNoAPIKey is returned by New when no key is configured.
var ErrNoAPIKey = errors.New("gemini: missing API key")

// Config configures a Client.
type Config struct {
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int32
}

type generator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Client is safe for concurrent use: every call gets its own model handle so
// the system instruction is never shared between requests.
type Client struct {
	client *genai.Client
	cfg    Config
	model  func(system string) generator
}

// New dials the Gemini API.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrNoAPIKey
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	gc, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: client: %w", err)
	}
	c := &Client{client: gc, cfg: cfg}
	c.model = func(system string) generator {
		m := gc.GenerativeModel(cfg.Model)
		m.SetTemperature(cfg.Temperature)
		if cfg.MaxTokens > 0 {
			m.SetMaxOutputTokens(cfg.MaxTokens)
		}
		if system != "" {
			m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
		}
		return m
	}
	return c, nil
}

// ChatModel returns the model used for completions.
func (c *Client) ChatModel() string { return c.cfg.Model }

// Close releases the underlying connection.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

// Complete sends messages as one turn: system messages become the system
// instruction and the rest are sent as text parts in order.
func (c *Client) Complete(ctx context.Context, messages []openai.Message) (string, error) {
	var system []string
	var parts []genai.Part
	for _, m := range messages {
		if m.Role == openai.RoleSystem {
			system = append(system, m.Content)
			continue
		}
		parts = append(parts, genai.Text(m.Content))
	}
	if len(parts) == 0 {
		return "", errors.New("gemini: chat: no user content")
	}

	resp, err := c.model(strings.Join(system, "\n\n")).GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("gemini: chat: %w", err)
	}
	text := responseText(resp)
	if text == "" {
		return "", errors.New("gemini: chat: no text returned")
	}
	return text, nil
}

// responseText joins the text parts of the first candidate that has content.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		var b strings.Builder
		for _, p := range cand.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
		return strings.TrimSpace(b.String())
	}
	return ""
}
