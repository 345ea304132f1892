// Package ollama embeds text with a local Ollama server, as an alternative to
// the hosted embedding model.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/ckulkarni13/Mental-Health-Advisor-App/engine/domain"
)

// DefaultModel is used when Config.Model is empty.
const DefaultModel = "nomic-embed-text"

// DefaultURL is used when Config.BaseURL is empty.
const DefaultURL = "http://localhost:11434"

// Config configures a Client.
type Config struct {
	BaseURL string
	Model   string
	// Dimension is the expected embedding length; 0 disables the check.
	Dimension int
	Timeout   time.Duration
}

// Client embeds one text per call.
type Client struct {
	api       *api.Client
	model     string
	dimension int
}

// New creates an Ollama embedding client. Only an unparsable BaseURL fails.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("ollama: base url: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		api:       api.NewClient(u, &http.Client{Timeout: cfg.Timeout}),
		model:     model,
		dimension: cfg.Dimension,
	}, nil
}

// Embed returns the embedding of text, checked against the configured
// dimension.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("ollama: embed: %w", domain.ErrEmptyText)
	}
	resp, err := c.api.Embed(ctx, &api.EmbedRequest{Model: c.model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("ollama: embed: %w", err)
	}
	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("ollama: embed: %w: empty response", domain.ErrDimensionMismatch)
	}
	vec := resp.Embeddings[0]
	if err := domain.ValidateVector(vec, c.dimension); err != nil {
		return nil, fmt.Errorf("ollama: embed: %w", err)
	}
	return vec, nil
}
