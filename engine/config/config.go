// Package config loads process configuration once at start-up: an optional
// .env file, an optional YAML file, then environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ckulkarni13/Mental-Health-Advisor-App/engine/semantic"
	"github.com/ckulkarni13/Mental-Health-Advisor-App/pkg/gemini"
	"github.com/ckulkarni13/Mental-Health-Advisor-App/pkg/ollama"
	"github.com/ckulkarni13/Mental-Health-Advisor-App/pkg/openai"
)

// Providers. Embeddings come from OpenAI or Ollama; chat from OpenAI or
// Gemini.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderGemini = "gemini"
)

// OpenAIConfig configures the embedding and chat-completion service.
type OpenAIConfig struct {
	APIKey            string        `yaml:"-"`
	BaseURL           string        `yaml:"base_url"`
	EmbedModel        string        `yaml:"embed_model"`
	ChatModel         string        `yaml:"chat_model"`
	Dimension         int           `yaml:"dimension"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	Temperature       float32       `yaml:"temperature"`
	MaxTokens         int           `yaml:"max_tokens"`
}

// EmbedConfig selects who produces embeddings; ChatConfig does the same for chat.
// The vector length is OpenAI.Dimension whichever provider is used.
type EmbedConfig struct {
	Provider    string        `yaml:"provider"`
	OllamaURL   string        `yaml:"ollama_url"`
	OllamaModel string        `yaml:"ollama_model"`
	Timeout     time.Duration `yaml:"timeout"`
}

// ChatConfig selects who writes answers. Temperature and MaxTokens under
// OpenAI apply to either provider.
type ChatConfig struct {
	Provider     string `yaml:"provider"`
	GeminiAPIKey string `yaml:"-"`
	GeminiModel  string `yaml:"gemini_model"`
}

// QdrantConfig configures the vector index.
type QdrantConfig struct {
	URL        string        `yaml:"url"`
	APIKey     string        `yaml:"-"`
	Collection string        `yaml:"collection"`
	TLS        bool          `yaml:"tls"`
	Timeout    time.Duration `yaml:"timeout"`
}

// UpsertConfig configures the batched upsert pipeline.
type UpsertConfig struct {
	Input             string        `yaml:"input"`
	BatchSize         int           `yaml:"batch_size"`
	MaxAttempts       int           `yaml:"max_attempts"`
	RetryWait         time.Duration `yaml:"retry_wait"`
	UpsertTimeout     time.Duration `yaml:"upsert_timeout"`
	Workers           int           `yaml:"workers"`
	DeadLetterDB      string        `yaml:"dead_letter_db"`
	DeadLetterSubject string        `yaml:"dead_letter_subject"`
}

// QueryConfig configures the query/answer service.
type QueryConfig struct {
	TopK             int           `yaml:"top_k"`
	SearchTimeout    time.Duration `yaml:"search_timeout"`
	GenerateTimeout  time.Duration `yaml:"generate_timeout"`
	MaxContextTokens int           `yaml:"max_context_tokens"`
	BreakerThreshold int           `yaml:"breaker_threshold"`
	BreakerCooldown  time.Duration `yaml:"breaker_cooldown"`
}

// RedisConfig is optional; an empty Addr disables the answer cache.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"-"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// NATSConfig is optional; an empty URL disables publishing.
type NATSConfig struct {
	URL string `yaml:"url"`
}

// ServerConfig configures the web front end.
type ServerConfig struct {
	Port       string `yaml:"port"`
	CORSOrigin string `yaml:"cors_origin"`
}

// Config is the root configuration.
type Config struct {
	OpenAI OpenAIConfig `yaml:"openai"`
	Embed  EmbedConfig  `yaml:"embed"`
	Chat   ChatConfig   `yaml:"chat"`
	Qdrant QdrantConfig `yaml:"qdrant"`
	Upsert UpsertConfig `yaml:"upsert"`
	Query  QueryConfig  `yaml:"query"`
	NATS   NATSConfig   `yaml:"nats"`
	Redis  RedisConfig  `yaml:"redis"`
	Server ServerConfig `yaml:"server"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		OpenAI: OpenAIConfig{
			EmbedModel:        "text-embedding-ada-002",
			ChatModel:         "gpt-4",
			Dimension:         1536,
			Timeout:           60 * time.Second,
			RequestsPerSecond: 5,
			Burst:             5,
			Temperature:       0.7,
		},
		Embed: EmbedConfig{
			Provider:    ProviderOpenAI,
			OllamaURL:   ollama.DefaultURL,
			OllamaModel: ollama.DefaultModel,
			Timeout:     60 * time.Second,
		},
		Chat: ChatConfig{
			Provider:    ProviderOpenAI,
			GeminiModel: gemini.DefaultModel,
		},
		Qdrant: QdrantConfig{
			URL:        "localhost:6334",
			Collection: "mental-health-index",
			Timeout:    30 * time.Second,
		},
		Upsert: UpsertConfig{
			Input:             "processed_data_final.txt",
			BatchSize:         25,
			MaxAttempts:       3,
			RetryWait:         2 * time.Second,
			UpsertTimeout:     30 * time.Second,
			Workers:           1,
			DeadLetterDB:      "dead_letters.db",
			DeadLetterSubject: "advisor.upsert.dlq",
		},
		Query: QueryConfig{
			TopK:             5,
			SearchTimeout:    5 * time.Second,
			GenerateTimeout:  60 * time.Second,
			BreakerThreshold: 5,
			BreakerCooldown:  30 * time.Second,
		},
		Redis: RedisConfig{
			TTL: 24 * time.Hour,
		},
		Server: ServerConfig{
			Port:       "8080",
			CORSOrigin: "*",
		},
	}
}

// LoadEnvFiles loads .env style files into the process environment without
// overriding variables that are already set. Missing files are skipped.
func LoadEnvFiles(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("config: load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads the YAML file at path (if any) on top of Default and then applies
// environment overrides. An empty path or a missing file yields defaults.
func Load(path string) (*Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}
	if err := applyEnv(cfg, lookup); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	switch cfg.Embed.Provider {
	case ProviderOpenAI, ProviderOllama:
	default:
		return nil, fmt.Errorf("config: unknown embed provider %q", cfg.Embed.Provider)
	}
	switch cfg.Chat.Provider {
	case ProviderOpenAI, ProviderGemini:
	default:
		return nil, fmt.Errorf("config: unknown chat provider %q", cfg.Chat.Provider)
	}
	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("OPENAI_API_KEY", &cfg.OpenAI.APIKey)
	str("OPENAI_BASE_URL", &cfg.OpenAI.BaseURL)
	str("EMBED_MODEL", &cfg.OpenAI.EmbedModel)
	str("CHAT_MODEL", &cfg.OpenAI.ChatModel)
	str("EMBED_PROVIDER", &cfg.Embed.Provider)
	str("OLLAMA_URL", &cfg.Embed.OllamaURL)
	str("OLLAMA_MODEL", &cfg.Embed.OllamaModel)
	str("CHAT_PROVIDER", &cfg.Chat.Provider)
	str("GEMINI_API_KEY", &cfg.Chat.GeminiAPIKey)
	str("GEMINI_MODEL", &cfg.Chat.GeminiModel)
	str("QDRANT_URL", &cfg.Qdrant.URL)
	str("QDRANT_API_KEY", &cfg.Qdrant.APIKey)
	str("QDRANT_COLLECTION", &cfg.Qdrant.Collection)
	str("NATS_URL", &cfg.NATS.URL)
	str("REDIS_ADDR", &cfg.Redis.Addr)
	str("REDIS_PASSWORD", &cfg.Redis.Password)
	str("DEADLETTER_DB", &cfg.Upsert.DeadLetterDB)
	str("PORT", &cfg.Server.Port)
	str("CORS_ORIGIN", &cfg.Server.CORSOrigin)

	if v, ok := lookup("QDRANT_TLS"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: QDRANT_TLS: %w", err)
		}
		cfg.Qdrant.TLS = b
	}
	for key, dst := range map[string]*int{
		"UPSERT_BATCH_SIZE": &cfg.Upsert.BatchSize,
		"UPSERT_WORKERS":    &cfg.Upsert.Workers,
		"QUERY_TOP_K":       &cfg.Query.TopK,
	} {
		v, ok := lookup(key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", key, err)
		}
		*dst = n
	}
	return nil
}

// applyDefaults fills zero values left behind by a partial YAML file.
func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.OpenAI.EmbedModel == "" {
		cfg.OpenAI.EmbedModel = def.OpenAI.EmbedModel
	}
	if cfg.OpenAI.ChatModel == "" {
		cfg.OpenAI.ChatModel = def.OpenAI.ChatModel
	}
	if cfg.OpenAI.Dimension <= 0 {
		cfg.OpenAI.Dimension = def.OpenAI.Dimension
	}
	if cfg.OpenAI.Timeout <= 0 {
		cfg.OpenAI.Timeout = def.OpenAI.Timeout
	}
	if cfg.Embed.Provider == "" {
		cfg.Embed.Provider = def.Embed.Provider
	}
	if cfg.Embed.OllamaURL == "" {
		cfg.Embed.OllamaURL = def.Embed.OllamaURL
	}
	if cfg.Embed.OllamaModel == "" {
		cfg.Embed.OllamaModel = def.Embed.OllamaModel
	}
	if cfg.Embed.Timeout <= 0 {
		cfg.Embed.Timeout = def.Embed.Timeout
	}
	if cfg.Chat.Provider == "" {
		cfg.Chat.Provider = def.Chat.Provider
	}
	if cfg.Chat.GeminiModel == "" {
		cfg.Chat.GeminiModel = def.Chat.GeminiModel
	}
	if cfg.Qdrant.Collection == "" {
		cfg.Qdrant.Collection = def.Qdrant.Collection
	}
	if cfg.Upsert.BatchSize <= 0 {
		cfg.Upsert.BatchSize = def.Upsert.BatchSize
	}
	if cfg.Upsert.MaxAttempts <= 0 {
		cfg.Upsert.MaxAttempts = def.Upsert.MaxAttempts
	}
	if cfg.Upsert.RetryWait <= 0 {
		cfg.Upsert.RetryWait = def.Upsert.RetryWait
	}
	if cfg.Upsert.UpsertTimeout <= 0 {
		cfg.Upsert.UpsertTimeout = def.Upsert.UpsertTimeout
	}
	if cfg.Upsert.Workers <= 0 {
		cfg.Upsert.Workers = 1
	}
	if cfg.Query.TopK <= 0 {
		cfg.Query.TopK = def.Query.TopK
	}
	if cfg.Query.SearchTimeout <= 0 {
		cfg.Query.SearchTimeout = def.Query.SearchTimeout
	}
	if cfg.Query.GenerateTimeout <= 0 {
		cfg.Query.GenerateTimeout = def.Query.GenerateTimeout
	}
	if cfg.Redis.TTL < 0 {
		cfg.Redis.TTL = 0
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = def.Server.Port
	}
	if cfg.Server.CORSOrigin == "" {
		cfg.Server.CORSOrigin = def.Server.CORSOrigin
	}
}

// OpenAIClient returns the client settings for pkg/openai.
func (c *Config) OpenAIClient() openai.Config {
	o := c.OpenAI
	return openai.Config{
		APIKey:            o.APIKey,
		BaseURL:           o.BaseURL,
		EmbedModel:        o.EmbedModel,
		ChatModel:         o.ChatModel,
		Dimension:         o.Dimension,
		Timeout:           o.Timeout,
		RequestsPerSecond: o.RequestsPerSecond,
		Burst:             o.Burst,
		Temperature:       o.Temperature,
		MaxTokens:         o.MaxTokens,
	}
}

// VectorStore returns the Qdrant settings for engine/semantic.
func (c *Config) VectorStore() semantic.Config {
	return semantic.Config{
		Addr:       c.Qdrant.URL,
		APIKey:     c.Qdrant.APIKey,
		TLS:        c.Qdrant.TLS,
		Collection: c.Qdrant.Collection,
		Timeout:    c.Qdrant.Timeout,
	}
}

// OllamaClient returns the settings for the local embedding provider.
func (c *Config) OllamaClient() ollama.Config {
	return ollama.Config{
		BaseURL:   c.Embed.OllamaURL,
		Model:     c.Embed.OllamaModel,
		Dimension: c.OpenAI.Dimension,
		Timeout:   c.Embed.Timeout,
	}
}

// GeminiClient returns the settings for the Gemini chat provider.
func (c *Config) GeminiClient() gemini.Config {
	return gemini.Config{
		APIKey:      c.Chat.GeminiAPIKey,
		Model:       c.Chat.GeminiModel,
		Temperature: c.OpenAI.Temperature,
		MaxTokens:   int32(c.OpenAI.MaxTokens),
	}
}
