package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load("", envMap(nil))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Upsert.BatchSize != 25 {
		t.Errorf("batch size = %d, want 25", cfg.Upsert.BatchSize)
	}
	if cfg.Upsert.MaxAttempts != 3 {
		t.Errorf("max attempts = %d, want 3", cfg.Upsert.MaxAttempts)
	}
	if cfg.Upsert.RetryWait != 2*time.Second {
		t.Errorf("retry wait = %v, want 2s", cfg.Upsert.RetryWait)
	}
	if cfg.Query.TopK != 5 {
		t.Errorf("top k = %d, want 5", cfg.Query.TopK)
	}
	if cfg.OpenAI.Dimension != 1536 {
		t.Errorf("dimension = %d, want 1536", cfg.OpenAI.Dimension)
	}
	if cfg.Qdrant.Collection != "mental-health-index" {
		t.Errorf("collection = %q", cfg.Qdrant.Collection)
	}
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := load(filepath.Join(t.TempDir(), "nope.yaml"), envMap(nil))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.OpenAI.ChatModel != "gpt-4" {
		t.Errorf("chat model = %q", cfg.OpenAI.ChatModel)
	}
}

func TestLoad_YAMLAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "advisor.yaml")
	yml := `
openai:
  chat_model: gpt-4o
qdrant:
  collection: from-yaml
upsert:
  batch_size: 10
  retry_wait: 500ms
query:
  top_k: 3
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := load(path, envMap(map[string]string{
		"QDRANT_COLLECTION": "from-env",
		"OPENAI_API_KEY":    "sk-test",
		"QDRANT_TLS":        "true",
		"UPSERT_WORKERS":    "4",
	}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.OpenAI.ChatModel != "gpt-4o" {
		t.Errorf("chat model = %q", cfg.OpenAI.ChatModel)
	}
	if cfg.OpenAI.EmbedModel != "text-embedding-ada-002" {
		t.Errorf("embed model default lost: %q", cfg.OpenAI.EmbedModel)
	}
	if cfg.Qdrant.Collection != "from-env" {
		t.Errorf("env should override yaml, got %q", cfg.Qdrant.Collection)
	}
	if cfg.OpenAI.APIKey != "sk-test" {
		t.Errorf("api key = %q", cfg.OpenAI.APIKey)
	}
	if !cfg.Qdrant.TLS {
		t.Error("expected TLS from env")
	}
	if cfg.Upsert.BatchSize != 10 || cfg.Upsert.RetryWait != 500*time.Millisecond {
		t.Errorf("upsert = %+v", cfg.Upsert)
	}
	if cfg.Upsert.Workers != 4 {
		t.Errorf("workers = %d", cfg.Upsert.Workers)
	}
	if cfg.Query.TopK != 3 {
		t.Errorf("top k = %d", cfg.Query.TopK)
	}
}

func TestLoad_BadEnv(t *testing.T) {
	if _, err := load("", envMap(map[string]string{"QDRANT_TLS": "maybe"})); err == nil {
		t.Fatal("expected error for bad bool")
	}
	if _, err := load("", envMap(map[string]string{"UPSERT_BATCH_SIZE": "lots"})); err == nil {
		t.Fatal("expected error for bad int")
	}
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("upsert: [unterminated"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := load(path, envMap(nil)); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadEnvFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("ADVISOR_TEST_KEY=from-dotenv\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ADVISOR_TEST_KEY", "")
	os.Unsetenv("ADVISOR_TEST_KEY")
	if err := LoadEnvFiles(path, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadEnvFiles: %v", err)
	}
	if got := os.Getenv("ADVISOR_TEST_KEY"); got != "from-dotenv" {
		t.Errorf("ADVISOR_TEST_KEY = %q", got)
	}
}

func TestClientConfigs(t *testing.T) {
	cfg, err := load("", envMap(map[string]string{
		"OPENAI_API_KEY":    "sk-test",
		"QDRANT_URL":        "qdrant.internal:6334",
		"QDRANT_API_KEY":    "qk",
		"QDRANT_TLS":        "true",
		"QDRANT_COLLECTION": "advice",
	}))
	if err != nil {
		t.Fatal(err)
	}
	oc := cfg.OpenAIClient()
	if oc.APIKey != "sk-test" || oc.Dimension != 1536 || oc.ChatModel != "gpt-4" {
		t.Errorf("openai config = %+v", oc)
	}
	vs := cfg.VectorStore()
	if vs.Addr != "qdrant.internal:6334" || vs.APIKey != "qk" || !vs.TLS || vs.Collection != "advice" || vs.Timeout != 30*time.Second {
		t.Errorf("vector store config = %+v", vs)
	}
}

func TestEmbedProvider(t *testing.T) {
	cfg, err := load("", envMap(map[string]string{
		"EMBED_PROVIDER": "ollama",
		"OLLAMA_MODEL":   "mxbai-embed-large",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Embed.Provider != ProviderOllama {
		t.Errorf("provider = %q", cfg.Embed.Provider)
	}
	oc := cfg.OllamaClient()
	if oc.BaseURL != "http://localhost:11434" || oc.Model != "mxbai-embed-large" || oc.Dimension != 1536 {
		t.Errorf("ollama config = %+v", oc)
	}

	if _, err := load("", envMap(map[string]string{"EMBED_PROVIDER": "word2vec"})); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestRedisConfig(t *testing.T) {
	cfg, err := load("", envMap(nil))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Redis.Addr != "" || cfg.Redis.TTL != 24*time.Hour {
		t.Errorf("redis defaults = %+v", cfg.Redis)
	}
	cfg, err = load("", envMap(map[string]string{"REDIS_ADDR": "cache:6379", "REDIS_PASSWORD": "pw"}))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Redis.Addr != "cache:6379" || cfg.Redis.Password != "pw" {
		t.Errorf("redis = %+v", cfg.Redis)
	}
}

func TestChatProvider(t *testing.T) {
	cfg, err := load("", envMap(map[string]string{
		"CHAT_PROVIDER":  "gemini",
		"GEMINI_API_KEY": "gk",
	}))
	if err != nil {
		t.Fatal(err)
	}
	gc := cfg.GeminiClient()
	if cfg.Chat.Provider != ProviderGemini || gc.APIKey != "gk" || gc.Model != "gemini-1.5-flash" || gc.Temperature != 0.7 {
		t.Errorf("gemini config = %+v", gc)
	}
	if _, err := load("", envMap(map[string]string{"CHAT_PROVIDER": "ollama"})); err == nil {
		t.Fatal("ollama is not a chat provider")
	}
}
