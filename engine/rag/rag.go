// Package rag answers a counselor's query in four fixed steps: embed the
// query, retrieve the nearest stored responses, compose a prompt around them
// and ask the chat model for advice. A failing step ends the query with a
// user-facing message; later steps never run.
package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ckulkarni13/Mental-Health-Advisor-App/engine/domain"
	"github.com/ckulkarni13/Mental-Health-Advisor-App/engine/semantic"
	"github.com/ckulkarni13/Mental-Health-Advisor-App/pkg/fn"
	"github.com/ckulkarni13/Mental-Health-Advisor-App/pkg/openai"
	"github.com/ckulkarni13/Mental-Health-Advisor-App/pkg/resilience"
)

// Stage names a step of the query pipeline.
type Stage string

const (
	StageValidate        Stage = "validate"
	StageEmbedQuery      Stage = "embed_query"
	StageRetrieveContext Stage = "retrieve_context"
	StageComposePrompt   Stage = "compose_prompt"
	StageGenerateAnswer  Stage = "generate_answer"
)

// Outcome classifies how a query ended.
type Outcome string

const (
	OutcomeAnswered       Outcome = "answered"
	OutcomeEmptyQuery     Outcome = "empty_query"
	OutcomeInvalidQuery   Outcome = "invalid_query"
	OutcomeEmbedFailed    Outcome = "embed_failed"
	OutcomeRetrieveFailed Outcome = "retrieve_failed"
	OutcomeNoContext      Outcome = "no_context"
	OutcomeGenerateFailed Outcome = "generate_failed"
)

// User-facing messages for outcomes other than OutcomeAnswered.
const (
	MsgEmptyQuery     = "Please select an issue or enter a query."
	MsgQueryTooLong   = "The query is too long. Please shorten it and try again."
	MsgEmbedFailed    = "Failed to generate embedding for the query."
	MsgRetrieveFailed = "Could not search the knowledge base right now. Please try again."
	MsgNoContext      = "No relevant data found for the query."
	MsgGenerateFailed = "Sorry, I couldn't generate a response at the moment."
)

// DefaultSystemPrompt is the persona sent as the system message.
const DefaultSystemPrompt = "You are a professional assistant providing detailed and empathetic advice."

const userTemplate = `You are an empathetic and professional assistant providing support to mental health counselors.
Based on the query and the retrieved context, provide a detailed, empathetic, and actionable response.

User Query: %s

Retrieved Context:
%s

Response:`

// Embedder turns the query into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Searcher returns the topK nearest stored entries.
type Searcher interface {
	Search(ctx context.Context, vector []float32, topK int) ([]semantic.SearchResult, error)
}

// ChatCompleter generates the answer text.
type ChatCompleter interface {
	Complete(ctx context.Context, messages []openai.Message) (string, error)
}

// Truncator cuts text to a token budget. *openai.Truncator is the production one.
type Truncator interface {
	Truncate(text string, max int) (string, error)
}

// Options configures the Service.
type Options struct {
	TopK            int
	SearchTimeout   time.Duration
	GenerateTimeout time.Duration
	// MaxContextTokens caps the retrieved context block; 0 leaves it whole.
	MaxContextTokens int
	SystemPrompt     string
	// Model is reported on answers. It does not select the model.
	Model string
}

// DefaultOptions returns top-5 retrieval with a 5s search budget.
func DefaultOptions() Options {
	return Options{
		TopK:            5,
		SearchTimeout:   5 * time.Second,
		GenerateTimeout: 60 * time.Second,
		SystemPrompt:    DefaultSystemPrompt,
	}
}

// Source is a retrieved entry that fed the prompt.
type Source struct {
	ID       string  `json:"id"`
	Score    float32 `json:"score"`
	Response string  `json:"response"`
}

// Answer is the result of a query. Text is always safe to show the user.
type Answer struct {
	Query   string   `json:"query"`
	Text    string   `json:"text"`
	Outcome Outcome  `json:"outcome"`
	Stage   Stage    `json:"stage"`
	Sources []Source `json:"sources,omitempty"`
	Model   string   `json:"model,omitempty"`
	// Cached is set when the answer was served from an AnswerCache.
	Cached bool `json:"cached,omitempty"`
}

// OK reports whether the model produced an answer.
func (a Answer) OK() bool { return a.Outcome == OutcomeAnswered }

// Service runs queries. It is safe for concurrent use.
type Service struct {
	embed   Embedder
	search  Searcher
	chat    ChatCompleter
	breaker *resilience.Breaker
	tokens  Truncator
	opts    Options
	logger  *slog.Logger
}

// Option configures optional Service collaborators.
type Option func(*Service)

// WithBreaker guards chat calls with b.
func WithBreaker(b *resilience.Breaker) Option {
	return func(s *Service) { s.breaker = b }
}

// WithTruncator sets the tokenizer used to enforce MaxContextTokens.
func WithTruncator(t Truncator) Option {
	return func(s *Service) { s.tokens = t }
}

// New creates a Service. Zero option fields take their defaults.
func New(embed Embedder, search Searcher, chat ChatCompleter, opts Options, logger *slog.Logger, extra ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultOptions()
	if opts.TopK <= 0 {
		opts.TopK = def.TopK
	}
	if opts.SearchTimeout <= 0 {
		opts.SearchTimeout = def.SearchTimeout
	}
	if opts.GenerateTimeout <= 0 {
		opts.GenerateTimeout = def.GenerateTimeout
	}
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = def.SystemPrompt
	}
	s := &Service{embed: embed, search: search, chat: chat, opts: opts, logger: logger}
	for _, o := range extra {
		o(s)
	}
	if s.breaker == nil {
		s.breaker = resilience.NewBreaker(resilience.DefaultBreakerOpts)
	}
	if s.tokens == nil && opts.MaxContextTokens > 0 {
		s.tokens = openai.NewTruncator(opts.Model)
	}
	return s
}

// TopK returns the number of entries retrieved per query.
func (s *Service) TopK() int { return s.opts.TopK }

// Query runs the pipeline for query. It never returns a raw service error;
// failures are logged and reported through Answer.Outcome.
func (s *Service) Query(ctx context.Context, query string) Answer {
	start := time.Now()
	query = strings.TrimSpace(query)
	ans := Answer{Query: query, Model: s.opts.Model}
	log := s.logger.With("query_len", len(query))

	if err := domain.ValidateQuery(query); err != nil {
		ans.Stage = StageValidate
		if errors.Is(err, domain.ErrQueryTooLong) {
			ans.Outcome, ans.Text = OutcomeInvalidQuery, MsgQueryTooLong
		} else {
			ans.Outcome, ans.Text = OutcomeEmptyQuery, MsgEmptyQuery
		}
		return ans
	}

	vec, err := fn.TracedStage(string(StageEmbedQuery), fn.Stage[string, []float32](s.embedQuery))(ctx, query).Unwrap()
	if err != nil {
		log.Error("embed query", "err", err)
		return s.fail(ans, StageEmbedQuery, OutcomeEmbedFailed, MsgEmbedFailed)
	}

	hits, err := fn.TracedStage(string(StageRetrieveContext), fn.Stage[[]float32, []semantic.SearchResult](s.retrieve))(ctx, vec).Unwrap()
	if err != nil {
		log.Error("retrieve context", "err", err)
		return s.fail(ans, StageRetrieveContext, OutcomeRetrieveFailed, MsgRetrieveFailed)
	}
	if len(hits) == 0 {
		log.Info("no context for query")
		return s.fail(ans, StageRetrieveContext, OutcomeNoContext, MsgNoContext)
	}
	ans.Sources = fn.Map(hits, func(r semantic.SearchResult) Source {
		return Source{ID: r.ID, Score: r.Score, Response: r.Response()}
	})

	compose := fn.Stage[[]semantic.SearchResult, []openai.Message](func(_ context.Context, hits []semantic.SearchResult) fn.Result[[]openai.Message] {
		return fn.Ok(s.composePrompt(query, hits))
	})
	msgs, _ := fn.TracedStage(string(StageComposePrompt), compose)(ctx, hits).Unwrap()

	text, err := fn.TracedStage(string(StageGenerateAnswer), fn.Stage[[]openai.Message, string](s.generate))(ctx, msgs).Unwrap()
	if err != nil {
		log.Error("generate answer", "err", err, "breaker", s.breaker.State().String())
		return s.fail(ans, StageGenerateAnswer, OutcomeGenerateFailed, MsgGenerateFailed)
	}

	ans.Stage, ans.Outcome, ans.Text = StageGenerateAnswer, OutcomeAnswered, text
	log.Info("query answered", "sources", len(ans.Sources), "duration", time.Since(start))
	return ans
}

func (s *Service) fail(ans Answer, stage Stage, outcome Outcome, msg string) Answer {
	ans.Stage, ans.Outcome, ans.Text = stage, outcome, msg
	return ans
}

func (s *Service) embedQuery(ctx context.Context, query string) fn.Result[[]float32] {
	vec, err := s.embed.Embed(ctx, query)
	return fn.FromPair(vec, err)
}

// retrieve drops hits without a stored response; they add nothing to the
// prompt.
func (s *Service) retrieve(ctx context.Context, vec []float32) fn.Result[[]semantic.SearchResult] {
	ctx, cancel := context.WithTimeout(ctx, s.opts.SearchTimeout)
	defer cancel()
	hits, err := s.search.Search(ctx, vec, s.opts.TopK)
	if err != nil {
		return fn.Err[[]semantic.SearchResult](err)
	}
	return fn.Ok(fn.Filter(hits, func(r semantic.SearchResult) bool {
		return strings.TrimSpace(r.Response()) != ""
	}))
}

// composePrompt joins the retrieved responses, one per line, into the user
// message.
func (s *Service) composePrompt(query string, hits []semantic.SearchResult) []openai.Message {
	block := strings.Join(fn.Map(hits, semantic.SearchResult.Response), "\n")
	if s.tokens != nil && s.opts.MaxContextTokens > 0 {
		cut, err := s.tokens.Truncate(block, s.opts.MaxContextTokens)
		if err != nil {
			s.logger.Warn("truncate context, sending it whole", "err", err)
		} else {
			block = cut
		}
	}
	return []openai.Message{
		{Role: openai.RoleSystem, Content: s.opts.SystemPrompt},
		{Role: openai.RoleUser, Content: fmt.Sprintf(userTemplate, query, block)},
	}
}

func (s *Service) generate(ctx context.Context, msgs []openai.Message) fn.Result[string] {
	ctx, cancel := context.WithTimeout(ctx, s.opts.GenerateTimeout)
	defer cancel()
	text, err := resilience.Execute(ctx, s.breaker, func(ctx context.Context) (string, error) {
		return s.chat.Complete(ctx, msgs)
	})
	if err != nil {
		return fn.Err[string](err)
	}
	if strings.TrimSpace(text) == "" {
		return fn.Errf[string]("rag: empty completion")
	}
	return fn.Ok(text)
}
