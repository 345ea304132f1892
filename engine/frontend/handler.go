package frontend

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/ckulkarni13/Mental-Health-Advisor-App/engine/rag"
)

//go:embed templates/*.html
var templates embed.FS

// Title is shown in the page title and header.
const Title = "Mental Health Counselor Assistant"

// Advisor is the query service as seen by the front end.
type Advisor interface {
	Query(ctx context.Context, query string) rag.Answer
}

// HealthFunc reports whether the backing services are reachable.
type HealthFunc func(ctx context.Context) error

// Handler serves the advice form and JSON API.
type Handler struct {
	advisor Advisor
	health  HealthFunc
	page    *template.Template
	logger  *slog.Logger
}

// NewHandler parses the embedded templates. health may be nil.
func NewHandler(advisor Advisor, health HealthFunc, logger *slog.Logger) (*Handler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	page, err := template.ParseFS(templates, "templates/index.html")
	if err != nil {
		return nil, err
	}
	return &Handler{advisor: advisor, health: health, page: page, logger: logger}, nil
}

// Register mounts the routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.handleForm)
	mux.HandleFunc("POST /{$}", h.handleSubmit)
	mux.HandleFunc("POST /api/advice", h.handleAdvice)
	mux.HandleFunc("GET /api/health", h.handleHealth)
}

// pageData feeds templates/index.html.
type pageData struct {
	Title    string
	Topics   []string
	Other    string
	Selected string
	Custom   string
	Warning  string
	Heading  string
	Answer   *rag.Answer
}

func (h *Handler) render(w http.ResponseWriter, status int, data pageData) {
	data.Title, data.Topics, data.Other = Title, Topics, Other
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.page.Execute(w, data); err != nil {
		h.logger.Error("render page", "err", err)
	}
}

func (h *Handler) handleForm(w http.ResponseWriter, _ *http.Request) {
	h.render(w, http.StatusOK, pageData{Selected: Topics[0]})
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render(w, http.StatusBadRequest, pageData{Warning: "Could not read the form."})
		return
	}
	topic, custom := r.PostFormValue("topic"), r.PostFormValue("custom")
	data := pageData{Selected: topic, Custom: custom}

	query, label := BuildQuery(topic, custom)
	if query == "" {
		data.Warning = rag.MsgEmptyQuery
		h.render(w, http.StatusOK, data)
		return
	}
	ans := h.advisor.Query(r.Context(), query)
	data.Heading = "Generated Advice for " + label
	data.Answer = &ans
	h.render(w, http.StatusOK, data)
}

// AdviceRequest is the JSON body for POST /api/advice. Query wins over
// Topic when both are set.
type AdviceRequest struct {
	Topic string `json:"topic"`
	Query string `json:"query"`
}

// AdviceResponse is the JSON response for POST /api/advice.
type AdviceResponse struct {
	Heading string `json:"heading"`
	rag.Answer
}

func (h *Handler) handleAdvice(w http.ResponseWriter, r *http.Request) {
	var req AdviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "request body too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	topic := req.Topic
	if req.Query != "" {
		topic = Other
	}
	query, label := BuildQuery(topic, req.Query)
	if query == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": rag.MsgEmptyQuery})
		return
	}

	ans := h.advisor.Query(r.Context(), query)
	status := http.StatusOK
	switch ans.Outcome {
	case rag.OutcomeEmptyQuery, rag.OutcomeInvalidQuery:
		status = http.StatusBadRequest
	case rag.OutcomeEmbedFailed, rag.OutcomeRetrieveFailed, rag.OutcomeGenerateFailed:
		status = http.StatusBadGateway
	}
	writeJSON(w, status, AdviceResponse{Heading: "Generated Advice for " + label, Answer: ans})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := h.health(ctx); err != nil {
			h.logger.Warn("health check failed", "err", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
