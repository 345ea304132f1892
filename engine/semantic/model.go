package semantic

import "github.com/ckulkarni13/Mental-Health-Advisor-App/engine/domain"

// SearchResult is one similarity hit.
type SearchResult struct {
	ID       string            `json:"id"`
	Score    float32           `json:"score"`
	Metadata map[string]string `json:"metadata"`
}

// Response returns the stored response text, or "" if the hit has none.
func (r SearchResult) Response() string {
	return r.Metadata[domain.MetaResponse]
}
