// Package domain defines the record and vector-entry types shared by the
// cleaning, normalization, upsert and query stages, together with the
// identifiers and validation rules that tie them together.
package domain

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Column names every tabular source must carry.
const (
	ColumnContext  = "Context"
	ColumnResponse = "Response"
)

// Payload keys stored alongside each vector.
const (
	MetaResponse = "response"
	MetaContext  = "context"
	MetaRowID    = "row_id"
)

// EmbeddingDimension is the vector length produced by text-embedding-ada-002.
const EmbeddingDimension = 1536

const rowIDPrefix = "row-"

// Record is one Context/Response pair. Index is the zero-based row position in
// the source file and is the only identity a record has.
type Record struct {
	Index    int    `json:"index"`
	Context  string `json:"context"`
	Response string `json:"response"`
}

// ID returns the stable row identifier "row-{idx}".
func (r Record) ID() string { return RowID(r.Index) }

// StoredEntry is what the vector index keeps for a record.
type StoredEntry struct {
	ID       string            `json:"id"`
	Vector   []float32         `json:"-"`
	Metadata map[string]string `json:"metadata"`
}

// NewStoredEntry pairs a record with its embedding. Only the response text and
// the row id are required downstream; the context is kept for inspection.
func NewStoredEntry(r Record, vector []float32) StoredEntry {
	return StoredEntry{
		ID:     r.ID(),
		Vector: vector,
		Metadata: map[string]string{
			MetaRowID:    r.ID(),
			MetaResponse: r.Response,
			MetaContext:  r.Context,
		},
	}
}

// RowID formats a row position as an identifier.
func RowID(idx int) string {
	return rowIDPrefix + strconv.Itoa(idx)
}

// ParseRowID is the inverse of RowID.
func ParseRowID(id string) (int, bool) {
	rest, ok := strings.CutPrefix(id, rowIDPrefix)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// PointID maps a row identifier onto the UUID space the vector index accepts.
// The mapping is a name-based (SHA-1) UUID, so the same row always lands on the
// same point and re-running an upsert overwrites instead of duplicating.
func PointID(rowID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(rowID)).String()
}
