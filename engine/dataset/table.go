// Package dataset reads and writes the tabular files that carry Context and
// Response pairs between pipeline stages.
package dataset

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ckulkarni13/Mental-Health-Advisor-App/engine/domain"
)

// ErrRowTooWide means a row carries values past the last header column.
var ErrRowTooWide = errors.New("row has more cells than the header")

// Table is a header plus rows. Every row has exactly len(Header) cells.
type Table struct {
	Header []string
	Rows   [][]string
}

func newTable(raw [][]string) (*Table, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("dataset: no header row")
	}
	header := make([]string, len(raw[0]))
	for i, h := range raw[0] {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	t := &Table{Header: header, Rows: make([][]string, 0, len(raw)-1)}
	for i, r := range raw[1:] {
		for j := len(header); j < len(r); j++ {
			if strings.TrimSpace(r[j]) != "" {
				return nil, fmt.Errorf("dataset: row %d: %w: %d cells, header has %d", i+1, ErrRowTooWide, len(r), len(header))
			}
		}
		row := make([]string, len(header))
		copy(row, r)
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// Column returns the index of the named column.
func (t *Table) Column(name string) (int, error) {
	for i, h := range t.Header {
		if h == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("dataset: %w: %q", domain.ErrMissingColumn, name)
}

// Apply rewrites every cell of the named columns with f. All columns are
// resolved before any cell is touched, so a missing column leaves t unchanged.
func (t *Table) Apply(f func(string) string, columns ...string) error {
	idx := make([]int, len(columns))
	for i, name := range columns {
		c, err := t.Column(name)
		if err != nil {
			return err
		}
		idx[i] = c
	}
	for _, row := range t.Rows {
		for _, c := range idx {
			row[c] = f(row[c])
		}
	}
	return nil
}

// Records projects the table onto Context/Response pairs, indexed by row
// position.
func (t *Table) Records() ([]domain.Record, error) {
	ci, err := t.Column(domain.ColumnContext)
	if err != nil {
		return nil, err
	}
	ri, err := t.Column(domain.ColumnResponse)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Record, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = domain.Record{Index: i, Context: row[ci], Response: row[ri]}
	}
	return out, nil
}
