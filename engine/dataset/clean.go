package dataset

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"

	"github.com/ckulkarni13/Mental-Health-Advisor-App/engine/domain"
)

// DefaultCleanOutput is where the cleaner writes when no path is given.
const DefaultCleanOutput = "cleaned_data.txt"

var disallowed = regexp.MustCompile(`[^A-Za-z0-9\s]`)

// CleanText removes every character outside letters, digits and whitespace.
// It is idempotent.
func CleanText(s string) string {
	return disallowed.ReplaceAllString(s, "")
}

// Stats summarises one file-to-file pass.
type Stats struct {
	Input  string
	Output string
	Rows   int
}

// Clean loads a source table, strips disallowed characters from the Context
// and Response columns and writes the pipe-delimited result to out. Columns
// other than those two pass through untouched.
func Clean(in, out string, logger *slog.Logger) (Stats, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if out == "" {
		out = DefaultCleanOutput
	}
	st := Stats{Input: in, Output: out}

	t, err := Load(in)
	if err != nil {
		return st, err
	}
	logger.Info("source loaded", "path", in, "rows", len(t.Rows), "columns", len(t.Header))

	if err := t.Apply(CleanText, domain.ColumnContext, domain.ColumnResponse); err != nil {
		return st, err
	}
	if err := WritePipe(out, t); err != nil {
		return st, err
	}
	if _, err := os.Stat(out); err != nil {
		return st, fmt.Errorf("dataset: output not found after write: %w", err)
	}
	st.Rows = len(t.Rows)
	logger.Info("cleaned data saved", "path", out, "rows", st.Rows)
	return st, nil
}
