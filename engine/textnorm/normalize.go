// Package textnorm lower-cases, tokenizes, filters stopwords from and
// lemmatizes the text columns of the cleaned dataset.
package textnorm

import (
	"log/slog"
	"strings"

	"github.com/ckulkarni13/Mental-Health-Advisor-App/engine/dataset"
	"github.com/ckulkarni13/Mental-Health-Advisor-App/engine/domain"
)

// DefaultOutput is the file the normalizer writes when no path is given.
const DefaultOutput = "processed_data_final.txt"

// Normalizer turns free text into a space-joined sequence of lemmas.
type Normalizer struct {
	stopwords StopwordSet
	lemma     Lemmatizer
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithStopwords replaces the English stopword set.
func WithStopwords(s StopwordSet) Option {
	return func(n *Normalizer) { n.stopwords = s }
}

// WithLemmatizer replaces the noun lemmatizer.
func WithLemmatizer(l Lemmatizer) Option {
	return func(n *Normalizer) { n.lemma = l }
}

// New returns a Normalizer using English stopwords and noun lemmas.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{stopwords: EnglishStopwords(), lemma: NounLemmatizer{}}
	for _, o := range opts {
		o(n)
	}
	return n
}

// Tokenize lower-cases text, re-applies the cleaning filter and splits on
// whitespace.
func Tokenize(text string) []string {
	return strings.Fields(strings.ToLower(dataset.CleanText(text)))
}

// Tokens returns the lemmas of the non-stopword tokens in text. A lemma that
// itself lands on a stopword is dropped as well.
func (n *Normalizer) Tokens(text string) []string {
	raw := Tokenize(text)
	out := raw[:0]
	for _, tok := range raw {
		if n.stopwords.Contains(tok) {
			continue
		}
		lemma := n.lemma.Lemma(tok)
		if lemma == "" || n.stopwords.Contains(lemma) {
			continue
		}
		out = append(out, lemma)
	}
	return out
}

// Text normalizes a single string.
func (n *Normalizer) Text(text string) string {
	return strings.Join(n.Tokens(text), " ")
}

// File normalizes the Context and Response columns of the pipe-delimited file
// in and writes the result to out.
func (n *Normalizer) File(in, out string, logger *slog.Logger) (dataset.Stats, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if out == "" {
		out = DefaultOutput
	}
	st := dataset.Stats{Input: in, Output: out}

	t, err := dataset.ReadPipe(in)
	if err != nil {
		return st, err
	}
	if err := t.Apply(n.Text, domain.ColumnContext, domain.ColumnResponse); err != nil {
		return st, err
	}
	if err := dataset.WritePipe(out, t); err != nil {
		return st, err
	}
	st.Rows = len(t.Rows)
	logger.Info("normalized data saved", "path", out, "rows", st.Rows)
	return st, nil
}
