package openai

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Truncator trims text to a token budget using the model's tokenizer.
// The encoding is loaded on first use.
type Truncator struct {
	model string

	once sync.Once
	enc  *tiktoken.Tiktoken
	err  error
}

// NewTruncator returns a Truncator for model. Unknown models fall back to
// cl100k_base.
func NewTruncator(model string) *Truncator {
	return &Truncator{model: model}
}

func (t *Truncator) load() (*tiktoken.Tiktoken, error) {
	t.once.Do(func() {
		t.enc, t.err = tiktoken.EncodingForModel(t.model)
		if t.err != nil {
			t.enc, t.err = tiktoken.GetEncoding("cl100k_base")
		}
		if t.err != nil {
			t.err = fmt.Errorf("openai: load tokenizer: %w", t.err)
		}
	})
	return t.enc, t.err
}

// Count returns the number of tokens in text.
func (t *Truncator) Count(text string) (int, error) {
	enc, err := t.load()
	if err != nil {
		return 0, err
	}
	return len(enc.Encode(text, nil, nil)), nil
}

// Truncate returns text cut to at most max tokens. max <= 0 leaves it whole.
func (t *Truncator) Truncate(text string, max int) (string, error) {
	if max <= 0 {
		return text, nil
	}
	enc, err := t.load()
	if err != nil {
		return "", err
	}
	toks := enc.Encode(text, nil, nil)
	if len(toks) <= max {
		return text, nil
	}
	return enc.Decode(toks[:max]), nil
}
