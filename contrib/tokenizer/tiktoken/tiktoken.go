// Package tiktoken provides a plan.Tokenizer backed by the tiktoken BPE
// encodings, used to estimate step prompt sizes against their token budgets.
package tiktoken

import (
	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer estimates token counts with a tiktoken encoding.
type Tokenizer struct {
	enc *tiktoken.Tiktoken
}

// New resolves the encoding by model name, falling back to the encoding name.
func New(name string) (*Tokenizer, error) {
	enc, err := tiktoken.EncodingForModel(name)
	if err != nil {
		enc, err = tiktoken.GetEncoding(name)
		if err != nil {
			return nil, err
		}
	}
	return &Tokenizer{enc: enc}, nil
}

// Encode returns the token ids for text.
func (t *Tokenizer) Encode(text string) []int {
	return t.enc.Encode(text, nil, nil)
}

// CountTokens returns how many tokens text encodes to.
func (t *Tokenizer) CountTokens(text string) int {
	return len(t.Encode(text))
}
