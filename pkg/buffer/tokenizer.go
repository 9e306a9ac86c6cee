package buffer

import (
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

const fallbackEncoding = "cl100k_base"

// tiktokenCounter counts tokens with the encoding for a given model,
// falling back to cl100k_base for models tiktoken does not know.
type tiktokenCounter struct {
	encoding *tiktoken.Tiktoken
}

// NewTokenCounter builds a Counter for model. It errors only when the
// fallback encoding itself cannot be loaded.
func NewTokenCounter(model string) (Counter, error) {
	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		encoding, err = tiktoken.GetEncoding(fallbackEncoding)
		if err != nil {
			return nil, err
		}
	}
	return &tiktokenCounter{encoding: encoding}, nil
}

func (c *tiktokenCounter) Count(text string) int {
	return len(c.encoding.Encode(text, nil, nil))
}

// WordCounter approximates token counts by whitespace-separated words.
// It is the offline fallback when BPE data cannot be fetched.
type WordCounter struct{}

func (WordCounter) Count(text string) int {
	return len(strings.Fields(text))
}
