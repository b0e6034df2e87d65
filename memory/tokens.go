package memory

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// tokenizerEncoding is the BPE encoding used for counting.
const tokenizerEncoding = "cl100k_base"

// TokenCounter counts tokens using tiktoken, falling back to a bytes/4
// estimate when the encoding cannot be loaded (e.g. offline).
type TokenCounter struct {
	once sync.Once
	enc  *tiktoken.Tiktoken
}

// NewTokenCounter creates a TokenCounter. Encoding load is deferred to
// the first Count call.
func NewTokenCounter() *TokenCounter {
	return &TokenCounter{}
}

// Count returns the token count for text.
func (c *TokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	c.once.Do(func() {
		if enc, err := tiktoken.GetEncoding(tokenizerEncoding); err == nil {
			c.enc = enc
		}
	})
	if c.enc != nil {
		return len(c.enc.Encode(text, nil, nil))
	}
	return (len(text) + 3) / 4
}
