// Package tokenizer estimates the token size of remote analysis payloads so
// the budget gate can price a call before making it.
package tokenizer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// anthropicOverhead approximates how much larger Claude tokenization runs
// compared to cl100k_base on English prose.
const anthropicOverhead = 1.15

// Counter counts tokens with a tiktoken codec, loaded on first use.
// If the codec cannot be loaded it estimates four characters per token.
type Counter struct {
	encoding tokenizer.Encoding

	once  sync.Once
	codec tokenizer.Codec
	err   error
}

// NewCounter returns a counter for the given tiktoken encoding.
func NewCounter(encoding tokenizer.Encoding) *Counter {
	return &Counter{encoding: encoding}
}

// ForProvider picks an encoding suited to the provider's models.
func ForProvider(provider string) *Counter {
	if provider == "openai" {
		return NewCounter(tokenizer.O200kBase)
	}
	return NewCounter(tokenizer.Cl100kBase)
}

func (c *Counter) load() (tokenizer.Codec, error) {
	c.once.Do(func() {
		c.codec, c.err = tokenizer.Get(c.encoding)
		if c.err != nil {
			c.err = fmt.Errorf("load encoding %s: %w", c.encoding, c.err)
		}
	})
	return c.codec, c.err
}

// Count returns the token count of text.
func (c *Counter) Count(text string) int64 {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	codec, err := c.load()
	if err != nil {
		return estimateTokens(text)
	}
	ids, _, err := codec.Encode(text)
	if err != nil {
		return estimateTokens(text)
	}
	return int64(len(ids))
}

// CountFor counts text and applies the provider's tokenization correction.
func (c *Counter) CountFor(provider, text string) int64 {
	n := c.Count(text)
	if provider == "anthropic" {
		return int64(float64(n)*anthropicOverhead + 0.5)
	}
	return n
}

// CountMessages counts a system prompt plus user messages, adding framing
// overhead per message.
func (c *Counter) CountMessages(provider, system string, messages ...string) int64 {
	var total int64
	if system != "" {
		total += 4 + c.CountFor(provider, system)
	}
	for _, m := range messages {
		total += 4 + c.CountFor(provider, m)
	}
	return total + 2
}

// estimateTokens assumes four characters per token, rounding up.
func estimateTokens(text string) int64 {
	text = strings.TrimSpace(text)
	if len(text) == 0 {
		return 0
	}
	return int64((len(text) + 3) / 4)
}
