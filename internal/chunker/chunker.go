package chunker

import (
	"fmt"
	"iter"
	"strings"
)

const (
	DefaultMaxTokens = 500
	DefaultOverlap   = 50
)

// Tokenizer turns text into token ids and back.
type Tokenizer interface {
	Encode(text string) []int
	Decode(tokens []int) string
}

// Chunker splits text into overlapping windows of at most MaxTokens tokens.
// Consecutive windows share Overlap tokens.
type Chunker struct {
	tokenizer Tokenizer
	maxTokens int
	overlap   int
}

func New(tokenizer Tokenizer, maxTokens, overlap int) (*Chunker, error) {
	if tokenizer == nil {
		return nil, fmt.Errorf("tokenizer is required")
	}
	if maxTokens <= 0 {
		return nil, fmt.Errorf("max tokens must be positive, got %d", maxTokens)
	}
	if overlap < 0 || overlap >= maxTokens {
		return nil, fmt.Errorf("overlap must be in [0, %d), got %d", maxTokens, overlap)
	}
	return &Chunker{tokenizer: tokenizer, maxTokens: maxTokens, overlap: overlap}, nil
}

// MaxTokens and Overlap report the window the chunker was built with.
func (c *Chunker) MaxTokens() int { return c.maxTokens }
func (c *Chunker) Overlap() int { return c.overlap }

// Windows yields the chunks of text in order. The sequence can be ranged over
// any number of times.
func (c *Chunker) Windows(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		if strings.TrimSpace(text) == "" {
			return
		}
		tokens := c.tokenizer.Encode(text)
		if len(tokens) == 0 {
			return
		}
		for _, b := range bounds(len(tokens), c.maxTokens, c.overlap) {
			if !yield(c.tokenizer.Decode(tokens[b[0]:b[1]])) {
				return
			}
		}
	}
}

// Split collects Windows into a slice.
func (c *Chunker) Split(text string) []string {
	var chunks []string
	for chunk := range c.Windows(text) {
		chunks = append(chunks, chunk)
	}
	return chunks
}

// bounds returns the [start, end) token offsets of every window over n tokens.
// The window that reaches n is the last one emitted.
func bounds(n, maxTokens, overlap int) [][2]int {
	step := maxTokens - overlap
	var out [][2]int
	for start := 0; start < n; start += step {
		end := min(start+maxTokens, n)
		out = append(out, [2]int{start, end})
		if end == n {
			break
		}
	}
	return out
}
