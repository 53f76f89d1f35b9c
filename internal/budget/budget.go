// Package budget provides token budget estimation and context trimming for
// answer generation. Because the generator supports multiple LLM backends with
// different tokenizers, this package uses a conservative character-based
// heuristic: 1 token ≈ 4 characters (English prose and tabular text).
package budget

import (
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/dataq-go/internal/retrieval"
)

const (
	// charsPerToken is the conservative character-to-token ratio used for
	// estimation.
	charsPerToken = 4

	// DefaultMaxContextTokens is the default input context budget in tokens.
	// Conservative enough for 8k-context models while leaving room for the
	// answer.
	DefaultMaxContextTokens = 6000
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateMessages returns the estimated total token count for a slice of
// schema.Message values, summing role + content for each message.
func EstimateMessages(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		// Small per-message overhead, roughly what chat APIs charge.
		total += 4
		total += Estimate(string(m.Role))
		total += Estimate(m.Content)
	}
	return total
}

// TrimResults drops retrieved chunks from the tail of the ranked list until
// the combined chunk text fits within maxTokens alongside the fixed prompt
// text. Rank order is preserved: the least relevant chunks go first. The
// top-ranked chunk is kept even when it alone exceeds the budget, so the
// generator always sees some context.
func TrimResults(fixed string, results []retrieval.Result, maxTokens int) []retrieval.Result {
	if len(results) == 0 {
		return results
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxContextTokens
	}

	fixedTokens := Estimate(fixed)
	for len(results) > 1 {
		total := fixedTokens
		for _, r := range results {
			total += Estimate(r.Chunk.Text)
		}
		if total <= maxTokens {
			break
		}
		results = results[:len(results)-1]
	}
	return results
}
