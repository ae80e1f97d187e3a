// Package vocabulary merges recognized text into a deduplicated word list
// that keeps first-seen order.
package vocabulary

import (
	"fmt"
	"sync"

	"github.com/bdougie/framevocab/internal/models"
)

// Vocabulary is the finalized, read-only word list of one video.
type Vocabulary struct {
	words []string
}

// Words returns the tokens in first-seen order.
func (v Vocabulary) Words() []string {
	return append([]string(nil), v.words...)
}

func (v Vocabulary) Len() int { return len(v.words) }

// Aggregator accumulates tokens for one video. Add is safe for concurrent use
// but callers should feed results in frame order to get a deterministic
// vocabulary.
type Aggregator struct {
	tokenizer *Tokenizer

	mu        sync.Mutex
	seen      map[string]struct{}
	words     []string
	finalized bool
}

func NewAggregator(tokenizer *Tokenizer) *Aggregator {
	if tokenizer == nil {
		tokenizer = NewTokenizer()
	}
	return &Aggregator{tokenizer: tokenizer, seen: make(map[string]struct{})}
}

// Add tokenizes result and appends every token not seen before. It returns
// the number of new tokens.
func (a *Aggregator) Add(result models.RecognitionResult) (int, error) {
	tokens := a.tokenizer.Tokens(result.Text)

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.finalized {
		return 0, fmt.Errorf("%w: frame %d", models.ErrAggregatorClosed, result.FrameIndex)
	}

	added := 0
	for _, tok := range tokens {
		if _, ok := a.seen[tok]; ok {
			continue
		}
		a.seen[tok] = struct{}{}
		a.words = append(a.words, tok)
		added++
	}
	return added, nil
}

// Finalize closes the aggregator and returns the vocabulary. Further calls
// return the same vocabulary.
func (a *Aggregator) Finalize() Vocabulary {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.finalized = true
	return Vocabulary{words: a.words}
}
