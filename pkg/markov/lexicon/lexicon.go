package lexicon

import (
	"sort"

	"github.com/cognicore/markov/pkg/markov/ingest"
)

// Lexicon maps a word to how many times one user used it.
// The empty word is never an entry.
//
// Words are counted as the tokenizer normalizes them, without case folding,
// so "Hello" and "hello" are separate entries even though the chain builder
// folds the leading word of a link.
type Lexicon map[string]int64

// Build counts every non-empty token across messages. Each call returns a
// fresh Lexicon.
func Build(tokenizer *ingest.Tokenizer, messages []string) Lexicon {
	if tokenizer == nil {
		tokenizer = ingest.NewTokenizer(nil)
	}

	lex := make(Lexicon)
	for _, msg := range messages {
		for _, word := range tokenizer.Tokenize(msg) {
			if word == "" {
				continue
			}
			lex[word]++
		}
	}
	return lex
}

// Total returns the number of word occurrences counted.
func (l Lexicon) Total() int64 {
	var total int64
	for _, n := range l {
		total += n
	}
	return total
}

// Words returns the distinct words in lexicographic order.
func (l Lexicon) Words() []string {
	words := make([]string, 0, len(l))
	for w := range l {
		words = append(words, w)
	}
	sort.Strings(words)
	return words
}
