package chain

import (
	"sort"

	"github.com/cognicore/markov/pkg/markov/ingest"
)

// Chain maps a LinkID to how often one user's messages exhibited that link.
type Chain map[LinkID]int64

// Builder walks consecutive word pairs and counts them through a shared Registry.
type Builder struct {
	tokenizer *ingest.Tokenizer
	registry  *Registry
	foldFrom  ingest.NormalizeFunc
}

// NewBuilder creates a chain builder. The leading word of every pair is
// case-folded with ingest.FoldCase before normalization; the trailing word is not.
func NewBuilder(tokenizer *ingest.Tokenizer, registry *Registry) *Builder {
	if tokenizer == nil {
		tokenizer = ingest.NewTokenizer(nil)
	}
	return &Builder{
		tokenizer: tokenizer,
		registry:  registry,
		foldFrom:  ingest.FoldCase,
	}
}

// Build counts the links in messages. Every call returns a fresh Chain;
// only the Registry is shared between calls.
func (b *Builder) Build(messages []string) Chain {
	chain := make(Chain)

	for _, message := range messages {
		words := b.tokenizer.Split(message)

		// A single word has no adjacency
		if len(words) == 1 {
			continue
		}

		for i := 1; i < len(words); i++ {
			link := Link{
				From: b.tokenizer.Normalize(b.foldFrom(words[i-1])),
				To:   b.tokenizer.Normalize(words[i]),
			}
			chain[b.registry.Resolve(link)]++
		}
	}

	return chain
}

// Total returns the sum of all link frequencies.
func (c Chain) Total() int64 {
	var total int64
	for _, n := range c {
		total += n
	}
	return total
}

// SortedIDs returns the chain's link IDs in ascending order.
func (c Chain) SortedIDs() []LinkID {
	ids := make([]LinkID, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
