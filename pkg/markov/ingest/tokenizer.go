package ingest

import "strings"

// Separator is the only character messages are split on. Runs of spaces and
// other whitespace are not collapsed, so "a  b" yields an empty middle token.
const Separator = " "

// NormalizeFunc maps a raw token to the form used for comparison and storage.
type NormalizeFunc func(word string) string

// StripWord is the word normalization applied everywhere a word is compared or
// stored. It is currently the identity.
func StripWord(word string) string {
	return word
}

// FoldCase lower-cases a word. The chain builder applies it to the leading
// word of each pair only.
func FoldCase(word string) string {
	return strings.ToLower(word)
}

// Tokenizer splits messages into word tokens
type Tokenizer struct {
	normalize NormalizeFunc
}

// NewTokenizer creates a tokenizer using the given normalization.
// A nil normalize falls back to StripWord.
func NewTokenizer(normalize NormalizeFunc) *Tokenizer {
	if normalize == nil {
		normalize = StripWord
	}
	return &Tokenizer{normalize: normalize}
}

// Split returns the raw tokens of a message, without normalization.
// Empty tokens are preserved.
func (t *Tokenizer) Split(message string) []string {
	return strings.Split(message, Separator)
}

// Normalize applies the tokenizer's word normalization.
func (t *Tokenizer) Normalize(word string) string {
	return t.normalize(word)
}

// Tokenize splits a message and normalizes each token. Empty tokens are kept;
// callers that must not count them (the lexicon) filter them out.
func (t *Tokenizer) Tokenize(message string) []string {
	raw := t.Split(message)
	tokens := make([]string, len(raw))
	for i, w := range raw {
		tokens[i] = t.normalize(w)
	}
	return tokens
}
