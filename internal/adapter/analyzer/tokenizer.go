package analyzer

import "strings"

// Tokenizer splits normalized text into lowercase word tokens and
// character n-grams.
type Tokenizer struct {
	ngram int
}

// NewTokenizer creates a Tokenizer producing character n-grams of the given
// size. A size below 2 disables n-grams.
func NewTokenizer(ngram int) *Tokenizer {
	return &Tokenizer{ngram: ngram}
}

// Tokenize splits text into word tokens.
func (t *Tokenizer) Tokenize(text string) []string {
	words := splitWords(text)
	tokens := make([]string, 0, len(words))
	for _, word := range words {
		tokens = append(tokens, strings.ToLower(word))
	}
	return tokens
}

// Features returns word tokens followed by the padded character n-grams of
// each word. Words shorter than the n-gram size yield a single n-gram.
func (t *Tokenizer) Features(text string) []string {
	tokens := t.Tokenize(text)
	if t.ngram < 2 {
		return tokens
	}

	features := make([]string, 0, len(tokens)*4)
	features = append(features, tokens...)
	for _, tok := range tokens {
		padded := []rune("#" + tok + "#")
		if len(padded) <= t.ngram {
			features = append(features, string(padded))
			continue
		}
		for i := 0; i+t.ngram <= len(padded); i++ {
			features = append(features, string(padded[i:i+t.ngram]))
		}
	}
	return features
}

// CountTokens returns the number of word tokens in text.
func (t *Tokenizer) CountTokens(text string) int {
	return len(splitWords(text))
}

// splitWords splits text on runs of non-word characters. Bengali vowel signs
// and other marks in the script block stay attached to their word.
func splitWords(text string) []string {
	var words []string
	start := -1
	for i, r := range text {
		if isWordRune(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			words = append(words, text[start:i])
			start = -1
		}
	}
	if start >= 0 && start < len(text) {
		words = append(words, text[start:])
	}
	return words
}
