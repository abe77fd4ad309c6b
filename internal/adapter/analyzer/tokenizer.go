package analyzer

import (
	"strings"
	"unicode"
)

// Tokenizer splits text into lowercase terms, dropping stopwords and
// single-character words.
type Tokenizer struct {
	stopwords map[string]struct{}
}

// NewTokenizer creates a tokenizer with the default English stopword list.
// keepStopwords disables stopword removal.
func NewTokenizer(keepStopwords bool) *Tokenizer {
	t := &Tokenizer{}
	if !keepStopwords {
		t.stopwords = defaultStopwords()
	}
	return t
}

// Tokenize returns terms in text order, duplicates included.
func (t *Tokenizer) Tokenize(text string) []string {
	words := splitWords(text)
	tokens := make([]string, 0, len(words))

	for _, word := range words {
		word = strings.ToLower(word)
		if len([]rune(word)) < 2 {
			continue
		}
		if _, isStop := t.stopwords[word]; isStop {
			continue
		}
		tokens = append(tokens, word)
	}

	return tokens
}

// Terms returns the distinct terms of text with their frequencies.
func (t *Tokenizer) Terms(text string) map[string]int {
	terms := make(map[string]int)
	for _, tok := range t.Tokenize(text) {
		terms[tok]++
	}
	return terms
}

// splitWords splits on anything that is not a letter, digit or underscore.
func splitWords(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
}

// defaultStopwords returns a set of common English stopwords.
func defaultStopwords() map[string]struct{} {
	stops := []string{
		"an", "and", "are", "as", "at", "be", "by", "for",
		"from", "has", "he", "in", "is", "it", "its", "of", "on",
		"that", "the", "to", "was", "were", "will", "with", "this",
		"have", "had", "but", "not", "you", "your", "we", "our",
		"they", "their", "she", "her", "his", "if", "or", "so",
		"no", "can", "do", "does", "did", "been", "being", "would",
		"could", "should", "may", "might", "must", "which",
		"who", "what", "when", "where", "how", "all",
		"each", "both", "other", "some", "such", "than", "too", "very", "just", "also",
	}
	m := make(map[string]struct{}, len(stops))
	for _, s := range stops {
		m[s] = struct{}{}
	}
	return m
}
