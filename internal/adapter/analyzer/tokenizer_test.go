package analyzer

import (
	"reflect"
	"testing"
)

func TestTokenizeDropsStopwords(t *testing.T) {
	tok := NewTokenizer(false)

	got := tok.Tokenize("The retries are scheduled with a linear backoff")
	want := []string{"retries", "scheduled", "linear", "backoff"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestTokenizeKeepStopwords(t *testing.T) {
	tok := NewTokenizer(true)

	got := tok.Tokenize("the quick fox")
	want := []string{"the", "quick", "fox"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestTokenizeShortWords(t *testing.T) {
	tok := NewTokenizer(true)

	for _, token := range tok.Tokenize("a I x go") {
		if len([]rune(token)) < 2 {
			t.Errorf("short token %q should be removed", token)
		}
	}
}

func TestTokenizeUnicode(t *testing.T) {
	tok := NewTokenizer(false)

	got := tok.Tokenize("Größe, naïve café_au_lait; 東京")
	want := []string{"größe", "naïve", "café_au_lait", "東京"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestTerms(t *testing.T) {
	tok := NewTokenizer(false)

	got := tok.Terms("chunk the chunk, embed the chunk")
	want := map[string]int{"chunk": 3, "embed": 1}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	if len(tok.Terms("")) != 0 {
		t.Error("expected no terms for empty text")
	}
}
