package textutil

import (
	"reflect"
	"testing"
)

func TestKeywordsFiltersStopwordsAndShortTokens(t *testing.T) {
	got := Keywords("I really think that hiking in Norway is great", 4)
	want := []string{"hiking", "norway", "great"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Keywords() = %v, want %v", got, want)
	}
}

func TestJaccardBounds(t *testing.T) {
	a := WordSet("python is great")
	b := WordSet("python is great")
	if got := Jaccard(a, b); got != 1 {
		t.Fatalf("Jaccard(identical) = %v, want 1", got)
	}
	if got := Jaccard(a, WordSet("")); got != 0 {
		t.Fatalf("Jaccard(vs empty) = %v, want 0", got)
	}
	if got := Jaccard(WordSet(""), WordSet("")); got != 0 {
		t.Fatalf("Jaccard(empty, empty) = %v, want 0", got)
	}
}

func TestCapitalizedTokensSkipsSentenceStart(t *testing.T) {
	got := CapitalizedTokens("Yesterday I met Alice in Paris. Today was fine.")
	want := []string{"Alice", "Paris"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("CapitalizedTokens() = %v, want %v", got, want)
	}
}

func TestQuotedSpans(t *testing.T) {
	got := QuotedSpans(`She called it "the best trip" and repeated "the best trip" again`)
	want := []string{"the best trip"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("QuotedSpans() = %v, want %v", got, want)
	}
}
