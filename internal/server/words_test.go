package server

import (
	"reflect"
	"testing"
)

func TestFilterStoryWords(t *testing.T) {
	tokens := []string{"1.", "apple", "BERRY!", "ox", "EXTRAORDINARY", "chess", "Chess", "42", "*daisy*"}
	got := filterStoryWords(tokens, 10)
	want := []string{"APPLE", "BERRY", "CHESS", "DAISY"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestFilterStoryWordsLimit(t *testing.T) {
	tokens := []string{"APPLE", "BERRY", "CHESS", "DAISY"}
	got := filterStoryWords(tokens, 2)
	if len(got) != 2 {
		t.Fatalf("expected 2 words, got %v", got)
	}
}

func TestFilterConnectorWordsAllowsShortTokens(t *testing.T) {
	got := filterConnectorWords([]string{"a", "the", "of,", "12", "...", "and"}, 3)
	want := []string{"A", "THE", "OF"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestFilterClosingWordsStripsPunctuation(t *testing.T) {
	got := filterClosingWords([]string{"and", "they", "lived", "happily."}, 12)
	want := []string{"AND", "THEY", "LIVED", "HAPPILY"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestPickTopicIsKnown(t *testing.T) {
	known := make(map[string]struct{}, len(defaultTopics))
	for _, topic := range defaultTopics {
		known[topic] = struct{}{}
	}
	for i := 0; i < 20; i++ {
		if _, ok := known[pickTopic()]; !ok {
			t.Fatalf("unexpected topic")
		}
	}
}
