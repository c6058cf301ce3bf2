package server

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"unicode"
)

const (
	minStoryWordLen = 3
	maxStoryWordLen = 9
	maxConnectorLen = 12
	maxClosingWords = 12
	maxReserveWords = 100
)

var defaultTopics = []string{"funny", "news", "history", "movies"}

func pickTopic() string {
	return defaultTopics[rand.Intn(len(defaultTopics))]
}

// wordSource is what the engine and the create handler need from the
// generation layer. Each method owns its prompt and its word-shape
// validation; retry mechanics live in WordClient.
type wordSource interface {
	StartingWords(ctx context.Context, topic string) []string
	FollowUpWords(ctx context.Context, story string) []string
	ConnectorWords(ctx context.Context, story string) []string
	CompleteStory(ctx context.Context, story string) []string
}

type storyWords struct {
	client *WordClient
}

func newStoryWords(client *WordClient) *storyWords {
	return &storyWords{client: client}
}

func (g *storyWords) StartingWords(ctx context.Context, topic string) []string {
	prompt := fmt.Sprintf(
		"Generate a list of 100 unique, interesting words that could form a meaningful story about %s. "+
			"Include creative, complementary words. Provide the words as a comma-separated list, all in UPPERCASE.",
		topic)
	return filterStoryWords(g.client.Generate(ctx, prompt), maxReserveWords)
}

func (g *storyWords) FollowUpWords(ctx context.Context, story string) []string {
	prompt := fmt.Sprintf(
		"The story so far is: %q. Generate a list of 30 unique words that could meaningfully continue it. "+
			"Provide the words as a comma-separated list, all in UPPERCASE.",
		story)
	return filterStoryWords(g.client.Generate(ctx, prompt), maxReserveWords)
}

func (g *storyWords) ConnectorWords(ctx context.Context, story string) []string {
	prompt := fmt.Sprintf(
		"The story so far is: %q. Suggest up to 3 short grammatical connector words (articles, "+
			"prepositions, conjunctions) that read naturally after the last word. "+
			"Provide them as a comma-separated list, all in UPPERCASE.",
		story)
	return filterConnectorWords(g.client.Generate(ctx, prompt), 3)
}

func (g *storyWords) CompleteStory(ctx context.Context, story string) []string {
	prompt := fmt.Sprintf(
		"The story so far is: %q. Write a short closing phrase of at most 12 words that "+
			"finishes the story. Respond with the words only.",
		story)
	return filterClosingWords(g.client.Generate(ctx, prompt), maxClosingWords)
}

// filterStoryWords keeps candidate nouns/story words: trimmed of list
// markers, uppercase, alphabetic, 3 to 9 letters, deduplicated.
func filterStoryWords(tokens []string, limit int) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, token := range tokens {
		word := strings.ToUpper(trimTokenDecorations(token))
		if len(word) < minStoryWordLen || len(word) > maxStoryWordLen {
			continue
		}
		if !isAlphabetic(word) {
			continue
		}
		if _, dup := seen[word]; dup {
			continue
		}
		seen[word] = struct{}{}
		out = append(out, word)
		if len(out) == limit {
			break
		}
	}
	return out
}

// filterConnectorWords is looser on length: connectors can be a
// single letter ("A") but never punctuation or numerals.
func filterConnectorWords(tokens []string, limit int) []string {
	out := make([]string, 0, limit)
	for _, token := range tokens {
		word := strings.ToUpper(trimTokenDecorations(token))
		if word == "" || len(word) > maxConnectorLen {
			continue
		}
		if !isAlphabetic(word) {
			continue
		}
		out = append(out, word)
		if len(out) == limit {
			break
		}
	}
	return out
}

// filterClosingWords keeps a narrative continuation readable: tokens
// are stripped of punctuation and uppercased, duplicates allowed.
func filterClosingWords(tokens []string, limit int) []string {
	out := make([]string, 0, limit)
	for _, token := range tokens {
		word := strings.ToUpper(trimTokenDecorations(token))
		if word == "" || !isAlphabetic(word) {
			continue
		}
		out = append(out, word)
		if len(out) == limit {
			break
		}
	}
	return out
}

func trimTokenDecorations(token string) string {
	return strings.TrimFunc(strings.TrimSpace(token), func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsDigit(r) || unicode.IsSymbol(r)
	})
}

func isAlphabetic(word string) bool {
	if word == "" {
		return false
	}
	for _, r := range word {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
