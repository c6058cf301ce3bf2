package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync/atomic"
	"testing"

	"sub-words/internal/config"
)

func newTestWordClient(baseURL string, retries int) *WordClient {
	cfg := config.Default()
	cfg.GeminiAPIKey = "test-key"
	cfg.GeminiBaseURL = baseURL
	cfg.GenerateMaxRetries = retries
	cfg.BackoffBaseMillis = 1
	cfg.BackoffMaxMillis = 2
	return NewWordClient(cfg)
}

func generationResponse(text string) []byte {
	payload := map[string]any{
		"candidates": []map[string]any{
			{
				"content": map[string]any{
					"parts": []map[string]string{{"text": text}},
				},
			},
		},
	}
	data, _ := json.Marshal(payload)
	return data
}

func TestGenerateParsesTokenList(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("expected credential on request, got %q", r.URL.Query().Get("key"))
		}
		_, _ = w.Write(generationResponse("APPLE, BERRY cherry,  DAISY"))
	}))
	t.Cleanup(ts.Close)

	client := newTestWordClient(ts.URL, 3)
	got := client.Generate(context.Background(), "some prompt")
	want := []string{"APPLE", "BERRY", "cherry", "DAISY"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected a single call, got %d", calls)
	}
}

func TestGenerateRetriesTransientFailures(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		switch n {
		case 1:
			w.WriteHeader(http.StatusInternalServerError)
		case 2:
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			_, _ = w.Write(generationResponse("LIGHT, MAGIC"))
		}
	}))
	t.Cleanup(ts.Close)

	client := newTestWordClient(ts.URL, 3)
	got := client.Generate(context.Background(), "some prompt")
	want := []string{"LIGHT", "MAGIC"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestGenerateExhaustedRetriesReturnsFallback(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	t.Cleanup(ts.Close)

	client := newTestWordClient(ts.URL, 2)
	got := client.Generate(context.Background(), "some prompt")
	if !reflect.DeepEqual(got, FallbackWords()) {
		t.Fatalf("expected fallback words, got %v", got)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("expected maxRetries+1 calls, got %d", calls)
	}

	// The fallback is the same sequence every time.
	again := client.Generate(context.Background(), "another prompt")
	if !reflect.DeepEqual(got, again) {
		t.Fatalf("fallback not stable: %v vs %v", got, again)
	}
}

func TestGenerateClientErrorDoesNotRetry(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(ts.Close)

	client := newTestWordClient(ts.URL, 3)
	got := client.Generate(context.Background(), "some prompt")
	if !reflect.DeepEqual(got, FallbackWords()) {
		t.Fatalf("expected fallback words, got %v", got)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected a single call on client error, got %d", calls)
	}
}

func TestGenerateMissingCredentialFailsFast(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	t.Cleanup(ts.Close)

	cfg := config.Default()
	cfg.GeminiBaseURL = ts.URL
	client := NewWordClient(cfg)
	got := client.Generate(context.Background(), "some prompt")
	if !reflect.DeepEqual(got, FallbackWords()) {
		t.Fatalf("expected fallback words, got %v", got)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Fatalf("expected no calls without a credential, got %d", calls)
	}
}

func TestFallbackWordsAreCopied(t *testing.T) {
	first := FallbackWords()
	first[0] = "MUTATED"
	if FallbackWords()[0] != "APPLE" {
		t.Fatalf("fallback sequence must be immutable")
	}
	for _, word := range FallbackWords() {
		if !isAlphabetic(word) {
			t.Fatalf("fallback word %q violates token shape", word)
		}
	}
}

func TestBackoffDelayIsClamped(t *testing.T) {
	client := newTestWordClient("http://localhost", 3)
	for attempt := 0; attempt < 8; attempt++ {
		delay := client.backoffDelay(attempt)
		if delay > client.maxDelay {
			t.Fatalf("delay %s exceeds maximum %s", delay, client.maxDelay)
		}
		if delay <= 0 {
			t.Fatalf("delay must be positive, got %s", delay)
		}
	}
}

func TestSplitTokens(t *testing.T) {
	got := splitTokens("APPLE,BERRY  cherry\nDAISY,, ")
	want := []string{"APPLE", "BERRY", "cherry", "DAISY"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}
