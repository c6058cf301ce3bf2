package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"strings"
	"time"
	"unicode"

	"sub-words/internal/config"
)

var errNoCredential = errors.New("generation API key is not configured")

// fallbackWords is returned whenever generation fails outright, so the
// round engine stays deterministic under total external failure.
var fallbackWords = []string{
	"APPLE", "BERRY", "CHESS", "DAISY", "EAGLE",
	"GIANT", "HONEY", "IRONY", "JOKER", "KARMA",
	"LIGHT", "MAGIC", "NOBLE", "OCEAN", "PEACE",
}

func FallbackWords() []string {
	out := make([]string, len(fallbackWords))
	copy(out, fallbackWords)
	return out
}

// WordClient calls the generative text service with a prompt and
// returns the response split into tokens. Transient failures (429,
// 5xx, network errors) are retried with exponential backoff and
// jitter; credential and other client errors fail immediately. It
// performs no semantic filtering: callers apply their own word-shape
// validation because the acceptable vocabulary differs per call site.
type WordClient struct {
	apiKey     string
	model      string
	baseURL    string
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	httpClient *http.Client
}

func NewWordClient(cfg config.Config) *WordClient {
	return &WordClient{
		apiKey:     cfg.GeminiAPIKey,
		model:      cfg.GeminiModel,
		baseURL:    strings.TrimRight(cfg.GeminiBaseURL, "/"),
		maxRetries: cfg.GenerateMaxRetries,
		baseDelay:  time.Duration(cfg.BackoffBaseMillis) * time.Millisecond,
		maxDelay:   time.Duration(cfg.BackoffMaxMillis) * time.Millisecond,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Generate never fails: on exhausted retries, unusable responses, or a
// missing credential it logs and returns the fixed fallback sequence.
func (c *WordClient) Generate(ctx context.Context, prompt string) []string {
	tokens, err := c.generate(ctx, prompt)
	if err != nil {
		log.Printf("word generation failed, using fallback error=%v", err)
		return FallbackWords()
	}
	if len(tokens) == 0 {
		log.Printf("word generation returned no tokens, using fallback")
		return FallbackWords()
	}
	return tokens
}

func (c *WordClient) generate(ctx context.Context, prompt string) ([]string, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return nil, errNoCredential
	}
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.backoffDelay(attempt - 1)):
			}
		}
		text, retryable, err := c.call(ctx, prompt)
		if err == nil {
			return splitTokens(text), nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
		log.Printf("generation attempt failed attempt=%d error=%v", attempt, err)
	}
	return nil, lastErr
}

// backoffDelay returns min(base * 2^attempt + jitter[0,1s), maxDelay).
func (c *WordClient) backoffDelay(attempt int) time.Duration {
	delay := c.baseDelay * (1 << attempt)
	delay += time.Duration(rand.Int63n(int64(time.Second)))
	if delay > c.maxDelay {
		delay = c.maxDelay
	}
	return delay
}

func (c *WordClient) call(ctx context.Context, prompt string) (string, bool, error) {
	reqBody := geminiRequest{
		Contents: []geminiContent{
			{Parts: []geminiPart{{Text: prompt}}},
		},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", false, fmt.Errorf("failed to build generation request")
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", false, fmt.Errorf("failed to build generation request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", true, fmt.Errorf("failed to reach generation service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", true, fmt.Errorf("failed to read generation response")
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return "", true, fmt.Errorf("generation request failed (%d)", resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", false, fmt.Errorf("generation request rejected (%d)", resp.StatusCode)
	}

	var parsed geminiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", false, fmt.Errorf("failed to parse generation response")
	}
	if parsed.Error != nil && parsed.Error.Message != "" {
		return "", false, fmt.Errorf("generation error: %s", parsed.Error.Message)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", false, errors.New("generation returned no candidates")
	}
	return parsed.Candidates[0].Content.Parts[0].Text, false, nil
}

// splitTokens splits a response body on commas and whitespace.
func splitTokens(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
	out := make([]string, 0, len(fields))
	for _, field := range fields {
		if field = strings.TrimSpace(field); field != "" {
			out = append(out, field)
		}
	}
	return out
}
