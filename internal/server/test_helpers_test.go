package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"sub-words/internal/config"
)

func newTestServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skipping test; listen unavailable: %v", err)
	}
	ts := &httptest.Server{
		Listener: listener,
		Config:   &http.Server{Handler: handler},
	}
	ts.Start()
	return ts
}

func newStubbedServer(t *testing.T, words wordSource) *Server {
	t.Helper()
	cfg := config.Default()
	srv := New(NewMemoryKV(), cfg)
	srv.words = words
	srv.engine = NewEngine(srv.ledger, words, srv.ws, cfg)
	t.Cleanup(srv.Close)
	return srv
}

func doRequest(t *testing.T, ts *httptest.Server, method, path string, payload any) *http.Response {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, ts.URL+path, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	t.Cleanup(func() {
		_ = resp.Body.Close()
	})
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

func createGame(t *testing.T, ts *httptest.Server, gameID string) string {
	t.Helper()
	resp := doRequest(t, ts, http.MethodPost, "/api/games", map[string]string{
		"game_id": gameID,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	body := decodeBody(t, resp)
	return body["game_id"].(string)
}

type stubWords struct {
	starting   []string
	followUps  []string
	connectors []string
	closing    []string
}

func (s *stubWords) StartingWords(ctx context.Context, topic string) []string {
	return append([]string(nil), s.starting...)
}

func (s *stubWords) FollowUpWords(ctx context.Context, story string) []string {
	return append([]string(nil), s.followUps...)
}

func (s *stubWords) ConnectorWords(ctx context.Context, story string) []string {
	return append([]string(nil), s.connectors...)
}

func (s *stubWords) CompleteStory(ctx context.Context, story string) []string {
	return append([]string(nil), s.closing...)
}

type publishedMessage struct {
	GameID  string
	Channel string
	Message BroadcastMessage
}

type recordingFanout struct {
	mu        sync.Mutex
	failTypes map[string]bool
	messages  []publishedMessage
}

func newRecordingFanout() *recordingFanout {
	return &recordingFanout{failTypes: make(map[string]bool)}
}

func (f *recordingFanout) Publish(gameID, channel string, message BroadcastMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failTypes[message.Type] {
		return errors.New("broadcast unavailable")
	}
	f.messages = append(f.messages, publishedMessage{GameID: gameID, Channel: channel, Message: message})
	return nil
}

func (f *recordingFanout) published() []publishedMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]publishedMessage(nil), f.messages...)
}

// seedGame writes a round in progress straight through the ledger.
func seedGame(t *testing.T, ledger *VoteLedger, gameID string, words []string, votes map[string]int) {
	t.Helper()
	ctx := context.Background()
	if err := ledger.ReplaceActiveCells(ctx, gameID, words); err != nil {
		t.Fatalf("replace cells: %v", err)
	}
	for word, count := range votes {
		for i := 0; i < count; i++ {
			if _, err := ledger.IncrementVote(ctx, gameID, word); err != nil {
				t.Fatalf("increment vote: %v", err)
			}
		}
	}
}
