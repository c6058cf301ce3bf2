package server

import (
	"context"
	"net/http"
	"time"

	"sub-words/internal/config"
)

// Server wires one deployment's components together: the vote ledger
// over the key-value store, the round engine, the websocket fan-out,
// and the bounded tick-job registry.
type Server struct {
	kv      KeyValue
	ledger  *VoteLedger
	words   wordSource
	engine  *Engine
	ws      *fanoutHub
	jobs    *jobRegistry
	limiter *rateLimiter
	cfg     config.Config
}

func New(kv KeyValue, cfg config.Config) *Server {
	ttl := time.Duration(cfg.StateTTLSeconds) * time.Second
	ledger := NewVoteLedger(kv, ttl)
	words := newStoryWords(NewWordClient(cfg))
	hub := newFanoutHub()
	srv := &Server{
		kv:      kv,
		ledger:  ledger,
		words:   words,
		engine:  NewEngine(ledger, words, hub, cfg),
		ws:      hub,
		limiter: newRateLimiter(),
		cfg:     cfg,
	}
	period := time.Duration(cfg.TickSeconds) * time.Second
	srv.jobs = newJobRegistry(kv, cfg.MaxJobs, period, ttl, srv.runTick)
	return srv
}

// runTick bounds each tick so a hung generation call cannot stall a
// game's schedule indefinitely.
func (s *Server) runTick(gameID string) {
	timeout := 2 * time.Duration(s.cfg.TickSeconds) * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	s.engine.Tick(ctx, gameID)
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/games", s.handleCreateGame)
	mux.HandleFunc("GET /api/games/", s.handleGameSubroutes)
	mux.HandleFunc("POST /api/games/", s.handleGameSubroutes)
	mux.HandleFunc("DELETE /api/games/", s.handleGameSubroutes)
	mux.HandleFunc("GET /ws/games/", s.handleWebsocket)
	return mux
}

func (s *Server) Close() {
	s.jobs.Close()
}
