package server

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const maxGameIDLength = 64

type createGameRequest struct {
	GameID string `json:"game_id"`
	Topic  string `json:"topic"`
}

type voteRequest struct {
	Username string   `json:"username"`
	Session  string   `json:"session"`
	Words    []string `json:"words"`
}

func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	var req createGameRequest
	if err := readJSON(r.Body, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	gameID := strings.TrimSpace(req.GameID)
	if gameID == "" {
		gameID = uuid.NewString()
	}
	if len(gameID) > maxGameIDLength || strings.ContainsAny(gameID, " ,\t\n") {
		writeError(w, http.StatusBadRequest, "invalid game id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	exists, err := s.ledger.Exists(ctx, gameID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "state store unavailable")
		return
	}
	if exists {
		writeError(w, http.StatusConflict, "game already running")
		return
	}

	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		topic = pickTopic()
	}
	words := s.words.StartingWords(ctx, topic)
	if len(words) == 0 {
		words = FallbackWords()
	}
	initial := words
	var reserve []string
	if len(initial) > s.cfg.MaxActiveCells {
		reserve = initial[s.cfg.MaxActiveCells:]
		initial = initial[:s.cfg.MaxActiveCells]
	}

	if err := s.ledger.ReplaceActiveCells(ctx, gameID, initial); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to initialize game")
		return
	}
	if err := s.ledger.SetReserveWords(ctx, gameID, reserve); err != nil {
		log.Printf("reserve persist failed game_id=%s error=%v", gameID, err)
	}
	if err := s.ledger.SetStory(ctx, gameID, ""); err != nil {
		log.Printf("story init failed game_id=%s error=%v", gameID, err)
	}
	if err := s.ledger.SetRound(ctx, gameID, 1); err != nil {
		log.Printf("round init failed game_id=%s error=%v", gameID, err)
	}
	if err := s.ledger.SetStatus(ctx, gameID, statusInProgress); err != nil {
		log.Printf("status init failed game_id=%s error=%v", gameID, err)
	}
	if err := s.ledger.SetTopic(ctx, gameID, topic); err != nil {
		log.Printf("topic persist failed game_id=%s error=%v", gameID, err)
	}

	jobID := s.jobs.Schedule(gameID)
	log.Printf("game created game_id=%s topic=%s cells=%d reserve=%d job_id=%s",
		gameID, topic, len(initial), len(reserve), jobID)

	state, err := s.buildSnapshot(ctx, gameID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read game state")
		return
	}
	state["job_id"] = jobID
	state["topic"] = topic
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleGameSubroutes(w http.ResponseWriter, r *http.Request) {
	gameID, rest, ok := parseGamePath(r.URL.Path, "/api/games/")
	if !ok {
		http.NotFound(w, r)
		return
	}
	switch {
	case rest == "state" && r.Method == http.MethodGet:
		s.handleState(w, r, gameID)
	case rest == "votes" && r.Method == http.MethodPost:
		s.handleVote(w, r, gameID)
	case rest == "" && r.Method == http.MethodDelete:
		s.handleDeleteGame(w, r, gameID)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request, gameID string) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	exists, err := s.ledger.Exists(ctx, gameID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "state store unavailable")
		return
	}
	if !exists {
		writeError(w, http.StatusNotFound, "game not found")
		return
	}
	state, err := s.buildSnapshot(ctx, gameID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read game state")
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleVote(w http.ResponseWriter, r *http.Request, gameID string) {
	var req voteRequest
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	username := strings.TrimSpace(req.Username)
	if username == "" {
		writeError(w, http.StatusBadRequest, "username is required")
		return
	}
	if !s.limiter.Allow(username) {
		writeError(w, http.StatusTooManyRequests, "too many requests")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	status, err := s.ledger.Status(ctx, gameID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "state store unavailable")
		return
	}
	if status == statusGameOver {
		writeError(w, http.StatusConflict, "game is over")
		return
	}
	cells, err := s.ledger.ActiveCells(ctx, gameID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "state store unavailable")
		return
	}
	if len(cells) == 0 {
		writeError(w, http.StatusNotFound, "game not found")
		return
	}

	round, err := s.ledger.Round(ctx, gameID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "state store unavailable")
		return
	}
	if s.cfg.VoteOncePerRound {
		// Best-effort gate: the check and the mark below can interleave
		// with a concurrent vote from the same participant.
		voted, err := s.ledger.VotedRound(ctx, gameID, username)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "state store unavailable")
			return
		}
		if voted == round {
			writeError(w, http.StatusConflict, "already voted this round")
			return
		}
	}

	active := make(map[string]struct{}, len(cells))
	for _, cell := range cells {
		active[cell.Word] = struct{}{}
	}
	selected := make([]string, 0, len(req.Words))
	seen := make(map[string]struct{}, len(req.Words))
	for _, word := range req.Words {
		word = strings.ToUpper(strings.TrimSpace(word))
		if _, dup := seen[word]; dup {
			continue
		}
		seen[word] = struct{}{}
		if _, ok := active[word]; ok {
			selected = append(selected, word)
		}
	}
	if len(selected) == 0 {
		writeError(w, http.StatusBadRequest, "no selected words are in play")
		return
	}

	for _, word := range selected {
		if _, err := s.ledger.IncrementVote(ctx, gameID, word); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to record vote")
			return
		}
		if _, err := s.ledger.IncrementUser(ctx, gameID, word); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to record vote")
			return
		}
	}
	if s.cfg.VoteOncePerRound {
		if err := s.ledger.MarkVoted(ctx, gameID, username, round); err != nil {
			log.Printf("vote gate persist failed game_id=%s user=%s error=%v", gameID, username, err)
		}
	}

	updated, err := s.ledger.ActiveCells(ctx, gameID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "state store unavailable")
		return
	}
	if err := s.ws.Publish(gameID, channelGameUpdates, BroadcastMessage{
		Type:    messageUpdateCells,
		Session: strings.TrimSpace(req.Session),
		Cells:   updated,
	}); err != nil {
		log.Printf("vote broadcast failed game_id=%s error=%v", gameID, err)
	}
	log.Printf("vote recorded game_id=%s user=%s words=%d round=%d", gameID, username, len(selected), round)

	writeJSON(w, http.StatusOK, map[string]any{
		"cells": updated,
		"round": round,
	})
}

func (s *Server) handleDeleteGame(w http.ResponseWriter, r *http.Request, gameID string) {
	cancelled := s.jobs.CancelGame(gameID)
	if cancelled {
		log.Printf("game schedule cancelled game_id=%s", gameID)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"cancelled": cancelled,
	})
}
