package server

import (
	"context"
	"log"
	"strings"

	"sub-words/internal/config"
)

// Broadcaster fans a message out to every viewer subscribed to the
// named channel. Delivery is at-most-once; correctness never depends
// on it, only on the key-value state.
type Broadcaster interface {
	Publish(gameID, channel string, message BroadcastMessage) error
}

// Engine advances one game per tick: tally votes, append the winner to
// the story, regenerate candidates, fan the deltas out. No failure may
// escape a tick, and once the story mutation is committed, later
// persistence or broadcast failures are logged without rolling back.
type Engine struct {
	ledger    *VoteLedger
	words     wordSource
	fanout    Broadcaster
	maxRounds int
	maxCells  int
}

func NewEngine(ledger *VoteLedger, words wordSource, fanout Broadcaster, cfg config.Config) *Engine {
	return &Engine{
		ledger:    ledger,
		words:     words,
		fanout:    fanout,
		maxRounds: cfg.MaxRounds,
		maxCells:  cfg.MaxActiveCells,
	}
}

func (e *Engine) Tick(ctx context.Context, gameID string) {
	status, err := e.ledger.Status(ctx, gameID)
	if err != nil {
		log.Printf("tick status read failed game_id=%s error=%v", gameID, err)
		return
	}
	if status == statusGameOver {
		return
	}

	cells, err := e.ledger.ActiveCells(ctx, gameID)
	if err != nil {
		log.Printf("tick cell read failed game_id=%s error=%v", gameID, err)
		return
	}
	if len(cells) == 0 {
		log.Printf("no cells recorded game_id=%s", gameID)
		return
	}

	winner, ok := tallyWinner(cells)
	if !ok {
		log.Printf("no words with votes game_id=%s", gameID)
		return
	}

	story, err := e.ledger.Story(ctx, gameID)
	if err != nil {
		log.Printf("tick story read failed game_id=%s error=%v", gameID, err)
		return
	}
	round, err := e.ledger.Round(ctx, gameID)
	if err != nil {
		log.Printf("tick round read failed game_id=%s error=%v", gameID, err)
		return
	}

	word := strings.ToUpper(winner.Word)
	appended := joinStory(story, word)

	// The story append is the authoritative mutation; everything after
	// it is best-effort for this tick.
	if err := e.ledger.SetStory(ctx, gameID, appended); err != nil {
		log.Printf("story persist failed game_id=%s error=%v", gameID, err)
		return
	}
	if err := e.ledger.ResetCounters(ctx, gameID, winner.Word); err != nil {
		log.Printf("counter reset failed game_id=%s word=%s error=%v", gameID, winner.Word, err)
	}
	newRound := round + 1
	if err := e.ledger.SetRound(ctx, gameID, newRound); err != nil {
		log.Printf("round persist failed game_id=%s error=%v", gameID, err)
	}

	if newRound >= e.maxRounds {
		e.finishGame(ctx, gameID, story, word, appended)
		return
	}

	connectors := e.words.ConnectorWords(ctx, appended)
	expandedWord := word
	if len(connectors) > 0 {
		expandedWord = word + " " + strings.Join(connectors, " ")
	}
	expandedStory := joinStory(story, expandedWord)
	if err := e.ledger.SetStory(ctx, gameID, expandedStory); err != nil {
		log.Printf("expanded story persist failed game_id=%s error=%v", gameID, err)
		expandedStory = appended
		expandedWord = word
	}

	batch := e.words.FollowUpWords(ctx, expandedStory)
	fresh := filterAgainstStory(batch, expandedStory)
	if len(fresh) > e.maxCells {
		fresh = fresh[:e.maxCells]
	}
	if err := e.ledger.ReplaceActiveCells(ctx, gameID, fresh); err != nil {
		log.Printf("cell replace failed game_id=%s error=%v", gameID, err)
	}

	newCells := make([]Cell, len(fresh))
	for i, w := range fresh {
		newCells[i] = Cell{Word: w}
	}
	if err := e.fanout.Publish(gameID, channelGameUpdates, BroadcastMessage{
		Type:  messageUpdateCells,
		Cells: newCells,
	}); err != nil {
		log.Printf("cell update broadcast failed game_id=%s error=%v", gameID, err)
		if err := e.ledger.SaveBackupCells(ctx, gameID, newCells); err != nil {
			log.Printf("backup cell record failed game_id=%s error=%v", gameID, err)
		}
	}
	if err := e.fanout.Publish(gameID, channelGameUpdates, BroadcastMessage{
		Type:  messageUpdateRound,
		Round: newRound,
	}); err != nil {
		log.Printf("round broadcast failed game_id=%s error=%v", gameID, err)
	}
	if err := e.fanout.Publish(gameID, channelUpdateStory, BroadcastMessage{
		Type:  messageStoryUpdate,
		Word:  expandedWord,
		Story: expandedStory,
	}); err != nil {
		log.Printf("story broadcast failed game_id=%s error=%v", gameID, err)
	}
	log.Printf("round advanced game_id=%s round=%d winner=%s cells=%d", gameID, newRound, word, len(fresh))
}

// finishGame closes the story at the terminal round. No further
// candidates are generated or persisted.
func (e *Engine) finishGame(ctx context.Context, gameID, story, word, appended string) {
	closing := e.words.CompleteStory(ctx, appended)
	final := appended
	if len(closing) > 0 {
		final = joinStory(story, word+" "+strings.Join(closing, " "))
	}
	if err := e.ledger.SetStory(ctx, gameID, final); err != nil {
		log.Printf("final story persist failed game_id=%s error=%v", gameID, err)
		final = appended
	}
	if err := e.ledger.SetStatus(ctx, gameID, statusGameOver); err != nil {
		log.Printf("status persist failed game_id=%s error=%v", gameID, err)
	}
	if err := e.fanout.Publish(gameID, channelGameUpdates, BroadcastMessage{
		Type:   messageGameOver,
		Story:  final,
		Status: statusGameOver,
	}); err != nil {
		log.Printf("game over broadcast failed game_id=%s error=%v", gameID, err)
	}
	log.Printf("game over game_id=%s", gameID)
}

// tallyWinner picks the cell with the highest strictly positive vote
// count. Ties go to the cell appearing first in stored order, which
// keeps the outcome deterministic.
func tallyWinner(cells []Cell) (Cell, bool) {
	var best Cell
	found := false
	for _, cell := range cells {
		if cell.VoteCount <= 0 {
			continue
		}
		if !found || cell.VoteCount > best.VoteCount {
			best = cell
			found = true
		}
	}
	return best, found
}

// filterAgainstStory drops candidates already present in the story as
// whole tokens, case-insensitively, and deduplicates the batch.
func filterAgainstStory(words []string, story string) []string {
	used := make(map[string]struct{})
	for _, token := range strings.Fields(story) {
		used[strings.ToLower(token)] = struct{}{}
	}
	out := make([]string, 0, len(words))
	for _, word := range words {
		key := strings.ToLower(word)
		if _, taken := used[key]; taken {
			continue
		}
		used[key] = struct{}{}
		out = append(out, word)
	}
	return out
}

func joinStory(story, addition string) string {
	return strings.TrimSpace(strings.TrimSpace(story) + " " + addition)
}
