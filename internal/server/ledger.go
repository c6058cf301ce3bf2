package server

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// VoteLedger is the data-access layer over the key-value store. All
// counter and story mutation goes through it so the accepted
// read-modify-write races stay in one place. Every write refreshes the
// key's expiry, so an abandoned game's state self-reclaims.
type VoteLedger struct {
	kv  KeyValue
	ttl time.Duration
}

func NewVoteLedger(kv KeyValue, ttl time.Duration) *VoteLedger {
	return &VoteLedger{kv: kv, ttl: ttl}
}

func (l *VoteLedger) cellsKey(gameID string) string {
	return "subwords_" + gameID
}

func (l *VoteLedger) votesKey(gameID, word string) string {
	return "subwords_" + gameID + "_" + word + "_votes"
}

func (l *VoteLedger) usersKey(gameID, word string) string {
	return "subwords_" + gameID + "_" + word + "_users"
}

func (l *VoteLedger) storyKey(gameID string) string {
	return "subwords_" + gameID + "_story"
}

func (l *VoteLedger) roundKey(gameID string) string {
	return "subwords_" + gameID + "_game_round"
}

func (l *VoteLedger) statusKey(gameID string) string {
	return "subwords_" + gameID + "_game_status"
}

func (l *VoteLedger) topicKey(gameID string) string {
	return "subwords_" + gameID + "_topic"
}

func (l *VoteLedger) reserveKey(gameID string) string {
	return "subwords_" + gameID + "_all_words"
}

func (l *VoteLedger) backupKey(gameID string) string {
	return "subwords_" + gameID + "_backup_cells"
}

func (l *VoteLedger) votedKey(gameID, username string) string {
	return "subwords_" + gameID + "_" + username + "_voted"
}

// Exists reports whether any authoritative state is recorded for the
// game. Used to gate joins and rehydration, not as a lock.
func (l *VoteLedger) Exists(ctx context.Context, gameID string) (bool, error) {
	if _, ok, err := l.kv.Get(ctx, l.cellsKey(gameID)); err != nil || ok {
		return ok, err
	}
	_, ok, err := l.kv.Get(ctx, l.statusKey(gameID))
	return ok, err
}

// ActiveCells returns the cells in stored order with both counters.
// The order is the tally order; tie-breaks depend on it.
func (l *VoteLedger) ActiveCells(ctx context.Context, gameID string) ([]Cell, error) {
	raw, ok, err := l.kv.Get(ctx, l.cellsKey(gameID))
	if err != nil || !ok || strings.TrimSpace(raw) == "" {
		return nil, err
	}
	words := strings.Split(raw, ",")
	cells := make([]Cell, 0, len(words))
	for _, word := range words {
		word = strings.TrimSpace(word)
		if word == "" {
			continue
		}
		votes, err := l.getCount(ctx, l.votesKey(gameID, word))
		if err != nil {
			return nil, err
		}
		users, err := l.getCount(ctx, l.usersKey(gameID, word))
		if err != nil {
			return nil, err
		}
		cells = append(cells, Cell{Word: word, VoteCount: votes, UserCount: users})
	}
	return cells, nil
}

// IncrementVote bumps a cell's vote counter. Read-modify-write with
// no concurrency control: concurrent voters can lose updates, an
// accepted trade-off for this game's stakes.
func (l *VoteLedger) IncrementVote(ctx context.Context, gameID, word string) (int, error) {
	return l.increment(ctx, l.votesKey(gameID, word))
}

func (l *VoteLedger) IncrementUser(ctx context.Context, gameID, word string) (int, error) {
	return l.increment(ctx, l.usersKey(gameID, word))
}

func (l *VoteLedger) ResetCounters(ctx context.Context, gameID, word string) error {
	if err := l.kv.Set(ctx, l.votesKey(gameID, word), "0", l.ttl); err != nil {
		return err
	}
	return l.kv.Set(ctx, l.usersKey(gameID, word), "0", l.ttl)
}

// ReplaceActiveCells overwrites the active cell list wholesale and
// zeroes every new cell's counters. Best-effort: the list write and
// the counter resets are separate operations.
func (l *VoteLedger) ReplaceActiveCells(ctx context.Context, gameID string, words []string) error {
	if err := l.kv.Set(ctx, l.cellsKey(gameID), strings.Join(words, ","), l.ttl); err != nil {
		return err
	}
	for _, word := range words {
		if err := l.ResetCounters(ctx, gameID, word); err != nil {
			return err
		}
	}
	return nil
}

// AddCells appends words to the active cell list and zeroes only the
// new cells' counters, leaving existing counters untouched.
func (l *VoteLedger) AddCells(ctx context.Context, gameID string, words []string) error {
	if len(words) == 0 {
		return nil
	}
	raw, _, err := l.kv.Get(ctx, l.cellsKey(gameID))
	if err != nil {
		return err
	}
	existing := make([]string, 0)
	for _, word := range strings.Split(raw, ",") {
		if word = strings.TrimSpace(word); word != "" {
			existing = append(existing, word)
		}
	}
	combined := append(existing, words...)
	if err := l.kv.Set(ctx, l.cellsKey(gameID), strings.Join(combined, ","), l.ttl); err != nil {
		return err
	}
	for _, word := range words {
		if err := l.ResetCounters(ctx, gameID, word); err != nil {
			return err
		}
	}
	return nil
}

func (l *VoteLedger) Story(ctx context.Context, gameID string) (string, error) {
	value, _, err := l.kv.Get(ctx, l.storyKey(gameID))
	return value, err
}

func (l *VoteLedger) SetStory(ctx context.Context, gameID, story string) error {
	return l.kv.Set(ctx, l.storyKey(gameID), story, l.ttl)
}

func (l *VoteLedger) Round(ctx context.Context, gameID string) (int, error) {
	raw, ok, err := l.kv.Get(ctx, l.roundKey(gameID))
	if err != nil || !ok {
		return 1, err
	}
	round, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || round < 1 {
		return 1, nil
	}
	return round, nil
}

func (l *VoteLedger) SetRound(ctx context.Context, gameID string, round int) error {
	return l.kv.Set(ctx, l.roundKey(gameID), strconv.Itoa(round), l.ttl)
}

func (l *VoteLedger) Status(ctx context.Context, gameID string) (string, error) {
	value, ok, err := l.kv.Get(ctx, l.statusKey(gameID))
	if err != nil || !ok {
		return statusInProgress, err
	}
	return value, nil
}

func (l *VoteLedger) SetStatus(ctx context.Context, gameID, status string) error {
	return l.kv.Set(ctx, l.statusKey(gameID), status, l.ttl)
}

func (l *VoteLedger) Topic(ctx context.Context, gameID string) (string, error) {
	value, _, err := l.kv.Get(ctx, l.topicKey(gameID))
	return value, err
}

func (l *VoteLedger) SetTopic(ctx context.Context, gameID, topic string) error {
	return l.kv.Set(ctx, l.topicKey(gameID), topic, l.ttl)
}

// ReserveWords returns the unplayed remainder of the generated word
// pool, used to top up the board between regenerations.
func (l *VoteLedger) ReserveWords(ctx context.Context, gameID string) ([]string, error) {
	raw, ok, err := l.kv.Get(ctx, l.reserveKey(gameID))
	if err != nil || !ok || strings.TrimSpace(raw) == "" {
		return nil, err
	}
	words := make([]string, 0)
	for _, word := range strings.Split(raw, ",") {
		if word = strings.TrimSpace(word); word != "" {
			words = append(words, word)
		}
	}
	return words, nil
}

func (l *VoteLedger) SetReserveWords(ctx context.Context, gameID string, words []string) error {
	return l.kv.Set(ctx, l.reserveKey(gameID), strings.Join(words, ","), l.ttl)
}

// VotedRound returns the round the participant last voted in, or 0.
func (l *VoteLedger) VotedRound(ctx context.Context, gameID, username string) (int, error) {
	raw, ok, err := l.kv.Get(ctx, l.votedKey(gameID, username))
	if err != nil || !ok {
		return 0, err
	}
	round, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, nil
	}
	return round, nil
}

func (l *VoteLedger) MarkVoted(ctx context.Context, gameID, username string, round int) error {
	return l.kv.Set(ctx, l.votedKey(gameID, username), strconv.Itoa(round), l.ttl)
}

// SaveBackupCells mirrors an undelivered cell update into the store
// so a reconnecting viewer can reconcile.
func (l *VoteLedger) SaveBackupCells(ctx context.Context, gameID string, cells []Cell) error {
	data, err := json.Marshal(cells)
	if err != nil {
		return err
	}
	return l.kv.Set(ctx, l.backupKey(gameID), string(data), l.ttl)
}

func (l *VoteLedger) getCount(ctx context.Context, key string) (int, error) {
	raw, ok, err := l.kv.Get(ctx, key)
	if err != nil || !ok {
		return 0, err
	}
	count, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || count < 0 {
		return 0, nil
	}
	return count, nil
}

func (l *VoteLedger) increment(ctx context.Context, key string) (int, error) {
	count, err := l.getCount(ctx, key)
	if err != nil {
		return 0, err
	}
	count++
	if err := l.kv.Set(ctx, key, strconv.Itoa(count), l.ttl); err != nil {
		return 0, err
	}
	return count, nil
}
