package server

const (
	statusInProgress = "IN_PROGRESS"
	statusGameOver   = "GAME_OVER"
)

const (
	channelGameUpdates = "game_updates"
	channelUpdateStory = "updateStory"
)

const (
	messageInitialData = "initialData"
	messageUpdateCells = "updateCells"
	messageUpdateRound = "updateRound"
	messageStoryUpdate = "storyUpdate"
	messageGameOver    = "gameOver"
)

// Cell is a candidate word open for voting in the active round.
// UserCount tracks distinct participants since the counters were last
// reset; VoteCount tracks raw selections.
type Cell struct {
	Word      string `json:"word"`
	VoteCount int    `json:"voteCount"`
	UserCount int    `json:"userCount"`
}

// BroadcastMessage is the transport payload fanned out to viewers.
// Session carries the sender's token so the origin participant can
// drop its own echo; engine-originated messages leave it empty.
type BroadcastMessage struct {
	Type    string `json:"type"`
	Session string `json:"session,omitempty"`
	Cells   []Cell `json:"cells,omitempty"`
	Round   int    `json:"round,omitempty"`
	Word    string `json:"word,omitempty"`
	Story   string `json:"story,omitempty"`
	Status  string `json:"status,omitempty"`
}

type broadcastEnvelope struct {
	Channel string `json:"channel"`
	GameID  string `json:"gameId"`
	BroadcastMessage
}
