package dueldto

// Event types pushed to clients through the transport.
const (
	EventSessionFormed   = "session_formed"
	EventRoundStarted    = "round_started"
	EventAnswerRecorded  = "answer_recorded"
	EventSessionFinished = "session_finished"
	EventError           = "error"
)

// Envelope is the frame published on a player's event channel.
type Envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type PlayerView struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Score       int    `json:"score"`
}

// RoundView never carries the correct answer.
type RoundView struct {
	Index     int      `json:"index"`
	Prompt    string   `json:"prompt"`
	Options   []string `json:"options"`
	TimeLimit int      `json:"time_limit"`
}

type SessionFormed struct {
	SessionID    string       `json:"session_id"`
	Players      []PlayerView `json:"players"`
	MaxRounds    int          `json:"max_rounds"`
	CurrentRound int          `json:"current_round"`
}

type RoundStarted struct {
	SessionID string       `json:"session_id"`
	Round     RoundView    `json:"round"`
	Players   []PlayerView `json:"players"`
}

type AnswerRecorded struct {
	SessionID  string `json:"session_id"`
	RoundIndex int    `json:"round_index"`
}

type Standing struct {
	UserID         string `json:"user_id"`
	DisplayName    string `json:"display_name"`
	Score          int    `json:"score"`
	CorrectAnswers int    `json:"correct_answers"`
	TotalAnswers   int    `json:"total_answers"`
}

type SessionFinished struct {
	SessionID       string     `json:"session_id"`
	Standings       []Standing `json:"standings"`
	Winner          *string    `json:"winner"`
	IsTie           bool       `json:"is_tie"`
	TotalRounds     int        `json:"total_rounds"`
	CompletedRounds int        `json:"completed_rounds"`
}

type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
