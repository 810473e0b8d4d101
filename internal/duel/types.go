package duel

import (
	"context"
	"time"
)

// Status represents a duel session lifecycle state.
type Status string

const (
	StatusWaiting    Status = "WAITING_FOR_PLAYERS"
	StatusInProgress Status = "IN_PROGRESS"
	StatusFinished   Status = "FINISHED"
)

const (
	DefaultMaxRounds      = 10
	DefaultRoundTimeLimit = 15
	OptionsPerRound       = 4
	PlayersPerSession     = 2
)

// Session is the persisted state of one match between two players.
// The same JSON document is cached in Redis and upserted into the durable store.
type Session struct {
	ID             string     `json:"id"`
	Players        []Player   `json:"players"`
	Rounds         []Round    `json:"rounds"`
	CurrentRound   int        `json:"current_round"`
	MaxRounds      int        `json:"max_rounds"`
	Status         Status     `json:"status"`
	RoundTimeLimit int        `json:"round_time_limit"`
	StartTime      *time.Time `json:"start_time,omitempty"`
	EndTime        *time.Time `json:"end_time,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	Version        int64      `json:"version"`
}

type Player struct {
	UserID      string   `json:"user_id"`
	DisplayName string   `json:"display_name"`
	RouteToken  string   `json:"route_token"`
	Score       int      `json:"score"`
	Answers     []Answer `json:"answers"`
}

type Round struct {
	Index         int      `json:"index"`
	PromptRef     string   `json:"prompt_ref"`
	Prompt        string   `json:"prompt"`
	CorrectAnswer string   `json:"correct_answer"`
	Options       []string `json:"options"`
	TimeLimit     int      `json:"time_limit"`
}

type Answer struct {
	RoundNumber    int     `json:"round_number"`
	SelectedOption string  `json:"selected_option"`
	IsCorrect      bool    `json:"is_correct"`
	Latency        float64 `json:"latency"`
	Points         int     `json:"points"`
}

// PlayerRef identifies a matched player before a session exists.
type PlayerRef struct {
	UserID      string
	DisplayName string
	RouteToken  string
}

// PoolItem is one eligible prompt of the reference pool.
// Key and Answer must both be unique within a pool.
type PoolItem struct {
	Key    string `yaml:"key" json:"key"`
	Answer string `yaml:"name" json:"name"`
	Prompt string `yaml:"flag_url" json:"flag_url"`
	Emoji  string `yaml:"flag_emoji,omitempty" json:"flag_emoji,omitempty"`
}

// ReferencePool supplies the read-only prompt pool rounds are drawn from.
type ReferencePool interface {
	Items(ctx context.Context) ([]PoolItem, error)
}

// Award is what the progression collaborator granted for one answer.
type Award struct {
	XPGained       int  `json:"xp_gained"`
	CurrencyGained int  `json:"currency_gained"`
	LeveledUp      bool `json:"leveled_up"`
	Level          int  `json:"level"`
}

// Progression receives the outcome of every accepted answer.
type Progression interface {
	AwardAnswerOutcome(ctx context.Context, userID string, correct bool, latency float64) (*Award, error)
}

type Standing struct {
	UserID         string
	DisplayName    string
	RouteToken     string
	Score          int
	CorrectAnswers int
	TotalAnswers   int
}

// Results summarizes a session; partial standings while it is still running.
type Results struct {
	SessionID       string
	Standings       []Standing
	Winner          *string
	IsTie           bool
	TotalRounds     int
	CompletedRounds int
	Status          Status
}

// Player returns the participant with userID, or nil.
func (s *Session) Player(userID string) *Player {
	for i := range s.Players {
		if s.Players[i].UserID == userID {
			return &s.Players[i]
		}
	}
	return nil
}

// Current returns the round being played, or nil once the session ran out of rounds.
func (s *Session) Current() *Round {
	if s.CurrentRound < 0 || s.CurrentRound >= len(s.Rounds) {
		return nil
	}
	return &s.Rounds[s.CurrentRound]
}

func (p *Player) answerFor(round int) *Answer {
	for i := range p.Answers {
		if p.Answers[i].RoundNumber == round {
			return &p.Answers[i]
		}
	}
	return nil
}

func (p *Player) correctCount() int {
	n := 0
	for _, a := range p.Answers {
		if a.IsCorrect {
			n++
		}
	}
	return n
}

func (r *Round) hasOption(option string) bool {
	for _, o := range r.Options {
		if o == option {
			return true
		}
	}
	return false
}
