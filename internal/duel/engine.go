package duel

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/park285/flagduel/internal/obslog"
	"go.uber.org/zap"
)

type Config struct {
	MaxRounds          int
	RoundTimeLimit     int
	ProgressionTimeout time.Duration
	// MaxWriteRetries bounds reload-and-reapply cycles after ErrVersionConflict.
	MaxWriteRetries int
}

func (c Config) withDefaults() Config {
	if c.MaxRounds <= 0 {
		c.MaxRounds = DefaultMaxRounds
	}
	if c.RoundTimeLimit <= 0 {
		c.RoundTimeLimit = DefaultRoundTimeLimit
	}
	if c.ProgressionTimeout <= 0 {
		c.ProgressionTimeout = 2 * time.Second
	}
	if c.MaxWriteRetries <= 0 {
		c.MaxWriteRetries = 3
	}
	return c
}

// Engine owns the session state machine. Mutations of one session are
// serialized in-process by a keyed mutex and across processes by the
// version check of the ephemeral store.
type Engine struct {
	store       *Store
	pool        ReferencePool
	progression Progression
	cfg         Config
	locks       *keyedMutex

	now   func() time.Time
	newID func() string

	rngMu sync.Mutex
	rng   *rand.Rand
}

type Option func(*Engine)

func WithProgression(p Progression) Option {
	return func(e *Engine) { e.progression = p }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithIDGenerator(f func() string) Option {
	return func(e *Engine) { e.newID = f }
}

// WithSeed makes round generation reproducible.
func WithSeed(seed uint64) Option {
	return func(e *Engine) { e.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) }
}

func NewEngine(store *Store, pool ReferencePool, cfg Config, opts ...Option) *Engine {
	e := &Engine{
		store: store,
		pool:  pool,
		cfg:   cfg.withDefaults(),
		locks: newKeyedMutex(),
		now:   time.Now,
		newID: func() string { return "duel-" + uuid.NewString() },
		rng:   rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) MaxRounds() int { return e.cfg.MaxRounds }

// CreateSession pairs two players into a new WAITING session with freshly generated rounds.
func (e *Engine) CreateSession(ctx context.Context, a, b PlayerRef) (*Session, error) {
	a.UserID, b.UserID = strings.TrimSpace(a.UserID), strings.TrimSpace(b.UserID)
	if a.UserID == "" || b.UserID == "" {
		return nil, fmt.Errorf("player ids are required: %w", ErrInvalidInput)
	}
	if a.UserID == b.UserID {
		return nil, fmt.Errorf("a player cannot duel themselves: %w", ErrInvalidInput)
	}
	items, err := e.pool.Items(ctx)
	if err != nil {
		return nil, fmt.Errorf("load reference pool: %w", err)
	}

	e.rngMu.Lock()
	rounds, err := GenerateRounds(e.cfg.MaxRounds, items, e.cfg.RoundTimeLimit, e.rng)
	e.rngMu.Unlock()
	if err != nil {
		return nil, err
	}

	now := e.now()
	s := &Session{
		ID:             e.newID(),
		Players:        []Player{newPlayer(a), newPlayer(b)},
		Rounds:         rounds,
		CurrentRound:   0,
		MaxRounds:      e.cfg.MaxRounds,
		Status:         StatusWaiting,
		RoundTimeLimit: e.cfg.RoundTimeLimit,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := e.store.Put(ctx, s); err != nil {
		return nil, fmt.Errorf("persist new session: %w", err)
	}
	obslog.L().Info("duel_session_create",
		zap.String("session_id", s.ID),
		zap.String("player_a", a.UserID),
		zap.String("player_b", b.UserID),
		zap.Int("rounds", len(s.Rounds)),
	)
	return s, nil
}

func newPlayer(ref PlayerRef) Player {
	return Player{
		UserID:      ref.UserID,
		DisplayName: strings.TrimSpace(ref.DisplayName),
		RouteToken:  ref.RouteToken,
		Answers:     []Answer{},
	}
}

// Get returns the session or ErrNotFound.
func (e *Engine) Get(ctx context.Context, id string) (*Session, error) {
	s, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ErrNotFound
	}
	return s, nil
}

func (e *Engine) StartSession(ctx context.Context, id string) (*Session, error) {
	s, err := e.mutate(ctx, id, func(s *Session) (bool, error) {
		if s.Status != StatusWaiting {
			return false, ErrAlreadyStarted
		}
		now := e.now()
		s.Status = StatusInProgress
		s.StartTime = &now
		s.CurrentRound = 0
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	obslog.L().Info("duel_session_start", zap.String("session_id", s.ID))
	return s, nil
}

// SubmitAnswer records userID's answer for the current round. It returns false,
// without touching state, when the player already answered this round.
func (e *Engine) SubmitAnswer(ctx context.Context, id, userID, selection string, latency float64) (bool, error) {
	var (
		accepted bool
		answer   Answer
	)
	s, err := e.mutate(ctx, id, func(s *Session) (bool, error) {
		accepted = false
		p := s.Player(userID)
		if p == nil {
			return false, ErrPlayerNotInSession
		}
		if s.Status != StatusInProgress {
			return false, ErrIllegalTransition
		}
		round := s.Current()
		if round == nil {
			return false, ErrIllegalTransition
		}
		if math.IsNaN(latency) || math.IsInf(latency, 0) || latency < 0 {
			return false, fmt.Errorf("latency %v: %w", latency, ErrInvalidAnswer)
		}
		if !round.hasOption(selection) {
			return false, ErrInvalidAnswer
		}
		if p.answerFor(s.CurrentRound) != nil {
			return false, nil
		}
		correct := selection == round.CorrectAnswer
		answer = Answer{
			RoundNumber:    s.CurrentRound,
			SelectedOption: selection,
			IsCorrect:      correct,
			Latency:        latency,
			Points:         Score(correct, s.RoundTimeLimit, latency),
		}
		p.Answers = append(p.Answers, answer)
		p.Score += answer.Points
		accepted = true
		return true, nil
	})
	if err != nil {
		return false, err
	}
	if !accepted {
		obslog.L().Info("duel_answer_duplicate",
			zap.String("session_id", s.ID),
			zap.String("user_id", userID),
			zap.Int("round", s.CurrentRound),
		)
		return false, nil
	}
	obslog.L().Info("duel_answer",
		zap.String("session_id", s.ID),
		zap.String("user_id", userID),
		zap.Int("round", answer.RoundNumber),
		zap.Bool("correct", answer.IsCorrect),
		zap.Int("points", answer.Points),
	)
	e.awardProgression(ctx, s.ID, userID, answer)
	return true, nil
}

// awardProgression runs after the answer is committed; failures are only logged.
func (e *Engine) awardProgression(ctx context.Context, sessionID, userID string, a Answer) {
	if e.progression == nil {
		return
	}
	pctx, cancel := context.WithTimeout(ctx, e.cfg.ProgressionTimeout)
	defer cancel()
	award, err := e.progression.AwardAnswerOutcome(pctx, userID, a.IsCorrect, a.Latency)
	if err != nil {
		obslog.L().Warn("duel_progression_error",
			zap.String("session_id", sessionID),
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return
	}
	if award != nil && award.LeveledUp {
		obslog.L().Info("duel_progression_level_up",
			zap.String("user_id", userID),
			zap.Int("level", award.Level),
		)
	}
}

// RoundComplete reports whether every player answered the current round.
func (e *Engine) RoundComplete(ctx context.Context, id string) (bool, error) {
	s, err := e.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return roundComplete(s), nil
}

func roundComplete(s *Session) bool {
	if len(s.Players) == 0 {
		return false
	}
	for i := range s.Players {
		if s.Players[i].answerFor(s.CurrentRound) == nil {
			return false
		}
	}
	return true
}

// AdvanceRound moves to the next round. It returns false once the session is
// finished, including when it was already finished before the call.
func (e *Engine) AdvanceRound(ctx context.Context, id string) (bool, error) {
	var hasNext bool
	_, err := e.mutate(ctx, id, func(s *Session) (bool, error) {
		hasNext = false
		switch s.Status {
		case StatusFinished:
			return false, nil
		case StatusWaiting:
			return false, ErrIllegalTransition
		}
		hasNext = e.advance(s)
		return true, nil
	})
	if err != nil {
		return false, err
	}
	return hasNext, nil
}

// AdvanceIfComplete checks the barrier and advances under the same lock, so
// concurrent final answers of one round advance it exactly once.
func (e *Engine) AdvanceIfComplete(ctx context.Context, id string) (advanced, hasNext bool, err error) {
	_, err = e.mutate(ctx, id, func(s *Session) (bool, error) {
		advanced, hasNext = false, false
		switch s.Status {
		case StatusFinished:
			return false, nil
		case StatusWaiting:
			return false, ErrIllegalTransition
		}
		if !roundComplete(s) {
			hasNext = true
			return false, nil
		}
		advanced = true
		hasNext = e.advance(s)
		return true, nil
	})
	if err != nil {
		return false, false, err
	}
	return advanced, hasNext, nil
}

func (e *Engine) advance(s *Session) bool {
	s.CurrentRound++
	if s.CurrentRound >= s.MaxRounds {
		now := e.now()
		s.CurrentRound = s.MaxRounds
		s.Status = StatusFinished
		s.EndTime = &now
		obslog.L().Info("duel_session_finish", zap.String("session_id", s.ID))
		return false
	}
	return true
}

// Results computes standings; safe at any status.
func (e *Engine) Results(ctx context.Context, id string) (*Results, error) {
	s, err := e.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return ComputeResults(s), nil
}

func ComputeResults(s *Session) *Results {
	standings := make([]Standing, 0, len(s.Players))
	for i := range s.Players {
		p := &s.Players[i]
		standings = append(standings, Standing{
			UserID:         p.UserID,
			DisplayName:    p.DisplayName,
			RouteToken:     p.RouteToken,
			Score:          p.Score,
			CorrectAnswers: p.correctCount(),
			TotalAnswers:   len(p.Answers),
		})
	}
	sort.SliceStable(standings, func(i, j int) bool { return standings[i].Score > standings[j].Score })

	r := &Results{
		SessionID:       s.ID,
		Standings:       standings,
		TotalRounds:     s.MaxRounds,
		CompletedRounds: s.CurrentRound,
		Status:          s.Status,
	}
	if len(standings) >= 2 && standings[0].Score > standings[1].Score {
		winner := standings[0].UserID
		r.Winner = &winner
	} else {
		r.IsTie = true
	}
	return r
}

// Cleanup drops the live copy; the durable record stays for history.
func (e *Engine) Cleanup(ctx context.Context, id string) error {
	if err := e.store.DeleteEphemeral(ctx, id); err != nil {
		return fmt.Errorf("delete live session: %w", err)
	}
	obslog.L().Info("duel_session_cleanup", zap.String("session_id", id))
	return nil
}

// mutate loads the session, applies fn and writes it back while holding the
// session lock. fn reports whether it changed anything; unchanged sessions are
// not written. Version conflicts reload and reapply up to MaxWriteRetries times.
func (e *Engine) mutate(ctx context.Context, id string, fn func(s *Session) (bool, error)) (*Session, error) {
	id = strings.TrimSpace(id)
	unlock := e.locks.Lock(id)
	defer unlock()

	for attempt := 0; ; attempt++ {
		s, err := e.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if s == nil {
			return nil, ErrNotFound
		}
		changed, err := fn(s)
		if err != nil {
			return nil, err
		}
		if !changed {
			return s, nil
		}
		s.UpdatedAt = e.now()
		err = e.store.Put(ctx, s)
		if errors.Is(err, ErrVersionConflict) && attempt < e.cfg.MaxWriteRetries {
			obslog.L().Warn("duel_version_conflict", zap.String("session_id", id), zap.Int("attempt", attempt+1))
			continue
		}
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}
