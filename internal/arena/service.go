// Package arena drives matches end to end: queue, session lifecycle and the
// events each player sees.
package arena

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/park285/flagduel/internal/duel"
	"github.com/park285/flagduel/internal/matchmaking"
	"github.com/park285/flagduel/internal/msgcat"
	"github.com/park285/flagduel/internal/obslog"
	"github.com/park285/flagduel/pkg/dueldto"
	"go.uber.org/zap"
)

// Transport pushes events to connected players. Events never carry the
// correct answer of a round that is still being played.
type Transport interface {
	SessionFormed(ctx context.Context, s *duel.Session) error
	RoundStarted(ctx context.Context, s *duel.Session, roundIndex int) error
	SessionFinished(ctx context.Context, s *duel.Session, res *duel.Results) error
	AnswerRecorded(ctx context.Context, routeToken, sessionID string, roundIndex int) error
	Error(ctx context.Context, routeToken, code, message string) error
}

var ErrUnknownCommand = dueldto.DomainError{Code: "unknown_command", Message: "unknown command"}

type Service struct {
	engine    *duel.Engine
	queue     matchmaking.Queue
	transport Transport
	messages  *msgcat.Catalog
	matchSize int
}

func NewService(engine *duel.Engine, queue matchmaking.Queue, transport Transport, messages *msgcat.Catalog, matchSize int) *Service {
	if matchSize <= 0 {
		matchSize = duel.PlayersPerSession
	}
	return &Service{engine: engine, queue: queue, transport: transport, messages: messages, matchSize: matchSize}
}

// Join queues the player and starts every match that can be formed.
func (s *Service) Join(ctx context.Context, entry matchmaking.QueueEntry) error {
	added, err := s.queue.Enqueue(ctx, entry)
	if err != nil {
		s.reportError(ctx, entry.RouteToken, err)
		return err
	}
	if !added {
		obslog.L().Info("arena_join_duplicate", zap.String("user_id", entry.UserID))
	}
	return s.formMatches(ctx)
}

func (s *Service) formMatches(ctx context.Context) error {
	for {
		entries, err := s.queue.TryFormMatch(ctx, s.matchSize)
		if err != nil {
			return fmt.Errorf("form match: %w", err)
		}
		if len(entries) == 0 {
			return nil
		}
		s.startMatch(ctx, entries)
	}
}

// startMatch never returns an error: the pair has already left the queue, so
// failures are reported to both players instead.
func (s *Service) startMatch(ctx context.Context, entries []matchmaking.QueueEntry) {
	sess, err := s.engine.CreateSession(ctx, entries[0].PlayerRef(), entries[1].PlayerRef())
	if err == nil {
		sess, err = s.engine.StartSession(ctx, sess.ID)
	}
	if err != nil {
		obslog.L().Error("arena_match_start_error",
			zap.String("player_a", entries[0].UserID),
			zap.String("player_b", entries[1].UserID),
			zap.Error(err),
		)
		for _, e := range entries {
			s.reportError(ctx, e.RouteToken, err)
		}
		return
	}
	s.emit("session_formed", sess.ID, s.transport.SessionFormed(ctx, sess))
	s.emit("round_started", sess.ID, s.transport.RoundStarted(ctx, sess, sess.CurrentRound))
}

// Leave removes a waiting player. It does not touch running sessions.
func (s *Service) Leave(ctx context.Context, userID string) (bool, error) {
	return s.queue.Remove(ctx, userID)
}

// SubmitAnswer records the answer and advances the session once both
// players have answered the round.
func (s *Service) SubmitAnswer(ctx context.Context, sessionID, userID, routeToken, selection string, latency float64) error {
	before, err := s.engine.Get(ctx, sessionID)
	if err != nil {
		s.reportError(ctx, routeToken, err)
		return err
	}
	round := before.CurrentRound

	accepted, err := s.engine.SubmitAnswer(ctx, sessionID, userID, selection, latency)
	if err != nil {
		s.reportError(ctx, routeToken, err)
		return err
	}
	if !accepted {
		return nil
	}
	s.emit("answer_recorded", sessionID, s.transport.AnswerRecorded(ctx, routeToken, sessionID, round))

	advanced, hasNext, err := s.engine.AdvanceIfComplete(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("advance %s: %w", sessionID, err)
	}
	if !advanced {
		return nil
	}
	if hasNext {
		sess, err := s.engine.Get(ctx, sessionID)
		if err != nil {
			return err
		}
		s.emit("round_started", sessionID, s.transport.RoundStarted(ctx, sess, sess.CurrentRound))
		return nil
	}
	return s.finish(ctx, sessionID)
}

func (s *Service) finish(ctx context.Context, sessionID string) error {
	sess, err := s.engine.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	res := duel.ComputeResults(sess)
	s.emit("session_finished", sessionID, s.transport.SessionFinished(ctx, sess, res))
	winner := ""
	if res.Winner != nil {
		winner = *res.Winner
	}
	obslog.L().Info("arena_session_finished",
		zap.String("session_id", sessionID),
		zap.String("winner", winner),
		zap.Bool("tie", res.IsTie),
	)
	return s.engine.Cleanup(ctx, sessionID)
}

// Handle dispatches one gateway command.
func (s *Service) Handle(ctx context.Context, cmd dueldto.Command) error {
	switch strings.ToLower(strings.TrimSpace(cmd.Type)) {
	case dueldto.CommandJoinQueue:
		return s.Join(ctx, matchmaking.QueueEntry{
			UserID:      cmd.UserID,
			DisplayName: cmd.DisplayName,
			RouteToken:  cmd.RouteToken,
		})
	case dueldto.CommandLeaveQueue, dueldto.CommandDisconnect:
		_, err := s.Leave(ctx, cmd.UserID)
		return err
	case dueldto.CommandSubmitAnswer:
		return s.SubmitAnswer(ctx, cmd.SessionID, cmd.UserID, cmd.RouteToken, cmd.Selection, cmd.Latency)
	default:
		msg := s.messages.ErrorText(ErrUnknownCommand.Code, map[string]any{"Type": cmd.Type})
		s.emit("error", "", s.transport.Error(ctx, cmd.RouteToken, ErrUnknownCommand.Code, msg))
		return fmt.Errorf("%q: %w", cmd.Type, ErrUnknownCommand)
	}
}

func (s *Service) reportError(ctx context.Context, routeToken string, err error) {
	code := "default"
	var de dueldto.DomainError
	if errors.As(err, &de) {
		code = de.Code
	}
	s.emit("error", "", s.transport.Error(ctx, routeToken, code, s.messages.ErrorText(code, nil)))
}

func (s *Service) emit(event, sessionID string, err error) {
	if err == nil {
		return
	}
	obslog.L().Warn("arena_transport_error",
		zap.String("event", event),
		zap.String("session_id", sessionID),
		zap.Error(err),
	)
}
