// Package notify turns session changes into client events and hands them to
// a Sink, one envelope per player route token.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/park285/flagduel/internal/duel"
	"github.com/park285/flagduel/pkg/dueldto"
)

// Sink delivers one envelope to one connection.
type Sink interface {
	Publish(ctx context.Context, routeToken string, env dueldto.Envelope) error
}

type Notifier struct {
	sink Sink
}

func New(sink Sink) *Notifier {
	return &Notifier{sink: sink}
}

func (n *Notifier) SessionFormed(ctx context.Context, s *duel.Session) error {
	return n.broadcast(ctx, s, dueldto.Envelope{
		Type:    dueldto.EventSessionFormed,
		Payload: SessionFormedView(s),
	})
}

func (n *Notifier) RoundStarted(ctx context.Context, s *duel.Session, roundIndex int) error {
	if roundIndex < 0 || roundIndex >= len(s.Rounds) {
		return fmt.Errorf("round %d out of range: %w", roundIndex, duel.ErrInvalidInput)
	}
	return n.broadcast(ctx, s, dueldto.Envelope{
		Type: dueldto.EventRoundStarted,
		Payload: dueldto.RoundStarted{
			SessionID: s.ID,
			Round:     RoundViewOf(&s.Rounds[roundIndex]),
			Players:   PlayerViews(s),
		},
	})
}

func (n *Notifier) SessionFinished(ctx context.Context, s *duel.Session, res *duel.Results) error {
	return n.broadcast(ctx, s, dueldto.Envelope{
		Type:    dueldto.EventSessionFinished,
		Payload: SessionFinishedView(res),
	})
}

func (n *Notifier) AnswerRecorded(ctx context.Context, routeToken, sessionID string, roundIndex int) error {
	return n.publish(ctx, routeToken, dueldto.Envelope{
		Type:    dueldto.EventAnswerRecorded,
		Payload: dueldto.AnswerRecorded{SessionID: sessionID, RoundIndex: roundIndex},
	})
}

func (n *Notifier) Error(ctx context.Context, routeToken, code, message string) error {
	return n.publish(ctx, routeToken, dueldto.Envelope{
		Type:    dueldto.EventError,
		Payload: dueldto.ErrorEvent{Code: code, Message: message},
	})
}

// broadcast keeps going after a failed player so one dead connection does not
// starve the other.
func (n *Notifier) broadcast(ctx context.Context, s *duel.Session, env dueldto.Envelope) error {
	var errs []error
	for i := range s.Players {
		if err := n.publish(ctx, s.Players[i].RouteToken, env); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Players[i].UserID, err))
		}
	}
	return errors.Join(errs...)
}

func (n *Notifier) publish(ctx context.Context, routeToken string, env dueldto.Envelope) error {
	if strings.TrimSpace(routeToken) == "" {
		return nil
	}
	return n.sink.Publish(ctx, routeToken, env)
}
