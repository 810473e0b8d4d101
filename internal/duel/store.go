package duel

import (
	"context"
	"fmt"
	"strings"

	"github.com/park285/flagduel/internal/obslog"
	"go.uber.org/zap"
)

// Ephemeral is the low-latency copy that is authoritative while a match is live.
// Save must reject the write with ErrVersionConflict when the stored version
// differs from s.Version, and bump s.Version on success.
type Ephemeral interface {
	Load(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}

// Durable keeps the session record for history after the live copy is gone.
type Durable interface {
	Upsert(ctx context.Context, s *Session) error
	Load(ctx context.Context, id string) (*Session, error)
}

// Store writes through to both tiers synchronously. A durable failure is
// logged and swallowed so gameplay never waits on history.
type Store struct {
	live    Ephemeral
	durable Durable
}

func NewStore(live Ephemeral, durable Durable) *Store {
	return &Store{live: live, durable: durable}
}

// Get returns the live copy, falling back to the durable record. nil, nil when unknown.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil
	}
	sess, err := s.live.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load live session: %w", err)
	}
	if sess != nil || s.durable == nil {
		return sess, nil
	}
	sess, err = s.durable.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load durable session: %w", err)
	}
	return sess, nil
}

func (s *Store) Put(ctx context.Context, sess *Session) error {
	if sess == nil {
		return fmt.Errorf("nil session: %w", ErrInvalidInput)
	}
	if err := s.live.Save(ctx, sess); err != nil {
		return err
	}
	if s.durable == nil {
		return nil
	}
	if err := s.durable.Upsert(ctx, sess); err != nil {
		obslog.L().Error("duel_durable_write_error",
			zap.String("session_id", sess.ID),
			zap.Int64("version", sess.Version),
			zap.String("status", string(sess.Status)),
			zap.Error(err),
		)
	}
	return nil
}

func (s *Store) DeleteEphemeral(ctx context.Context, id string) error {
	return s.live.Delete(ctx, strings.TrimSpace(id))
}
