// Package matchmaking holds the FIFO of players waiting for an opponent.
package matchmaking

import (
	"context"
	"strings"
	"time"

	"github.com/park285/flagduel/internal/duel"
)

type QueueEntry struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	RouteToken  string    `json:"route_token"`
	EnqueuedAt  time.Time `json:"enqueued_at"`
}

func (e QueueEntry) PlayerRef() duel.PlayerRef {
	return duel.PlayerRef{UserID: e.UserID, DisplayName: e.DisplayName, RouteToken: e.RouteToken}
}

// Queue is shared by every server instance. TryFormMatch must pop either
// exactly n entries or none, so two callers can never split a pair.
type Queue interface {
	// Enqueue appends to the tail; false when the user is already queued.
	Enqueue(ctx context.Context, e QueueEntry) (bool, error)
	TryFormMatch(ctx context.Context, n int) ([]QueueEntry, error)
	Remove(ctx context.Context, userID string) (bool, error)
	Size(ctx context.Context) (int64, error)
	// Position is zero-based, -1 when the user is not queued.
	Position(ctx context.Context, userID string) (int, error)
}

func normalize(e QueueEntry, now time.Time) (QueueEntry, error) {
	e.UserID = strings.TrimSpace(e.UserID)
	e.DisplayName = strings.TrimSpace(e.DisplayName)
	if e.UserID == "" {
		return e, duel.ErrInvalidInput
	}
	if e.EnqueuedAt.IsZero() {
		e.EnqueuedAt = now
	}
	return e, nil
}
