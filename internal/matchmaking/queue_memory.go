package matchmaking

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/park285/flagduel/internal/duel"
	"github.com/park285/flagduel/internal/obslog"
	"go.uber.org/zap"
)

// MemoryQueue is a single-process Queue.
type MemoryQueue struct {
	mu      sync.Mutex
	entries []QueueEntry
	now     func() time.Time
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{now: time.Now}
}

func (q *MemoryQueue) indexOf(userID string) int {
	for i := range q.entries {
		if q.entries[i].UserID == userID {
			return i
		}
	}
	return -1
}

func (q *MemoryQueue) Enqueue(_ context.Context, e QueueEntry) (bool, error) {
	e, err := normalize(e, q.now())
	if err != nil {
		return false, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.indexOf(e.UserID) >= 0 {
		return false, nil
	}
	q.entries = append(q.entries, e)
	obslog.L().Info("matchmaking_enqueue", zap.String("user_id", e.UserID))
	return true, nil
}

func (q *MemoryQueue) TryFormMatch(_ context.Context, n int) ([]QueueEntry, error) {
	if n <= 0 {
		return nil, fmt.Errorf("match size must be positive: %w", duel.ErrInvalidInput)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) < n {
		return nil, nil
	}
	out := make([]QueueEntry, n)
	copy(out, q.entries[:n])
	q.entries = append(q.entries[:0:0], q.entries[n:]...)
	obslog.L().Info("matchmaking_match_formed", zap.Strings("user_ids", entryIDs(out)))
	return out, nil
}

func (q *MemoryQueue) Remove(_ context.Context, userID string) (bool, error) {
	userID = strings.TrimSpace(userID)
	q.mu.Lock()
	defer q.mu.Unlock()
	i := q.indexOf(userID)
	if i < 0 {
		return false, nil
	}
	q.entries = append(q.entries[:i], q.entries[i+1:]...)
	return true, nil
}

func (q *MemoryQueue) Size(context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.entries)), nil
}

func (q *MemoryQueue) Position(_ context.Context, userID string) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.indexOf(strings.TrimSpace(userID)), nil
}
