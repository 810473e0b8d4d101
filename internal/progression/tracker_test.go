package progression

import (
	"context"
	"sync"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestTracker(t *testing.T) (*Tracker, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(func() { mr.Close() })
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewTracker(rdb, Rules{IntN: fixedGold(5)}), mr
}

func TestTrackerStartsFromDefaults(t *testing.T) {
	tr, mr := newTestTracker(t)
	ctx := context.Background()

	s, err := tr.Stats(ctx, "u1")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if s != DefaultStats() {
		t.Fatalf("expected defaults, got %+v", s)
	}

	award, err := tr.AwardAnswerOutcome(ctx, "u1", true, 2)
	if err != nil {
		t.Fatalf("AwardAnswerOutcome: %v", err)
	}
	if award.XPGained != 65 || award.CurrencyGained != 15 || award.Level != 1 {
		t.Fatalf("unexpected award %+v", award)
	}
	if got := mr.HGet("progression:user:u1", "gold"); got != "515" {
		t.Fatalf("gold not stored, got %q", got)
	}
	s, _ = tr.Stats(ctx, "u1")
	if s.XP != 65 || s.Gold != 515 || s.Diamonds != 50 {
		t.Fatalf("unexpected stored stats %+v", s)
	}
}

func TestTrackerConcurrentAwardsAreNotLost(t *testing.T) {
	tr, _ := newTestTracker(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := tr.AwardAnswerOutcome(ctx, "u1", false, 1); err != nil {
				t.Errorf("award: %v", err)
			}
		}()
	}
	wg.Wait()
	s, err := tr.Stats(ctx, "u1")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if s.XP != 100 || s.Level != 1 {
		t.Fatalf("lost concurrent awards: %+v", s)
	}
}
