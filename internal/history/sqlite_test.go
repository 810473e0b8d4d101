package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/park285/flagduel/internal/duel"
)

func sampleSession(id, a, b string, updated time.Time) *duel.Session {
	return &duel.Session{
		ID: id,
		Players: []duel.Player{
			{UserID: a, DisplayName: "A", Answers: []duel.Answer{}},
			{UserID: b, DisplayName: "B", Answers: []duel.Answer{}},
		},
		Rounds: []duel.Round{{
			Index: 0, PromptRef: "FR", Prompt: "https://flags.example/fr.png",
			CorrectAnswer: "France", Options: []string{"France", "Spain", "Italy", "Peru"}, TimeLimit: 15,
		}},
		MaxRounds:      1,
		Status:         duel.StatusWaiting,
		RoundTimeLimit: 15,
		CreatedAt:      updated,
		UpdatedAt:      updated,
		Version:        1,
	}
}

func openTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := OpenSQLite(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestSQLiteUpsertAndLoad(t *testing.T) {
	st := openTestSQLite(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if got, err := st.Load(ctx, "missing"); got != nil || err != nil {
		t.Fatalf("expected nil, nil for missing id, got %v %v", got, err)
	}

	s := sampleSession("d1", "u1", "u2", now)
	if err := st.Upsert(ctx, s); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	s.Status = duel.StatusFinished
	s.Players[1].Score = 112
	end := now.Add(time.Minute)
	s.EndTime = &end
	s.CurrentRound = 1
	s.Version = 3
	if err := st.Upsert(ctx, s); err != nil {
		t.Fatalf("Upsert finished: %v", err)
	}

	got, err := st.Load(ctx, "d1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Status != duel.StatusFinished || got.Players[1].Score != 112 || got.EndTime == nil || !got.EndTime.Equal(end) {
		t.Fatalf("unexpected stored session: %+v", got)
	}
	if got.Rounds[0].CorrectAnswer != "France" || len(got.Rounds[0].Options) != 4 {
		t.Fatalf("rounds not round-tripped: %+v", got.Rounds)
	}

	var winner string
	if err := st.db.QueryRow(`SELECT winner_id FROM duel_sessions WHERE session_id = ?`, "d1").Scan(&winner); err != nil {
		t.Fatalf("winner query: %v", err)
	}
	if winner != "u2" {
		t.Fatalf("expected winner u2, got %q", winner)
	}
}

func TestSQLiteUpsertIgnoresOlderVersion(t *testing.T) {
	st := openTestSQLite(t)
	ctx := context.Background()
	now := time.Now().UTC()

	s := sampleSession("d1", "u1", "u2", now)
	s.Version = 5
	s.Status = duel.StatusInProgress
	if err := st.Upsert(ctx, s); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	older := sampleSession("d1", "u1", "u2", now)
	older.Version = 4
	if err := st.Upsert(ctx, older); err != nil {
		t.Fatalf("Upsert older: %v", err)
	}
	got, err := st.Load(ctx, "d1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Version != 5 || got.Status != duel.StatusInProgress {
		t.Fatalf("older write replaced newer record: version=%d status=%s", got.Version, got.Status)
	}
}

func TestSQLiteListByUser(t *testing.T) {
	st := openTestSQLite(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, s := range []*duel.Session{
		sampleSession("d1", "u1", "u2", base),
		sampleSession("d2", "u3", "u1", base.Add(time.Minute)),
		sampleSession("d3", "u2", "u3", base.Add(2*time.Minute)),
	} {
		if err := st.Upsert(ctx, s); err != nil {
			t.Fatalf("Upsert #%d: %v", i, err)
		}
	}

	list, err := st.ListByUser(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(list) != 2 || list[0].ID != "d2" || list[1].ID != "d1" {
		t.Fatalf("unexpected list for u1: %d entries", len(list))
	}
	list, err = st.ListByUser(ctx, "u3", 1)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(list) != 1 || list[0].ID != "d3" {
		t.Fatalf("limit not applied for u3: %d entries", len(list))
	}
}

func TestSQLiteMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	first, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	_ = first.Close()
	second, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer second.Close()
	var n int
	if err := second.db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&n); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected one recorded migration, got %d", n)
	}
}

func TestSQLiteAsDurableTier(t *testing.T) {
	st := openTestSQLite(t)
	var _ duel.Durable = st
	store := duel.NewStore(duel.NewMemoryStore(), st)
	ctx := context.Background()

	s := sampleSession("d9", "u1", "u2", time.Now().UTC())
	s.Version = 0
	if err := store.Put(ctx, s); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := st.Load(ctx, "d9")
	if err != nil || got == nil || got.Version != 1 {
		t.Fatalf("durable tier not written: %v %v", got, err)
	}
}

func TestUpSection(t *testing.T) {
	in := "-- +migrate Up\nCREATE TABLE t (x INT);\n-- +migrate Down\nDROP TABLE t;\n"
	if got := upSection(in); got != "\nCREATE TABLE t (x INT);\n" {
		t.Fatalf("unexpected up section %q", got)
	}
	if got := upSection("SELECT 1;"); got != "SELECT 1;" {
		t.Fatalf("plain content should pass through, got %q", got)
	}
}
