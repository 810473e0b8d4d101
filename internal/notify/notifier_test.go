package notify

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/park285/flagduel/internal/duel"
	"github.com/park285/flagduel/pkg/dueldto"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type recordingSink struct {
	mu   sync.Mutex
	sent map[string][]dueldto.Envelope
	fail map[string]bool
}

func newRecordingSink() *recordingSink {
	return &recordingSink{sent: make(map[string][]dueldto.Envelope), fail: make(map[string]bool)}
}

func (r *recordingSink) Publish(_ context.Context, route string, env dueldto.Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail[route] {
		return errors.New("connection gone")
	}
	r.sent[route] = append(r.sent[route], env)
	return nil
}

func testSession() *duel.Session {
	return &duel.Session{
		ID: "duel-1",
		Players: []duel.Player{
			{UserID: "u1", DisplayName: "Alice", RouteToken: "r1", Score: 110},
			{UserID: "u2", DisplayName: "Bob", RouteToken: "r2"},
		},
		Rounds: []duel.Round{{
			Index: 0, PromptRef: "JP", Prompt: "https://flagcdn.com/w320/jp.png",
			CorrectAnswer: "Japan", Options: []string{"Peru", "Japan", "Chile", "Fiji"}, TimeLimit: 15,
		}},
		MaxRounds: 1,
		Status:    duel.StatusInProgress,
	}
}

func TestRoundStartedHidesCorrectAnswer(t *testing.T) {
	sink := newRecordingSink()
	n := New(sink)
	if err := n.RoundStarted(context.Background(), testSession(), 0); err != nil {
		t.Fatalf("RoundStarted: %v", err)
	}
	for _, route := range []string{"r1", "r2"} {
		got := sink.sent[route]
		if len(got) != 1 || got[0].Type != dueldto.EventRoundStarted {
			t.Fatalf("%s: unexpected envelopes %+v", route, got)
		}
		raw, _ := json.Marshal(got[0])
		if strings.Contains(string(raw), "correct") || strings.Contains(string(raw), "prompt_ref") {
			t.Fatalf("round event leaks answer data: %s", raw)
		}
		rs := got[0].Payload.(dueldto.RoundStarted)
		if len(rs.Round.Options) != 4 || rs.Players[0].Score != 110 {
			t.Fatalf("unexpected payload %+v", rs)
		}
	}
	if err := n.RoundStarted(context.Background(), testSession(), 3); !errors.Is(err, duel.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for out-of-range round, got %v", err)
	}
}

func TestBroadcastContinuesPastFailure(t *testing.T) {
	sink := newRecordingSink()
	sink.fail["r1"] = true
	n := New(sink)
	s := testSession()

	err := n.SessionFinished(context.Background(), s, duel.ComputeResults(s))
	if err == nil || !strings.Contains(err.Error(), "u1") {
		t.Fatalf("expected error naming u1, got %v", err)
	}
	got := sink.sent["r2"]
	if len(got) != 1 {
		t.Fatalf("r2 should still be notified, got %d", len(got))
	}
	fin := got[0].Payload.(dueldto.SessionFinished)
	if fin.Winner == nil || *fin.Winner != "u1" || fin.IsTie || fin.Standings[0].Score != 110 {
		t.Fatalf("unexpected finish payload %+v", fin)
	}
}

func TestDirectEventsSkipEmptyRoute(t *testing.T) {
	sink := newRecordingSink()
	n := New(sink)
	ctx := context.Background()
	if err := n.Error(ctx, "", "NOT_FOUND", "gone"); err != nil {
		t.Fatalf("Error: %v", err)
	}
	if err := n.AnswerRecorded(ctx, "r2", "duel-1", 0); err != nil {
		t.Fatalf("AnswerRecorded: %v", err)
	}
	if len(sink.sent) != 1 || sink.sent["r2"][0].Type != dueldto.EventAnswerRecorded {
		t.Fatalf("unexpected deliveries %+v", sink.sent)
	}
}

func TestRedisSinkPublishesJSON(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sink := NewRedisSink(rdb, "")
	sub := rdb.Subscribe(ctx, sink.Channel("r1"))
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := New(sink).Error(ctx, "r1", "INVALID_ANSWER", "not an option"); err != nil {
		t.Fatalf("Error: %v", err)
	}
	select {
	case msg := <-sub.Channel():
		if msg.Channel != "duel:events:r1" {
			t.Fatalf("unexpected channel %s", msg.Channel)
		}
		var env struct {
			Type    string             `json:"type"`
			Payload dueldto.ErrorEvent `json:"payload"`
		}
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if env.Type != dueldto.EventError || env.Payload.Code != "INVALID_ANSWER" {
			t.Fatalf("unexpected envelope %+v", env)
		}
	case <-ctx.Done():
		t.Fatalf("no message received")
	}
}

func TestLogSink(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	n := New(NewLogSink(zap.New(core)))
	if err := n.SessionFormed(context.Background(), testSession()); err != nil {
		t.Fatalf("SessionFormed: %v", err)
	}
	if logs.FilterMessage("notify_dryrun").Len() != 2 {
		t.Fatalf("expected one log line per player, got %d", logs.Len())
	}
}
