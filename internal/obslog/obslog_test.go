package obslog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSetRestoresPrevious(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	restore := Set(zap.New(core))
	L().Info("hello")
	restore()
	L().Info("after restore")
	if logs.Len() != 1 || logs.All()[0].Message != "hello" {
		t.Fatalf("unexpected entries %+v", logs.All())
	}
}

func TestInitFromEnvWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "duel.log")
	t.Setenv("LOG_TO_CONSOLE", "false")
	t.Setenv("LOG_TO_FILE", "true")
	t.Setenv("LOG_FILE", path)
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_SERVICE", "duel-test")
	prev := L()
	t.Cleanup(func() { Set(prev) })

	if err := InitFromEnv(); err != nil {
		t.Fatalf("InitFromEnv: %v", err)
	}
	L().Info("duel_session_create", zap.String("session_id", "duel-1"))
	Sync()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	line := string(raw)
	for _, want := range []string{`"msg":"duel_session_create"`, `"session_id":"duel-1"`, `"service":"duel-test"`} {
		if !strings.Contains(line, want) {
			t.Fatalf("log line missing %s: %s", want, line)
		}
	}
}

func TestParseLevel(t *testing.T) {
	if parseLevel("WARNING") != zapcore.WarnLevel || parseLevel("bogus") != zapcore.InfoLevel {
		t.Fatalf("unexpected level parsing")
	}
}
