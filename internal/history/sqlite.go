package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/park285/flagduel/internal/duel"
	_ "modernc.org/sqlite"
)

const migrationTable = "schema_migrations"

// SQLiteStore is the single-node durable store.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens path and applies the embedded migrations.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("SQLITE_PATH is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	sub, err := fs.Sub(migrationFS, "migrations/sqlite")
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := applyMigrations(db, sub); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func toMillis(t time.Time) int64 { return t.UTC().UnixMilli() }

func (s *SQLiteStore) Upsert(ctx context.Context, sess *duel.Session) error {
	r, err := toRecord(sess)
	if err != nil {
		return err
	}
	var endedAt sql.NullInt64
	if sess.EndTime != nil {
		endedAt = sql.NullInt64{Int64: toMillis(*sess.EndTime), Valid: true}
	}
	var winner sql.NullString
	if r.winner != nil {
		winner = sql.NullString{String: *r.winner, Valid: true}
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO duel_sessions (
        session_id, player_a, player_b, status, winner_id, version, document,
        created_at, updated_at, ended_at
      ) VALUES (?,?,?,?,?,?,?,?,?,?)
      ON CONFLICT (session_id) DO UPDATE SET
        player_a=excluded.player_a,
        player_b=excluded.player_b,
        status=excluded.status,
        winner_id=excluded.winner_id,
        version=excluded.version,
        document=excluded.document,
        updated_at=excluded.updated_at,
        ended_at=excluded.ended_at
      WHERE duel_sessions.version <= excluded.version`,
		r.id, r.playerA, r.playerB, r.status, winner, r.version, string(r.document),
		toMillis(sess.CreatedAt), toMillis(sess.UpdatedAt), endedAt,
	)
	return err
}

func (s *SQLiteStore) Load(ctx context.Context, id string) (*duel.Session, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT document FROM duel_sessions WHERE session_id = ?`, strings.TrimSpace(id),
	).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decode([]byte(doc))
}

func (s *SQLiteStore) ListByUser(ctx context.Context, userID string, limit int) ([]*duel.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT document FROM duel_sessions
          WHERE player_a = ? OR player_b = ?
          ORDER BY updated_at DESC, session_id
          LIMIT ?`,
		strings.TrimSpace(userID), strings.TrimSpace(userID), clampLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDocuments(rows)
}

// applyMigrations runs each embedded .sql file once, recording it in schema_migrations.
func applyMigrations(db *sql.DB, migrations fs.FS) error {
	entries, err := fs.ReadDir(migrations, ".")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS ` + migrationTable + ` (
    name TEXT PRIMARY KEY,
    applied_at INTEGER NOT NULL
)`); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	for _, name := range files {
		var found int
		err := db.QueryRow(`SELECT 1 FROM `+migrationTable+` WHERE name = ?`, name).Scan(&found)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		content, err := fs.ReadFile(migrations, name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		up := upSection(string(content))
		if strings.TrimSpace(up) == "" {
			continue
		}

		tx, err := db.BeginTx(context.Background(), nil)
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", name, err)
		}
		if _, err := tx.Exec(up); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", name, err)
		}
		if _, err := tx.Exec(
			`INSERT OR IGNORE INTO `+migrationTable+` (name, applied_at) VALUES (?, ?)`,
			name, time.Now().UTC().UnixMilli(),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", name, err)
		}
	}
	return nil
}

func upSection(content string) string {
	const up, down = "-- +migrate Up", "-- +migrate Down"
	i := strings.Index(content, up)
	if i == -1 {
		return content
	}
	rest := content[i+len(up):]
	if j := strings.Index(rest, down); j != -1 {
		return rest[:j]
	}
	return rest
}
