package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/park285/flagduel/internal/duel"
)

// PostgresStore is the durable session store backed by a JSONB column.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}

// EnsureSchema creates the sessions table when missing.
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	ddl, err := migrationFS.ReadFile("migrations/postgres/001_duel_sessions.sql")
	if err != nil {
		return fmt.Errorf("read schema: %w", err)
	}
	if _, err := p.db.ExecContext(ctx, string(ddl)); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Upsert writes the session document. Older versions never overwrite newer ones.
func (p *PostgresStore) Upsert(ctx context.Context, s *duel.Session) error {
	r, err := toRecord(s)
	if err != nil {
		return err
	}
	q := `INSERT INTO duel_sessions (
        session_id, player_a, player_b, status, winner_id, version, document,
        created_at, updated_at, ended_at
      ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10
      ) ON CONFLICT (session_id) DO UPDATE SET
        player_a=EXCLUDED.player_a,
        player_b=EXCLUDED.player_b,
        status=EXCLUDED.status,
        winner_id=EXCLUDED.winner_id,
        version=EXCLUDED.version,
        document=EXCLUDED.document,
        updated_at=EXCLUDED.updated_at,
        ended_at=EXCLUDED.ended_at
      WHERE duel_sessions.version <= EXCLUDED.version`

	var endedAt sql.NullTime
	if s.EndTime != nil {
		endedAt = sql.NullTime{Time: s.EndTime.UTC(), Valid: true}
	}
	var winner sql.NullString
	if r.winner != nil {
		winner = sql.NullString{String: *r.winner, Valid: true}
	}
	_, err = p.db.ExecContext(ctx, q,
		r.id, r.playerA, r.playerB, r.status, winner, r.version, string(r.document),
		s.CreatedAt.UTC(), s.UpdatedAt.UTC(), endedAt,
	)
	return err
}

// Load returns the stored session, or nil when unknown.
func (p *PostgresStore) Load(ctx context.Context, id string) (*duel.Session, error) {
	var doc []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT document FROM duel_sessions WHERE session_id = $1`, strings.TrimSpace(id),
	).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decode(doc)
}

// ListByUser returns the user's sessions, most recently updated first.
func (p *PostgresStore) ListByUser(ctx context.Context, userID string, limit int) ([]*duel.Session, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT document FROM duel_sessions
          WHERE player_a = $1 OR player_b = $1
          ORDER BY updated_at DESC
          LIMIT $2`,
		strings.TrimSpace(userID), clampLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDocuments(rows)
}

func scanDocuments(rows *sql.Rows) ([]*duel.Session, error) {
	out := make([]*duel.Session, 0)
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		s, err := decode(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
