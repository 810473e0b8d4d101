// Package history keeps finished and in-flight duel sessions in a SQL
// database so they outlive the Redis copy.
package history

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/park285/flagduel/internal/duel"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationFS embed.FS

const (
	defaultListLimit = 20
	maxListLimit     = 200
)

// record is the row shape shared by both backends.
type record struct {
	id       string
	playerA  string
	playerB  string
	status   string
	winner   *string
	version  int64
	document []byte
}

func toRecord(s *duel.Session) (*record, error) {
	if s == nil || strings.TrimSpace(s.ID) == "" {
		return nil, fmt.Errorf("session id is required: %w", duel.ErrInvalidInput)
	}
	doc, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode session %s: %w", s.ID, err)
	}
	r := &record{
		id:       s.ID,
		status:   string(s.Status),
		version:  s.Version,
		document: doc,
	}
	if len(s.Players) > 0 {
		r.playerA = s.Players[0].UserID
	}
	if len(s.Players) > 1 {
		r.playerB = s.Players[1].UserID
	}
	if s.Status == duel.StatusFinished {
		r.winner = duel.ComputeResults(s).Winner
	}
	return r, nil
}

func decode(doc []byte) (*duel.Session, error) {
	var s duel.Session
	if err := json.Unmarshal(doc, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &s, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
