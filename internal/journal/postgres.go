package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/SebastianHall69/FlyingChess1995XL/internal/domain"
)

const schema = `CREATE TABLE IF NOT EXISTS bot_matches (
    match_id    TEXT PRIMARY KEY,
    color       TEXT NOT NULL,
    end_reason  TEXT NOT NULL,
    error       TEXT NOT NULL DEFAULT '',
    moves_uci   JSONB NOT NULL,
    moves_san   JSONB NOT NULL,
    pgn         TEXT NOT NULL,
    started_at  TIMESTAMPTZ NOT NULL,
    ended_at    TIMESTAMPTZ NOT NULL,
    duration_ms BIGINT NOT NULL
)`

const insertMatch = `INSERT INTO bot_matches (
    match_id, color, end_reason, error, moves_uci, moves_san, pgn,
    started_at, ended_at, duration_ms
  ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
  ON CONFLICT (match_id) DO NOTHING`

// Repository archives matches in Postgres.
type Repository struct {
	db *sql.DB
}

func NewRepository(ctx context.Context, databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(pingCtx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// SaveMatch inserts rec. Saving the same id twice keeps the first row.
func (r *Repository) SaveMatch(ctx context.Context, rec domain.MatchRecord) error {
	if r == nil || r.db == nil {
		return nil
	}
	_, err := r.db.ExecContext(ctx, insertMatch, insertArgs(rec)...)
	return err
}

func insertArgs(rec domain.MatchRecord) []any {
	uci := rec.MovesUCI
	if uci == nil {
		uci = []string{}
	}
	san := rec.MovesSAN
	if san == nil {
		san = []string{}
	}
	movesUCIRaw, _ := json.Marshal(uci)
	movesSANRaw, _ := json.Marshal(san)
	return []any{
		rec.ID, rec.Color, rec.EndReason, rec.Error,
		string(movesUCIRaw), string(movesSANRaw), rec.PGN,
		rec.StartedAt, rec.EndedAt, rec.Duration().Milliseconds(),
	}
}
