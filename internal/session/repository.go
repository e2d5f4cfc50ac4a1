package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// Repository archives game sessions in PostgreSQL. The Redis store holds
// the authoritative live state; this table is the couple's permanent game
// history.
//
// Expected schema:
//
//	CREATE TABLE game_sessions (
//	    session_id   TEXT PRIMARY KEY,
//	    couple_id    TEXT NOT NULL,
//	    game_type    TEXT NOT NULL,
//	    status       TEXT NOT NULL,
//	    players      JSONB NOT NULL DEFAULT '[]',
//	    moves        JSONB NOT NULL DEFAULT '[]',
//	    scores       JSONB NOT NULL DEFAULT '{}',
//	    winner       TEXT,
//	    created_at   TIMESTAMPTZ NOT NULL,
//	    started_at   TIMESTAMPTZ,
//	    completed_at TIMESTAMPTZ,
//	    duration_sec BIGINT NOT NULL DEFAULT 0
//	);
type Repository struct {
	db *sql.DB
}

func NewRepository(databaseURL string) (*Repository, error) {
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
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// CreateRecord inserts the initial row for a freshly created session.
func (r *Repository) CreateRecord(ctx context.Context, s *Session) error {
	if r == nil || r.db == nil || s == nil {
		return nil
	}
	playersRaw, _ := json.Marshal(s.Players)
	scoresRaw, _ := json.Marshal(s.Scores)
	q := `INSERT INTO game_sessions (session_id, couple_id, game_type, status, players, moves, scores, created_at)
	      VALUES ($1,$2,$3,$4,$5,'[]',$6,$7)
	      ON CONFLICT (session_id) DO NOTHING`
	_, err := r.db.ExecContext(ctx, q, s.ID, s.CoupleID, s.GameType, string(s.Status), string(playersRaw), string(scoresRaw), s.CreatedAt)
	return err
}

// AppendMove appends one move to the archived move log.
func (r *Repository) AppendMove(ctx context.Context, sessionID string, mv Move) error {
	if r == nil || r.db == nil {
		return nil
	}
	raw, err := json.Marshal(mv)
	if err != nil {
		return err
	}
	q := `UPDATE game_sessions SET moves = moves || $2::jsonb WHERE session_id = $1`
	_, err = r.db.ExecContext(ctx, q, sessionID, string(raw))
	return err
}

// FinalizeRecord upserts the full terminal state of a session.
func (r *Repository) FinalizeRecord(ctx context.Context, s *Session) error {
	if r == nil || r.db == nil || s == nil {
		return nil
	}
	playersRaw, _ := json.Marshal(s.Players)
	movesRaw, _ := json.Marshal(s.Moves)
	scoresRaw, _ := json.Marshal(s.Scores)

	q := `INSERT INTO game_sessions (
	        session_id, couple_id, game_type, status,
	        players, moves, scores, winner,
	        created_at, started_at, completed_at, duration_sec
	      ) VALUES (
	        $1,$2,$3,$4,$5,$6,$7,NULLIF($8,''),$9,$10,$11,$12
	      ) ON CONFLICT (session_id) DO UPDATE SET
	        status=EXCLUDED.status,
	        players=EXCLUDED.players,
	        moves=EXCLUDED.moves,
	        scores=EXCLUDED.scores,
	        winner=EXCLUDED.winner,
	        started_at=EXCLUDED.started_at,
	        completed_at=EXCLUDED.completed_at,
	        duration_sec=EXCLUDED.duration_sec`

	_, err := r.db.ExecContext(ctx, q,
		s.ID, s.CoupleID, s.GameType, string(s.Status),
		string(playersRaw), string(movesRaw), string(scoresRaw), s.Winner,
		s.CreatedAt, nullableTime(s.StartedAt), nullableTime(s.CompletedAt), s.DurationSec,
	)
	return err
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
