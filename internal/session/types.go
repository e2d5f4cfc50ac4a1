package session

import (
	"encoding/json"
	"time"
)

// Status represents a game session lifecycle state.
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Move is one append-only entry of a session's move log. The payload is
// opaque to the coordinator; each game type interprets it client-side.
type Move struct {
	PlayerID  string          `json:"playerId"`
	Move      json.RawMessage `json:"move"`
	Timestamp time.Time       `json:"timestamp"`
}

// Session is the live state of a two-player turn-based game, stored as JSON
// in Redis. Player order determines turn rotation.
type Session struct {
	ID            string         `json:"id"`
	CoupleID      string         `json:"coupleId"`
	GameType      string         `json:"gameType"`
	Status        Status         `json:"status"`
	Players       []string       `json:"players"`
	CurrentPlayer string         `json:"currentPlayer,omitempty"`
	Moves         []Move         `json:"moves"`
	Scores        map[string]int `json:"scores"`
	Winner        string         `json:"winner,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
	StartedAt     time.Time      `json:"startedAt,omitzero"`
	CompletedAt   time.Time      `json:"completedAt,omitzero"`
	DurationSec   int64          `json:"duration,omitempty"`
}

// HasPlayer reports whether the user is a participant.
func (s *Session) HasPlayer(userID string) bool {
	for _, p := range s.Players {
		if p == userID {
			return true
		}
	}
	return false
}

// nextAfter returns the player whose turn follows userID, round-robin over
// the player order.
func (s *Session) nextAfter(userID string) string {
	for i, p := range s.Players {
		if p == userID {
			return s.Players[(i+1)%len(s.Players)]
		}
	}
	return ""
}

// Error taxonomy. These travel back to the originating connection only.
var (
	ErrInvalidArgs   = errf("invalid arguments")
	ErrNotPaired     = errf("you are not paired with a partner")
	ErrNotFound      = errf("game session not found")
	ErrForbidden     = errf("not allowed for this game session")
	ErrTurnViolation = errf("not your turn")
	ErrInvalidState  = errf("game is not in a valid state for this action")
)

type staticErr string

func (e staticErr) Error() string { return string(e) }
func errf(s string) error         { return staticErr(s) }
