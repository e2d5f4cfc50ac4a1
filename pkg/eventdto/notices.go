package eventdto

import (
	"encoding/json"
	"time"
)

// Server → client payloads.

type UserInfo struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

type PartnerStatus struct {
	UserID string    `json:"userId"`
	Status string    `json:"status"`
	User   *UserInfo `json:"user,omitempty"`
}

type GameInvitation struct {
	GameSessionID string `json:"gameSessionId"`
	GameType      string `json:"gameType"`
	InviterName   string `json:"inviterName,omitempty"`
	InviterID     string `json:"inviterId"`
}

type GameCreated struct {
	GameSessionID string `json:"gameSessionId"`
}

type GameJoined struct {
	GameSessionID string   `json:"gameSessionId"`
	PlayerID      string   `json:"playerId"`
	Status        string   `json:"status"`
	Players       []string `json:"players"`
}

type GameStarted struct {
	GameSessionID string   `json:"gameSessionId"`
	Players       []string `json:"players"`
	CurrentPlayer string   `json:"currentPlayer"`
}

type GameMoveEvent struct {
	GameSessionID string          `json:"gameSessionId"`
	Move          json.RawMessage `json:"move"`
	PlayerID      string          `json:"playerId"`
	NextPlayer    string          `json:"nextPlayer"`
}

type GameEnded struct {
	GameSessionID string         `json:"gameSessionId"`
	Winner        string         `json:"winner,omitempty"`
	FinalScores   map[string]int `json:"finalScores,omitempty"`
}

type GameCancelled struct {
	GameSessionID string `json:"gameSessionId"`
	CancelledBy   string `json:"cancelledBy"`
}

type VideoSyncEvent struct {
	Action    string  `json:"action"`
	Timestamp float64 `json:"timestamp"`
	VideoURL  string  `json:"videoUrl,omitempty"`
	SyncedBy  string  `json:"syncedBy"`
}

type ChatMessageEvent struct {
	UserID    string    `json:"userId"`
	User      string    `json:"user,omitempty"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

type TypingEvent struct {
	UserID   string `json:"userId"`
	IsTyping bool   `json:"isTyping"`
}

type GiftReceived struct {
	Gift json.RawMessage `json:"gift"`
	From string          `json:"from"`
}

type JournalUpdated struct {
	Journal json.RawMessage `json:"journal"`
	Author  string          `json:"author"`
}

type ErrorEvent struct {
	Message string `json:"message"`
}
